package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/zwave2mqtt/internal/config"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	registry    *registry.Registry
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, reg *registry.Registry) *http.Server {
	NewServer := &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		registry:    reg,
		httpLog:     cfg.HttpLog,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
