package server

import (
	"net/http"
	"time"

	"github.com/berfenger/zwave2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type healthCheckResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/devices", s.DevicesHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	fail := healthCheckResponse{Status: "FAIL", Version: versioninfo.Short()}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, fail)
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.JSON(http.StatusOK, healthCheckResponse{Status: "OK", Version: versioninfo.Short()})
	}
	return c.JSON(http.StatusServiceUnavailable, fail)
}

func (s *Server) DevicesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, s.registry.Snapshot())
}
