package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/zwave2mqtt/internal/adapter/actor"
	"github.com/berfenger/zwave2mqtt/internal/config"
	"github.com/berfenger/zwave2mqtt/internal/core/actor"
	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/internal/mqtt"
	"github.com/berfenger/zwave2mqtt/internal/server"
	"github.com/berfenger/zwave2mqtt/internal/util/actorutil"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// gracefulShutdown waits for a termination signal or a fatal bridge error, stops
// the HTTP server and sends the fatal error, if any, on done.
func gracefulShutdown(apiServer *http.Server, fatal <-chan error, done chan error) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cause error
	select {
	case <-ctx.Done():
		log.Println("shutting down gracefully, press Ctrl+C again to force")
	case cause = <-fatal:
		log.Printf("shutting down on fatal error: %v", cause)
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- cause
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		os.Exit(1)
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("zwave2mqtt starting", zap.String("version", versioninfo.Short()))

	// classification tables
	tables, err := loadTables(cfg)
	if err != nil {
		logger.Fatal("could not load devices", zap.Error(err))
	}
	logger.Info("devices loaded", zap.Int("entries", tables.Len()))

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	reg := registry.New()
	status := &mqtt.ConnectionStatus{}
	fatal := make(chan error, 1)

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, reg, tables, status, driverActorProvider(cfg, logger),
			mqttActorProvider(cfg, status, logger), fatal, logger)
	})
	pid, err := ctx.SpawnNamed(props, "master")
	if err != nil {
		logger.Fatal("could not start master actor", zap.Error(err))
	}

	server := server.NewServer(*cfg, ctx, pid, reg)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan error, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, fatal, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	cause := <-done
	log.Println("Graceful shutdown complete.")

	ctx.Stop(pid)
	as.Shutdown()

	if cause != nil {
		logger.Sync()
		os.Exit(1)
	}
}

func initConfig() (*config.Config, error) {

	// alias PORT => ZWAVE2MQTT_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("ZWAVE2MQTT_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("zwave2mqtt")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix topic prefix
	prefix, err := config.CheckMQTTTopic(cfg.MQTT.TopicPrefix)
	if err != nil {
		return nil, errors.New("invalid mqtt topic prefix. can only contain letters, numbers, underscores and slashes")
	}
	cfg.MQTT.TopicPrefix = prefix

	// check bounds
	if cfg.Driver.PollIntervalMillis < 1000 {
		return nil, errors.New("config param driver.poll_interval_millis should be >= 1000")
	}
	if cfg.Driver.WriteTimeoutMillis <= 0 {
		return nil, errors.New("config param driver.write_timeout_millis should be > 0")
	}
	if cfg.Driver.GatewayName == "" {
		return nil, errors.New("config param driver.gateway_name is required")
	}

	return &cfg, nil
}

func loadTables(cfg *config.Config) (*classification.Tables, error) {
	if cfg.DevicesFile == "" {
		return classification.Defaults(), nil
	}
	return classification.LoadFile(cfg.DevicesFile)
}

func driverActorProvider(cfg *config.Config, logger *zap.Logger) actor.DriverActorProvider {
	transport := cfg.Driver.Transport
	if transport == "" {
		transport = mqtt.BrokerURL(cfg)
	}
	return func(es *eventstream.EventStream) *adactor.DriverActor {
		driver := zwave.NewGatewayDriver(zwave.GatewayOptions{
			Prefix:       cfg.Driver.Prefix,
			GatewayName:  cfg.Driver.GatewayName,
			Username:     cfg.MQTT.Username,
			Password:     cfg.MQTT.Password,
			PollInterval: time.Duration(cfg.Driver.PollIntervalMillis) * time.Millisecond,
			Logger:       logger,
		})
		return adactor.NewDriverActor(driver, transport,
			time.Duration(cfg.Driver.WriteTimeoutMillis)*time.Millisecond, es, logger)
	}
}

func mqttActorProvider(cfg *config.Config, status *mqtt.ConnectionStatus, logger *zap.Logger) actor.MQTTActorProvider {
	return func() *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, status, logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("mqtt.host", "localhost")
	viper.SetDefault("mqtt.port", 1883)
	viper.SetDefault("mqtt.topic_prefix", "")
	viper.SetDefault("driver.transport", "")
	viper.SetDefault("driver.prefix", "zwave")
	viper.SetDefault("driver.gateway_name", "zwavejs2mqtt")
	viper.SetDefault("driver.poll_interval_millis", 30000)
	viper.SetDefault("driver.write_timeout_millis", 5000)
	viper.SetDefault("devices_file", "")
	viper.SetDefault("http_log", false)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
