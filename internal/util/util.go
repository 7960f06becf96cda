package util

import (
	"github.com/berfenger/zwave2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Host: "localhost",
			Port: 1883,
		},
		Driver: config.DriverConfig{
			Prefix:             "zwave",
			GatewayName:        "zwavejs2mqtt",
			PollIntervalMillis: 30000,
			WriteTimeoutMillis: 500,
		},
		Port: 8080,
	}
}
