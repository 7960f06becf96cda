package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel    zapcore.Level
	MQTT        MQTTConfig   `mapstructure:"mqtt"`
	Driver      DriverConfig `mapstructure:"driver"`
	DevicesFile string       `mapstructure:"devices_file"`
	Port        uint         `mapstructure:"port"`
	HttpLog     bool         `mapstructure:"http_log"`
}

type MQTTConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type DriverConfig struct {
	// Transport is the broker url of the zwave-js-ui gateway, ie. tcp://zwave:1883.
	// When empty the messaging broker is used.
	Transport          string
	Prefix             string
	GatewayName        string `mapstructure:"gateway_name"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	WriteTimeoutMillis uint32 `mapstructure:"write_timeout_millis"`
}

var topicRegexp = regexp.MustCompile("^[a-z0-9_]+(/[a-z0-9_]+)*$")

// CheckMQTTTopic validates a topic prefix. An empty prefix is allowed.
func CheckMQTTTopic(prefix string) (string, error) {
	lowerPrefix := strings.Trim(strings.ToLower(prefix), "/")
	if lowerPrefix == "" {
		return "", nil
	}
	if !topicRegexp.MatchString(lowerPrefix) {
		return "", errors.New("invalid topic. can only contain letters, numbers, underscores and slashes")
	}
	return lowerPrefix, nil
}
