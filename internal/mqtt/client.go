package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/berfenger/zwave2mqtt/internal/config"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
)

const (
	TOPIC_ACTION_OUTLETS = "action-outlets"
	TOPIC_ACTION_LIGHTS  = "action-lights"
	TOPIC_BRIDGE_STATE   = "bridge/state"
)

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(BrokerURL(cfg))
	opts.SetClientID(fmt.Sprintf("zwave2mqtt_%d", rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = prefixed(cfg.MQTT.TopicPrefix, TOPIC_BRIDGE_STATE)
	opts.WillQos = 0

	return opts
}

func BrokerURL(cfg *config.Config) string {
	return fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		client: mqtt.NewClient(opts),
		cfg:    cfg.MQTT,
	}
}

type MQTTClient struct {
	client mqtt.Client
	cfg    config.MQTTConfig
}

func (c *MQTTClient) BridgeStateTopic() string {
	return prefixed(c.cfg.TopicPrefix, TOPIC_BRIDGE_STATE)
}

func (c *MQTTClient) NotificationTopic(ch domain.Channel) string {
	return prefixed(c.cfg.TopicPrefix, string(ch))
}

func (c *MQTTClient) OutletCommandTopic() string {
	return prefixed(c.cfg.TopicPrefix, TOPIC_ACTION_OUTLETS)
}

func (c *MQTTClient) LightCommandTopic() string {
	return prefixed(c.cfg.TopicPrefix, TOPIC_ACTION_LIGHTS)
}

// IsConnected reads the live session state of the underlying client.
func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (domain.Command, error) {
	switch msg.Topic() {
	case c.OutletCommandTopic():
		return ParseOutletCommand(msg.Payload())
	case c.LightCommandTopic():
		return ParseLightCommand(msg.Payload())
	}
	return nil, fmt.Errorf("unexpected command topic %s", msg.Topic())
}

type outletCommandPayload struct {
	Outlet string `json:"outlet"`
	State  string `json:"state"`
}

type lightCommandPayload struct {
	LightSwitch string   `json:"lightSwitch"`
	State       string   `json:"state"`
	Level       *float64 `json:"level"`
}

func ParseOutletCommand(payload []byte) (domain.OutletCommand, error) {
	var p outletCommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.OutletCommand{}, fmt.Errorf("invalid outlet command: %w", err)
	}
	if p.Outlet == "" {
		return domain.OutletCommand{}, errors.New("invalid outlet command: missing outlet")
	}
	return domain.OutletCommand{
		Outlet: p.Outlet,
		On:     p.State == MQTT_PAYLOAD_ON,
	}, nil
}

func ParseLightCommand(payload []byte) (domain.LightCommand, error) {
	var p lightCommandPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.LightCommand{}, fmt.Errorf("invalid light command: %w", err)
	}
	if p.LightSwitch == "" {
		return domain.LightCommand{}, errors.New("invalid light command: missing lightSwitch")
	}
	return domain.LightCommand{
		LightSwitch: p.LightSwitch,
		On:          p.State == MQTT_PAYLOAD_ON,
		Level:       p.Level,
	}, nil
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go waitToken(token, "publish", continuation, timeout)
}

func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	token := c.client.SubscribeMultiple(map[string]byte{
		c.OutletCommandTopic(): 1,
		c.LightCommandTopic():  1,
	}, handler)
	go waitToken(token, "subscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go waitToken(token, "connect", continuation, timeout)
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

func waitToken(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	if !token.WaitTimeout(timeout) {
		continuation(fmt.Errorf("MQTT %s timed out", op))
		return
	}
	continuation(token.Error())
}

func prefixed(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return fmt.Sprintf("%s/%s", prefix, topic)
}

// ConnectionStatus tracks the client currently owned by the MQTT actor so other
// actors can check the session without messaging it.
type ConnectionStatus struct {
	client atomic.Pointer[MQTTClient]
}

func (s *ConnectionStatus) Set(c *MQTTClient) {
	s.client.Store(c)
}

func (s *ConnectionStatus) Clear() {
	s.client.Store(nil)
}

func (s *ConnectionStatus) Connected() bool {
	c := s.client.Load()
	return c != nil && c.IsConnected()
}
