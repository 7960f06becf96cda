package domain

import (
	"encoding/json"
	"time"

	"github.com/berfenger/zwave2mqtt/pkg/zwave"
)

// Channel is the logical outbound topic of a notification.
type Channel string

const (
	CHANNEL_SENSORS Channel = "sensors"
	CHANNEL_MOTION  Channel = "motion"
	CHANNEL_OUTLETS Channel = "outlets"
	CHANNEL_LIGHTS  Channel = "lights"
)

const (
	STATE_OPEN      = "open"
	STATE_CLOSED    = "closed"
	STATE_MOTION    = "motion"
	STATE_NO_MOTION = "no motion"
	STATE_ON        = "on"
	STATE_OFF       = "off"
)

// Notification is a state transition to publish. Single state notifications
// carry State; multi-sensor composites carry Values keyed by attribute label.
type Notification struct {
	Channel   Channel
	SensorID  string
	Timestamp time.Time
	State     zwave.Value
	Values    map[string]zwave.Value
}

func (n Notification) IsComposite() bool {
	return n.Values != nil
}

func (n Notification) MarshalJSON() ([]byte, error) {
	msg := make(map[string]any, len(n.Values)+3)
	for label, value := range n.Values {
		msg[label] = value
	}
	msg["sensorId"] = n.SensorID
	msg["timestamp"] = n.Timestamp
	if !n.IsComposite() {
		msg["state"] = n.State
	}
	return json.Marshal(msg)
}
