package port

import (
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
)

// ConnectionState reports whether the MQTT session is currently open.
// Implementations must answer from live state.
type ConnectionState interface {
	Connected() bool
}

type NotificationPublisher interface {
	Publish(n domain.Notification)
}

type DeviceWriter interface {
	SetValue(nodeID, classID, instance, index int, value zwave.Value)
}

type Poller interface {
	EnablePoll(nodeID, classID int)
}

type NotificationComposer interface {
	Compose(device registry.Device, classID int, value zwave.Value) []domain.Notification
}

type EventRouter interface {
	Handle(ev zwave.Event) error
}

type CommandDispatcher interface {
	DispatchOutlet(cmd domain.OutletCommand) bool
	DispatchLight(cmd domain.LightCommand) bool
}
