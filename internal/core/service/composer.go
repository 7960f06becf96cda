package service

import (
	"time"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
)

type DefaultNotificationComposer struct {
	Tables *classification.Tables
	Lights *classification.LightCache
	Now    func() time.Time
}

var _ port.NotificationComposer = (*DefaultNotificationComposer)(nil)

func NewNotificationComposer(tables *classification.Tables) *DefaultNotificationComposer {
	return &DefaultNotificationComposer{
		Tables: tables,
		Lights: classification.NewLightCache(),
		Now:    time.Now,
	}
}

// Compose builds one notification per role of the device that accepts the value.
// Node events (classID == zwave.NoClass) only reach roles without a class constraint.
func (c *DefaultNotificationComposer) Compose(device registry.Device, classID int, value zwave.Value) []domain.Notification {
	var out []domain.Notification
	ts := c.Now()
	for _, entry := range c.Tables.EntriesFor(device.NodeID) {
		if entry.HasClass() && entry.ClassID != classID {
			continue
		}
		switch entry.Role {
		case classification.ROLE_DOOR_SENSOR:
			state := domain.STATE_OPEN
			if value.IsZero() {
				state = domain.STATE_CLOSED
			}
			out = append(out, single(domain.CHANNEL_SENSORS, entry, ts, zwave.String(state)))
		case classification.ROLE_MOTION_SENSOR:
			state := domain.STATE_MOTION
			if value.IsZero() {
				state = domain.STATE_NO_MOTION
			}
			out = append(out, single(domain.CHANNEL_MOTION, entry, ts, zwave.String(state)))
		case classification.ROLE_OUTLET:
			out = append(out, single(domain.CHANNEL_OUTLETS, entry, ts, zwave.String(onOff(value.IsTrue()))))
		case classification.ROLE_MULTI_SENSOR:
			out = append(out, composite(entry, ts, device.Attributes))
		case classification.ROLE_LIGHT:
			if !c.Lights.Swap(device.NodeID, value) {
				continue
			}
			state := value
			if value.Kind == zwave.KindBool {
				state = zwave.String(onOff(value.Bool))
			}
			out = append(out, single(domain.CHANNEL_LIGHTS, entry, ts, state))
		}
	}
	return out
}

func single(ch domain.Channel, entry classification.Entry, ts time.Time, state zwave.Value) domain.Notification {
	return domain.Notification{
		Channel:   ch,
		SensorID:  entry.Name,
		Timestamp: ts,
		State:     state,
	}
}

func composite(entry classification.Entry, ts time.Time, attrs []registry.AttributeRecord) domain.Notification {
	values := make(map[string]zwave.Value)
	for _, a := range attrs {
		if entry.AllowsKey(a.Label) {
			values[a.Label] = a.Value
		}
	}
	return domain.Notification{
		Channel:   domain.CHANNEL_SENSORS,
		SensorID:  entry.Name,
		Timestamp: ts,
		Values:    values,
	}
}

func onOff(on bool) string {
	if on {
		return domain.STATE_ON
	}
	return domain.STATE_OFF
}
