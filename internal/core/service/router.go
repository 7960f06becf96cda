package service

import (
	"fmt"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
	"go.uber.org/zap"
)

// DefaultEventRouter applies driver events to the registry and publishes the
// resulting notifications. It is not safe for concurrent use; a single owner
// must feed it events in driver order.
type DefaultEventRouter struct {
	Registry   *registry.Registry
	Tables     *classification.Tables
	Composer   port.NotificationComposer
	Connection port.ConnectionState
	Publisher  port.NotificationPublisher
	Poller     port.Poller
	Logger     *zap.Logger
}

var _ port.EventRouter = (*DefaultEventRouter)(nil)

func (r *DefaultEventRouter) Handle(ev zwave.Event) error {
	switch ev.Kind {
	case zwave.EventNodeAdded:
		return r.nodeAdded(ev.NodeID)
	case zwave.EventNodeReady:
		return r.nodeReady(ev)
	case zwave.EventValueAdded:
		if ev.ValueID == nil {
			return nil
		}
		_, _, err := r.Registry.UpsertAttribute(ev.NodeID, record(ev.ValueID))
		return err
	case zwave.EventValueChanged:
		return r.valueChanged(ev)
	case zwave.EventValueRefreshed:
		return r.valueRefreshed(ev)
	case zwave.EventValueRemoved:
		return r.Registry.RemoveAttribute(ev.NodeID, ev.ClassID, ev.Index)
	case zwave.EventNodeEvent:
		return r.notify(ev.NodeID, zwave.NoClass, ev.Data)
	case zwave.EventDriverReady:
		r.Logger.Info(fmt.Sprintf("router: driver ready, home id 0x%08x", ev.HomeID))
	case zwave.EventScanComplete:
		r.Logger.Info("router: network scan complete")
	default:
		r.Logger.Debug("router: "+ev.String(), zap.String("message", ev.Message))
	}
	return nil
}

func (r *DefaultEventRouter) nodeAdded(nodeID int) error {
	if r.Registry.Register(nodeID) {
		r.Logger.Debug(fmt.Sprintf("router: node%d added", nodeID))
	}
	if r.Tables.IsDoorSensor(nodeID) {
		return r.Registry.SetReady(nodeID)
	}
	return nil
}

func (r *DefaultEventRouter) nodeReady(ev zwave.Event) error {
	if ev.Info != nil {
		if err := r.Registry.SetIdentity(ev.NodeID, registry.IdentityOf(*ev.Info)); err != nil {
			return err
		}
	}
	if err := r.Registry.SetReady(ev.NodeID); err != nil {
		return err
	}
	dev, err := r.Registry.Get(ev.NodeID)
	if err != nil {
		return err
	}
	id := dev.Identity
	r.Logger.Info(fmt.Sprintf("router: node%d: %s, %s", ev.NodeID, id.Manufacturer, id.Product),
		zap.String("type", id.Type), zap.String("name", id.Name), zap.String("location", id.Location))
	for _, a := range dev.Attributes {
		r.Logger.Info(fmt.Sprintf("router: node%d: %d:%s=%s", ev.NodeID, a.ClassID, a.Label, a.Value.Format()))
	}
	for _, light := range r.Tables.Lights() {
		if light.NodeID == ev.NodeID && light.Poll {
			r.Poller.EnablePoll(light.NodeID, light.ClassID)
		}
	}
	return nil
}

func (r *DefaultEventRouter) valueChanged(ev zwave.Event) error {
	if ev.ValueID == nil {
		return nil
	}
	v := ev.ValueID
	prev, existed, err := r.Registry.UpsertAttribute(ev.NodeID, record(v))
	if err != nil {
		return err
	}
	if ready, _ := r.Registry.IsReady(ev.NodeID); ready {
		old := "<none>"
		if existed {
			old = prev.Value.Format()
		}
		r.Logger.Info(fmt.Sprintf("router: node%d: changed: %d:%s:%s->%s", ev.NodeID, v.ClassID, v.Label, old, v.Value.Format()))
	}
	return r.notify(ev.NodeID, v.ClassID, v.Value)
}

func (r *DefaultEventRouter) valueRefreshed(ev zwave.Event) error {
	if ev.ValueID == nil {
		return nil
	}
	ready, err := r.Registry.IsReady(ev.NodeID)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}
	if _, _, err := r.Registry.UpsertAttribute(ev.NodeID, record(ev.ValueID)); err != nil {
		return err
	}
	return r.notify(ev.NodeID, ev.ValueID.ClassID, ev.ValueID.Value)
}

// notify fails for unknown devices, then checks the MQTT session and device
// readiness in that order, dropping the event when either is missing.
func (r *DefaultEventRouter) notify(nodeID, classID int, value zwave.Value) error {
	dev, err := r.Registry.Get(nodeID)
	if err != nil {
		return err
	}
	if !r.Connection.Connected() {
		r.Logger.Info(fmt.Sprintf("router: mqtt not connected, dropping update of node%d", nodeID))
		return nil
	}
	if !dev.Ready {
		r.Logger.Debug(fmt.Sprintf("router: node%d not ready, dropping update", nodeID))
		return nil
	}
	for _, n := range r.Composer.Compose(dev, classID, value) {
		r.Publisher.Publish(n)
	}
	return nil
}

func record(v *zwave.ValueID) registry.AttributeRecord {
	return registry.AttributeRecord{
		ClassID:  v.ClassID,
		Instance: v.Instance,
		Index:    v.Index,
		Label:    v.Label,
		Value:    v.Value,
	}
}
