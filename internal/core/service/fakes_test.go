package service

import (
	"sync/atomic"
	"time"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type connection struct {
	up atomic.Bool
}

func (c *connection) Connected() bool {
	return c.up.Load()
}

type publisher struct {
	sent []domain.Notification
}

func (p *publisher) Publish(n domain.Notification) {
	p.sent = append(p.sent, n)
}

func (p *publisher) on(ch domain.Channel) []domain.Notification {
	var out []domain.Notification
	for _, n := range p.sent {
		if n.Channel == ch {
			out = append(out, n)
		}
	}
	return out
}

type poll struct {
	node, class int
}

type poller struct {
	polls []poll
}

func (p *poller) EnablePoll(nodeID, classID int) {
	p.polls = append(p.polls, poll{nodeID, classID})
}

type write struct {
	node, class, instance, index int
	value                        zwave.Value
}

type writer struct {
	writes []write
}

func (w *writer) SetValue(nodeID, classID, instance, index int, value zwave.Value) {
	w.writes = append(w.writes, write{nodeID, classID, instance, index, value})
}

type routerFixture struct {
	router     *DefaultEventRouter
	registry   *registry.Registry
	connection *connection
	publisher  *publisher
	poller     *poller
}

func newRouterFixture() *routerFixture {
	tables := classification.Defaults()
	composer := NewNotificationComposer(tables)
	composer.Now = func() time.Time { return fixedNow }
	f := &routerFixture{
		registry:   registry.New(),
		connection: &connection{},
		publisher:  &publisher{},
		poller:     &poller{},
	}
	f.connection.up.Store(true)
	f.router = &DefaultEventRouter{
		Registry:   f.registry,
		Tables:     tables,
		Composer:   composer,
		Connection: f.connection,
		Publisher:  f.publisher,
		Poller:     f.poller,
		Logger:     zap.NewNop(),
	}
	return f
}

func vid(class, index int, label string, v zwave.Value) zwave.ValueID {
	return zwave.ValueID{ClassID: class, Instance: 1, Index: index, Label: label, Value: v}
}
