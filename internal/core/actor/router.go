package actor

import (
	"fmt"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	"github.com/berfenger/zwave2mqtt/internal/core/service"
	. "github.com/berfenger/zwave2mqtt/internal/util/actorutil"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

// RouterActor is the single owner of registry mutation. Driver events reach it
// through its mailbox in driver order.
type RouterActor struct {
	behavior   actor.Behavior
	registry   *registry.Registry
	tables     *classification.Tables
	connection port.ConnectionState
	driver     *actor.PID
	mqtt       *actor.PID
	router     port.EventRouter
	handled    uint64
	logger     *zap.Logger
}

type pidPublisher struct {
	sender actor.SenderContext
	pid    *actor.PID
}

func (p pidPublisher) Publish(n domain.Notification) {
	p.sender.Send(p.pid, domain.PublishNotificationRequest{Notification: n})
}

type pidPoller struct {
	sender actor.SenderContext
	pid    *actor.PID
}

func (p pidPoller) EnablePoll(nodeID, classID int) {
	p.sender.Send(p.pid, domain.EnablePollRequest{NodeID: nodeID, ClassID: classID})
}

func NewRouterActor(reg *registry.Registry, tables *classification.Tables, connection port.ConnectionState,
	driver, mqtt *actor.PID, logger *zap.Logger) *RouterActor {
	act := &RouterActor{
		behavior:   actor.NewBehavior(),
		registry:   reg,
		tables:     tables,
		connection: connection,
		driver:     driver,
		mqtt:       mqtt,
		logger:     ActorLogger(domain.ACTOR_ID_ROUTER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *RouterActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *RouterActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("router@default started")
		state.router = &service.DefaultEventRouter{
			Registry:   state.registry,
			Tables:     state.tables,
			Composer:   service.NewNotificationComposer(state.tables),
			Connection: state.connection,
			Publisher:  pidPublisher{sender: ctx, pid: state.mqtt},
			Poller:     pidPoller{sender: ctx, pid: state.driver},
			Logger:     state.logger,
		}
	case zwave.Event:
		state.handled++
		if err := state.router.Handle(msg); err != nil {
			state.logger.Error("router@default could not apply event", zap.String("event", msg.String()), zap.Error(err))
		}
	case domain.ActorHealthRequest:
		state.logger.Debug("router@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ROUTER,
			Healthy: true,
			State:   fmt.Sprintf("idle, %d events", state.handled),
		})
	default:
		state.logger.Debug("router@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
