package actor

import (
	"fmt"

	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/internal/core/service"
	. "github.com/berfenger/zwave2mqtt/internal/util/actorutil"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type DispatcherActor struct {
	behavior   actor.Behavior
	tables     *classification.Tables
	driver     *actor.PID
	dispatcher port.CommandDispatcher
	logger     *zap.Logger
}

type pidWriter struct {
	sender actor.SenderContext
	pid    *actor.PID
}

func (w pidWriter) SetValue(nodeID, classID, instance, index int, value zwave.Value) {
	w.sender.Send(w.pid, domain.SetValueRequest{
		NodeID:   nodeID,
		ClassID:  classID,
		Instance: instance,
		Index:    index,
		Value:    value,
	})
}

func NewDispatcherActor(tables *classification.Tables, driver *actor.PID, logger *zap.Logger) *DispatcherActor {
	act := &DispatcherActor{
		behavior: actor.NewBehavior(),
		tables:   tables,
		driver:   driver,
		logger:   ActorLogger(domain.ACTOR_ID_DISPATCHER, logger),
	}
	act.behavior.Become(act.DefaultReceive)
	return act
}

func (state *DispatcherActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DispatcherActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("dispatcher@default started")
		state.dispatcher = &service.DefaultCommandDispatcher{
			Tables: state.tables,
			Writer: pidWriter{sender: ctx, pid: state.driver},
			Logger: state.logger,
		}
	case domain.OutletCommand:
		state.logger.Debug("dispatcher@default OutletCommand", zap.String("outlet", msg.Outlet), zap.Bool("on", msg.On))
		state.dispatcher.DispatchOutlet(msg)
	case domain.LightCommand:
		state.logger.Debug("dispatcher@default LightCommand", zap.String("lightSwitch", msg.LightSwitch), zap.Bool("on", msg.On))
		state.dispatcher.DispatchLight(msg)
	case domain.ActorHealthRequest:
		state.logger.Debug("dispatcher@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DISPATCHER,
			Healthy: true,
			State:   "idle",
		})
	default:
		state.logger.Debug("dispatcher@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}
