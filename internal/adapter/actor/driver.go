package actor

import (
	"fmt"
	"time"

	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/util/actorutil"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

// DriverActor owns the Z-Wave driver. Driver events are published to the event
// stream in arrival order; writes are executed one at a time.
type DriverActor struct {
	behavior     actor.Behavior
	stash        *actorutil.Stash
	driver       zwave.Driver
	transport    string
	writeTimeout time.Duration
	eventStream  *eventstream.EventStream
	logger       *zap.Logger
}

type driverConnectResult struct {
	Error error
}

type driverWriteResult struct {
	Request domain.SetValueRequest
	ReplyTo *actor.PID
	Error   error
}

type driverFailure struct {
	Message string
}

func NewDriverActor(driver zwave.Driver, transport string, writeTimeout time.Duration, es *eventstream.EventStream, logger *zap.Logger) *DriverActor {
	act := &DriverActor{
		behavior:     actor.NewBehavior(),
		stash:        &actorutil.Stash{},
		driver:       driver,
		transport:    transport,
		writeTimeout: writeTimeout,
		eventStream:  es,
		logger:       actorutil.ActorLogger(domain.ACTOR_ID_DRIVER, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *DriverActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *DriverActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("driver@starting started")
	case domain.ConnectDriverRequest:
		state.logger.Debug("driver@starting ConnectDriverRequest", zap.String("transport", state.transport))
		state.pumpEvents(ctx)
		actorutil.NewBackgroundTaskNoError(ctx, func() *driverConnectResult {
			return &driverConnectResult{Error: state.driver.Connect(state.transport)}
		}).Recover(func(err error) driverConnectResult {
			return driverConnectResult{Error: err}
		}).WithTimeout(30 * time.Second).PipeTo(ctx.Self())
	case driverConnectResult:
		if msg.Error != nil {
			state.fail(ctx, msg.Error)
			return
		}
		state.logger.Info("driver@starting connected", zap.String("transport", state.transport))
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case driverFailure:
		state.fail(ctx, fmt.Errorf("driver failed: %s", msg.Message))
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DRIVER,
			Healthy: false,
			State:   "starting",
		})
	case *actor.Stopping:
		state.disconnect()
	default:
		state.logger.Debug("driver@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DriverActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("driver@default ActorHealthRequest")
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DRIVER,
			Healthy: true,
			State:   "idle",
		})
	case domain.SetValueRequest:
		state.logger.Debug("driver@default SetValueRequest", zap.Int("node", msg.NodeID), zap.Int("class", msg.ClassID),
			zap.String("value", msg.Value.Format()))
		replyTo := actorutil.ForRequest(msg).ReplyTo(ctx)
		actorutil.NewBackgroundTaskNoError(ctx, func() *driverWriteResult {
			err := state.driver.SetValue(msg.NodeID, msg.ClassID, msg.Instance, msg.Index, msg.Value)
			return &driverWriteResult{Request: msg, ReplyTo: replyTo, Error: err}
		}).Recover(func(err error) driverWriteResult {
			return driverWriteResult{Request: msg, ReplyTo: replyTo, Error: err}
		}).WithTimeout(state.writeTimeout).PipeTo(ctx.Self())
		state.behavior.BecomeStacked(state.WritingReceive)
	case domain.EnablePollRequest:
		state.logger.Debug("driver@default EnablePollRequest", zap.Int("node", msg.NodeID), zap.Int("class", msg.ClassID))
		if err := state.driver.EnablePoll(msg.NodeID, msg.ClassID); err != nil {
			state.logger.Error("driver@default could not enable polling", zap.Int("node", msg.NodeID), zap.Error(err))
		}
	case driverFailure:
		state.fail(ctx, fmt.Errorf("driver failed: %s", msg.Message))
	case *actor.Stopping:
		state.disconnect()
	default:
		state.logger.Debug("driver@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *DriverActor) WritingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case driverWriteResult:
		if msg.Error != nil {
			state.logger.Error("driver@writing could not set value", zap.Int("node", msg.Request.NodeID),
				zap.Int("class", msg.Request.ClassID), zap.Error(msg.Error))
		}
		if msg.ReplyTo != nil {
			ctx.Send(msg.ReplyTo, domain.SetValueResponse{
				ActorResponseMixIn: domain.ActorResponseMixIn{
					ResponseError: msg.Error,
				},
			})
		}
		state.behavior.UnbecomeStacked()
		state.stash.UnstashOldest(ctx)
	case driverFailure:
		state.fail(ctx, fmt.Errorf("driver failed: %s", msg.Message))
	case *actor.Stopping:
		state.disconnect()
	default:
		state.logger.Debug("driver@writing stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *DriverActor) FailedReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		ctx.Respond(domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_DRIVER,
			Healthy: false,
			State:   "failed",
		})
	default:
		state.logger.Debug("driver@failed drop", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// pumpEvents forwards driver events to the event stream until the driver closes its channel.
func (state *DriverActor) pumpEvents(ctx actor.Context) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	events := state.driver.Events()
	go func() {
		for ev := range events {
			state.eventStream.Publish(ev)
			if ev.Kind == zwave.EventDriverFailed {
				root.Send(self, driverFailure{Message: ev.Message})
			}
		}
	}()
}

// fail disconnects the driver and reports the failure to the parent. A failed
// driver is not restarted.
func (state *DriverActor) fail(ctx actor.Context, err error) {
	state.logger.Error("driver: fatal", zap.Error(err))
	state.disconnect()
	ctx.Send(ctx.Parent(), domain.DriverFailed{Error: err})
	state.behavior.Become(state.FailedReceive)
}

func (state *DriverActor) disconnect() {
	state.logger.Debug("driver: disconnect")
	if err := state.driver.Disconnect(); err != nil {
		state.logger.Warn("driver: disconnect error", zap.Error(err))
	}
}
