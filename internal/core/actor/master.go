package actor

import (
	"fmt"
	"log"
	"time"

	adactor "github.com/berfenger/zwave2mqtt/internal/adapter/actor"
	"github.com/berfenger/zwave2mqtt/internal/config"
	"github.com/berfenger/zwave2mqtt/internal/core/classification"
	"github.com/berfenger/zwave2mqtt/internal/core/domain"
	"github.com/berfenger/zwave2mqtt/internal/core/port"
	"github.com/berfenger/zwave2mqtt/internal/core/registry"
	. "github.com/berfenger/zwave2mqtt/internal/util/actorutil"
	"github.com/berfenger/zwave2mqtt/pkg/zwave"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func() *adactor.MQTTActor

type DriverActorProvider func(*eventstream.EventStream) *adactor.DriverActor

var healthCheckedActors = []string{
	domain.ACTOR_ID_DRIVER,
	domain.ACTOR_ID_MQTT,
	domain.ACTOR_ID_ROUTER,
	domain.ACTOR_ID_DISPATCHER,
}

type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	registry            *registry.Registry
	tables              *classification.Tables
	connection          port.ConnectionState
	fatal               chan<- error
	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	subscription        *eventstream.Subscription
	driverActor         *actor.PID
	mqttActor           *actor.PID
	routerActor         *actor.PID
	dispatcherActor     *actor.PID
	driverActorProvider DriverActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	healthy   map[string]bool
	received  int
	respondTo *actor.PID
}

// NewMasterOfPuppetsActor creates the supervisor of the bridge. Fatal driver
// failures are reported on fatal, which must be buffered or drained.
func NewMasterOfPuppetsActor(config config.Config, reg *registry.Registry, tables *classification.Tables,
	connection port.ConnectionState, driverActorProvider DriverActorProvider, mqttActorProvider MQTTActorProvider,
	fatal chan<- error, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		registry:            reg,
		tables:              tables,
		connection:          connection,
		fatal:               fatal,
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         &eventstream.EventStream{},
		driverActorProvider: driverActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		state.currentHealthCheck = healthCheckResult{}
		state.currentHealthCheck.reset()

		// start MQTT child
		mqttActorPID, err := state.startMQTTActor(ctx)
		if err != nil {
			panic(err)
		}
		state.mqttActor = mqttActorPID

		// start driver child, it stays idle until asked to connect
		driverActorPID, err := state.startDriverActor(ctx)
		if err != nil {
			panic(err)
		}
		state.driverActor = driverActorPID

		// start Router child
		routerActorPID, err := state.startRouterActor(ctx)
		if err != nil {
			panic(err)
		}
		state.routerActor = routerActorPID

		// start Dispatcher child
		dispatcherActorPID, err := state.startDispatcherActor(ctx)
		if err != nil {
			panic(err)
		}
		state.dispatcherActor = dispatcherActorPID

		// route driver events to the router before the driver connects
		root := ctx.ActorSystem().Root
		router := state.routerActor
		state.subscription = state.eventStream.Subscribe(func(evt any) {
			if ev, ok := evt.(zwave.Event); ok {
				root.Send(router, ev)
			}
		})
		ctx.Send(state.driverActor, domain.ConnectDriverRequest{})

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset()
		state.currentHealthCheck.respondTo = ctx.Sender()
		for _, id := range healthCheckedActors {
			id := id
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.child(id), domain.ActorHealthRequest{}, 500*time.Millisecond), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case adactor.ParsedCommand:
		// redirect parsed command to the dispatcher
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command != nil {
			ctx.Send(state.dispatcherActor, msg.Command)
		}
	case domain.DriverFailed:
		state.logger.Error("master@default driver failed", zap.Error(msg.Error))
		select {
		case state.fatal <- msg.Error:
		default:
		}
	case *actor.Stopping:
		if state.subscription != nil {
			state.eventStream.Unsubscribe(state.subscription)
		}
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)

			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		} else {
			ctx.SetReceiveTimeout(1 * time.Second)
		}
	case domain.DriverFailed:
		state.logger.Error("master@healthcheck driver failed", zap.Error(msg.Error))
		select {
		case state.fatal <- msg.Error:
		default:
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) child(id string) *actor.PID {
	switch id {
	case domain.ACTOR_ID_DRIVER:
		return state.driverActor
	case domain.ACTOR_ID_MQTT:
		return state.mqttActor
	case domain.ACTOR_ID_ROUTER:
		return state.routerActor
	default:
		return state.dispatcherActor
	}
}

func (state *MasterOfPuppetsActor) startDriverActor(ctx actor.Context) (*actor.PID, error) {

	// a failed driver is fatal, never restart it
	decider := func(reason interface{}) actor.Directive {
		log.Printf("driver failure. reason: %v", reason)
		return actor.StopDirective
	}
	supervisor := actor.NewOneForOneStrategy(0, 10*time.Second, decider)

	driverProps := actor.PropsFromProducer(func() actor.Actor {
		return state.driverActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	driverActorPID, err := ctx.SpawnNamed(driverProps, domain.ACTOR_ID_DRIVER)
	if err != nil {
		return nil, err
	}

	return driverActorPID, nil
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider()
	}, actor.WithSupervisor(supervisor))
	mqttActorPID, err := ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
	if err != nil {
		return nil, err
	}

	return mqttActorPID, nil
}

func (state *MasterOfPuppetsActor) startRouterActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	routerProps := actor.PropsFromProducer(func() actor.Actor {
		return NewRouterActor(state.registry, state.tables, state.connection, state.driverActor, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	routerPID, err := ctx.SpawnNamed(routerProps, domain.ACTOR_ID_ROUTER)
	if err != nil {
		return nil, err
	}

	return routerPID, nil
}

func (state *MasterOfPuppetsActor) startDispatcherActor(ctx actor.Context) (*actor.PID, error) {

	decider := func(reason interface{}) actor.Directive {
		log.Printf("handling failure for child. reason: %v", reason)
		return actor.RestartDirective
	}
	supervisor := actor.NewOneForOneStrategy(10, 10*time.Second, decider)

	dispatcherProps := actor.PropsFromProducer(func() actor.Actor {
		return NewDispatcherActor(state.tables, state.driverActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	dispatcherPID, err := ctx.SpawnNamed(dispatcherProps, domain.ACTOR_ID_DISPATCHER)
	if err != nil {
		return nil, err
	}

	return dispatcherPID, nil
}

func (state *healthCheckResult) reset() {
	state.healthy = make(map[string]bool, len(healthCheckedActors))
	state.received = 0
}

func (state *healthCheckResult) allReceived() bool {
	return state.received == len(healthCheckedActors)
}

func (state *healthCheckResult) allHealthy() bool {
	for _, id := range healthCheckedActors {
		if !state.healthy[id] {
			return false
		}
	}
	return true
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: state.allHealthy(),
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
