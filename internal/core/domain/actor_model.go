package domain

import "github.com/berfenger/zwave2mqtt/pkg/zwave"

// Driver actor

type ConnectDriverRequest struct {
	ActorRequestMixIn
}

type SetValueRequest struct {
	ActorRequestMixIn
	NodeID   int
	ClassID  int
	Instance int
	Index    int
	Value    zwave.Value
}

type SetValueResponse struct {
	ActorResponseMixIn
}

type EnablePollRequest struct {
	ActorRequestMixIn
	NodeID  int
	ClassID int
}

// DriverFailed is sent by the driver actor to its parent when the controller
// cannot be started or reports a fatal failure.
type DriverFailed struct {
	Error error
}

// MQTT actor

type PublishNotificationRequest struct {
	ActorRequestMixIn
	Notification Notification
}

type PublishNotificationResponse struct {
	ActorResponseMixIn
}
