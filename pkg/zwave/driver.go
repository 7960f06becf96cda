package zwave

// Driver is a connection to a Z-Wave controller.
//
// Events are delivered in order per node. The channel returned by Events is
// closed after Disconnect.
type Driver interface {
	Connect(transport string) error
	Disconnect() error
	SetValue(nodeID, classID, instance, index int, value Value) error
	EnablePoll(nodeID, classID int) error
	Events() <-chan Event
}
