package zwave

import (
	"errors"
	"sync"
)

// TestDriver is an in-memory Driver. Events are injected with Emit and writes are
// recorded instead of being sent to a controller.
type TestDriver struct {
	mu         sync.Mutex
	events     chan Event
	connected  bool
	closed     bool
	transport  string
	writes     []TestWrite
	polls      []TestPoll
	ConnectErr error
	WriteErr   error
}

type TestWrite struct {
	NodeID   int
	ClassID  int
	Instance int
	Index    int
	Value    Value
}

type TestPoll struct {
	NodeID  int
	ClassID int
}

func NewTestDriver() *TestDriver {
	return &TestDriver{
		events: make(chan Event, 64),
	}
}

func (d *TestDriver) Connect(transport string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ConnectErr != nil {
		return d.ConnectErr
	}
	d.transport = transport
	d.connected = true
	return nil
}

func (d *TestDriver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	if !d.closed {
		d.closed = true
		close(d.events)
	}
	return nil
}

func (d *TestDriver) SetValue(nodeID, classID, instance, index int, value Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return errors.New("driver not connected")
	}
	d.writes = append(d.writes, TestWrite{
		NodeID:   nodeID,
		ClassID:  classID,
		Instance: instance,
		Index:    index,
		Value:    value,
	})
	return d.WriteErr
}

// FailWrites makes subsequent writes return err.
func (d *TestDriver) FailWrites(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.WriteErr = err
}

func (d *TestDriver) EnablePoll(nodeID, classID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.polls = append(d.polls, TestPoll{NodeID: nodeID, ClassID: classID})
	return nil
}

func (d *TestDriver) Events() <-chan Event {
	return d.events
}

// Emit queues an event as if the controller had reported it.
func (d *TestDriver) Emit(events ...Event) {
	for _, ev := range events {
		d.events <- ev
	}
}

func (d *TestDriver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *TestDriver) Transport() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transport
}

func (d *TestDriver) Writes() []TestWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TestWrite(nil), d.writes...)
}

func (d *TestDriver) Polls() []TestPoll {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TestPoll(nil), d.polls...)
}

// ensure interface compliance
var _ Driver = (*TestDriver)(nil)
