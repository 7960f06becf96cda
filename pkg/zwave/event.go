package zwave

import "fmt"

type EventKind uint8

const (
	EventDriverReady EventKind = iota + 1
	EventDriverFailed
	EventScanComplete
	EventNodeAdded
	EventNodeReady
	EventNodeEvent
	EventValueAdded
	EventValueChanged
	EventValueRefreshed
	EventValueRemoved
	EventNotification
	EventPollingChanged
	EventSceneEvent
	EventControllerCommand
)

var eventKindNames = map[EventKind]string{
	EventDriverReady:       "driver ready",
	EventDriverFailed:      "driver failed",
	EventScanComplete:      "scan complete",
	EventNodeAdded:         "node added",
	EventNodeReady:         "node ready",
	EventNodeEvent:         "node event",
	EventValueAdded:        "value added",
	EventValueChanged:      "value changed",
	EventValueRefreshed:    "value refreshed",
	EventValueRemoved:      "value removed",
	EventNotification:      "notification",
	EventPollingChanged:    "polling enabled/disabled",
	EventSceneEvent:        "scene event",
	EventControllerCommand: "controller command",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// NodeInfo is the identity a node reports once its interview is complete.
type NodeInfo struct {
	Manufacturer   string `json:"manufacturer"`
	ManufacturerID string `json:"manufacturerId"`
	Product        string `json:"product"`
	ProductType    string `json:"productType"`
	ProductID      string `json:"productId"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Location       string `json:"loc"`
}

// ValueID addresses a single value on a node and carries its current content.
type ValueID struct {
	ClassID  int
	Instance int
	Index    int
	Label    string
	Value    Value
}

// Event is a single driver notification. Which fields are populated depends on Kind:
//   - node events carry NodeID
//   - EventNodeReady carries Info
//   - value added/changed/refreshed carry ValueID
//   - EventValueRemoved carries ClassID, Instance and Index
//   - EventNodeEvent carries Data
//   - EventDriverReady carries HomeID
//   - EventDriverFailed, EventNotification and EventControllerCommand may carry Message
type Event struct {
	Kind     EventKind
	NodeID   int
	HomeID   uint32
	ClassID  int
	Instance int
	Index    int
	Info     *NodeInfo
	ValueID  *ValueID
	Data     Value
	Message  string
}

func (e Event) String() string {
	switch e.Kind {
	case EventValueAdded, EventValueChanged, EventValueRefreshed:
		if e.ValueID != nil {
			return fmt.Sprintf("%s node=%d class=%d index=%d value=%s", e.Kind, e.NodeID, e.ValueID.ClassID,
				e.ValueID.Index, e.ValueID.Value.Format())
		}
	case EventValueRemoved:
		return fmt.Sprintf("%s node=%d class=%d index=%d", e.Kind, e.NodeID, e.ClassID, e.Index)
	case EventDriverReady, EventDriverFailed, EventScanComplete:
		return e.Kind.String()
	}
	return fmt.Sprintf("%s node=%d", e.Kind, e.NodeID)
}

func NodeAdded(nodeID int) Event {
	return Event{Kind: EventNodeAdded, NodeID: nodeID}
}

func NodeReady(nodeID int, info NodeInfo) Event {
	return Event{Kind: EventNodeReady, NodeID: nodeID, Info: &info}
}

func ValueAdded(nodeID int, v ValueID) Event {
	return Event{Kind: EventValueAdded, NodeID: nodeID, ValueID: &v}
}

func ValueChanged(nodeID int, v ValueID) Event {
	return Event{Kind: EventValueChanged, NodeID: nodeID, ValueID: &v}
}

func ValueRefreshed(nodeID int, v ValueID) Event {
	return Event{Kind: EventValueRefreshed, NodeID: nodeID, ValueID: &v}
}

func ValueRemoved(nodeID, classID, instance, index int) Event {
	return Event{Kind: EventValueRemoved, NodeID: nodeID, ClassID: classID, Instance: instance, Index: index}
}

func NodeEvent(nodeID int, data Value) Event {
	return Event{Kind: EventNodeEvent, NodeID: nodeID, ClassID: NoClass, Data: data}
}
