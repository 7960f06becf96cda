// Package classification maps Z-Wave node ids to the roles they play in the house
// (door sensor, light, ...) and to the names used on MQTT.
package classification

import (
	"errors"
	"fmt"
	"slices"
)

type Role string

const (
	ROLE_DOOR_SENSOR   Role = "door-sensor"
	ROLE_MOTION_SENSOR Role = "motion-sensor"
	ROLE_OUTLET        Role = "outlet"
	ROLE_LIGHT         Role = "light"
	ROLE_MULTI_SENSOR  Role = "multi-sensor"
)

// roleOrder is the order in which roles of a node are evaluated.
var roleOrder = []Role{ROLE_DOOR_SENSOR, ROLE_MOTION_SENSOR, ROLE_OUTLET, ROLE_MULTI_SENSOR, ROLE_LIGHT}

type Entry struct {
	Role    Role
	NodeID  int
	ClassID int
	Name    string
	Keys    []string
	Poll    bool
}

// HasClass reports whether the role only reacts to values of ClassID.
func (e Entry) HasClass() bool {
	return e.Role == ROLE_OUTLET || e.Role == ROLE_LIGHT
}

// AllowsKey reports whether a multi-sensor entry publishes the given label.
func (e Entry) AllowsKey(label string) bool {
	return slices.Contains(e.Keys, label)
}

// Tables is the immutable, indexed set of classification entries.
type Tables struct {
	byNode map[int]map[Role]Entry
	byName map[Role]map[string]Entry
	lights []Entry
}

func New(entries []Entry) (*Tables, error) {
	t := &Tables{
		byNode: make(map[int]map[Role]Entry),
		byName: make(map[Role]map[string]Entry),
	}
	var errs []error
	for _, e := range entries {
		if err := t.add(e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return t, nil
}

func (t *Tables) add(e Entry) error {
	if !slices.Contains(roleOrder, e.Role) {
		return fmt.Errorf("unknown role %q for node %d", e.Role, e.NodeID)
	}
	if e.NodeID <= 0 {
		return fmt.Errorf("%s %q: node id must be positive", e.Role, e.Name)
	}
	if e.Name == "" {
		return fmt.Errorf("%s on node %d: name is required", e.Role, e.NodeID)
	}
	if e.HasClass() && e.ClassID <= 0 {
		return fmt.Errorf("%s %q: command class is required", e.Role, e.Name)
	}
	if e.Role == ROLE_MULTI_SENSOR && len(e.Keys) == 0 {
		return fmt.Errorf("%s %q: at least one key is required", e.Role, e.Name)
	}
	roles, ok := t.byNode[e.NodeID]
	if !ok {
		roles = make(map[Role]Entry)
		t.byNode[e.NodeID] = roles
	}
	if _, dup := roles[e.Role]; dup {
		return fmt.Errorf("node %d has more than one %s entry", e.NodeID, e.Role)
	}
	if exclusive, ok := exclusiveRole(e.Role); ok {
		if _, clash := roles[exclusive]; clash {
			return fmt.Errorf("node %d cannot be both %s and %s", e.NodeID, e.Role, exclusive)
		}
	}
	names, ok := t.byName[e.Role]
	if !ok {
		names = make(map[string]Entry)
		t.byName[e.Role] = names
	}
	if _, dup := names[e.Name]; dup {
		return fmt.Errorf("duplicate %s name %q", e.Role, e.Name)
	}
	roles[e.Role] = e
	names[e.Name] = e
	if e.Role == ROLE_LIGHT {
		t.lights = append(t.lights, e)
	}
	return nil
}

func exclusiveRole(r Role) (Role, bool) {
	switch r {
	case ROLE_DOOR_SENSOR:
		return ROLE_MOTION_SENSOR, true
	case ROLE_MOTION_SENSOR:
		return ROLE_DOOR_SENSOR, true
	case ROLE_OUTLET:
		return ROLE_LIGHT, true
	case ROLE_LIGHT:
		return ROLE_OUTLET, true
	}
	return "", false
}

// Lookup returns the entry of a node for the given role.
func (t *Tables) Lookup(nodeID int, role Role) (Entry, bool) {
	e, ok := t.byNode[nodeID][role]
	return e, ok
}

// ByName resolves a command target name within a role.
func (t *Tables) ByName(role Role, name string) (Entry, bool) {
	e, ok := t.byName[role][name]
	return e, ok
}

// EntriesFor returns every entry of a node in evaluation order.
func (t *Tables) EntriesFor(nodeID int) []Entry {
	roles, ok := t.byNode[nodeID]
	if !ok {
		return nil
	}
	entries := make([]Entry, 0, len(roles))
	for _, r := range roleOrder {
		if e, ok := roles[r]; ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func (t *Tables) IsDoorSensor(nodeID int) bool {
	_, ok := t.Lookup(nodeID, ROLE_DOOR_SENSOR)
	return ok
}

func (t *Tables) Lights() []Entry {
	return slices.Clone(t.lights)
}

func (t *Tables) Len() int {
	n := 0
	for _, roles := range t.byNode {
		n += len(roles)
	}
	return n
}
