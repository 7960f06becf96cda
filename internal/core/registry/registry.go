// Package registry keeps the in-memory model of every Z-Wave node seen on the network.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/berfenger/zwave2mqtt/pkg/zwave"
)

// UnknownDeviceError is returned when a node is referenced before it was registered.
type UnknownDeviceError struct {
	NodeID int
}

func (e UnknownDeviceError) Error() string {
	return fmt.Sprintf("unknown device %d", e.NodeID)
}

type Identity struct {
	Manufacturer   string `json:"manufacturer"`
	ManufacturerID string `json:"manufacturerId"`
	Product        string `json:"product"`
	ProductType    string `json:"productType"`
	ProductID      string `json:"productId"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Location       string `json:"loc"`
}

func IdentityOf(info zwave.NodeInfo) Identity {
	return Identity(info)
}

type AttributeRecord struct {
	ClassID  int         `json:"classId"`
	Instance int         `json:"instance"`
	Index    int         `json:"index"`
	Label    string      `json:"label"`
	Value    zwave.Value `json:"value"`
	Revision uint64      `json:"revision"`
}

type Device struct {
	NodeID     int               `json:"nodeId"`
	Identity   Identity          `json:"identity"`
	Ready      bool              `json:"ready"`
	Attributes []AttributeRecord `json:"attributes"`
}

type device struct {
	identity   Identity
	ready      bool
	attributes map[int]map[int]AttributeRecord
}

// Registry is safe for concurrent use. Mutations are expected to come from a
// single owner; readers may snapshot at any time.
type Registry struct {
	mu       sync.RWMutex
	devices  map[int]*device
	revision uint64
}

func New() *Registry {
	return &Registry{
		devices: make(map[int]*device),
	}
}

// Register creates the record for nodeID if absent and reports whether it did.
func (r *Registry) Register(nodeID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[nodeID]; ok {
		return false
	}
	r.devices[nodeID] = &device{
		attributes: make(map[int]map[int]AttributeRecord),
	}
	return true
}

func (r *Registry) Get(nodeID int) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return Device{}, UnknownDeviceError{NodeID: nodeID}
	}
	return d.export(nodeID), nil
}

func (r *Registry) SetReady(nodeID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return UnknownDeviceError{NodeID: nodeID}
	}
	d.ready = true
	return nil
}

func (r *Registry) IsReady(nodeID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return false, UnknownDeviceError{NodeID: nodeID}
	}
	return d.ready, nil
}

func (r *Registry) SetIdentity(nodeID int, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return UnknownDeviceError{NodeID: nodeID}
	}
	d.identity = identity
	return nil
}

// UpsertAttribute stores rec under its class and index and returns the record it
// replaced, if any. The stored record gets a new revision.
func (r *Registry) UpsertAttribute(nodeID int, rec AttributeRecord) (AttributeRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return AttributeRecord{}, false, UnknownDeviceError{NodeID: nodeID}
	}
	class, ok := d.attributes[rec.ClassID]
	if !ok {
		class = make(map[int]AttributeRecord)
		d.attributes[rec.ClassID] = class
	}
	prev, existed := class[rec.Index]
	r.revision++
	rec.Revision = r.revision
	class[rec.Index] = rec
	return prev, existed, nil
}

// RemoveAttribute deletes the attribute if present. Removing a missing attribute is not an error.
func (r *Registry) RemoveAttribute(nodeID, classID, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return UnknownDeviceError{NodeID: nodeID}
	}
	if class, ok := d.attributes[classID]; ok {
		delete(class, index)
		if len(class) == 0 {
			delete(d.attributes, classID)
		}
	}
	return nil
}

// Attributes returns the attributes of a node ordered by class and index.
func (r *Registry) Attributes(nodeID int) ([]AttributeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[nodeID]
	if !ok {
		return nil, UnknownDeviceError{NodeID: nodeID}
	}
	return d.sortedAttributes(), nil
}

func (r *Registry) Snapshot() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := make([]Device, 0, len(r.devices))
	for id, d := range r.devices {
		devices = append(devices, d.export(id))
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].NodeID < devices[j].NodeID
	})
	return devices
}

func (d *device) export(nodeID int) Device {
	return Device{
		NodeID:     nodeID,
		Identity:   d.identity,
		Ready:      d.ready,
		Attributes: d.sortedAttributes(),
	}
}

func (d *device) sortedAttributes() []AttributeRecord {
	var attrs []AttributeRecord
	for _, class := range d.attributes {
		for _, rec := range class {
			attrs = append(attrs, rec)
		}
	}
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].ClassID != attrs[j].ClassID {
			return attrs[i].ClassID < attrs[j].ClassID
		}
		return attrs[i].Index < attrs[j].Index
	})
	return attrs
}
