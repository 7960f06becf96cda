package classification

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileEntry struct {
	Node  int      `yaml:"node"`
	Class int      `yaml:"class"`
	Name  string   `yaml:"name"`
	Keys  []string `yaml:"keys"`
	Poll  bool     `yaml:"poll"`
}

type file struct {
	DoorSensors   []fileEntry `yaml:"door_sensors"`
	MotionSensors []fileEntry `yaml:"motion_sensors"`
	Outlets       []fileEntry `yaml:"outlets"`
	Lights        []fileEntry `yaml:"lights"`
	MultiSensors  []fileEntry `yaml:"multi_sensors"`
}

// LoadFile reads classification tables from a YAML file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Tables, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing devices file: %w", err)
	}
	var entries []Entry
	entries = appendRole(entries, ROLE_DOOR_SENSOR, f.DoorSensors)
	entries = appendRole(entries, ROLE_MOTION_SENSOR, f.MotionSensors)
	entries = appendRole(entries, ROLE_OUTLET, f.Outlets)
	entries = appendRole(entries, ROLE_LIGHT, f.Lights)
	entries = appendRole(entries, ROLE_MULTI_SENSOR, f.MultiSensors)
	t, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("validating devices file: %w", err)
	}
	return t, nil
}

func appendRole(entries []Entry, role Role, items []fileEntry) []Entry {
	for _, it := range items {
		entries = append(entries, Entry{
			Role:    role,
			NodeID:  it.Node,
			ClassID: it.Class,
			Name:    it.Name,
			Keys:    it.Keys,
			Poll:    it.Poll,
		})
	}
	return entries
}
