package classification

import (
	"sync"

	"github.com/berfenger/zwave2mqtt/pkg/zwave"
)

// LightCache remembers the last state published for each light.
type LightCache struct {
	mu   sync.Mutex
	last map[int]zwave.Value
}

func NewLightCache() *LightCache {
	return &LightCache{last: make(map[int]zwave.Value)}
}

// Swap stores v as the last published value of a light and reports whether it
// differs from the previous one. An unset light always reports a change.
func (c *LightCache) Swap(nodeID int, v zwave.Value) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.last[nodeID]
	if ok && prev.Equal(v) {
		return false
	}
	c.last[nodeID] = v
	return true
}

func (c *LightCache) Get(nodeID int) (zwave.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.last[nodeID]
	return v, ok
}
