// Package bridge is the signal synchronization engine: it polls the
// field bus at a fixed cadence, detects value changes against the
// in-memory cache, publishes updates and heartbeats to the event
// boundary, and processes inbound write/reload/status commands.
package bridge

import (
	"sync"

	"github.com/plc-bridge/backend/internal/models"
)

// SignalCache is the last-known-value table, keyed by signal id. It
// is the source of truth for change detection and for answering read
// queries. Mutations are atomic per signal; readers see either the
// old or the new value, never a torn one.
type SignalCache struct {
	mu     sync.RWMutex
	values map[string]models.SignalValue
}

// NewCache creates an empty cache.
func NewCache() *SignalCache {
	return &SignalCache{values: make(map[string]models.SignalValue)}
}

// Get returns the cached value for a signal id.
func (c *SignalCache) Get(id string) (models.SignalValue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[id]
	return v, ok
}

// Set stores the value for a signal id.
func (c *SignalCache) Set(id string, v models.SignalValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[id] = v
}

// Snapshot returns a copy of the whole table.
func (c *SignalCache) Snapshot() map[string]models.SignalValue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.SignalValue, len(c.values))
	for id, v := range c.values {
		out[id] = v
	}
	return out
}

// Retain drops every entry whose id is not in keep. Called by the
// polling loop at the start of a cycle so values of signals removed
// by a reload are pruned lazily rather than during the reload itself.
func (c *SignalCache) Retain(keep map[string]models.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.values {
		if _, ok := keep[id]; !ok {
			delete(c.values, id)
		}
	}
}

// Len returns the number of cached entries.
func (c *SignalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}
