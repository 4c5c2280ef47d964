package bridge

import (
	"log"
	"sync"
	"time"

	"github.com/plc-bridge/backend/internal/models"
)

// Publisher is the outbound event boundary. Implementations must not
// block; the detector publishes from the poll path.
type Publisher interface {
	Publish(models.Event)
}

// ChangeDetector compares observed values against the cache and is
// the sole writer of SignalUpdate events. Comparison is exact
// equality; device values are already quantized, so no epsilon is
// applied to register values.
type ChangeDetector struct {
	cache *SignalCache
	pub   Publisher

	// mu serializes observe-compare-publish per call so events for a
	// single signal go out in the order their reads/writes completed.
	mu sync.Mutex
}

// NewChangeDetector creates a detector writing to cache and pub.
func NewChangeDetector(cache *SignalCache, pub Publisher) *ChangeDetector {
	return &ChangeDetector{cache: cache, pub: pub}
}

// Observe records a freshly read or written value. If the value
// differs from the cached one (or no value is cached yet), the cache
// is updated and exactly one SignalUpdate is emitted. An equal value
// refreshes the cache timestamp without emitting.
func (d *ChangeDetector) Observe(sig models.Signal, value interface{}, ts time.Time, source models.ValueSource) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, exists := d.cache.Get(sig.ID)
	changed := !exists || prev.Value != value

	d.cache.Set(sig.ID, models.SignalValue{
		Value:     value,
		Timestamp: ts,
		Source:    source,
	})

	if !changed {
		return
	}

	if exists {
		log.Printf("[Bridge] Signal %s (%s@%d) changed %v -> %v",
			sig.DisplayName, sig.PointType, sig.Address, prev.Value, value)
	}

	d.pub.Publish(models.NewSignalEvent(models.SignalUpdate{
		ID:          sig.ID,
		DisplayName: sig.DisplayName,
		Value:       value,
		Timestamp:   ts.UnixMilli(),
		Source:      source,
	}))
}
