package testutil

import (
	"sync"

	"github.com/plc-bridge/backend/internal/models"
)

// EventCollector records published events for assertions. It satisfies
// the engine's publisher interface.
type EventCollector struct {
	mu     sync.Mutex
	events []models.Event
}

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Publish records the event.
func (c *EventCollector) Publish(ev models.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of everything published so far.
func (c *EventCollector) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}

// SignalEvents returns only the signal update events.
func (c *EventCollector) SignalEvents() []models.SignalUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.SignalUpdate
	for _, ev := range c.events {
		if ev.Type == models.EventSignalUpdate && ev.Signal != nil {
			out = append(out, *ev.Signal)
		}
	}
	return out
}

// StatusEvents returns only the status update events.
func (c *EventCollector) StatusEvents() []models.StatusUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.StatusUpdate
	for _, ev := range c.events {
		if ev.Type == models.EventStatusUpdate && ev.Status != nil {
			out = append(out, *ev.Status)
		}
	}
	return out
}

// Reset clears recorded events.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Count returns the number of recorded events.
func (c *EventCollector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
