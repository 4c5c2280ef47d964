// Package events is the outbound distribution boundary. The hub fans
// events out to subscribers over buffered channels; publication is
// fire-and-forget, so a slow subscriber loses events instead of ever
// blocking the polling loop.
package events

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/plc-bridge/backend/internal/models"
)

// DefaultBufferSize is the per-subscriber channel depth.
const DefaultBufferSize = 256

// Hub distributes bridge events to any number of subscribers.
type Hub struct {
	bufSize int

	mu      sync.RWMutex
	subs    map[string]chan models.Event
	dropped atomic.Uint64
}

// NewHub creates a hub with the given per-subscriber buffer size.
// Sizes below one fall back to DefaultBufferSize.
func NewHub(bufSize int) *Hub {
	if bufSize < 1 {
		bufSize = DefaultBufferSize
	}
	return &Hub{
		bufSize: bufSize,
		subs:    make(map[string]chan models.Event),
	}
}

// Subscribe registers a new subscriber and returns its id and event
// channel. The channel is closed by Unsubscribe.
func (h *Hub) Subscribe() (string, <-chan models.Event) {
	id := uuid.New().String()
	ch := make(chan models.Event, h.bufSize)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown
// ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers the event to every subscriber without blocking.
// Subscribers whose buffer is full miss this event; the drop only
// affects them.
func (h *Hub) Publish(ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
			log.Printf("[Events] Subscriber %.8s buffer full, dropping %s event", id, ev.Type)
		}
	}
}

// Dropped returns the total number of events dropped across all
// subscribers since the hub was created.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
