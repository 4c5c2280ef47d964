package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/plc-bridge/backend/internal/models"
)

// MaxHistoryEntries caps the in-memory event history.
const MaxHistoryEntries = 100

// HistoryEntry is one recorded event with its assigned id.
type HistoryEntry struct {
	ID         string       `json:"id"`
	RecordedAt int64        `json:"recordedAt"` // Unix ms
	Event      models.Event `json:"event"`
}

// History keeps the most recent events, newest first, for the
// /api/events/history endpoint.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

// NewHistory creates an empty history buffer.
func NewHistory() *History {
	return &History{entries: make([]HistoryEntry, 0, MaxHistoryEntries)}
}

// Add records an event, evicting the oldest entry at capacity.
func (h *History) Add(ev models.Event) {
	entry := HistoryEntry{
		ID:         uuid.New().String(),
		RecordedAt: time.Now().UnixMilli(),
		Event:      ev,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]HistoryEntry{entry}, h.entries...)
	if len(h.entries) > MaxHistoryEntries {
		h.entries = h.entries[:MaxHistoryEntries]
	}
}

// Recent returns a copy of the history, newest first.
func (h *History) Recent() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Recorder combines the hub and history into one publisher so every
// published event is also recorded.
type Recorder struct {
	Hub     *Hub
	History *History
}

// Publish records the event and fans it out.
func (r *Recorder) Publish(ev models.Event) {
	r.History.Add(ev)
	r.Hub.Publish(ev)
}
