package models

// EventType identifies an outbound notification.
type EventType string

const (
	EventSignalUpdate EventType = "signal_update"
	EventStatusUpdate EventType = "status_update"
)

// SignalUpdate notifies subscribers that a signal's cached value
// changed. Timestamp is Unix milliseconds.
type SignalUpdate struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Value       interface{} `json:"value"`
	Timestamp   int64       `json:"timestamp"`
	Source      ValueSource `json:"source"`
}

// StatusUpdate is the periodic liveness heartbeat, emitted regardless
// of signal activity. Timestamp is Unix milliseconds.
type StatusUpdate struct {
	Connected   bool   `json:"connected"`
	SignalCount int    `json:"signal_count"`
	Timestamp   int64  `json:"timestamp"`
	LastError   string `json:"last_error,omitempty"`
}

// Event is the outbound envelope handed to the distribution boundary.
// Exactly one of Signal or Status is set, matching Type.
type Event struct {
	Type   EventType     `json:"type"`
	Signal *SignalUpdate `json:"signal,omitempty"`
	Status *StatusUpdate `json:"status,omitempty"`
}

// NewSignalEvent wraps a SignalUpdate in an event envelope.
func NewSignalEvent(u SignalUpdate) Event {
	return Event{Type: EventSignalUpdate, Signal: &u}
}

// NewStatusEvent wraps a StatusUpdate in an event envelope.
func NewStatusEvent(s StatusUpdate) Event {
	return Event{Type: EventStatusUpdate, Status: &s}
}
