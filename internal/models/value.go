package models

import "time"

// ValueSource describes the provenance of a cached signal value.
type ValueSource string

const (
	// SourcePoll marks values observed by the polling loop.
	SourcePoll ValueSource = "poll"
	// SourceWriteConfirmed marks values acknowledged by the device
	// after a write command.
	SourceWriteConfirmed ValueSource = "write-confirmed"
	// SourceWriteOptimistic marks values applied locally before the
	// device acknowledged them.
	SourceWriteOptimistic ValueSource = "write-optimistic"
)

// SignalValue is the cached observation of a signal. Value is a bool
// for digital point types and a uint16 for register types.
type SignalValue struct {
	Value     interface{} `json:"value" msgpack:"value"`
	Timestamp time.Time   `json:"timestamp" msgpack:"timestamp"`
	Source    ValueSource `json:"source" msgpack:"source"`
}
