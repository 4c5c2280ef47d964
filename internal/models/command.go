package models

// CommandType identifies an inbound bridge command.
type CommandType string

const (
	CommandWriteSignal   CommandType = "write_signal"
	CommandReloadSignals CommandType = "reload_signals"
	CommandStatus        CommandType = "status"
)

// Command is an inbound request from the distribution boundary.
// Signal and Value are only set for write_signal.
type Command struct {
	Command CommandType `json:"command"`
	Signal  string      `json:"signal,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}
