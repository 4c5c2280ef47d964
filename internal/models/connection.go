package models

// ConnectionStatus represents the state of the field-bus link.
// Failures always fall back to Disconnected and stay eligible for
// retry; there is no terminal error state.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionRecord is a field-bus connection as stored in the record
// store.
type ConnectionRecord struct {
	Name    string `json:"name" yaml:"name"`
	Host    string `json:"host" yaml:"host"`
	Port    int    `json:"port" yaml:"port"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// SignalRecord is a signal definition as stored in the record store,
// before validation by the address map.
type SignalRecord struct {
	ID          string    `json:"id" yaml:"id"`
	Address     int       `json:"address" yaml:"address"`
	PointType   PointType `json:"pointType" yaml:"point_type"`
	DisplayName string    `json:"displayName" yaml:"display_name"`
}
