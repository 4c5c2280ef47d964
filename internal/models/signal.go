// Package models contains domain types for the PLC Signal Bridge.
package models

// PointType represents the Modbus point type of a signal.
type PointType string

const (
	PointDiscreteInput   PointType = "discrete_input"
	PointCoil            PointType = "coil"
	PointHoldingRegister PointType = "holding_register"
	PointInputRegister   PointType = "input_register"
)

// PointTypes lists every recognized point type in polling order.
var PointTypes = []PointType{
	PointDiscreteInput,
	PointCoil,
	PointHoldingRegister,
	PointInputRegister,
}

// Valid reports whether the point type is one of the four recognized kinds.
func (p PointType) Valid() bool {
	switch p {
	case PointDiscreteInput, PointCoil, PointHoldingRegister, PointInputRegister:
		return true
	}
	return false
}

// Writable reports whether the point type accepts device writes.
// Only coils and holding registers are writable.
func (p PointType) Writable() bool {
	return p == PointCoil || p == PointHoldingRegister
}

// Digital reports whether the point type carries a single-bit value.
func (p PointType) Digital() bool {
	return p == PointDiscreteInput || p == PointCoil
}

// Signal represents one addressable field-bus point.
// Address is unique within the set of signals sharing the same
// point type on a given connection.
type Signal struct {
	ID          string    `json:"id" msgpack:"id"`
	Address     uint16    `json:"address" msgpack:"address"`
	PointType   PointType `json:"pointType" msgpack:"pointType"`
	DisplayName string    `json:"displayName" msgpack:"displayName"`
}
