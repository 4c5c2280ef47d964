// fake_device.go - Simulated Modbus device for testing
package testutil

import (
	"errors"
	"io"
	"sync"

	"github.com/plc-bridge/backend/internal/fieldbus"
)

// FakeDevice simulates a Modbus slave: four independent address
// spaces, loopback writes, and injectable failures. It implements
// fieldbus.Client.
type FakeDevice struct {
	mu               sync.Mutex
	discreteInputs   map[uint16]bool
	coils            map[uint16]bool
	holdingRegisters map[uint16]uint16
	inputRegisters   map[uint16]uint16

	// Failure injection. NextReadErr/NextWriteErr fire once then
	// clear; FailDial makes every dial attempt fail until cleared.
	NextReadErr  error
	NextWriteErr error
	failDial     bool

	dials  int
	reads  int
	writes int
}

// NewFakeDevice creates a device with all points zero/false.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		discreteInputs:   make(map[uint16]bool),
		coils:            make(map[uint16]bool),
		holdingRegisters: make(map[uint16]uint16),
		inputRegisters:   make(map[uint16]uint16),
	}
}

// Dialer returns a fieldbus.Dialer serving this device.
func (d *FakeDevice) Dialer() fieldbus.Dialer {
	return func() (fieldbus.Client, io.Closer, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.dials++
		if d.failDial {
			return nil, nil, errors.New("dial refused")
		}
		return d, nopCloser{}, nil
	}
}

// SetFailDial toggles dial failures.
func (d *FakeDevice) SetFailDial(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failDial = fail
}

// Dials returns how many dial attempts were made.
func (d *FakeDevice) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Reads returns how many protocol reads were served.
func (d *FakeDevice) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Writes returns how many writes were served.
func (d *FakeDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// SetDiscreteInput sets a discrete input point.
func (d *FakeDevice) SetDiscreteInput(addr uint16, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discreteInputs[addr] = v
}

// SetCoil sets a coil point.
func (d *FakeDevice) SetCoil(addr uint16, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.coils[addr] = v
}

// SetHoldingRegister sets a holding register point.
func (d *FakeDevice) SetHoldingRegister(addr uint16, v uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.holdingRegisters[addr] = v
}

// SetInputRegister sets an input register point.
func (d *FakeDevice) SetInputRegister(addr uint16, v uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputRegisters[addr] = v
}

// GetCoil reads back a coil point.
func (d *FakeDevice) GetCoil(addr uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.coils[addr]
}

// GetHoldingRegister reads back a holding register point.
func (d *FakeDevice) GetHoldingRegister(addr uint16) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holdingRegisters[addr]
}

func (d *FakeDevice) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return d.readBits(d.discreteInputs, address, quantity)
}

func (d *FakeDevice) ReadCoils(address, quantity uint16) ([]byte, error) {
	return d.readBits(d.coils, address, quantity)
}

func (d *FakeDevice) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	return d.readRegisters(d.holdingRegisters, address, quantity)
}

func (d *FakeDevice) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return d.readRegisters(d.inputRegisters, address, quantity)
}

func (d *FakeDevice) WriteSingleCoil(address, value uint16) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	if err := d.NextWriteErr; err != nil {
		d.NextWriteErr = nil
		return nil, err
	}
	d.coils[address] = value == 0xFF00
	return []byte{byte(address >> 8), byte(address), byte(value >> 8), byte(value)}, nil
}

func (d *FakeDevice) WriteSingleRegister(address, value uint16) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	if err := d.NextWriteErr; err != nil {
		d.NextWriteErr = nil
		return nil, err
	}
	d.holdingRegisters[address] = value
	return []byte{byte(address >> 8), byte(address), byte(value >> 8), byte(value)}, nil
}

// readBits packs quantity bits starting at address LSB-first per byte,
// matching the wire format of read coil/discrete responses.
func (d *FakeDevice) readBits(space map[uint16]bool, address, quantity uint16) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if err := d.NextReadErr; err != nil {
		d.NextReadErr = nil
		return nil, err
	}
	out := make([]byte, (quantity+7)/8)
	for i := uint16(0); i < quantity; i++ {
		if space[address+i] {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

func (d *FakeDevice) readRegisters(space map[uint16]uint16, address, quantity uint16) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if err := d.NextReadErr; err != nil {
		d.NextReadErr = nil
		return nil, err
	}
	out := make([]byte, quantity*2)
	for i := uint16(0); i < quantity; i++ {
		v := space[address+i]
		out[i*2] = byte(v >> 8)
		out[i*2+1] = byte(v)
	}
	return out, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Ensure FakeDevice implements fieldbus.Client
var _ fieldbus.Client = (*FakeDevice)(nil)
