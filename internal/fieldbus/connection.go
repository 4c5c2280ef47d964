// Package fieldbus owns the Modbus TCP session to the PLC. It
// exposes batched read and single write primitives and tracks the
// connection state machine: Disconnected -> Connecting -> Connected,
// with any I/O failure dropping back to Disconnected. Failures are
// never terminal; the polling loop retries at its fixed cadence.
package fieldbus

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/plc-bridge/backend/internal/models"
)

// Modbus protocol limits per read request.
const (
	maxBitsPerRead      = 2000
	maxRegistersPerRead = 125
)

// Client is the subset of the goburrow modbus client the bridge uses.
type Client interface {
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Dialer opens a Modbus session and returns the client plus a closer
// for the underlying transport. Swappable for tests.
type Dialer func() (Client, io.Closer, error)

// ConnectError wraps a failure to establish the TCP session.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return "fieldbus: connect: " + e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// ReadError wraps a failed batched read. The whole batch is invalid.
type ReadError struct {
	PointType models.PointType
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("fieldbus: read %s: %v", e.PointType, e.Err)
}
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a rejected or failed device write.
type WriteError struct {
	Address uint16
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("fieldbus: write address %d: %v", e.Address, e.Err)
}
func (e *WriteError) Unwrap() error { return e.Err }

// Connection is the single shared field-bus resource. Only one
// request (batched read or write) is in flight at a time; the mutex
// makes poll reads and command writes mutually exclusive.
type Connection struct {
	dial Dialer

	mu      sync.Mutex
	client  Client
	closer  io.Closer
	status  models.ConnectionStatus
	lastErr error
}

// New creates a connection to host:port with the given unit id and
// per-request timeout. No I/O happens until Connect.
func New(host string, port int, unitID byte, timeout time.Duration) *Connection {
	addr := fmt.Sprintf("%s:%d", host, port)
	return &Connection{
		status: models.StatusDisconnected,
		dial: func() (Client, io.Closer, error) {
			handler := modbus.NewTCPClientHandler(addr)
			handler.Timeout = timeout
			handler.SlaveId = unitID
			if err := handler.Connect(); err != nil {
				return nil, nil, err
			}
			return modbus.NewClient(handler), handler, nil
		},
	}
}

// NewWithDialer creates a connection using a custom dialer. Used by
// tests to substitute a simulated device.
func NewWithDialer(dial Dialer) *Connection {
	return &Connection{status: models.StatusDisconnected, dial: dial}
}

// Status returns the current connection state.
func (c *Connection) Status() models.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connected reports whether the session is established.
func (c *Connection) Connected() bool {
	return c.Status() == models.StatusConnected
}

// LastError returns the message of the most recent I/O failure, or
// an empty string if none occurred since the last successful connect.
func (c *Connection) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return ""
	}
	return c.lastErr.Error()
}

// Connect opens the TCP session. On failure the state stays
// Disconnected and the error is returned for the caller to retry.
// Connecting while already connected is a no-op.
func (c *Connection) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == models.StatusConnected {
		return nil
	}
	c.status = models.StatusConnecting

	client, closer, err := c.dial()
	if err != nil {
		c.status = models.StatusDisconnected
		c.lastErr = err
		return &ConnectError{Err: err}
	}
	c.client = client
	c.closer = closer
	c.status = models.StatusConnected
	c.lastErr = nil
	return nil
}

// Disconnect releases the session. Idempotent.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked(nil)
}

// dropLocked closes the transport and records the failure that caused
// the drop. Callers hold c.mu.
func (c *Connection) dropLocked(cause error) {
	if c.closer != nil {
		c.closer.Close()
	}
	c.client = nil
	c.closer = nil
	c.status = models.StatusDisconnected
	if cause != nil {
		c.lastErr = cause
	}
}

// ReadBatch reads the given addresses of one point type. Sparse
// address sets are covered by span reads (chunked at the protocol's
// per-request limit) and the requested addresses picked out of each
// span. The returned values align with addresses: bool for digital
// types, uint16 for register types. A failure invalidates the whole
// batch and drops the connection.
func (c *Connection) ReadBatch(addresses []uint16, pt models.PointType) ([]interface{}, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.StatusConnected {
		return nil, &ReadError{PointType: pt, Err: fmt.Errorf("not connected")}
	}

	maxQty := uint16(maxRegistersPerRead)
	if pt.Digital() {
		maxQty = maxBitsPerRead
	}

	byAddress := make(map[uint16]interface{}, len(addresses))
	for _, window := range spanWindows(addresses, maxQty) {
		if err := c.readWindowLocked(window.start, window.quantity, pt, byAddress); err != nil {
			c.dropLocked(err)
			return nil, &ReadError{PointType: pt, Err: err}
		}
	}

	values := make([]interface{}, len(addresses))
	for i, addr := range addresses {
		values[i] = byAddress[addr]
	}
	return values, nil
}

// readWindowLocked issues one protocol read and decodes every address
// of the window into out. Callers hold c.mu.
func (c *Connection) readWindowLocked(start, quantity uint16, pt models.PointType, out map[uint16]interface{}) error {
	var raw []byte
	var err error
	switch pt {
	case models.PointDiscreteInput:
		raw, err = c.client.ReadDiscreteInputs(start, quantity)
	case models.PointCoil:
		raw, err = c.client.ReadCoils(start, quantity)
	case models.PointHoldingRegister:
		raw, err = c.client.ReadHoldingRegisters(start, quantity)
	case models.PointInputRegister:
		raw, err = c.client.ReadInputRegisters(start, quantity)
	default:
		return fmt.Errorf("unsupported point type %q", pt)
	}
	if err != nil {
		return err
	}

	if pt.Digital() {
		if len(raw) < int(quantity+7)/8 {
			return fmt.Errorf("short response: %d bytes for %d bits", len(raw), quantity)
		}
		for i := uint16(0); i < quantity; i++ {
			out[start+i] = raw[i/8]>>(i%8)&1 == 1
		}
		return nil
	}

	if len(raw) < int(quantity)*2 {
		return fmt.Errorf("short response: %d bytes for %d registers", len(raw), quantity)
	}
	for i := uint16(0); i < quantity; i++ {
		out[start+i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return nil
}

// Write writes one value to a coil or holding register. value must be
// a bool for coils and a uint16 for holding registers; the command
// processor performs coercion before calling. A device rejection or
// transport failure drops the connection.
func (c *Connection) Write(address uint16, pt models.PointType, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != models.StatusConnected {
		return &WriteError{Address: address, Err: fmt.Errorf("not connected")}
	}

	var err error
	switch pt {
	case models.PointCoil:
		b, ok := value.(bool)
		if !ok {
			return &WriteError{Address: address, Err: fmt.Errorf("coil write needs bool, got %T", value)}
		}
		var raw uint16
		if b {
			raw = 0xFF00
		}
		_, err = c.client.WriteSingleCoil(address, raw)
	case models.PointHoldingRegister:
		v, ok := value.(uint16)
		if !ok {
			return &WriteError{Address: address, Err: fmt.Errorf("register write needs uint16, got %T", value)}
		}
		_, err = c.client.WriteSingleRegister(address, v)
	default:
		return &WriteError{Address: address, Err: fmt.Errorf("point type %q is not writable", pt)}
	}
	if err != nil {
		c.dropLocked(err)
		return &WriteError{Address: address, Err: err}
	}
	return nil
}

// window is one contiguous protocol read covering a slice of the
// requested addresses.
type window struct {
	start    uint16
	quantity uint16
}

// spanWindows groups sorted-or-unsorted addresses into span reads no
// wider than maxQty each.
func spanWindows(addresses []uint16, maxQty uint16) []window {
	sorted := make([]uint16, len(addresses))
	copy(sorted, addresses)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var windows []window
	start := sorted[0]
	end := sorted[0]
	for _, addr := range sorted[1:] {
		if addr == end {
			continue // duplicate
		}
		if addr-start >= maxQty {
			windows = append(windows, window{start: start, quantity: end - start + 1})
			start = addr
		}
		end = addr
	}
	windows = append(windows, window{start: start, quantity: end - start + 1})
	return windows
}
