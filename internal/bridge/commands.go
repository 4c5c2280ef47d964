package bridge

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/registry"
)

// Command validation failures, surfaced synchronously to the caller.
// No state is mutated when one of these is returned.
var (
	ErrUnknownSignal  = errors.New("unknown signal")
	ErrNotWritable    = errors.New("signal is not writable")
	ErrInvalidValue   = errors.New("invalid value for signal type")
	ErrUnknownCommand = errors.New("unknown command")
)

// CommandProcessor consumes inbound commands from the distribution
// boundary. Handle is serialized: commands never execute concurrently
// with each other, though they interleave with poll cycles under the
// field-bus mutex.
type CommandProcessor struct {
	conn     *fieldbus.Connection
	registry *registry.AddressMap
	detector *ChangeDetector
	status   *StatusReporter

	mu sync.Mutex
}

// NewCommandProcessor wires the command path.
func NewCommandProcessor(conn *fieldbus.Connection, reg *registry.AddressMap, det *ChangeDetector, status *StatusReporter) *CommandProcessor {
	return &CommandProcessor{conn: conn, registry: reg, detector: det, status: status}
}

// Handle executes one command synchronously and returns its result.
func (p *CommandProcessor) Handle(cmd models.Command) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch cmd.Command {
	case models.CommandWriteSignal:
		return p.writeSignal(cmd.Signal, cmd.Value)
	case models.CommandReloadSignals:
		return p.reloadSignals()
	case models.CommandStatus:
		p.status.Emit()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Command)
	}
}

// writeSignal validates and executes a device write, then feeds the
// confirmed value straight into the change detector so subscribers
// see it without waiting for the next poll.
func (p *CommandProcessor) writeSignal(id string, raw interface{}) error {
	sig, ok := p.registry.Current().Signals[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSignal, id)
	}
	if !sig.PointType.Writable() {
		return fmt.Errorf("%w: %s is a %s", ErrNotWritable, id, sig.PointType)
	}

	value, err := CoerceValue(sig.PointType, raw)
	if err != nil {
		return err
	}

	if !p.conn.Connected() {
		if err := p.conn.Connect(); err != nil {
			return err
		}
	}
	if err := p.conn.Write(sig.Address, sig.PointType, value); err != nil {
		return err
	}

	log.Printf("[Bridge] Wrote %v to %s (%s@%d)", value, sig.DisplayName, sig.PointType, sig.Address)
	p.detector.Observe(sig, value, time.Now(), models.SourceWriteConfirmed)
	return nil
}

// reloadSignals rebuilds the address map from the record store. On
// failure the previous map remains active.
func (p *CommandProcessor) reloadSignals() error {
	snap, err := p.registry.Load()
	if err != nil {
		return err
	}
	log.Printf("[Bridge] Reloaded %d signals for connection %s", snap.Count(), snap.Connection.Name)
	return nil
}

// CoerceValue converts raw input (typically decoded JSON) to the
// signal's native representation: bool for digital types, uint16 for
// register types. Ambiguous input (a number for a coil, a bool or a
// fractional or out-of-range number for a register) is rejected
// rather than truthy-coerced.
func CoerceValue(pt models.PointType, raw interface{}) (interface{}, error) {
	if pt.Digital() {
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs a boolean, got %T", ErrInvalidValue, pt, raw)
		}
		return b, nil
	}

	switch v := raw.(type) {
	case uint16:
		return v, nil
	case int:
		if v < 0 || v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d out of register range", ErrInvalidValue, v)
		}
		return uint16(v), nil
	case int64:
		if v < 0 || v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d out of register range", ErrInvalidValue, v)
		}
		return uint16(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%w: %v is not an integer", ErrInvalidValue, v)
		}
		if v < 0 || v > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %v out of register range", ErrInvalidValue, v)
		}
		return uint16(v), nil
	default:
		return nil, fmt.Errorf("%w: %s needs a number, got %T", ErrInvalidValue, pt, raw)
	}
}
