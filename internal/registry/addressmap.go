// Package registry maintains the active address map: the set of
// signal definitions the bridge currently polls. The map is loaded
// from the record store and replaced wholesale by a reload command;
// it is never partially mutated.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/store"
)

// ErrNoConnection is returned by Load when the record store has no
// enabled connection to serve.
var ErrNoConnection = errors.New("registry: no enabled connection in record store")

// Snapshot is one immutable generation of the address map. Poll
// cycles in progress keep the snapshot they started with; a reload
// only affects the next cycle.
type Snapshot struct {
	Connection models.ConnectionRecord
	Signals    map[string]models.Signal
}

// Count returns the number of signals in the snapshot.
func (s Snapshot) Count() int { return len(s.Signals) }

// ByPointType partitions the snapshot's signals by point type, each
// partition sorted by address. Point types with no signals are absent
// from the result.
func (s Snapshot) ByPointType() map[models.PointType][]models.Signal {
	parts := make(map[models.PointType][]models.Signal)
	for _, sig := range s.Signals {
		parts[sig.PointType] = append(parts[sig.PointType], sig)
	}
	for pt := range parts {
		sort.Slice(parts[pt], func(i, j int) bool {
			return parts[pt][i].Address < parts[pt][j].Address
		})
	}
	return parts
}

// AddressMap holds the current snapshot and knows how to rebuild it
// from the record store.
type AddressMap struct {
	store      store.Store
	connection string // optional: pin to a named connection

	mu      sync.RWMutex
	current Snapshot
}

// New creates an address map reading from st. If connection is
// non-empty, Load only considers that connection; otherwise the first
// enabled connection wins.
func New(st store.Store, connection string) *AddressMap {
	return &AddressMap{
		store:      st,
		connection: connection,
		current:    Snapshot{Signals: map[string]models.Signal{}},
	}
}

// Current returns the active snapshot. The returned map must be
// treated as read-only.
func (m *AddressMap) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Load fetches connection and signal metadata from the record store,
// validates it, and atomically replaces the active snapshot. On any
// error the previous snapshot stays in effect.
func (m *AddressMap) Load() (Snapshot, error) {
	conns, err := m.store.ListConnections()
	if err != nil {
		return Snapshot{}, fmt.Errorf("load connections: %w", err)
	}

	var conn *models.ConnectionRecord
	for i := range conns {
		if !conns[i].Enabled {
			continue
		}
		if m.connection != "" && conns[i].Name != m.connection {
			continue
		}
		conn = &conns[i]
		break
	}
	if conn == nil {
		return Snapshot{}, ErrNoConnection
	}

	records, err := m.store.ListSignals(conn.Name)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load signals for %s: %w", conn.Name, err)
	}

	signals := make(map[string]models.Signal, len(records))
	seen := make(map[models.PointType]map[int]string)
	for _, r := range records {
		if r.ID == "" {
			return Snapshot{}, fmt.Errorf("malformed signal record: empty id (address %d)", r.Address)
		}
		if !r.PointType.Valid() {
			return Snapshot{}, fmt.Errorf("signal %s: unknown point type %q", r.ID, r.PointType)
		}
		if r.Address < 0 || r.Address > 0xFFFF {
			return Snapshot{}, fmt.Errorf("signal %s: address %d out of range", r.ID, r.Address)
		}
		if prev, dup := seen[r.PointType][r.Address]; dup {
			return Snapshot{}, fmt.Errorf("signal %s: address %d already used by %s (%s)",
				r.ID, r.Address, prev, r.PointType)
		}
		if seen[r.PointType] == nil {
			seen[r.PointType] = make(map[int]string)
		}
		seen[r.PointType][r.Address] = r.ID

		name := r.DisplayName
		if name == "" {
			name = r.ID
		}
		signals[r.ID] = models.Signal{
			ID:          r.ID,
			Address:     uint16(r.Address),
			PointType:   r.PointType,
			DisplayName: name,
		}
	}

	snap := Snapshot{Connection: *conn, Signals: signals}

	m.mu.Lock()
	m.current = snap
	m.mu.Unlock()

	return snap, nil
}
