// mock_store.go - Mock record store implementation for testing
package testutil

import (
	"sync"

	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/store"
)

// MockStore implements store.Store for testing.
type MockStore struct {
	mu          sync.RWMutex
	connections []models.ConnectionRecord
	signals     map[string][]models.SignalRecord

	// FailWith, when set, is returned by every method. Used to test
	// that a failed reload keeps the previous address map.
	FailWith error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{signals: make(map[string][]models.SignalRecord)}
}

// AddConnection registers a connection and its signal records.
func (m *MockStore) AddConnection(conn models.ConnectionRecord, signals ...models.SignalRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections = append(m.connections, conn)
	m.signals[conn.Name] = append(m.signals[conn.Name], signals...)
}

// SetSignals replaces the signal records of a connection.
func (m *MockStore) SetSignals(connection string, signals []models.SignalRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[connection] = signals
}

func (m *MockStore) ListConnections() ([]models.ConnectionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	out := make([]models.ConnectionRecord, len(m.connections))
	copy(out, m.connections)
	return out, nil
}

func (m *MockStore) ListSignals(connection string) ([]models.SignalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	signals, ok := m.signals[connection]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]models.SignalRecord, len(signals))
	copy(out, signals)
	return out, nil
}

func (m *MockStore) Close() error { return nil }

// Ensure MockStore implements store.Store
var _ store.Store = (*MockStore)(nil)
