// Package store provides access to the record store that defines
// which field-bus connections and signals exist. The concrete backend
// (SQLite database or YAML file) is swappable behind the Store
// interface.
package store

import (
	"errors"

	"github.com/plc-bridge/backend/internal/models"
)

// ErrNotFound is returned when a named connection does not exist in
// the store.
var ErrNotFound = errors.New("store: connection not found")

// Store lists the connection and signal records the bridge should
// serve. Implementations must be safe for concurrent use.
type Store interface {
	// ListConnections returns all connection records, including
	// disabled ones. Callers filter on Enabled.
	ListConnections() ([]models.ConnectionRecord, error)

	// ListSignals returns the signal definitions belonging to the
	// named connection. ErrNotFound if the connection is unknown.
	ListSignals(connection string) ([]models.SignalRecord, error)

	// Close releases any resources held by the backend.
	Close() error
}
