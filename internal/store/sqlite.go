package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/plc-bridge/backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS connections (
	name    TEXT PRIMARY KEY,
	host    TEXT NOT NULL,
	port    INTEGER NOT NULL DEFAULT 502,
	enabled INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS signals (
	id           TEXT PRIMARY KEY,
	connection   TEXT NOT NULL REFERENCES connections(name),
	address      INTEGER NOT NULL,
	point_type   TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_signals_connection ON signals(connection);
`

// SQLiteStore is a record store backed by a SQLite database. The
// schema is created on open if it does not exist, so a fresh database
// file is a valid (empty) store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create store schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// ListConnections returns every connection record.
func (s *SQLiteStore) ListConnections() ([]models.ConnectionRecord, error) {
	rows, err := s.db.Query(`SELECT name, host, port, enabled FROM connections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var conns []models.ConnectionRecord
	for rows.Next() {
		var c models.ConnectionRecord
		if err := rows.Scan(&c.Name, &c.Host, &c.Port, &c.Enabled); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

// ListSignals returns the signal records for one connection.
func (s *SQLiteStore) ListSignals(connection string) ([]models.SignalRecord, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM connections WHERE name = ?)`, connection).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check connection %s: %w", connection, err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := s.db.Query(
		`SELECT id, address, point_type, display_name FROM signals WHERE connection = ? ORDER BY point_type, address`,
		connection)
	if err != nil {
		return nil, fmt.Errorf("list signals for %s: %w", connection, err)
	}
	defer rows.Close()

	var sigs []models.SignalRecord
	for rows.Next() {
		var r models.SignalRecord
		if err := rows.Scan(&r.ID, &r.Address, &r.PointType, &r.DisplayName); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sigs = append(sigs, r)
	}
	return sigs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seed inserts a connection and its signals in one transaction.
// Intended for provisioning and tests; existing rows are replaced.
func (s *SQLiteStore) Seed(conn models.ConnectionRecord, signals []models.SignalRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO connections(name, host, port, enabled) VALUES(?, ?, ?, ?)`,
		conn.Name, conn.Host, conn.Port, conn.Enabled)
	if err != nil {
		return fmt.Errorf("seed connection: %w", err)
	}
	for _, sig := range signals {
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO signals(id, connection, address, point_type, display_name) VALUES(?, ?, ?, ?, ?)`,
			sig.ID, conn.Name, sig.Address, sig.PointType, sig.DisplayName)
		if err != nil {
			return fmt.Errorf("seed signal %s: %w", sig.ID, err)
		}
	}
	return tx.Commit()
}
