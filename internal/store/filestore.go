package store

import (
	"fmt"
	"os"

	"github.com/plc-bridge/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// fileDoc is the YAML document shape for the file-backed store.
type fileDoc struct {
	Connections []fileConnection `yaml:"connections"`
}

type fileConnection struct {
	Name    string                `yaml:"name"`
	Host    string                `yaml:"host"`
	Port    int                   `yaml:"port"`
	Enabled *bool                 `yaml:"enabled"`
	Signals []models.SignalRecord `yaml:"signals"`
}

// FileStore is a record store backed by a YAML file, for deployments
// without a database. The file is re-read on every call so a reload
// command picks up edits without restarting the bridge.
type FileStore struct {
	path string
}

// NewFileStore returns a store reading from the YAML file at path.
// The file must exist and parse at construction time.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if _, err := fs.read(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) read() (*fileDoc, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("read signal file: %w", err)
	}
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse signal file: %w", err)
	}
	return &doc, nil
}

// ListConnections returns every connection in the file. A connection
// without an explicit enabled key defaults to enabled.
func (fs *FileStore) ListConnections() ([]models.ConnectionRecord, error) {
	doc, err := fs.read()
	if err != nil {
		return nil, err
	}
	conns := make([]models.ConnectionRecord, 0, len(doc.Connections))
	for _, c := range doc.Connections {
		enabled := true
		if c.Enabled != nil {
			enabled = *c.Enabled
		}
		port := c.Port
		if port == 0 {
			port = 502
		}
		conns = append(conns, models.ConnectionRecord{
			Name:    c.Name,
			Host:    c.Host,
			Port:    port,
			Enabled: enabled,
		})
	}
	return conns, nil
}

// ListSignals returns the signals for one connection.
func (fs *FileStore) ListSignals(connection string) ([]models.SignalRecord, error) {
	doc, err := fs.read()
	if err != nil {
		return nil, err
	}
	for _, c := range doc.Connections {
		if c.Name == connection {
			return c.Signals, nil
		}
	}
	return nil, ErrNotFound
}

// Close is a no-op for the file backend.
func (fs *FileStore) Close() error { return nil }
