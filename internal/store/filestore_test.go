package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/plc-bridge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
connections:
  - name: line-1
    host: 10.0.0.5
    port: 5020
    signals:
      - id: run_cmd
        address: 1
        point_type: coil
        display_name: Run Command
      - id: setpoint
        address: 100
        point_type: holding_register
  - name: spare
    host: 10.0.0.6
    enabled: false
`

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileStoreListConnections(t *testing.T) {
	fs, err := NewFileStore(writeTestFile(t, testYAML))
	require.NoError(t, err)

	conns, err := fs.ListConnections()
	require.NoError(t, err)
	require.Len(t, conns, 2)

	// Explicit port kept, missing enabled defaults true
	assert.Equal(t, models.ConnectionRecord{Name: "line-1", Host: "10.0.0.5", Port: 5020, Enabled: true}, conns[0])
	// Explicit enabled false kept, missing port defaults to 502
	assert.Equal(t, models.ConnectionRecord{Name: "spare", Host: "10.0.0.6", Port: 502, Enabled: false}, conns[1])
}

func TestFileStoreListSignals(t *testing.T) {
	fs, err := NewFileStore(writeTestFile(t, testYAML))
	require.NoError(t, err)

	sigs, err := fs.ListSignals("line-1")
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "run_cmd", sigs[0].ID)
	assert.Equal(t, models.PointCoil, sigs[0].PointType)
	assert.Equal(t, "Run Command", sigs[0].DisplayName)
	assert.Equal(t, 100, sigs[1].Address)

	_, err = fs.ListSignals("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePicksUpEdits(t *testing.T) {
	path := writeTestFile(t, testYAML)
	fs, err := NewFileStore(path)
	require.NoError(t, err)

	// The file is re-read per call, so an edit shows up on the next
	// reload without restarting
	require.NoError(t, os.WriteFile(path, []byte(`
connections:
  - name: line-1
    host: 10.0.0.5
    signals:
      - id: only_one
        address: 7
        point_type: input_register
`), 0644))

	sigs, err := fs.ListSignals("line-1")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, "only_one", sigs[0].ID)
}

func TestFileStoreMissingFile(t *testing.T) {
	_, err := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestFileStoreMalformedYAML(t *testing.T) {
	_, err := NewFileStore(writeTestFile(t, "connections: [\n"))
	assert.Error(t, err)
}
