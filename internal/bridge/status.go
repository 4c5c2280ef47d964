package bridge

import (
	"context"
	"time"

	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/registry"
)

// DefaultStatusInterval is the heartbeat cadence.
const DefaultStatusInterval = 10 * time.Second

// StatusReporter emits StatusUpdate heartbeats on a fixed cadence,
// independent of signal change activity, so subscribers can detect
// liveness even when nothing changes.
type StatusReporter struct {
	conn     *fieldbus.Connection
	registry *registry.AddressMap
	pub      Publisher
	interval time.Duration
}

// NewStatusReporter wires the heartbeat. An interval of zero or less
// falls back to DefaultStatusInterval.
func NewStatusReporter(conn *fieldbus.Connection, reg *registry.AddressMap, pub Publisher, interval time.Duration) *StatusReporter {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}
	return &StatusReporter{conn: conn, registry: reg, pub: pub, interval: interval}
}

// Document builds the current status, reflecting the live connection
// state at call time.
func (r *StatusReporter) Document() models.StatusUpdate {
	return models.StatusUpdate{
		Connected:   r.conn.Connected(),
		SignalCount: r.registry.Current().Count(),
		Timestamp:   time.Now().UnixMilli(),
		LastError:   r.conn.LastError(),
	}
}

// Emit publishes one StatusUpdate immediately, out of band of the
// periodic cadence.
func (r *StatusReporter) Emit() {
	r.pub.Publish(models.NewStatusEvent(r.Document()))
}

// Run emits a heartbeat every interval until ctx is cancelled.
func (r *StatusReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Emit()
		}
	}
}
