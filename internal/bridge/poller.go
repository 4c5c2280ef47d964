package bridge

import (
	"context"
	"log"
	"time"

	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/registry"
)

// DefaultPollInterval keeps end-to-end propagation under ~500 ms.
const DefaultPollInterval = 200 * time.Millisecond

// Poller runs the fixed-cadence read loop. Each cycle reconnects if
// needed, partitions the current address map by point type, issues
// one batched read per partition and feeds results to the change
// detector. Cycles run back to back: a slow cycle is reported but the
// next one starts immediately.
type Poller struct {
	conn     *fieldbus.Connection
	registry *registry.AddressMap
	cache    *SignalCache
	detector *ChangeDetector
	interval time.Duration
}

// NewPoller wires the polling loop. An interval of zero or less
// falls back to DefaultPollInterval.
func NewPoller(conn *fieldbus.Connection, reg *registry.AddressMap, cache *SignalCache, det *ChangeDetector, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{conn: conn, registry: reg, cache: cache, detector: det, interval: interval}
}

// Run polls until ctx is cancelled. Field-bus failures are absorbed:
// the connection is retried every interval and a single bad batch
// aborts only the remainder of its cycle.
func (p *Poller) Run(ctx context.Context) {
	log.Printf("[Poll] Starting polling loop (interval %v)", p.interval)
	for {
		start := time.Now()
		p.cycle()

		elapsed := time.Since(start)
		if elapsed > p.interval {
			log.Printf("[Poll] Slow cycle: %v exceeds interval %v", elapsed.Round(time.Millisecond), p.interval)
		}

		sleep := p.interval - elapsed
		if sleep < 0 {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			log.Printf("[Poll] Stopping polling loop")
			p.conn.Disconnect()
			return
		case <-time.After(sleep):
		}
	}
}

// cycle runs one full poll pass against the snapshot current at its
// start; a reload mid-cycle only affects the next pass.
func (p *Poller) cycle() {
	if !p.conn.Connected() {
		if err := p.conn.Connect(); err != nil {
			log.Printf("[Poll] Connect failed: %v", err)
			return
		}
		log.Printf("[Poll] Field bus connected")
	}

	snap := p.registry.Current()

	// Lazy pruning: values of signals dropped by a reload disappear
	// here instead of during the reload.
	p.cache.Retain(snap.Signals)

	if snap.Count() == 0 {
		return // empty map is a valid, inert steady state
	}

	now := time.Now()
	parts := snap.ByPointType()
	for _, pt := range models.PointTypes {
		signals := parts[pt]
		if len(signals) == 0 {
			continue
		}

		addresses := make([]uint16, len(signals))
		for i, sig := range signals {
			addresses[i] = sig.Address
		}

		values, err := p.conn.ReadBatch(addresses, pt)
		if err != nil {
			// Known-bad session: skip the remaining partitions and
			// let the next cycle reconnect.
			log.Printf("[Poll] Batch read failed: %v", err)
			return
		}

		for i, sig := range signals {
			p.detector.Observe(sig, values[i], now, models.SourcePoll)
		}
	}
}
