package bridge

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/registry"
)

// Bridge assembles the synchronization engine: one polling loop, one
// heartbeat reporter and one command processor sharing the field-bus
// connection and signal cache.
type Bridge struct {
	Registry *registry.AddressMap
	Conn     *fieldbus.Connection
	Cache    *SignalCache
	Detector *ChangeDetector
	Status   *StatusReporter
	Commands *CommandProcessor

	poller *Poller
}

// Options tunes the engine cadences. Zero values fall back to the
// package defaults.
type Options struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
}

// New wires a bridge around an already-loaded address map and a
// field-bus connection. No goroutines start until Run.
func New(reg *registry.AddressMap, conn *fieldbus.Connection, pub Publisher, opts Options) *Bridge {
	cache := NewCache()
	detector := NewChangeDetector(cache, pub)
	status := NewStatusReporter(conn, reg, pub, opts.StatusInterval)

	return &Bridge{
		Registry: reg,
		Conn:     conn,
		Cache:    cache,
		Detector: detector,
		Status:   status,
		Commands: NewCommandProcessor(conn, reg, detector, status),
		poller:   NewPoller(conn, reg, cache, detector, opts.PollInterval),
	}
}

// Run starts the polling loop and the heartbeat and blocks until ctx
// is cancelled and both have stopped.
func (b *Bridge) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		b.Status.Run(ctx)
	}()
	wg.Wait()
}

// SignalState pairs a signal definition with its cached value, if one
// has been observed yet.
type SignalState struct {
	models.Signal `msgpack:",inline"`
	Value         *models.SignalValue `json:"value,omitempty" msgpack:"value,omitempty"`
}

// SignalStates returns the current map's signals with their cached
// values, sorted by id. Cached values of signals no longer in the map
// are excluded.
func (b *Bridge) SignalStates() []SignalState {
	snap := b.Registry.Current()
	values := b.Cache.Snapshot()

	states := make([]SignalState, 0, snap.Count())
	for id, sig := range snap.Signals {
		state := SignalState{Signal: sig}
		if v, ok := values[id]; ok {
			val := v
			state.Value = &val
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states
}
