package bridge

import (
	"testing"
	"time"

	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSignal = models.Signal{
	ID:          "motor_speed",
	Address:     100,
	PointType:   models.PointHoldingRegister,
	DisplayName: "Motor Speed",
}

func TestFirstObservationEmits(t *testing.T) {
	pub := testutil.NewEventCollector()
	det := NewChangeDetector(NewCache(), pub)

	det.Observe(testSignal, uint16(50), time.Now(), models.SourcePoll)

	events := pub.SignalEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "motor_speed", events[0].ID)
	assert.Equal(t, "Motor Speed", events[0].DisplayName)
	assert.Equal(t, uint16(50), events[0].Value)
	assert.Equal(t, models.SourcePoll, events[0].Source)
}

func TestNoChangeNoEvent(t *testing.T) {
	pub := testutil.NewEventCollector()
	cache := NewCache()
	det := NewChangeDetector(cache, pub)

	t0 := time.Now()
	det.Observe(testSignal, uint16(50), t0, models.SourcePoll)
	pub.Reset()

	// Equal value: no event, but the cache timestamp refreshes
	t1 := t0.Add(time.Second)
	det.Observe(testSignal, uint16(50), t1, models.SourcePoll)

	assert.Equal(t, 0, pub.Count())
	v, ok := cache.Get("motor_speed")
	require.True(t, ok)
	assert.Equal(t, t1, v.Timestamp)
}

func TestChangeEmitsExactlyOneEvent(t *testing.T) {
	pub := testutil.NewEventCollector()
	det := NewChangeDetector(NewCache(), pub)

	now := time.Now()
	det.Observe(testSignal, uint16(50), now, models.SourcePoll)
	det.Observe(testSignal, uint16(51), now.Add(time.Second), models.SourcePoll)
	det.Observe(testSignal, uint16(51), now.Add(2*time.Second), models.SourcePoll)

	events := pub.SignalEvents()
	require.Len(t, events, 2)
	assert.Equal(t, uint16(50), events[0].Value)
	assert.Equal(t, uint16(51), events[1].Value)
	assert.Less(t, events[0].Timestamp, events[1].Timestamp)
}

func TestDigitalChange(t *testing.T) {
	sig := models.Signal{ID: "valve", Address: 3, PointType: models.PointCoil, DisplayName: "valve"}
	pub := testutil.NewEventCollector()
	det := NewChangeDetector(NewCache(), pub)

	now := time.Now()
	det.Observe(sig, false, now, models.SourcePoll)
	det.Observe(sig, true, now.Add(time.Second), models.SourcePoll)
	det.Observe(sig, true, now.Add(2*time.Second), models.SourcePoll)
	det.Observe(sig, false, now.Add(3*time.Second), models.SourcePoll)

	events := pub.SignalEvents()
	require.Len(t, events, 3)
	assert.Equal(t, false, events[0].Value)
	assert.Equal(t, true, events[1].Value)
	assert.Equal(t, false, events[2].Value)
}

func TestWriteSourcePropagates(t *testing.T) {
	pub := testutil.NewEventCollector()
	det := NewChangeDetector(NewCache(), pub)

	det.Observe(testSignal, uint16(10), time.Now(), models.SourceWriteConfirmed)

	events := pub.SignalEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.SourceWriteConfirmed, events[0].Source)
}

func TestCacheRetain(t *testing.T) {
	cache := NewCache()
	cache.Set("a", models.SignalValue{Value: uint16(1)})
	cache.Set("b", models.SignalValue{Value: uint16(2)})

	cache.Retain(map[string]models.Signal{"a": {ID: "a"}})

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.Get("b")
	assert.False(t, ok)
}
