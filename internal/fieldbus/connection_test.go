package fieldbus_test

import (
	"errors"
	"testing"

	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectStateMachine(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())

	// 1. Initially disconnected
	assert.Equal(t, models.StatusDisconnected, conn.Status())
	assert.False(t, conn.Connected())

	// 2. Connect succeeds
	require.NoError(t, conn.Connect())
	assert.Equal(t, models.StatusConnected, conn.Status())
	assert.Empty(t, conn.LastError())

	// 3. Connecting again is a no-op
	require.NoError(t, conn.Connect())
	assert.Equal(t, 1, dev.Dials())

	// 4. Disconnect is idempotent
	conn.Disconnect()
	conn.Disconnect()
	assert.Equal(t, models.StatusDisconnected, conn.Status())
}

func TestConnectFailureStaysDisconnected(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.SetFailDial(true)
	conn := fieldbus.NewWithDialer(dev.Dialer())

	err := conn.Connect()
	assert.Error(t, err)
	var connErr *fieldbus.ConnectError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, models.StatusDisconnected, conn.Status())
	assert.NotEmpty(t, conn.LastError())

	// Recovers once the device accepts again
	dev.SetFailDial(false)
	require.NoError(t, conn.Connect())
	assert.True(t, conn.Connected())
	assert.Empty(t, conn.LastError())
}

func TestReadBatchDigital(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.SetCoil(3, true)
	dev.SetCoil(10, true)

	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	values, err := conn.ReadBatch([]uint16{3, 4, 10}, models.PointCoil)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{true, false, true}, values)
}

func TestReadBatchRegisters(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.SetHoldingRegister(100, 1234)
	dev.SetHoldingRegister(101, 0xFFFF)

	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	values, err := conn.ReadBatch([]uint16{100, 101, 102}, models.PointHoldingRegister)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint16(1234), uint16(0xFFFF), uint16(0)}, values)
}

func TestReadBatchSparseUsesOneRead(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.SetInputRegister(10, 1)
	dev.SetInputRegister(90, 2)

	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	values, err := conn.ReadBatch([]uint16{10, 90}, models.PointInputRegister)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint16(1), uint16(2)}, values)
	assert.Equal(t, 1, dev.Reads())
}

func TestReadFailureDropsConnection(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	dev.NextReadErr = errors.New("timeout")
	_, err := conn.ReadBatch([]uint16{0}, models.PointCoil)

	var readErr *fieldbus.ReadError
	assert.ErrorAs(t, err, &readErr)
	assert.Equal(t, models.StatusDisconnected, conn.Status())
	assert.Equal(t, "timeout", conn.LastError())

	// Reads against a dropped session fail without touching the device
	before := dev.Reads()
	_, err = conn.ReadBatch([]uint16{0}, models.PointCoil)
	assert.Error(t, err)
	assert.Equal(t, before, dev.Reads())
}

func TestWriteCoil(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	require.NoError(t, conn.Write(12, models.PointCoil, true))
	assert.True(t, dev.GetCoil(12))

	require.NoError(t, conn.Write(12, models.PointCoil, false))
	assert.False(t, dev.GetCoil(12))
}

func TestWriteHoldingRegister(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	require.NoError(t, conn.Write(40, models.PointHoldingRegister, uint16(777)))
	assert.Equal(t, uint16(777), dev.GetHoldingRegister(40))
}

func TestWriteRejectsReadOnlyPointTypes(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	var writeErr *fieldbus.WriteError
	assert.ErrorAs(t, conn.Write(1, models.PointDiscreteInput, true), &writeErr)
	assert.ErrorAs(t, conn.Write(1, models.PointInputRegister, uint16(1)), &writeErr)
	// Rejection is local validation, the session stays up
	assert.True(t, conn.Connected())
}

func TestWriteFailureDropsConnection(t *testing.T) {
	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())
	require.NoError(t, conn.Connect())

	dev.NextWriteErr = errors.New("illegal data address")
	err := conn.Write(9, models.PointHoldingRegister, uint16(1))

	var writeErr *fieldbus.WriteError
	assert.ErrorAs(t, err, &writeErr)
	assert.Equal(t, models.StatusDisconnected, conn.Status())
}
