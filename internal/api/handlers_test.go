package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/plc-bridge/backend/internal/bridge"
	"github.com/plc-bridge/backend/internal/events"
	"github.com/plc-bridge/backend/internal/fieldbus"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/plc-bridge/backend/internal/registry"
	"github.com/plc-bridge/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type testEnv struct {
	echo    *echo.Echo
	handler *Handler
	bridge  *bridge.Bridge
	device  *testutil.FakeDevice
	store   *testutil.MockStore
	history *events.History
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := testutil.NewMockStore()
	st.AddConnection(
		models.ConnectionRecord{Name: "line-1", Host: "10.0.0.5", Port: 502, Enabled: true},
		models.SignalRecord{ID: "run_cmd", Address: 1, PointType: models.PointCoil, DisplayName: "Run Command"},
		models.SignalRecord{ID: "setpoint", Address: 100, PointType: models.PointHoldingRegister},
	)

	reg := registry.New(st, "")
	_, err := reg.Load()
	require.NoError(t, err)

	dev := testutil.NewFakeDevice()
	conn := fieldbus.NewWithDialer(dev.Dialer())

	hub := events.NewHub(16)
	history := events.NewHistory()
	recorder := &events.Recorder{Hub: hub, History: history}

	b := bridge.New(reg, conn, recorder, bridge.Options{})
	h := NewHandler(b, hub, history, "test")

	return &testEnv{
		echo:    echo.New(),
		handler: h,
		bridge:  b,
		device:  dev,
		store:   st,
		history: history,
	}
}

func (env *testEnv) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return env.echo.NewContext(req, rec), rec
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodGet, "/api/health", "")

	if assert.NoError(t, env.handler.HandleHealth(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
		assert.Contains(t, rec.Body.String(), `"version":"test"`)
	}
}

func TestHandleGetSignals(t *testing.T) {
	env := newTestEnv(t)

	// Observe one value so the snapshot mixes cached and pending
	sig := env.bridge.Registry.Current().Signals["setpoint"]
	env.bridge.Detector.Observe(sig, uint16(42), time.Now(), models.SourcePoll)

	c, rec := env.request(http.MethodGet, "/api/signals", "")
	require.NoError(t, env.handler.HandleGetSignals(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Connected   bool                 `json:"connected"`
		SignalCount int                  `json:"signalCount"`
		Signals     []bridge.SignalState `json:"signals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Connected)
	assert.Equal(t, 2, resp.SignalCount)
	require.Len(t, resp.Signals, 2)

	// Sorted by id: run_cmd before setpoint
	assert.Equal(t, "run_cmd", resp.Signals[0].ID)
	assert.Nil(t, resp.Signals[0].Value)
	assert.Equal(t, "setpoint", resp.Signals[1].ID)
	require.NotNil(t, resp.Signals[1].Value)
	assert.Equal(t, float64(42), resp.Signals[1].Value.Value)
}

func TestHandleGetSignalsMsgpack(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodGet, "/api/signals/msgpack", "")

	require.NoError(t, env.handler.HandleGetSignalsMsgpack(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Contains(t, decoded, "signals")
}

func TestHandleWriteSignal(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodPost, "/api/signals/write", `{"signal":"run_cmd","value":true}`)

	require.NoError(t, env.handler.HandleWriteSignal(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.device.GetCoil(1))

	// The confirmed write landed in the event history
	entries := env.history.Recent()
	require.NotEmpty(t, entries)
	require.NotNil(t, entries[0].Event.Signal)
	assert.Equal(t, "run_cmd", entries[0].Event.Signal.ID)
	assert.Equal(t, models.SourceWriteConfirmed, entries[0].Event.Signal.Source)
}

func TestHandleWriteSignalErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"missing signal", `{"value":true}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing value", `{"signal":"run_cmd"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown signal", `{"signal":"ghost","value":true}`, http.StatusNotFound, "UNKNOWN_SIGNAL"},
		{"number for coil", `{"signal":"run_cmd","value":1}`, http.StatusBadRequest, "INVALID_VALUE"},
		{"bad value type", `{"signal":"setpoint","value":"high"}`, http.StatusBadRequest, "INVALID_VALUE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			c, _ := env.request(http.MethodPost, "/api/signals/write", tt.body)

			err := env.handler.HandleWriteSignal(c)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, 0, env.device.Writes())
		})
	}
}

func TestHandleWriteSignalDeviceUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.device.SetFailDial(true)
	c, _ := env.request(http.MethodPost, "/api/signals/write", `{"signal":"run_cmd","value":true}`)

	err := env.handler.HandleWriteSignal(c)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "SERVICE_UNAVAILABLE", apiErr.Code)
}

func TestHandleReloadSignals(t *testing.T) {
	env := newTestEnv(t)
	env.store.SetSignals("line-1", []models.SignalRecord{
		{ID: "only_one", Address: 9, PointType: models.PointCoil},
	})

	c, rec := env.request(http.MethodPost, "/api/signals/reload", "")
	require.NoError(t, env.handler.HandleReloadSignals(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"signalCount":1`)
}

func TestHandleReloadSignalsFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.FailWith = assert.AnError

	c, _ := env.request(http.MethodPost, "/api/signals/reload", "")
	err := env.handler.HandleReloadSignals(c)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)

	// Old map still served
	assert.Equal(t, 2, env.bridge.Registry.Current().Count())
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodGet, "/api/status", "")

	require.NoError(t, env.handler.HandleStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var doc models.StatusUpdate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.False(t, doc.Connected)
	assert.Equal(t, 2, doc.SignalCount)

	// The status command also pushed a heartbeat into the history
	entries := env.history.Recent()
	require.NotEmpty(t, entries)
	assert.Equal(t, models.EventStatusUpdate, entries[0].Event.Type)
}

func TestHandleEventHistory(t *testing.T) {
	env := newTestEnv(t)
	sig := env.bridge.Registry.Current().Signals["run_cmd"]
	env.bridge.Detector.Observe(sig, true, time.Now(), models.SourcePoll)

	c, rec := env.request(http.MethodGet, "/api/events/history", "")
	require.NoError(t, env.handler.HandleEventHistory(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_cmd"`)
}

func TestErrorHandlerWritesEnvelope(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodGet, "/api/signals", "")

	ErrorHandler(NewNotFoundError("signal", "ghost"), c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, rec.Body.String(), "ghost")
}

func TestErrorHandlerWrapsEchoErrors(t *testing.T) {
	env := newTestEnv(t)
	c, rec := env.request(http.MethodGet, "/missing", "")

	ErrorHandler(echo.NewHTTPError(http.StatusNotFound, "Not Found"), c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"HTTP_ERROR"`)
}
