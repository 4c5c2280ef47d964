package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/plc-bridge/backend/internal/bridge"
	"github.com/plc-bridge/backend/internal/events"
	"github.com/plc-bridge/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// Handler handles API requests against the running bridge.
type Handler struct {
	bridge  *bridge.Bridge
	hub     *events.Hub
	history *events.History
	version string
}

// NewHandler creates a new API handler.
func NewHandler(b *bridge.Bridge, hub *events.Hub, history *events.History, version string) *Handler {
	return &Handler{bridge: b, hub: hub, history: history, version: version}
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	})
}

// signalsResponse is the snapshot payload for /api/signals.
type signalsResponse struct {
	Connected   bool                 `json:"connected" msgpack:"connected"`
	SignalCount int                  `json:"signalCount" msgpack:"signalCount"`
	Signals     []bridge.SignalState `json:"signals" msgpack:"signals"`
	Timestamp   int64                `json:"timestamp" msgpack:"timestamp"`
}

func (h *Handler) snapshot() signalsResponse {
	states := h.bridge.SignalStates()
	return signalsResponse{
		Connected:   h.bridge.Conn.Connected(),
		SignalCount: len(states),
		Signals:     states,
		Timestamp:   time.Now().UnixMilli(),
	}
}

// HandleGetSignals returns the cached values and definitions of every
// signal in the active address map.
func (h *Handler) HandleGetSignals(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// HandleGetSignalsMsgpack returns the same snapshot msgpack-encoded,
// for dashboards polling at high frequency.
func (h *Handler) HandleGetSignalsMsgpack(c echo.Context) error {
	data, err := msgpack.Marshal(h.snapshot())
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// writeSignalRequest is the body of POST /api/signals/write.
type writeSignalRequest struct {
	Signal string      `json:"signal"`
	Value  interface{} `json:"value"`
}

// HandleWriteSignal executes a write_signal command.
func (h *Handler) HandleWriteSignal(c echo.Context) error {
	var req writeSignalRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if req.Signal == "" {
		return NewValidationError("signal")
	}
	if req.Value == nil {
		return NewValidationError("value")
	}

	err := h.bridge.Commands.Handle(models.Command{
		Command: models.CommandWriteSignal,
		Signal:  req.Signal,
		Value:   req.Value,
	})
	if err != nil {
		return CommandError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"signal": req.Signal,
		"value":  req.Value,
	})
}

// HandleReloadSignals executes a reload_signals command. On failure
// the previously active address map stays in effect.
func (h *Handler) HandleReloadSignals(c echo.Context) error {
	err := h.bridge.Commands.Handle(models.Command{Command: models.CommandReloadSignals})
	if err != nil {
		return CommandError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":          true,
		"signalCount": h.bridge.Registry.Current().Count(),
	})
}

// HandleStatus executes a status command, emitting an out-of-band
// StatusUpdate to subscribers, and returns the status document.
func (h *Handler) HandleStatus(c echo.Context) error {
	if err := h.bridge.Commands.Handle(models.Command{Command: models.CommandStatus}); err != nil {
		return CommandError(err)
	}
	return c.JSON(http.StatusOK, h.bridge.Status.Document())
}

// HandleEventHistory returns the most recent events, newest first.
func (h *Handler) HandleEventHistory(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": h.history.Recent(),
	})
}
