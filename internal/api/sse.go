package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// keepaliveInterval is how often an SSE comment is written while no
// events flow, so intermediaries do not close an idle stream.
const keepaliveInterval = 15 * time.Second

// HandleEventStream streams bridge events via SSE. The stream starts
// with the current signal snapshot so a subscriber does not wait for
// the next change or heartbeat to render.
func (h *Handler) HandleEventStream(c echo.Context) error {
	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	h.sendSSEEvent(c, "snapshot", h.snapshot())

	subID, events := h.hub.Subscribe()
	defer h.hub.Unsubscribe(subID)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.sendSSEEvent(c, string(ev.Type), ev)
		case <-keepalive.C:
			fmt.Fprint(c.Response(), ": keepalive\n\n")
			c.Response().Flush()
		}
	}
}

func (h *Handler) sendSSEEvent(c echo.Context, event string, data interface{}) {
	jsonData, _ := json.Marshal(data)
	fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", event, jsonData)
	c.Response().Flush()
}
