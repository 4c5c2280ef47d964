package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/plc-bridge/backend/internal/models"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypeCommand = "command"
	MsgTypePing    = "ping"

	// Server -> Client messages
	MsgTypeEvent  = "event"
	MsgTypeResult = "result"
	MsgTypeError  = "error"
	MsgTypePong   = "pong"
)

// WSMessage is the envelope for all WebSocket traffic.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSResultResponse acknowledges a successfully executed command.
type WSResultResponse struct {
	Command string      `json:"command"`
	Signal  string      `json:"signal,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

// WSErrorResponse reports a failed command.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler serves the bidirectional subscriber protocol:
// commands inbound, signal and status events outbound.
type WebSocketHandler struct {
	handler  *Handler
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(h *Handler) *WebSocketHandler {
	return &WebSocketHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
		},
	}
}

// wsConn wraps a websocket connection with a write lock. Gorilla
// connections do not support concurrent writers, and the event pump
// goroutine writes alongside the command reader.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) send(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		log.Printf("[WebSocket] Failed to send message: %v", err)
	}
}

// HandleWebSocket upgrades the connection, subscribes it to the event
// hub and runs the command loop until the client disconnects.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &wsConn{ws: ws}
	log.Println("[WebSocket] Client connected")

	conn.send(WSMessage{Type: "connected", Timestamp: time.Now().UnixMilli()})

	subID, events := wsh.handler.hub.Subscribe()
	defer wsh.handler.hub.Unsubscribe(subID)

	// Event pump: hub -> client. Stops when Unsubscribe closes the
	// channel on our way out.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			conn.send(WSMessage{
				Type:      MsgTypeEvent,
				Payload:   mustJSON(ev),
				Timestamp: time.Now().UnixMilli(),
			})
		}
	}()

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WebSocket] Connection error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(WSMessage{Type: MsgTypePong, ID: msg.ID, Timestamp: time.Now().UnixMilli()})
		case MsgTypeCommand:
			wsh.handleCommand(conn, msg)
		default:
			wsh.sendError(conn, msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	wsh.handler.hub.Unsubscribe(subID)
	<-done
	log.Println("[WebSocket] Client disconnected")
	return nil
}

// handleCommand decodes and executes one command, replying with a
// result or error carrying the same message id.
func (wsh *WebSocketHandler) handleCommand(conn *wsConn, msg WSMessage) {
	var cmd models.Command
	if err := json.Unmarshal(msg.Payload, &cmd); err != nil {
		wsh.sendError(conn, msg.ID, "Invalid command payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	if err := wsh.handler.bridge.Commands.Handle(cmd); err != nil {
		apiErr := CommandError(err)
		wsh.sendError(conn, msg.ID, apiErr.Message, apiErr.Code)
		return
	}

	conn.send(WSMessage{
		Type:      MsgTypeResult,
		ID:        msg.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSResultResponse{
			Command: string(cmd.Command),
			Signal:  cmd.Signal,
			Value:   cmd.Value,
		}),
	})
}

func (wsh *WebSocketHandler) sendError(conn *wsConn, id, message, code string) {
	conn.send(WSMessage{
		Type:      MsgTypeError,
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
		Payload: mustJSON(WSErrorResponse{
			Message: message,
			Code:    code,
		}),
	})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
