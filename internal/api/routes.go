// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/plc-bridge/backend/internal/bridge"
	"github.com/plc-bridge/backend/internal/events"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Bridge  *bridge.Bridge
	Hub     *events.Hub
	History *events.History
	Version string
}

// Handlers holds all handler instances
type Handlers struct {
	API       *Handler
	WebSocket *WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := NewHandler(deps.Bridge, deps.Hub, deps.History, deps.Version)
	return &Handlers{
		API:       h,
		WebSocket: NewWebSocketHandler(h),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/health", handlers.API.HandleHealth)
	e.GET("/api/health", handlers.API.HandleHealth)

	// Signal routes
	signalGroup := e.Group("/api/signals")
	signalGroup.GET("", handlers.API.HandleGetSignals)
	signalGroup.GET("/msgpack", handlers.API.HandleGetSignalsMsgpack)
	signalGroup.POST("/write", handlers.API.HandleWriteSignal)
	signalGroup.POST("/reload", handlers.API.HandleReloadSignals)

	// Status
	e.GET("/api/status", handlers.API.HandleStatus)

	// Event distribution routes
	eventGroup := e.Group("/api/events")
	eventGroup.GET("/history", handlers.API.HandleEventHistory)
	eventGroup.GET("/stream", handlers.API.HandleEventStream)

	// WebSocket
	e.GET("/api/ws", handlers.WebSocket.HandleWebSocket)
}
