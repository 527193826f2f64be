package realtime

import (
	"github.com/gin-gonic/gin"

	"github.com/vambora/dispatch/pkg/common"
	"github.com/vambora/dispatch/pkg/websocket"
)

// Handler exposes the HTTP surface of the realtime layer: the
// WebSocket entry point plus read-only views of chat history, driver
// positions, and live counters.
type Handler struct {
	service *Service
	hub     *websocket.Hub
}

// NewHandler creates a new realtime handler.
func NewHandler(service *Service, hub *websocket.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

// RegisterRoutes mounts the realtime endpoints on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
	r.GET("/stats", h.GetStats)
	r.GET("/rides/:ride_id/chat", h.GetChatHistory)
	r.GET("/drivers/:driver_id/location", h.GetDriverLocation)
}

// HandleWebSocket upgrades the request and hands the connection to the
// hub. Identification happens in-band afterwards.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	websocket.HandleWebSocket(c, h.hub)
}

// GetChatHistory returns the stored messages for a ride, oldest first.
func (h *Handler) GetChatHistory(c *gin.Context) {
	rideID := c.Param("ride_id")
	if !common.ValidateNotEmpty(c, rideID, "ride_id") {
		return
	}

	messages, err := h.service.GetChatHistory(c.Request.Context(), rideID)
	if common.HandleServiceError(c, err, "failed to load chat history") {
		return
	}

	common.SuccessResponse(c, gin.H{
		"ride_id":  rideID,
		"messages": messages,
	})
}

// GetDriverLocation returns the last reported position of a driver.
func (h *Handler) GetDriverLocation(c *gin.Context) {
	driverID := c.Param("driver_id")
	if !common.ValidateNotEmpty(c, driverID, "driver_id") {
		return
	}

	entry, err := h.service.GetDriverLocation(c.Request.Context(), driverID)
	if common.HandleServiceError(c, err, "failed to load driver location") {
		return
	}

	common.SuccessResponse(c, entry)
}

// GetStats returns live connection and ride counters.
func (h *Handler) GetStats(c *gin.Context) {
	common.SuccessResponse(c, h.service.GetStats())
}
