package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Clients connect from mobile apps and local tooling without a
		// stable origin; the channel carries no credentials to protect
		return true
	},
}

// HandleWebSocket upgrades the HTTP connection and starts the client
// pumps. Connections are anonymous at this point; the peer declares its
// role with an identify frame once the channel is open.
func HandleWebSocket(c *gin.Context, hub *Hub) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Failed to upgrade WebSocket", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn, hub)

	hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
