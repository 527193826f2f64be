package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB
)

// Role values for identified connections.
const (
	RoleDriver    = "motorista"
	RolePassenger = "passageiro"
)

// Client represents a WebSocket client connection. Connections are
// anonymous until the peer identifies itself, so the role is mutable.
type Client struct {
	ID   string          // Connection identifier, minted at upgrade
	Conn *websocket.Conn // WebSocket connection
	Send chan *Message   // Buffered channel of outbound messages
	Hub  *Hub            // Reference to hub

	role   string
	rooms  map[string]struct{}
	closed bool
	mu     sync.RWMutex
}

// NewClient creates a new WebSocket client
func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:    id,
		Conn:  conn,
		Send:  make(chan *Message, 256),
		Hub:   hub,
		rooms: make(map[string]struct{}),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		err := c.Conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error",
					zap.String("conn_id", c.ID),
					zap.Error(err),
				)
			}
			break
		}

		c.Hub.HandleMessage(c, &msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(message); err != nil {
				return
			}
			metrics.RecordMessage("out", message.Event)

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues a message for the client. A full buffer means the
// peer stopped draining; the connection is torn down instead of blocking
// the hub. Messages to an already-closed client are dropped.
func (c *Client) SendMessage(msg *Message) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}

	select {
	case c.Send <- msg:
		c.mu.RUnlock()
	default:
		c.mu.RUnlock()
		logger.Warn("Client send buffer full, closing connection",
			zap.String("conn_id", c.ID),
		)
		c.closeSend()
		// Unregister must not block the caller, which may be the hub loop
		go func() { c.Hub.Unregister <- c }()
	}
}

// SetRole records the identified role for this connection
func (c *Client) SetRole(role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.role = role
}

// Role returns the identified role, or empty for anonymous connections
func (c *Client) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// Rooms returns a snapshot of the rooms this client is in
func (c *Client) Rooms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

func (c *Client) addRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *Client) removeRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

// closeSend closes the send channel exactly once; both the hub and
// SendMessage may race to tear a client down. The closed flag also keeps
// SendMessage from writing to a closed channel.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}
