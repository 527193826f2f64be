package websocket

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
	"github.com/vambora/dispatch/pkg/metrics"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(*Client, *Message)

// Hub maintains the set of active clients and broadcasts messages.
// Clients are keyed by connection ID and may belong to any number of
// named rooms ("passageiros", "ride:<id>", ...).
type Hub struct {
	// Registered clients by connection ID
	clients map[string]*Client

	// Clients grouped by room name
	rooms map[string]map[string]*Client

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// Broadcast messages to targets
	Broadcast chan *BroadcastMessage

	// Message handlers by event name
	handlers map[string]MessageHandler

	// Called after a client is removed, outside the hub lock
	onDisconnect func(*Client)

	mu sync.RWMutex
}

// Broadcast targets.
const (
	TargetConn = "conn"
	TargetRoom = "room"
	TargetAll  = "all"
)

// BroadcastMessage represents a message to be broadcast
type BroadcastMessage struct {
	Target   string   // TargetConn, TargetRoom or TargetAll
	TargetID string   // Connection ID or room name
	Message  *Message // Message to send
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan *BroadcastMessage, 256),
		handlers:   make(map[string]MessageHandler),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	logger.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case broadcast := <-h.Broadcast:
			h.broadcastMessage(broadcast)
		}
	}
}

// SetOnDisconnect installs a hook invoked after a client is removed from
// the hub. The hook runs outside the hub lock, so it may call back into
// hub methods.
func (h *Hub) SetOnDisconnect(fn func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = fn
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()

	// Replace existing client with same ID
	if existing, ok := h.clients[client.ID]; ok {
		existing.closeSend()
	}
	h.clients[client.ID] = client

	h.mu.Unlock()

	metrics.WebSocketConnections.Inc()
	logger.Debug("Client registered", zap.String("conn_id", client.ID))
}

// unregisterClient removes a client from the hub and every room
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	_, known := h.clients[client.ID]
	if known {
		delete(h.clients, client.ID)

		for _, room := range client.Rooms() {
			h.removeFromRoomLocked(client.ID, room)
		}

		client.closeSend()
	}

	onDisconnect := h.onDisconnect
	h.mu.Unlock()

	if !known {
		return
	}

	metrics.WebSocketConnections.Dec()
	logger.Debug("Client unregistered", zap.String("conn_id", client.ID))

	if onDisconnect != nil {
		onDisconnect(client)
	}
}

// broadcastMessage sends a message to target clients
func (h *Hub) broadcastMessage(broadcast *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch broadcast.Target {
	case TargetConn:
		if client, ok := h.clients[broadcast.TargetID]; ok {
			client.SendMessage(broadcast.Message)
		}

	case TargetRoom:
		if room, ok := h.rooms[broadcast.TargetID]; ok {
			for _, client := range room {
				client.SendMessage(broadcast.Message)
			}
		}

	case TargetAll:
		for _, client := range h.clients {
			client.SendMessage(broadcast.Message)
		}
	}
}

// HandleMessage routes incoming messages to the registered handler.
// Handler panics are recovered so one bad frame cannot take down a
// connection's read loop.
func (h *Hub) HandleMessage(client *Client, msg *Message) {
	h.mu.RLock()
	handler, exists := h.handlers[msg.Event]
	h.mu.RUnlock()

	if !exists {
		logger.Debug("No handler for event",
			zap.String("event", msg.Event),
			zap.String("conn_id", client.ID),
		)
		metrics.RecordProtocolDrop(msg.Event)
		return
	}

	metrics.RecordMessage("in", msg.Event)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Handler panic recovered",
				zap.String("event", msg.Event),
				zap.String("conn_id", client.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	handler(client, msg)
}

// RegisterHandler registers a message handler for an event name
func (h *Hub) RegisterHandler(event string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[event] = handler
}

// JoinRoom adds a client to a room, creating the room if needed
func (h *Hub) JoinRoom(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[clientID]
	if !ok {
		return
	}

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*Client)
	}

	h.rooms[room][clientID] = client
	client.addRoom(room)

	logger.Debug("Client joined room",
		zap.String("conn_id", clientID),
		zap.String("room", room),
	)
}

// LeaveRoom removes a client from a room
func (h *Hub) LeaveRoom(clientID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoomLocked(clientID, room)

	if client, ok := h.clients[clientID]; ok {
		client.removeRoom(room)
	}
}

// EvictRoom removes every member and deletes the room. Connections stay
// open; only the room membership is dropped.
func (h *Hub) EvictRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	for _, client := range members {
		client.removeRoom(room)
	}
	delete(h.rooms, room)

	logger.Debug("Room evicted", zap.String("room", room))
}

func (h *Hub) removeFromRoomLocked(clientID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, clientID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// InRoom reports whether a client is a member of a room
func (h *Hub) InRoom(clientID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, in := members[clientID]
	return in
}

// RoomMembers returns all clients in a room
func (h *Hub) RoomMembers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0)
	if members, ok := h.rooms[room]; ok {
		for _, client := range members {
			clients = append(clients, client)
		}
	}
	return clients
}

// SendToConn sends a message to a specific connection
func (h *Hub) SendToConn(clientID string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   TargetConn,
		TargetID: clientID,
		Message:  msg,
	}
}

// SendToRoom sends a message to all clients in a room
func (h *Hub) SendToRoom(room string, msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:   TargetRoom,
		TargetID: room,
		Message:  msg,
	}
}

// SendToAll broadcasts a message to all connected clients
func (h *Hub) SendToAll(msg *Message) {
	h.Broadcast <- &BroadcastMessage{
		Target:  TargetAll,
		Message: msg,
	}
}

// GetClient returns a client by connection ID
func (h *Hub) GetClient(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[clientID]
	return client, ok
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomCount returns the number of active rooms
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
