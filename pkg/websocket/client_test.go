package websocket

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewClient tests client creation
func TestNewClient(t *testing.T) {
	hub := NewHub()

	client := NewClient("conn-123", nil, hub)

	assert.NotNil(t, client)
	assert.Equal(t, "conn-123", client.ID)
	assert.Equal(t, hub, client.Hub)
	assert.NotNil(t, client.Send)
	assert.Equal(t, "", client.Role())
	assert.Empty(t, client.Rooms())
}

// TestClientSetRole tests role assignment after identification
func TestClientSetRole(t *testing.T) {
	hub := NewHub()
	client := NewClient("conn-123", nil, hub)

	assert.Equal(t, "", client.Role())

	client.SetRole(RoleDriver)
	assert.Equal(t, RoleDriver, client.Role())

	client.SetRole(RolePassenger)
	assert.Equal(t, RolePassenger, client.Role())
}

// TestClientSendMessage tests queueing a message for the client
func TestClientSendMessage(t *testing.T) {
	hub := NewHub()
	client := NewClient("conn-123", nil, hub)

	msg := NewMessage("status", map[string]interface{}{"ok": true})
	client.SendMessage(msg)

	select {
	case received := <-client.Send:
		assert.Equal(t, "status", received.Event)

		var payload struct {
			OK bool `json:"ok"`
		}
		require.NoError(t, received.DecodeData(&payload))
		assert.True(t, payload.OK)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Message not received in channel")
	}
}

// TestClientSendMessageChannelFull tests teardown on a full send buffer
func TestClientSendMessageChannelFull(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient("conn-123", nil, hub)
	client.Send = make(chan *Message, 2)

	hub.Register <- client
	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 2; i++ {
		client.SendMessage(NewMessage("test", map[string]interface{}{"count": i}))
	}

	// Overflow closes the channel and unregisters the client
	client.SendMessage(NewMessage("overflow", nil))

	assert.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, time.Second, 5*time.Millisecond)

	// Buffered messages drain, then the channel reports closed
	<-client.Send
	<-client.Send
	_, open := <-client.Send
	assert.False(t, open)

	// A second overflow must not panic on double close
	require.NotPanics(t, func() {
		client.SendMessage(NewMessage("again", nil))
	})
}

// TestClientConcurrentRoleAccess tests thread-safe role access
func TestClientConcurrentRoleAccess(t *testing.T) {
	hub := NewHub()
	client := NewClient("conn-123", nil, hub)

	done := make(chan bool)

	for i := 0; i < 10; i++ {
		go func(id int) {
			client.SetRole(fmt.Sprintf("role-%d", id))
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		go func() {
			_ = client.Role()
			done <- true
		}()
	}

	for i := 0; i < 20; i++ {
		<-done
	}
}

// TestClientChannelBuffering tests send channel capacity
func TestClientChannelBuffering(t *testing.T) {
	hub := NewHub()
	client := NewClient("conn-123", nil, hub)

	assert.Equal(t, 256, cap(client.Send))

	for i := 0; i < 256; i++ {
		client.SendMessage(NewMessage("test", map[string]interface{}{"count": i}))
	}

	assert.Equal(t, 256, len(client.Send))
}

// TestNewMessage tests outbound message construction
func TestNewMessage(t *testing.T) {
	type payload struct {
		RideID string  `json:"rideId"`
		Fare   float64 `json:"valor"`
	}

	msg := NewMessage("corrida_disponivel", payload{RideID: "ride-1", Fare: 23.5})

	assert.Equal(t, "corrida_disponivel", msg.Event)
	assert.JSONEq(t, `{"rideId":"ride-1","valor":23.5}`, string(msg.Data))

	var decoded payload
	require.NoError(t, msg.DecodeData(&decoded))
	assert.Equal(t, "ride-1", decoded.RideID)
	assert.Equal(t, 23.5, decoded.Fare)
}

// TestNewMessageNilPayload tests messages without a data field
func TestNewMessageNilPayload(t *testing.T) {
	msg := NewMessage("ping", nil)

	assert.Equal(t, "ping", msg.Event)
	assert.Empty(t, msg.Data)

	var decoded map[string]interface{}
	require.NoError(t, msg.DecodeData(&decoded))
	assert.Empty(t, decoded)
}
