package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewEvent
// ---------------------------------------------------------------------------

func TestNewEventSuccess(t *testing.T) {
	data := map[string]string{"ride_id": "r1"}

	event, err := NewEvent(SubjectRideRequested, "dispatch", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectRideRequested, event.Type)
	assert.Equal(t, "dispatch", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, time.UTC, event.Timestamp.Location())

	// ID should be a valid UUID
	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "r1", decoded["ride_id"])
}

func TestNewEventNilData(t *testing.T) {
	event, err := NewEvent("test.event", "dispatch", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEventUnmarshalableData(t *testing.T) {
	// Channels cannot be marshaled to JSON
	event, err := NewEvent("test", "dispatch", make(chan int))
	assert.Error(t, err)
	assert.Nil(t, event)
}

func TestNewEventUniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		event, err := NewEvent("test", "dispatch", nil)
		require.NoError(t, err)
		assert.False(t, ids[event.ID], "duplicate event ID generated")
		ids[event.ID] = true
	}
}

func TestEventJSONRoundTrip(t *testing.T) {
	original, err := NewEvent(SubjectRideCompleted, "dispatch", RideStatusData{
		RideID: "r9",
		Status: "completed",
		At:     time.Now().UTC().Truncate(time.Millisecond),
	})
	require.NoError(t, err)

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Event
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Type, restored.Type)
	assert.Equal(t, original.Source, restored.Source)
	assert.JSONEq(t, string(original.Data), string(restored.Data))
}

// ---------------------------------------------------------------------------
// Subject constants
// ---------------------------------------------------------------------------

func TestSubjectConstants(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		expected string
	}{
		{"RideRequested", SubjectRideRequested, "dispatch.ride.requested"},
		{"RideOffered", SubjectRideOffered, "dispatch.ride.offered"},
		{"RideAccepted", SubjectRideAccepted, "dispatch.ride.accepted"},
		{"RideFailed", SubjectRideFailed, "dispatch.ride.failed"},
		{"RideCompleted", SubjectRideCompleted, "dispatch.ride.completed"},
		{"RideCancelled", SubjectRideCancelled, "dispatch.ride.cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject)
		})
	}
}

// ---------------------------------------------------------------------------
// Config / Bus
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.URL)
	assert.Equal(t, "dispatch", cfg.Name)
	assert.Equal(t, "DISPATCH", cfg.StreamName)
}

func TestBusConnectedNilConn(t *testing.T) {
	bus := &Bus{}
	assert.False(t, bus.Connected())
}

func TestBusCloseNilConn(t *testing.T) {
	bus := &Bus{}
	// Should not panic
	bus.Close()
}
