package websocket

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/vambora/dispatch/pkg/logger"
)

// Message is the wire envelope for every frame in both directions:
//
//	{"event": "<name>", "data": {...}}
//
// Data is kept raw so each handler can decode its own payload shape.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an outbound message with the payload marshaled into
// the data field. Marshal failures are logged and yield an empty data
// field; outbound payloads are service-owned structs and encoding them
// cannot fail in practice.
func NewMessage(event string, payload interface{}) *Message {
	if payload == nil {
		return &Message{Event: event}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal outbound payload",
			zap.String("event", event),
			zap.Error(err),
		)
		return &Message{Event: event}
	}

	return &Message{Event: event, Data: data}
}

// DecodeData unmarshals the message payload into dst.
func (m *Message) DecodeData(dst interface{}) error {
	if len(m.Data) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(m.Data, dst)
}
