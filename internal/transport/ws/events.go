package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Client → server event types.
const (
	EventJoinChannel  = "joinChannel"
	EventLeaveChannel = "leaveChannel"
)

// Server → client event types.
const (
	EventJoinedChannel  = "joinedChannel"
	EventLeftChannel    = "leftChannel"
	EventNewMessage     = "newMessage"
	EventDeletedMessage = "deletedMessage"
	EventError          = "error"
)

// Event is the envelope for every message on the wire.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

type ChannelPayload struct {
	ChannelID uuid.UUID `json:"channelId"`
}

type DeletedMessagePayload struct {
	MessageID uuid.UUID `json:"messageId"`
	ChannelID uuid.UUID `json:"channelId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// NewEvent builds a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().Unix(),
	}, nil
}
