package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Room event types published on the room's NATS subject.
const (
	EventMessage     = "message"
	EventTyping      = "typing"
	EventReaction    = "reaction"
	EventPartnerLeft = "partner_left"
)

// RoomEvent is the payload fanned out to both participants of a room.
// Fields are populated per event type; zero values are omitted on the wire.
type RoomEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	From      string    `json:"from,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Kind      string    `json:"kind,omitempty"` // message type: text or voice
	Text      string    `json:"text,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Reaction  string    `json:"reaction,omitempty"`
	Typing    bool      `json:"typing,omitempty"`
	Ts        time.Time `json:"ts"`
}

// NewMessageEvent builds the fan-out event for a freshly stored message.
func NewMessageEvent(m *Message) RoomEvent {
	return RoomEvent{
		Type:      EventMessage,
		RoomID:    m.RoomID,
		From:      m.SenderID,
		MessageID: m.ID,
		Kind:      m.Type,
		Text:      m.Text,
		AudioURL:  m.AudioURL,
		Ts:        m.SentAt,
	}
}

// Encode serializes the event for publishing.
func (e RoomEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("chat: encode event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event received from a room subject.
func DecodeEvent(data []byte) (RoomEvent, error) {
	var e RoomEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return RoomEvent{}, fmt.Errorf("chat: decode event: %w", err)
	}
	return e, nil
}
