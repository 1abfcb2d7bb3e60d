// Package protocol defines the WebSocket message types exchanged between
// the client and the gateway. All messages are JSON with a "type"
// discriminator in a common envelope.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client -> Server message types.
const (
	TypeFindMatch     = "find_match"
	TypeCancelMatch   = "cancel_match"
	TypeMessage       = "message"
	TypeTyping        = "typing"
	TypeReact         = "react"
	TypeDeleteMessage = "delete_message"
	TypeEndChat       = "end_chat"
	TypeReport        = "report"
	TypePing          = "ping"
)

// Server -> Client message types.
const (
	TypeSessionReady     = "session_ready"
	TypeSearchStarted    = "search_started"
	TypeMatchFound       = "match_found"
	TypeMatchTimeout     = "match_timeout"
	TypePartnerLeft      = "partner_left"
	TypeRateLimited      = "rate_limited"
	TypeBanned           = "banned"
	TypeError            = "error"
	TypePong             = "pong"
	TypeConfessionPosted = "confession_posted"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the full raw bytes and extracts only the "type"
// field so the rest of the payload can be decoded later.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// FindMatchMsg starts a partner search. Mode is "random" or "filtered";
// target_gender applies only to filtered mode.
type FindMatchMsg struct {
	Type         string `json:"type"`
	Mode         string `json:"mode"`
	TargetGender string `json:"target_gender,omitempty"`
}

// CancelMatchMsg abandons an in-progress search.
type CancelMatchMsg struct {
	Type string `json:"type"`
}

// ChatMsg is a message sent within a room. Kind is "text" or "voice";
// voice messages carry an audio reference instead of text.
type ChatMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// TypingMsg indicates whether the client is currently typing.
type TypingMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

// ReactMsg adds an emoji reaction to a message in the room.
type ReactMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// DeleteMessageMsg retracts one of the sender's own messages.
type DeleteMessageMsg struct {
	Type      string `json:"type"`
	RoomID    string `json:"room_id"`
	MessageID string `json:"message_id"`
}

// EndChatMsg ends the room session for both participants.
type EndChatMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// ReportMsg reports the chat partner.
type ReportMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// SessionReadyMsg confirms the connection is established and authenticated.
type SessionReadyMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Online int64  `json:"online"`
}

// SearchStartedMsg confirms the search began, with the timeout in seconds.
type SearchStartedMsg struct {
	Type    string `json:"type"`
	Timeout int    `json:"timeout"`
}

// MatchFoundMsg announces a paired room. The partner stays anonymous; only
// the room handle is shared.
type MatchFoundMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	Mode   string `json:"mode"`
}

// MatchTimeoutMsg reports that no partner appeared within the window.
type MatchTimeoutMsg struct {
	Type string `json:"type"`
}

// PartnerLeftMsg reports that the partner disconnected or ended the chat.
type PartnerLeftMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// RateLimitedMsg tells the client it is throttled.
type RateLimitedMsg struct {
	Type       string `json:"type"`
	RetryAfter int    `json:"retry_after"`
}

// BannedMsg tells the client it is banned, with seconds remaining.
type BannedMsg struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
	Reason   string `json:"reason"`
}

// ErrorMsg communicates an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client
// message. Returns the type string, the decoded struct, and any error.
// Unknown and server-only types are errors.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeFindMatch:
		var m FindMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeCancelMatch:
		var m CancelMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReact:
		var m ReactMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeDeleteMessage:
		var m DeleteMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEndChat:
		var m EndChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReport:
		var m ReportMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage JSON-encodes a server message with msgType injected
// under the "type" key.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
