package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientMessage_FindMatch(t *testing.T) {
	input := []byte(`{"type":"find_match","mode":"filtered","target_gender":"female"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindMatch {
		t.Fatalf("expected type %q, got %q", TypeFindMatch, msgType)
	}

	fm, ok := msg.(FindMatchMsg)
	if !ok {
		t.Fatalf("expected FindMatchMsg, got %T", msg)
	}
	if fm.Mode != "filtered" {
		t.Errorf("expected mode %q, got %q", "filtered", fm.Mode)
	}
	if fm.TargetGender != "female" {
		t.Errorf("expected target_gender %q, got %q", "female", fm.TargetGender)
	}
}

func TestParseClientMessage_ChatMsg(t *testing.T) {
	input := []byte(`{"type":"message","room_id":"abc-123","kind":"text","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeMessage {
		t.Fatalf("expected type %q, got %q", TypeMessage, msgType)
	}

	cm, ok := msg.(ChatMsg)
	if !ok {
		t.Fatalf("expected ChatMsg, got %T", msg)
	}
	if cm.RoomID != "abc-123" {
		t.Errorf("expected room_id %q, got %q", "abc-123", cm.RoomID)
	}
	if cm.Kind != "text" || cm.Text != "Hello!" {
		t.Errorf("unexpected payload: %+v", cm)
	}
}

func TestParseClientMessage_VoiceMsg(t *testing.T) {
	input := []byte(`{"type":"message","room_id":"abc-123","kind":"voice","audio_url":"voice/xyz.webm"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cm := msg.(ChatMsg)
	if cm.Kind != "voice" || cm.AudioURL != "voice/xyz.webm" {
		t.Errorf("unexpected payload: %+v", cm)
	}
}

func TestParseClientMessage_React(t *testing.T) {
	input := []byte(`{"type":"react","room_id":"r1","message_id":"m1","reaction":"heart"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeReact {
		t.Fatalf("expected type %q, got %q", TypeReact, msgType)
	}
	rm := msg.(ReactMsg)
	if rm.RoomID != "r1" || rm.MessageID != "m1" || rm.Reaction != "heart" {
		t.Errorf("unexpected payload: %+v", rm)
	}
}

func TestParseClientMessage_Report(t *testing.T) {
	input := []byte(`{"type":"report","room_id":"r1","reason":"harassment"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rm := msg.(ReportMsg)
	if rm.RoomID != "r1" || rm.Reason != "harassment" {
		t.Errorf("unexpected payload: %+v", rm)
	}
}

func TestParseClientMessage_Errors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"invalid json", `{not json`},
		{"missing type", `{"room_id":"r1"}`},
		{"empty type", `{"type":""}`},
		{"unknown type", `{"type":"teleport"}`},
		{"server-only type", `{"type":"match_found","room_id":"r1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := ParseClientMessage([]byte(tc.input)); err == nil {
				t.Errorf("ParseClientMessage(%q) succeeded, want error", tc.input)
			}
		})
	}
}

func TestNewServerMessage_MatchFound(t *testing.T) {
	data, err := NewServerMessage(TypeMatchFound, MatchFoundMsg{RoomID: "uuid-456", Mode: "random"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypeMatchFound {
		t.Errorf("expected type %q, got %v", TypeMatchFound, m["type"])
	}
	if m["room_id"] != "uuid-456" {
		t.Errorf("expected room_id %q, got %v", "uuid-456", m["room_id"])
	}
	if m["mode"] != "random" {
		t.Errorf("expected mode %q, got %v", "random", m["mode"])
	}
}

func TestNewServerMessage_TypeOverridesPayload(t *testing.T) {
	// The payload's own Type field must not leak a different type string.
	data, err := NewServerMessage(TypePong, PongMsg{Type: "bogus"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if m["type"] != TypePong {
		t.Errorf("expected type %q, got %v", TypePong, m["type"])
	}
}

func TestEnvelope_PreservesRaw(t *testing.T) {
	input := []byte(`{"type":"typing","room_id":"r9","is_typing":true}`)

	var env Envelope
	if err := json.Unmarshal(input, &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Type != TypeTyping {
		t.Errorf("expected type %q, got %q", TypeTyping, env.Type)
	}

	var tm TypingMsg
	if err := json.Unmarshal(env.Raw, &tm); err != nil {
		t.Fatalf("raw payload did not round-trip: %v", err)
	}
	if tm.RoomID != "r9" || !tm.IsTyping {
		t.Errorf("unexpected payload: %+v", tm)
	}
}
