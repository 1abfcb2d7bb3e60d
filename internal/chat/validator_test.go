package chat

import (
	"strings"
	"testing"
)

func TestValidateText(t *testing.T) {
	cases := []struct {
		name string
		text string
		want error
	}{
		{"ok", "hello there", nil},
		{"empty", "", ErrMessageEmpty},
		{"whitespace only", "   \t\n ", ErrMessageEmpty},
		{"too many bytes", strings.Repeat("x", MaxMessageBytes+1), ErrMessageTooLarge},
		{"too many runes", strings.Repeat("ä", MaxTextChars+1), ErrMessageTooLarge},
		{"invalid utf8", "abc\xff\xfe", ErrInvalidUTF8},
		{"multibyte under limit", strings.Repeat("ä", MaxTextChars), nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateText(tc.text); got != tc.want {
				t.Errorf("ValidateText(%q len=%d) = %v, want %v", tc.name, len(tc.text), got, tc.want)
			}
		})
	}
}

func TestValidateMessage(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want error
	}{
		{"text ok", Message{Type: TypeText, Text: "hi"}, nil},
		{"text empty", Message{Type: TypeText}, ErrMessageEmpty},
		{"voice ok", Message{Type: TypeVoice, AudioURL: "https://cdn.example.com/a.ogg"}, nil},
		{"voice without audio", Message{Type: TypeVoice}, ErrMessageEmpty},
		{"unknown type", Message{Type: "video"}, ErrInvalidType},
		{"missing type", Message{Text: "hi"}, ErrInvalidType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidateMessage(&tc.msg); got != tc.want {
				t.Errorf("ValidateMessage(%s) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}
