package chat

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	// MaxMessageBytes bounds the raw payload size before any parsing.
	MaxMessageBytes = 4096

	// MaxTextChars bounds the visible length of a text message.
	MaxTextChars = 2000
)

var (
	ErrMessageTooLarge = errors.New("chat: message exceeds size limit")
	ErrMessageEmpty    = errors.New("chat: message is empty")
	ErrInvalidUTF8     = errors.New("chat: message is not valid UTF-8")
	ErrInvalidType     = errors.New("chat: unknown message type")
)

// ValidateText checks an outgoing text message body. Voice messages carry
// no inline body and skip this path.
func ValidateText(text string) error {
	if len(text) > MaxMessageBytes {
		return ErrMessageTooLarge
	}
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	if strings.TrimSpace(text) == "" {
		return ErrMessageEmpty
	}
	if utf8.RuneCountInString(text) > MaxTextChars {
		return ErrMessageTooLarge
	}
	return nil
}

// ValidateMessage checks a message before it is stored or fanned out.
func ValidateMessage(m *Message) error {
	switch m.Type {
	case TypeText:
		return ValidateText(m.Text)
	case TypeVoice:
		if strings.TrimSpace(m.AudioURL) == "" {
			return ErrMessageEmpty
		}
		return nil
	default:
		return ErrInvalidType
	}
}
