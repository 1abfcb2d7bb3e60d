// Package chat provides PostgreSQL-backed storage for room session
// messages, plus the event payloads exchanged over NATS while a session is
// live. Messages are ephemeral: the sweeper purges anything older than
// MessageRetention, so the table is a short rolling window, not an archive.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// MessageRetention is how long a message survives before the sweeper
	// purges it. A TTL policy, not a durability guarantee.
	MessageRetention = 24 * time.Hour

	TypeText  = "text"
	TypeVoice = "voice"
)

// ErrMessageNotFound is returned when a message does not exist or is not
// visible to the caller.
var ErrMessageNotFound = errors.New("chat: message not found")

// Message is one chat message row.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Type      string // TypeText or TypeVoice
	Text      string
	AudioURL  string // opaque reference into external object storage
	Reactions map[string]int
	SentAt    time.Time
}

// Store manages chat messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a message store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists a message and fills in its generated ID and timestamp.
// There is no delivery acknowledgment beyond the insert succeeding.
func (s *Store) Insert(ctx context.Context, m *Message) error {
	const query = `
		INSERT INTO chat_messages (room_id, sender_id, message_type, message_text, audio_url)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		RETURNING id, sent_at`

	err := s.db.QueryRowContext(ctx, query,
		m.RoomID, m.SenderID, m.Type, m.Text, m.AudioURL).
		Scan(&m.ID, &m.SentAt)
	if err != nil {
		return fmt.Errorf("chat: insert message: %w", err)
	}
	return nil
}

// ListSince returns a room's messages sent strictly after the given time,
// oldest first. This is the polling fallback for clients without a live
// NATS subscription, and the history read on session resume.
func (s *Store) ListSince(ctx context.Context, roomID string, after time.Time, limit int) ([]*Message, error) {
	const query = `
		SELECT id, room_id, sender_id, message_type,
		       COALESCE(message_text, ''), COALESCE(audio_url, ''),
		       reactions, sent_at
		FROM chat_messages
		WHERE room_id = $1 AND sent_at > $2 AND is_deleted = FALSE
		ORDER BY sent_at ASC
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, roomID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: list since: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		m := &Message{}
		var reactions []byte
		if err := rows.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Type,
			&m.Text, &m.AudioURL, &reactions, &m.SentAt); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		if len(reactions) > 0 {
			if err := json.Unmarshal(reactions, &m.Reactions); err != nil {
				return nil, fmt.Errorf("chat: decode reactions: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddReaction increments a reaction counter on a message. The reactions
// column is a JSONB map of reaction key to count.
func (s *Store) AddReaction(ctx context.Context, messageID, reaction string) error {
	const query = `
		UPDATE chat_messages
		SET reactions = jsonb_set(
			reactions,
			ARRAY[$2],
			(COALESCE(reactions->>$2, '0')::int + 1)::text::jsonb
		)
		WHERE id = $1 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, messageID, reaction)
	if err != nil {
		return fmt.Errorf("chat: add reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// SoftDelete hides a message. Only the sender may delete their own message;
// the row itself survives until the retention purge.
func (s *Store) SoftDelete(ctx context.Context, messageID, senderID string) error {
	const query = `
		UPDATE chat_messages
		SET is_deleted = TRUE
		WHERE id = $1 AND sender_id = $2`

	res, err := s.db.ExecContext(ctx, query, messageID, senderID)
	if err != nil {
		return fmt.Errorf("chat: soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// PurgeOlderThan hard-deletes messages past the retention window. Run by
// the sweeper; returns the number of rows removed.
func (s *Store) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	const query = `
		DELETE FROM chat_messages
		WHERE sent_at < NOW() - $1::interval`

	res, err := s.db.ExecContext(ctx, query, retention.String())
	if err != nil {
		return 0, fmt.Errorf("chat: purge: %w", err)
	}
	return res.RowsAffected()
}
