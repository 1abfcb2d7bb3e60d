// Package report provides PostgreSQL-backed storage for the moderation
// queue. A report ties a piece of content (confession, comment, or chat
// message) to a reason and, for chat, a snapshot of the recent
// conversation so moderators can see context.
package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Content types a report can target. Matches the CHECK constraint on the
// content_moderation table.
const (
	ContentConfession  = "confession"
	ContentComment     = "comment"
	ContentChatMessage = "chat_message"
)

// Queue states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRemoved  = "removed"
)

// validReasons is the set of allowed reason values.
var validReasons = map[string]bool{
	"harassment": true,
	"spam":       true,
	"explicit":   true,
	"self_harm":  true,
	"other":      true,
}

var (
	ErrInvalidReason  = errors.New("report: invalid reason")
	ErrInvalidContent = errors.New("report: invalid content type")
	ErrNotFound       = errors.New("report: not found")
)

// Report is one moderation queue entry.
type Report struct {
	ID          string
	ContentType string
	ContentID   string
	Reason      string
	ReportedBy  string
	Status      string
	ModeratorID string
	ModeratedAt time.Time
	Snapshot    json.RawMessage
	CreatedAt   time.Time
}

// Store manages the moderation queue in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a report store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// File inserts a report. snapshot may be nil; for chat reports it carries
// the recent messages captured in memory at report time.
func (s *Store) File(ctx context.Context, contentType, contentID, reason, reportedBy string, snapshot any) (*Report, error) {
	switch contentType {
	case ContentConfession, ContentComment, ContentChatMessage:
	default:
		return nil, ErrInvalidContent
	}
	if !validReasons[reason] {
		return nil, ErrInvalidReason
	}

	var snapshotJSON []byte
	if snapshot != nil {
		var err error
		snapshotJSON, err = json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("report: marshal snapshot: %w", err)
		}
	}

	r := &Report{
		ContentType: contentType,
		ContentID:   contentID,
		Reason:      reason,
		ReportedBy:  reportedBy,
		Status:      StatusPending,
		Snapshot:    snapshotJSON,
	}

	const query = `
		INSERT INTO content_moderation (content_type, content_id, reason, reported_by, snapshot)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		contentType, contentID, reason, reportedBy, snapshotJSON).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("report: insert: %w", err)
	}
	return r, nil
}

// ListPending returns the oldest unresolved reports, up to limit.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = 50
	}

	const query = `
		SELECT id, content_type, content_id, reason,
		       COALESCE(reported_by::text, ''), status,
		       COALESCE(moderator_id::text, ''),
		       COALESCE(moderated_at, 'epoch'::timestamptz),
		       COALESCE(snapshot, 'null'::jsonb), created_at
		FROM content_moderation
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("report: list pending: %w", err)
	}
	defer rows.Close()

	var out []*Report
	for rows.Next() {
		r := &Report{}
		if err := rows.Scan(&r.ID, &r.ContentType, &r.ContentID, &r.Reason,
			&r.ReportedBy, &r.Status, &r.ModeratorID, &r.ModeratedAt,
			&r.Snapshot, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("report: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Resolve records a moderator decision on a pending report. status must be
// approved or removed; removal of the underlying content is the caller's
// responsibility.
func (s *Store) Resolve(ctx context.Context, reportID, moderatorID, status string) error {
	if status != StatusApproved && status != StatusRemoved {
		return fmt.Errorf("report: invalid resolution %q", status)
	}

	const query = `
		UPDATE content_moderation
		SET status = $2, moderator_id = $3, moderated_at = NOW()
		WHERE id = $1 AND status = 'pending'`

	res, err := s.db.ExecContext(ctx, query, reportID, status, moderatorID)
	if err != nil {
		return fmt.Errorf("report: resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecent returns how many reports targeted a piece of content within
// the window. Supports auto-hide thresholds on the feed.
func (s *Store) CountRecent(ctx context.Context, contentID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM content_moderation
		WHERE content_id = $1
		  AND created_at >= NOW() - $2::interval`

	var count int
	err := s.db.QueryRowContext(ctx, query, contentID, window.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("report: count recent: %w", err)
	}
	return count, nil
}
