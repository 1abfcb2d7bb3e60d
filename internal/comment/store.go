// Package comment provides storage for comments on confessions.
package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxContentChars bounds a comment body.
	MaxContentChars = 1000

	// DefaultListLimit is the page size when the caller does not give one.
	DefaultListLimit = 50
)

var (
	ErrNotFound     = errors.New("comment: not found")
	ErrEmptyContent = errors.New("comment: empty content")
	ErrTooLong      = errors.New("comment: content too long")
)

// Comment is one comment row.
type Comment struct {
	ID           string
	ConfessionID string
	UserID       string
	Content      string
	CreatedAt    time.Time
}

// Store manages comments in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a comment store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a comment and fills in its generated ID and timestamp.
func (s *Store) Create(ctx context.Context, c *Comment) error {
	if c.Content == "" {
		return ErrEmptyContent
	}
	if len([]rune(c.Content)) > MaxContentChars {
		return ErrTooLong
	}

	const query = `
		INSERT INTO comments (confession_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query, c.ConfessionID, c.UserID, c.Content).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("comment: create: %w", err)
	}
	return nil
}

// List returns a confession's comments oldest first, so threads read top
// to bottom.
func (s *Store) List(ctx context.Context, confessionID string, limit, offset int) ([]*Comment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	const query = `
		SELECT id, confession_id, user_id, content, created_at
		FROM comments
		WHERE confession_id = $1 AND is_deleted = FALSE
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, confessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("comment: list: %w", err)
	}
	defer rows.Close()

	var out []*Comment
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.ConfessionID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("comment: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Count returns the visible comment total for a confession.
func (s *Store) Count(ctx context.Context, confessionID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM comments
		WHERE confession_id = $1 AND is_deleted = FALSE`

	var n int
	if err := s.db.QueryRowContext(ctx, query, confessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("comment: count: %w", err)
	}
	return n, nil
}

// SoftDelete hides a comment. Only the author may delete their own.
func (s *Store) SoftDelete(ctx context.Context, commentID, userID string) error {
	const query = `
		UPDATE comments
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, commentID, userID)
	if err != nil {
		return fmt.Errorf("comment: soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
