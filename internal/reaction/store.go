// Package reaction manages per-user reactions on confessions and comments.
// A reaction toggles: reacting with a type the user already set removes
// it, anything else inserts. One row per (content, user, type).
package reaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Types of reactions users can leave. Matches the database CHECK constraint.
var Types = []string{"heart", "thumbs_up", "thumbs_down", "laugh", "sad", "angry"}

var ErrInvalidType = errors.New("reaction: invalid reaction type")

const uniqueViolation = "23505"

// ValidType reports whether the reaction type is one of the six allowed.
func ValidType(reactionType string) bool {
	for _, t := range Types {
		if t == reactionType {
			return true
		}
	}
	return false
}

// Store manages reaction rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a reaction store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ToggleConfession toggles a user's reaction on a confession. Returns true
// when the reaction is now set, false when the call removed it.
func (s *Store) ToggleConfession(ctx context.Context, confessionID, userID, reactionType string) (bool, error) {
	return s.toggle(ctx, "user_reactions", "confession_id", confessionID, userID, reactionType)
}

// ToggleComment toggles a user's reaction on a comment.
func (s *Store) ToggleComment(ctx context.Context, commentID, userID, reactionType string) (bool, error) {
	return s.toggle(ctx, "user_comment_reactions", "comment_id", commentID, userID, reactionType)
}

// toggle deletes an existing row first; if nothing was there, it inserts.
// The unique constraint resolves the race where two toggles insert at
// once: the loser's conflict reads as the reaction already being set.
func (s *Store) toggle(ctx context.Context, table, idColumn, contentID, userID, reactionType string) (bool, error) {
	if !ValidType(reactionType) {
		return false, ErrInvalidType
	}

	del := fmt.Sprintf(
		`DELETE FROM %s WHERE %s = $1 AND user_id = $2 AND reaction_type = $3`,
		table, idColumn)

	res, err := s.db.ExecContext(ctx, del, contentID, userID, reactionType)
	if err != nil {
		return false, fmt.Errorf("reaction: toggle delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return false, nil
	}

	ins := fmt.Sprintf(
		`INSERT INTO %s (%s, user_id, reaction_type) VALUES ($1, $2, $3)`,
		table, idColumn)

	if _, err := s.db.ExecContext(ctx, ins, contentID, userID, reactionType); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return true, nil
		}
		return false, fmt.Errorf("reaction: toggle insert: %w", err)
	}
	return true, nil
}

// ConfessionCounts returns reaction counts per type for a confession.
func (s *Store) ConfessionCounts(ctx context.Context, confessionID string) (map[string]int, error) {
	return s.counts(ctx, "user_reactions", "confession_id", confessionID)
}

// CommentCounts returns reaction counts per type for a comment.
func (s *Store) CommentCounts(ctx context.Context, commentID string) (map[string]int, error) {
	return s.counts(ctx, "user_comment_reactions", "comment_id", commentID)
}

func (s *Store) counts(ctx context.Context, table, idColumn, contentID string) (map[string]int, error) {
	query := fmt.Sprintf(
		`SELECT reaction_type, COUNT(*) FROM %s WHERE %s = $1 GROUP BY reaction_type`,
		table, idColumn)

	rows, err := s.db.QueryContext(ctx, query, contentID)
	if err != nil {
		return nil, fmt.Errorf("reaction: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reactionType string
		var count int
		if err := rows.Scan(&reactionType, &count); err != nil {
			return nil, fmt.Errorf("reaction: scan: %w", err)
		}
		out[reactionType] = count
	}
	return out, rows.Err()
}

// UserReactions returns the reaction types a user has set on a confession.
// Feeds the client's highlighted-button state.
func (s *Store) UserReactions(ctx context.Context, confessionID, userID string) ([]string, error) {
	const query = `
		SELECT reaction_type FROM user_reactions
		WHERE confession_id = $1 AND user_id = $2`

	rows, err := s.db.QueryContext(ctx, query, confessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("reaction: user reactions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("reaction: scan: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
