// Package confession provides storage for the anonymous confession feed:
// text and voice posts, category tagging, boosted placement, and the
// random voice pick behind the listen-to-a-stranger screen.
package confession

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	TypeText  = "text"
	TypeVoice = "voice"

	// MaxContentChars bounds a text confession body.
	MaxContentChars = 5000

	// MaxTitleChars bounds an optional title.
	MaxTitleChars = 120

	// DefaultFeedLimit is the page size when the caller does not specify one.
	DefaultFeedLimit = 20

	// MaxFeedLimit caps a single feed page.
	MaxFeedLimit = 100
)

// Categories a confession can be filed under. Fixed list; "other" is the
// catch-all.
var Categories = []string{
	"relationships", "work", "family", "friends", "anxiety", "depression",
	"success", "failure", "dreams", "fears", "secrets", "love", "betrayal", "other",
}

var (
	ErrNotFound        = errors.New("confession: not found")
	ErrInvalidCategory = errors.New("confession: invalid category")
	ErrEmptyContent    = errors.New("confession: empty content")
	ErrContentTooLong  = errors.New("confession: content too long")
)

// ValidCategory reports whether the category is in the fixed list.
func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Confession is one post in the feed. UserID never leaves the server;
// feed responses expose only the anonymous fields.
type Confession struct {
	ID                string
	UserID            string
	Type              string // TypeText or TypeVoice
	Title             string
	Content           string
	Category          string
	AudioURL          string
	AudioQuality      string
	RecordingDuration int // seconds
	IsBoosted         bool
	CreatedAt         time.Time
}

// Store manages confessions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a confession store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a confession and fills in its generated ID and
// timestamp. Content screening happens in the handler before this call.
func (s *Store) Create(ctx context.Context, c *Confession) error {
	switch {
	case !ValidCategory(c.Category):
		return ErrInvalidCategory
	case c.Type == TypeText && c.Content == "":
		return ErrEmptyContent
	case c.Type == TypeVoice && c.AudioURL == "":
		return ErrEmptyContent
	case len([]rune(c.Content)) > MaxContentChars:
		return ErrContentTooLong
	case len([]rune(c.Title)) > MaxTitleChars:
		return ErrContentTooLong
	}

	const query = `
		INSERT INTO confessions (user_id, confession_type, title, content, category,
		                         audio_url, audio_quality, recording_duration, is_boosted)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5,
		        NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0), $9)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		c.UserID, c.Type, c.Title, c.Content, c.Category,
		c.AudioURL, c.AudioQuality, c.RecordingDuration, c.IsBoosted).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("confession: create: %w", err)
	}
	return nil
}

const confessionColumns = `
	id, user_id, confession_type, COALESCE(title, ''), COALESCE(content, ''),
	category, COALESCE(audio_url, ''), COALESCE(audio_quality, ''),
	COALESCE(recording_duration, 0), is_boosted, created_at`

func scanConfession(row interface{ Scan(...any) error }) (*Confession, error) {
	c := &Confession{}
	err := row.Scan(&c.ID, &c.UserID, &c.Type, &c.Title, &c.Content,
		&c.Category, &c.AudioURL, &c.AudioQuality,
		&c.RecordingDuration, &c.IsBoosted, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single confession, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Confession, error) {
	query := `SELECT` + confessionColumns + `
		FROM confessions
		WHERE id = $1 AND is_deleted = FALSE`

	c, err := scanConfession(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("confession: get: %w", err)
	}
	return c, nil
}

// Feed returns a page of the feed, boosted posts first, then newest.
// An empty category means all categories.
func (s *Store) Feed(ctx context.Context, category string, limit, offset int) ([]*Confession, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	query := `SELECT` + confessionColumns + `
		FROM confessions
		WHERE is_deleted = FALSE AND ($1 = '' OR category = $1)
		ORDER BY is_boosted DESC, created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("confession: feed: %w", err)
	}
	defer rows.Close()

	var out []*Confession
	for rows.Next() {
		c, err := scanConfession(rows)
		if err != nil {
			return nil, fmt.Errorf("confession: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Search returns text confessions whose title or body matches the query,
// newest first.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]*Confession, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	query := `SELECT` + confessionColumns + `
		FROM confessions
		WHERE is_deleted = FALSE
		  AND (title ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, term, limit)
	if err != nil {
		return nil, fmt.Errorf("confession: search: %w", err)
	}
	defer rows.Close()

	var out []*Confession
	for rows.Next() {
		c, err := scanConfession(rows)
		if err != nil {
			return nil, fmt.Errorf("confession: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RandomVoice returns one random, non-deleted voice confession, excluding
// the listener's own posts. ErrNotFound when no voice posts exist.
func (s *Store) RandomVoice(ctx context.Context, excludeUserID string) (*Confession, error) {
	query := `SELECT` + confessionColumns + `
		FROM confessions
		WHERE is_deleted = FALSE AND confession_type = 'voice'
		  AND ($1 = '' OR user_id IS DISTINCT FROM $1::uuid)
		ORDER BY random()
		LIMIT 1`

	c, err := scanConfession(s.db.QueryRowContext(ctx, query, excludeUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("confession: random voice: %w", err)
	}
	return c, nil
}

// SetBoosted flips a confession's boosted placement. Admin-only path.
func (s *Store) SetBoosted(ctx context.Context, id string, boosted bool) error {
	const query = `
		UPDATE confessions
		SET is_boosted = $2, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, id, boosted)
	if err != nil {
		return fmt.Errorf("confession: set boosted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete hides a confession. The author or an admin may delete;
// ownership is checked by the caller for the author path.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	const query = `
		UPDATE confessions
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = FALSE`

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("confession: soft delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
