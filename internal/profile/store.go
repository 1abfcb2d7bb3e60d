// Package profile provides storage for user accounts. Profiles hold only
// what matching and billing need; nothing here is shown to chat partners.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Genders accepted on a profile. Matches the database CHECK constraint.
var Genders = []string{"male", "female", "other", "prefer_not_to_say"}

var (
	ErrNotFound      = errors.New("profile: user not found")
	ErrInvalidGender = errors.New("profile: invalid gender")
	ErrUsernameTaken = errors.New("profile: username taken")
)

const uniqueViolation = "23505"

// ValidGender reports whether the gender value is accepted.
func ValidGender(gender string) bool {
	for _, g := range Genders {
		if g == gender {
			return true
		}
	}
	return false
}

// User is one account row.
type User struct {
	ID                 string
	Username           string
	Email              string
	Gender             string
	Country            string
	AvatarURL          string
	IsAdmin            bool
	IsVerified         bool
	SubscriptionType   string
	LanguagePreference string
	LastSeen           time.Time
	CreatedAt          time.Time
}

// Store manages user rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a profile store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new user and fills in the generated ID. All fields are
// optional at signup; the app works without a completed profile.
func (s *Store) Create(ctx context.Context, u *User) error {
	if u.Gender != "" && !ValidGender(u.Gender) {
		return ErrInvalidGender
	}

	const query = `
		INSERT INTO users (username, email, gender, country, language_preference)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), COALESCE(NULLIF($5, ''), 'en'))
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		u.Username, u.Email, u.Gender, u.Country, u.LanguagePreference).
		Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("profile: create: %w", err)
	}
	return nil
}

// Get returns a user by ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, COALESCE(username, ''), COALESCE(email, ''), COALESCE(gender, ''),
		       COALESCE(country, ''), COALESCE(avatar_url, ''), is_admin, is_verified,
		       subscription_type, language_preference,
		       COALESCE(last_seen, 'epoch'::timestamptz), created_at
		FROM users
		WHERE id = $1`

	u := &User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.Gender, &u.Country, &u.AvatarURL,
		&u.IsAdmin, &u.IsVerified, &u.SubscriptionType, &u.LanguagePreference,
		&u.LastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get: %w", err)
	}
	return u, nil
}

// SetGender updates the gender used for filtered matching.
func (s *Store) SetGender(ctx context.Context, id, gender string) error {
	if !ValidGender(gender) {
		return ErrInvalidGender
	}

	const query = `UPDATE users SET gender = $2, updated_at = NOW() WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, gender)
	if err != nil {
		return fmt.Errorf("profile: set gender: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Update changes the editable profile fields.
func (s *Store) Update(ctx context.Context, u *User) error {
	if u.Gender != "" && !ValidGender(u.Gender) {
		return ErrInvalidGender
	}

	const query = `
		UPDATE users
		SET username = NULLIF($2, ''),
		    gender = NULLIF($3, ''),
		    country = NULLIF($4, ''),
		    avatar_url = NULLIF($5, ''),
		    language_preference = COALESCE(NULLIF($6, ''), language_preference),
		    updated_at = NOW()
		WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		u.ID, u.Username, u.Gender, u.Country, u.AvatarURL, u.LanguagePreference)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("profile: update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchSeen stamps last_seen and the online flag. Called on connect and
// disconnect.
func (s *Store) TouchSeen(ctx context.Context, id string, online bool) error {
	const query = `
		UPDATE users SET is_online = $2, last_seen = NOW(), updated_at = NOW()
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, id, online); err != nil {
		return fmt.Errorf("profile: touch seen: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
