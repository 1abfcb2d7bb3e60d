package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code raised when the
// one-waiting-room-per-user partial unique index rejects an insert.
const uniqueViolation = "23505"

// Store manages chat room records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a room store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new waiting room for creatorID. The second seat is empty
// and the room is inactive until claimed. Returns ErrAlreadyWaiting if the
// creator already has an open waiting room.
func (s *Store) Create(ctx context.Context, creatorID, mode, targetGender string) (*Room, error) {
	const query = `
		INSERT INTO chat_rooms (participant_a, mode, target_gender)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at`

	r := &Room{
		ParticipantA: creatorID,
		Mode:         mode,
		TargetGender: targetGender,
	}
	err := s.db.QueryRowContext(ctx, query, creatorID, mode, targetGender).
		Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrAlreadyWaiting
		}
		return nil, fmt.Errorf("room: create: %w", err)
	}
	return r, nil
}

// FindOldestWaiting returns the oldest waiting room matching the filter,
// excluding rooms created by excludeUser. Returns nil if the waiting pool
// has no candidate.
//
// For filtered mode the search is mutual: the room must be looking for the
// searcher's gender (filter.TargetGender), and when filter.CreatorGender is
// set the room's creator must have that gender.
func (s *Store) FindOldestWaiting(ctx context.Context, excludeUser string, filter WaitingFilter) (*Room, error) {
	const query = `
		SELECT r.id, r.participant_a, r.is_active, r.mode,
		       COALESCE(r.target_gender, ''), r.created_at
		FROM chat_rooms r
		JOIN users u ON u.id = r.participant_a
		WHERE r.participant_b IS NULL
		  AND r.is_active = FALSE
		  AND r.participant_a <> $1
		  AND r.mode = $2
		  AND ($3 = '' OR r.target_gender = $3)
		  AND ($4 = '' OR u.gender = $4)
		ORDER BY r.created_at ASC
		LIMIT 1`

	r := &Room{}
	err := s.db.QueryRowContext(ctx, query,
		excludeUser, filter.Mode, filter.TargetGender, filter.CreatorGender).
		Scan(&r.ID, &r.ParticipantA, &r.IsActive, &r.Mode, &r.TargetGender, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("room: find waiting: %w", err)
	}
	return r, nil
}

// Claim atomically fills the second seat of a waiting room and activates it.
// The WHERE clause is the compare-and-swap precondition: only one concurrent
// claimer can observe participant_b IS NULL, so at most one caller succeeds.
// Losers get ErrClaimConflict.
func (s *Store) Claim(ctx context.Context, roomID, userID string) (*Room, error) {
	const query = `
		UPDATE chat_rooms
		SET participant_b = $2, is_active = TRUE
		WHERE id = $1
		  AND participant_b IS NULL
		  AND participant_a <> $2
		RETURNING id, participant_a, participant_b, is_active, mode,
		          COALESCE(target_gender, ''), created_at`

	r := &Room{}
	err := s.db.QueryRowContext(ctx, query, roomID, userID).
		Scan(&r.ID, &r.ParticipantA, &r.ParticipantB, &r.IsActive, &r.Mode,
			&r.TargetGender, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimConflict
	}
	if err != nil {
		return nil, fmt.Errorf("room: claim: %w", err)
	}
	return r, nil
}

// Get retrieves a room by ID. Returns ErrNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, roomID string) (*Room, error) {
	const query = `
		SELECT id, participant_a, COALESCE(participant_b::text, ''), is_active,
		       mode, COALESCE(target_gender, ''), created_at,
		       COALESCE(ended_at, 'epoch'::timestamptz)
		FROM chat_rooms
		WHERE id = $1`

	r := &Room{}
	var endedAt time.Time
	err := s.db.QueryRowContext(ctx, query, roomID).
		Scan(&r.ID, &r.ParticipantA, &r.ParticipantB, &r.IsActive, &r.Mode,
			&r.TargetGender, &r.CreatedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("room: get: %w", err)
	}
	if endedAt.Unix() > 0 {
		r.EndedAt = endedAt
	}
	return r, nil
}

// Deactivate closes a room on behalf of one of its participants. The
// counterpart observes is_active = FALSE on its next read. Closing an
// already-closed room is a no-op.
func (s *Store) Deactivate(ctx context.Context, roomID, userID string) error {
	const query = `
		UPDATE chat_rooms
		SET is_active = FALSE, ended_at = NOW()
		WHERE id = $1
		  AND is_active = TRUE
		  AND (participant_a = $2 OR participant_b = $2)`

	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("room: deactivate: %w", err)
	}
	return nil
}

// Delete removes a still-waiting room owned by ownerID. Used by the poll
// loop to clean up after a timeout; failure only pollutes the waiting pool
// until the sweeper catches it, so callers may treat errors as non-fatal.
func (s *Store) Delete(ctx context.Context, roomID, ownerID string) error {
	const query = `
		DELETE FROM chat_rooms
		WHERE id = $1 AND participant_a = $2 AND participant_b IS NULL`

	if _, err := s.db.ExecContext(ctx, query, roomID, ownerID); err != nil {
		return fmt.Errorf("room: delete: %w", err)
	}
	return nil
}

// ActiveRoomsFor lists the active rooms a user participates in, newest first.
func (s *Store) ActiveRoomsFor(ctx context.Context, userID string) ([]*Room, error) {
	const query = `
		SELECT id, participant_a, COALESCE(participant_b::text, ''), is_active,
		       mode, COALESCE(target_gender, ''), created_at
		FROM chat_rooms
		WHERE is_active = TRUE
		  AND (participant_a = $1 OR participant_b = $1)
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("room: active rooms: %w", err)
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		r := &Room{}
		if err := rows.Scan(&r.ID, &r.ParticipantA, &r.ParticipantB, &r.IsActive,
			&r.Mode, &r.TargetGender, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("room: scan active room: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WaitingCount returns the current size of the waiting pool.
func (s *Store) WaitingCount(ctx context.Context) (int, error) {
	const query = `
		SELECT COUNT(*) FROM chat_rooms
		WHERE participant_b IS NULL AND is_active = FALSE`

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("room: waiting count: %w", err)
	}
	return n, nil
}

// ActiveCount returns the current number of active rooms.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM chat_rooms WHERE is_active = TRUE`

	var n int
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("room: active count: %w", err)
	}
	return n, nil
}

// DeleteStaleWaiting removes waiting rooms older than the given age. Run by
// the sweeper to clear records abandoned by clients that never cleaned up.
// Returns the number of rooms removed.
func (s *Store) DeleteStaleWaiting(ctx context.Context, olderThan time.Duration) (int64, error) {
	const query = `
		DELETE FROM chat_rooms
		WHERE participant_b IS NULL
		  AND is_active = FALSE
		  AND created_at < NOW() - $1::interval`

	res, err := s.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("room: delete stale waiting: %w", err)
	}
	return res.RowsAffected()
}

// CloseAbandoned deactivates active rooms with no message traffic for the
// given duration, so sessions whose clients vanished do not linger forever.
// Returns the number of rooms closed.
func (s *Store) CloseAbandoned(ctx context.Context, idle time.Duration) (int64, error) {
	const query = `
		UPDATE chat_rooms r
		SET is_active = FALSE, ended_at = NOW()
		WHERE r.is_active = TRUE
		  AND COALESCE(
		        (SELECT MAX(m.sent_at) FROM chat_messages m WHERE m.room_id = r.id),
		        r.created_at
		      ) < NOW() - $1::interval`

	res, err := s.db.ExecContext(ctx, query, idle.String())
	if err != nil {
		return 0, fmt.Errorf("room: close abandoned: %w", err)
	}
	return res.RowsAffected()
}
