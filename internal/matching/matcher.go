// Package matching implements the waiting-room matchmaking protocol. There
// is no central broker: every client session runs its own Matchmaker, and
// the participants cooperate only through conditional updates on shared
// chat room rows. Safety rests on the store's compare-and-swap claim
// semantics (see room.Store.Claim); this package supplies the search,
// create and poll choreography around it.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/silentcircle/backend/internal/metrics"
	"github.com/silentcircle/backend/internal/room"
)

const (
	// DefaultPollInterval is how often a waiting creator re-reads its room.
	DefaultPollInterval = 1 * time.Second

	// DefaultTimeout is how long a creator waits to be claimed before
	// giving up. Timing out is a normal outcome, not an error condition.
	DefaultTimeout = 30 * time.Second

	// DefaultClaimRetries is how many times a searcher goes back to the
	// waiting pool after losing a claim race before creating its own room.
	DefaultClaimRetries = 3

	// DefaultRetryBackoff spaces out re-searches after a lost claim.
	DefaultRetryBackoff = 250 * time.Millisecond
)

var (
	// ErrNoMatch is the terminal outcome of an unclaimed waiting room:
	// nobody showed up within the timeout.
	ErrNoMatch = errors.New("matching: no match found")

	// ErrEntitlementRequired is returned when a filtered-mode search is
	// attempted without an active subscription. No search query is issued;
	// the caller should redirect to the upgrade flow.
	ErrEntitlementRequired = errors.New("matching: active subscription required")
)

// RoomStore is the slice of the room store the Matchmaker needs. It is an
// interface so the matchmaking properties can be tested against an
// in-memory double with the same compare-and-swap contract.
type RoomStore interface {
	Create(ctx context.Context, creatorID, mode, targetGender string) (*room.Room, error)
	FindOldestWaiting(ctx context.Context, excludeUser string, filter room.WaitingFilter) (*room.Room, error)
	Claim(ctx context.Context, roomID, userID string) (*room.Room, error)
	Get(ctx context.Context, roomID string) (*room.Room, error)
	Delete(ctx context.Context, roomID, ownerID string) error
}

// EntitlementChecker gates filtered-mode searches.
type EntitlementChecker interface {
	HasActive(ctx context.Context, userID string) (bool, error)
}

// Nudger lets the claimer wake the waiting creator ahead of its next poll
// tick. Purely a latency optimization: correctness never depends on the
// nudge arriving, the poll loop observes the claim on its own.
type Nudger interface {
	AnnounceClaim(roomID string) error
	WatchClaim(roomID string) (ch <-chan struct{}, cancel func(), err error)
}

// Request describes one user's match attempt.
type Request struct {
	UserID       string
	Gender       string // searcher's own gender, used for mutual filtered matching
	Mode         string // room.ModeRandom or room.ModeFiltered
	TargetGender string // filtered mode: the gender the searcher wants
}

// Result is a successful match.
type Result struct {
	Room *room.Room
	// Created is true when this side created the waiting room and was
	// claimed; false when this side claimed an existing room.
	Created bool
}

// Config holds the matchmaking timing knobs.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
	ClaimRetries int
	RetryBackoff time.Duration
}

// DefaultConfig returns the production timings (1s poll, 30s timeout).
func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
		ClaimRetries: DefaultClaimRetries,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Matchmaker pairs a user with a partner through the shared room store.
type Matchmaker struct {
	rooms  RoomStore
	ents   EntitlementChecker
	nudger Nudger // may be nil
	config Config
}

// New creates a Matchmaker. ents may be nil if filtered mode is never used;
// nudger may be nil to rely on polling alone.
func New(rooms RoomStore, ents EntitlementChecker, nudger Nudger, config Config) *Matchmaker {
	return &Matchmaker{rooms: rooms, ents: ents, nudger: nudger, config: config}
}

// StartMatch runs one full match attempt for req:
//
//  1. Search the waiting pool (oldest first) for a compatible room not
//     created by the requester.
//  2. If found, try to claim it. A lost claim race is an expected outcome:
//     the search is retried with a short backoff, up to ClaimRetries times.
//  3. If the pool is empty (or retries are exhausted), create a waiting
//     room and poll it until claimed or timed out.
//
// Filtered mode requires an active subscription; the entitlement check runs
// before any search query and failures return ErrEntitlementRequired.
func (m *Matchmaker) StartMatch(ctx context.Context, req Request) (*Result, error) {
	if req.Mode == room.ModeFiltered {
		if m.ents == nil {
			return nil, ErrEntitlementRequired
		}
		ok, err := m.ents.HasActive(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("matching: entitlement check: %w", err)
		}
		if !ok {
			return nil, ErrEntitlementRequired
		}
	}

	started := time.Now()
	filter := room.WaitingFilter{Mode: req.Mode}
	if req.Mode == room.ModeFiltered {
		// Mutual match: the room must be looking for our gender, and its
		// creator must have the gender we are looking for.
		filter.TargetGender = req.Gender
		filter.CreatorGender = req.TargetGender
	}

	for attempt := 0; ; attempt++ {
		candidate, err := m.rooms.FindOldestWaiting(ctx, req.UserID, filter)
		if err != nil {
			metrics.MatchAttempts.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("matching: search: %w", err)
		}
		if candidate == nil {
			break // empty pool, become the creator
		}

		claimed, err := m.rooms.Claim(ctx, candidate.ID, req.UserID)
		if errors.Is(err, room.ErrClaimConflict) {
			// Another searcher got there first. Go back to the pool.
			metrics.ClaimConflicts.Inc()
			if attempt >= m.config.ClaimRetries {
				break
			}
			select {
			case <-time.After(m.config.RetryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if err != nil {
			metrics.MatchAttempts.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("matching: claim: %w", err)
		}

		if m.nudger != nil {
			if err := m.nudger.AnnounceClaim(claimed.ID); err != nil {
				log.Printf("[matching] claim nudge for room=%s: %v", claimed.ID, err)
			}
		}

		metrics.MatchAttempts.WithLabelValues("claimed").Inc()
		metrics.MatchDuration.Observe(time.Since(started).Seconds())
		return &Result{Room: claimed}, nil
	}

	created, err := m.rooms.Create(ctx, req.UserID, req.Mode, req.TargetGender)
	if err != nil {
		metrics.MatchAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("matching: create waiting room: %w", err)
	}

	matched, err := m.PollForClaim(ctx, created.ID, req.UserID)
	if err != nil {
		return nil, err
	}

	metrics.MatchAttempts.WithLabelValues("created").Inc()
	metrics.MatchDuration.Observe(time.Since(started).Seconds())
	return &Result{Room: matched, Created: true}, nil
}

// PollForClaim re-reads a waiting room until its second seat fills, the
// timeout elapses, or ctx is cancelled. On timeout or cancellation the
// stale record is deleted best-effort: a failed delete only pollutes the
// waiting pool until the sweeper runs, so it is logged and discarded.
func (m *Matchmaker) PollForClaim(ctx context.Context, roomID, ownerID string) (*room.Room, error) {
	var nudge <-chan struct{}
	if m.nudger != nil {
		ch, cancel, err := m.nudger.WatchClaim(roomID)
		if err != nil {
			log.Printf("[matching] claim watch for room=%s: %v", roomID, err)
		} else {
			nudge = ch
			defer cancel()
		}
	}

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(m.config.Timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			m.cleanupWaiting(roomID, ownerID)
			return nil, ctx.Err()

		case <-deadline.C:
			m.cleanupWaiting(roomID, ownerID)
			metrics.MatchAttempts.WithLabelValues("timeout").Inc()
			return nil, ErrNoMatch

		case <-ticker.C:
		case <-nudge:
		}

		r, err := m.rooms.Get(ctx, roomID)
		if err != nil {
			m.cleanupWaiting(roomID, ownerID)
			return nil, fmt.Errorf("matching: poll: %w", err)
		}
		if !r.Waiting() && r.IsActive {
			return r, nil
		}
	}
}

// cleanupWaiting deletes an abandoned waiting room. Failures are logged
// and otherwise ignored; the sweeper catches leftovers.
func (m *Matchmaker) cleanupWaiting(roomID, ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.rooms.Delete(ctx, roomID, ownerID); err != nil {
		log.Printf("[matching] cleanup waiting room=%s: %v", roomID, err)
	}
}
