// Package ban provides user-level ban management backed by Redis. Bans are
// temporary and TTL-based:
//
//	Key:   ban:user:<user_id>
//	Value: <reason>
//	TTL:   ban duration
//
// A parallel per-user report counter feeds the auto-ban path: enough
// partner reports inside the counting window escalate into a ban without a
// moderator in the loop.
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BanPrefix is the Redis key prefix for ban records.
	BanPrefix = "ban:user:"

	// ReportsPrefix is the Redis key prefix for per-user report counters.
	ReportsPrefix = "reports:user:"

	// Escalating ban durations.
	BanShort  = 15 * time.Minute // 1st offense
	BanMedium = 1 * time.Hour    // 2nd offense
	BanLong   = 24 * time.Hour   // 3rd+ offense

	// ReportsTTL is how long the report counter lives without new reports.
	ReportsTTL = 24 * time.Hour

	// AutoBanThreshold is the report count within ReportsTTL that triggers
	// an automatic ban.
	AutoBanThreshold = 3
)

// Store manages ban records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a ban store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// IsBanned reports whether a user is currently banned.
// Returns (banned, remainingSeconds, reason, error). Redis errors are
// returned so callers can decide policy; the gateway fails open.
func (s *Store) IsBanned(ctx context.Context, userID string) (bool, int, string, error) {
	key := BanPrefix + userID

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, 0, "", nil
	}
	if err != nil {
		return false, 0, "", err
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// The ban exists but the TTL read failed. Report banned with 0
		// remaining rather than swallowing the ban.
		return true, 0, reason, nil
	}

	remaining := 0
	if ttl > 0 {
		remaining = int(ttl.Seconds())
	}

	return true, remaining, reason, nil
}

// Ban bans a user for the given duration. The ban expires on its own.
func (s *Store) Ban(ctx context.Context, userID string, duration time.Duration, reason string) error {
	key := BanPrefix + userID
	return s.client.Set(ctx, key, reason, duration).Err()
}

// Unban lifts a user's ban immediately.
func (s *Store) Unban(ctx context.Context, userID string) error {
	key := BanPrefix + userID
	return s.client.Del(ctx, key).Err()
}

// escalationDuration returns the ban duration for a given offense count.
func escalationDuration(offenseCount int) time.Duration {
	switch {
	case offenseCount <= 1:
		return BanShort
	case offenseCount == 2:
		return BanMedium
	default:
		return BanLong
	}
}

// ReportCount returns the user's current report counter. Returns 0 when no
// counter exists or it has expired.
func (s *Store) ReportCount(ctx context.Context, userID string) (int, error) {
	key := ReportsPrefix + userID
	val, err := s.client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// Escalate records an offense against a user and applies a ban whose
// duration grows with the offense count:
//
//	1st offense  -> 15 minutes
//	2nd offense  -> 1 hour
//	3rd+ offense -> 24 hours
//
// The counter's TTL is set only on the first increment so the 24h window
// does not slide. Returns the applied ban duration.
func (s *Store) Escalate(ctx context.Context, userID string, reason string) (time.Duration, error) {
	key := ReportsPrefix + userID

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ban: escalate incr: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return 0, fmt.Errorf("ban: escalate expire: %w", err)
		}
	}

	duration := escalationDuration(int(count))
	if err := s.Ban(ctx, userID, duration, reason); err != nil {
		return 0, fmt.Errorf("ban: escalate ban: %w", err)
	}

	return duration, nil
}

// ReportAndCheck increments the user's report counter and, once the
// auto-ban threshold is reached, applies an escalating ban with reason
// "multiple_reports". Returns (banned, duration, error).
func (s *Store) ReportAndCheck(ctx context.Context, userID string) (bool, time.Duration, error) {
	key := ReportsPrefix + userID

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, fmt.Errorf("ban: report incr: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return false, 0, fmt.Errorf("ban: report expire: %w", err)
		}
	}

	if count >= AutoBanThreshold {
		duration := escalationDuration(int(count))
		if err := s.Ban(ctx, userID, duration, "multiple_reports"); err != nil {
			return false, 0, fmt.Errorf("ban: report ban: %w", err)
		}
		return true, duration, nil
	}

	return false, 0, nil
}
