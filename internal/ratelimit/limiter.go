// Package ratelimit provides Redis-backed throttling using the
// INCR + EXPIRE fixed-window algorithm. Each throttled action carries its
// own rule; identifiers are user IDs except for connection limiting,
// which keys on the client IP.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines one throttling policy: the Redis key prefix, the maximum
// count in the window, and the window duration.
type Rule struct {
	Key    string        // Redis key prefix
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// Standard rules.
var (
	// RuleMessage allows 5 chat messages per 10 seconds per user.
	RuleMessage = Rule{Key: "rl:msg:", Limit: 5, Window: 10 * time.Second}

	// RuleMatch allows 10 match starts per minute per user. Timeouts count
	// toward the limit; a retry loop cannot hammer the waiting pool.
	RuleMatch = Rule{Key: "rl:match:", Limit: 10, Window: 1 * time.Minute}

	// RuleConnect allows 5 WebSocket connections per minute per IP.
	RuleConnect = Rule{Key: "rl:conn:", Limit: 5, Window: 1 * time.Minute}

	// RulePost allows 3 confessions per 10 minutes per user.
	RulePost = Rule{Key: "rl:post:", Limit: 3, Window: 10 * time.Minute}

	// RuleComment allows 10 comments per minute per user.
	RuleComment = Rule{Key: "rl:comment:", Limit: 10, Window: 1 * time.Minute}

	// RuleReport allows 5 reports per hour per user, so the report button
	// cannot be weaponized against the auto-ban threshold.
	RuleReport = Rule{Key: "rl:report:", Limit: 5, Window: 1 * time.Hour}
)

// Limiter performs throttling checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the identifier is within the rule's limit. It
// increments the counter and sets the expiry on first access.
//
// Returns true if the action is allowed, false if throttled. On Redis
// errors the method fails open so an outage does not block traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("[ratelimit] redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	// The first increment defines the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("[ratelimit] redis EXPIRE error key=%s: %v (failing open)", key, err)
			// The key exists but has no TTL and would otherwise persist.
			// Best effort: delete it so the identifier is not stuck.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}

// Remaining returns how many actions the identifier has left in the
// current window. Returns the full limit when the key does not exist or
// on Redis errors (fail open).
func (l *Limiter) Remaining(ctx context.Context, identifier string, rule Rule) (int, error) {
	key := rule.Key + identifier

	count, err := l.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		log.Printf("[ratelimit] redis GET error key=%s: %v (failing open)", key, err)
		return rule.Limit, err
	}

	remaining := rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
