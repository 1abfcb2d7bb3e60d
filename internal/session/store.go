// Package session tracks per-user presence state in Redis: whether a user
// is idle, searching for a partner, or in a room, plus the aggregate online
// count shown on the home screen. Session state is advisory; room
// membership in PostgreSQL is the source of truth.
package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// SessionPrefix is the Redis key prefix for per-user session hashes.
	SessionPrefix = "session:"

	// OnlineKey is the sorted set of recently active users, scored by
	// last-active unix time.
	OnlineKey = "presence:online"

	// SessionTTL is the time-to-live for session keys.
	SessionTTL = 1 * time.Hour

	// OnlineWindow is how recently a user must have been active to count
	// toward the online number.
	OnlineWindow = 5 * time.Minute

	// Status constants for the connection state machine.
	StatusIdle      = "idle"
	StatusSearching = "searching"
	StatusChatting  = "chatting"
)

// Session is a user's connection state as stored in Redis.
type Session struct {
	UserID     string `redis:"user_id"`
	Status     string `redis:"status"`  // idle | searching | chatting
	RoomID     string `redis:"room_id"` // empty unless chatting
	Mode       string `redis:"mode"`    // match mode while searching
	Server     string `redis:"server"`  // which gateway instance
	CreatedAt  int64  `redis:"created_at"`
	LastActive int64  `redis:"last_active"`
}

// Store manages presence state in Redis.
type Store struct {
	client     *redis.Client
	serverName string // identifier for this gateway instance
}

// NewStore creates a presence store connected to Redis.
func NewStore(redisAddr string, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("session: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// Create stores a fresh idle session and marks the user online.
func (s *Store) Create(ctx context.Context, userID string) error {
	key := SessionPrefix + userID
	now := time.Now().Unix()

	session := map[string]interface{}{
		"user_id":     userID,
		"status":      StatusIdle,
		"room_id":     "",
		"mode":        "",
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, session)
	pipe.Expire(ctx, key, SessionTTL)
	pipe.ZAdd(ctx, OnlineKey, redis.Z{Score: float64(now), Member: userID})
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a session. Returns nil if not found.
func (s *Store) Get(ctx context.Context, userID string) (*Session, error) {
	key := SessionPrefix + userID
	var session Session
	err := s.client.HGetAll(ctx, key).Scan(&session)
	if err != nil {
		return nil, err
	}
	if session.UserID == "" {
		return nil, nil // not found
	}
	return &session, nil
}

// SetSearching marks the user as searching in the given mode.
func (s *Store) SetSearching(ctx context.Context, userID string, mode string) error {
	return s.update(ctx, userID, "status", StatusSearching, "mode", mode)
}

// SetRoom records the user's active room and marks them chatting.
func (s *Store) SetRoom(ctx context.Context, userID string, roomID string) error {
	return s.update(ctx, userID, "room_id", roomID, "status", StatusChatting, "mode", "")
}

// ClearRoom resets the user to idle after a session ends or times out.
func (s *Store) ClearRoom(ctx context.Context, userID string) error {
	return s.update(ctx, userID, "room_id", "", "status", StatusIdle, "mode", "")
}

// Touch refreshes last-active and the session TTL. Called on heartbeats.
func (s *Store) Touch(ctx context.Context, userID string) error {
	return s.update(ctx, userID)
}

// OnlineCount returns how many users were active within OnlineWindow.
// Stale entries are trimmed on each call so the set stays bounded.
func (s *Store) OnlineCount(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-OnlineWindow).Unix()
	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, OnlineKey, "-inf", strconv.FormatInt(cutoff-1, 10))
	count := pipe.ZCount(ctx, OnlineKey, strconv.FormatInt(cutoff, 10), "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("session: online count: %w", err)
	}
	return count.Val(), nil
}

// Delete removes a session and its presence entry on disconnect.
func (s *Store) Delete(ctx context.Context, userID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, SessionPrefix+userID)
	pipe.ZRem(ctx, OnlineKey, userID)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}

// update applies field changes plus the last-active stamp, refreshes the
// TTL, and bumps the user's presence score in one round trip.
func (s *Store) update(ctx context.Context, userID string, fieldsAndValues ...interface{}) error {
	key := SessionPrefix + userID
	now := time.Now().Unix()

	args := append(fieldsAndValues, "last_active", now)
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, args...)
	pipe.Expire(ctx, key, SessionTTL)
	pipe.ZAdd(ctx, OnlineKey, redis.Z{Score: float64(now), Member: userID})
	_, err := pipe.Exec(ctx)
	return err
}
