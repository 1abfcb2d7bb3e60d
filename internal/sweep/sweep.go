// Package sweep runs the scheduled retention jobs: purging expired chat
// messages, deleting abandoned waiting rooms, closing idle chat rooms, and
// expiring lapsed subscriptions. Chat history never outlives the retention
// window regardless of client behavior.
package sweep

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/silentcircle/backend/internal/chat"
	"github.com/silentcircle/backend/internal/entitlement"
	"github.com/silentcircle/backend/internal/metrics"
	"github.com/silentcircle/backend/internal/room"
)

// Config holds the retention windows and schedules.
type Config struct {
	MessageRetention time.Duration // delete messages older than this
	WaitingStale     time.Duration // delete waiting rooms unclaimed this long
	RoomIdle         time.Duration // close active rooms idle this long
	JobTimeout       time.Duration // per-job context deadline

	MessageSchedule      string // cron spec for the message purge
	RoomSchedule         string // cron spec for room cleanup
	SubscriptionSchedule string // cron spec for subscription expiry
}

// DefaultConfig purges messages hourly with a 24h retention, cleans rooms
// every minute, and expires subscriptions once an hour.
func DefaultConfig() Config {
	return Config{
		MessageRetention:     chat.MessageRetention,
		WaitingStale:         2 * time.Minute,
		RoomIdle:             6 * time.Hour,
		JobTimeout:           time.Minute,
		MessageSchedule:      "@hourly",
		RoomSchedule:         "* * * * *",
		SubscriptionSchedule: "30 * * * *",
	}
}

// Sweeper owns the cron scheduler and the stores the jobs act on.
type Sweeper struct {
	config Config
	rooms  *room.Store
	chats  *chat.Store
	ents   *entitlement.Store
	cron   *cron.Cron
}

// New creates a Sweeper. Call Start to begin scheduling.
func New(config Config, rooms *room.Store, chats *chat.Store, ents *entitlement.Store) *Sweeper {
	return &Sweeper{
		config: config,
		rooms:  rooms,
		chats:  chats,
		ents:   ents,
		cron:   cron.New(),
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.config.MessageSchedule, s.purgeMessages); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.config.RoomSchedule, s.cleanRooms); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.config.SubscriptionSchedule, s.expireSubscriptions); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("[sweep] scheduler started (retention=%s, waiting_stale=%s, room_idle=%s)",
		s.config.MessageRetention, s.config.WaitingStale, s.config.RoomIdle)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[sweep] scheduler stopped")
}

// RunOnce executes every job immediately. Used at startup so a crashed
// sweeper does not leave a backlog until the next scheduled run.
func (s *Sweeper) RunOnce() {
	s.purgeMessages()
	s.cleanRooms()
	s.expireSubscriptions()
}

func (s *Sweeper) jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.config.JobTimeout)
}

func (s *Sweeper) purgeMessages() {
	ctx, cancel := s.jobContext()
	defer cancel()

	n, err := s.chats.PurgeOlderThan(ctx, s.config.MessageRetention)
	if err != nil {
		log.Printf("[sweep] message purge failed: %v", err)
		return
	}
	if n > 0 {
		metrics.SweepDeleted.WithLabelValues("messages").Add(float64(n))
		log.Printf("[sweep] purged %d expired messages", n)
	}
}

func (s *Sweeper) cleanRooms() {
	ctx, cancel := s.jobContext()
	defer cancel()

	stale, err := s.rooms.DeleteStaleWaiting(ctx, s.config.WaitingStale)
	if err != nil {
		log.Printf("[sweep] waiting room cleanup failed: %v", err)
	} else if stale > 0 {
		metrics.SweepDeleted.WithLabelValues("waiting_rooms").Add(float64(stale))
		log.Printf("[sweep] deleted %d stale waiting rooms", stale)
	}

	idle, err := s.rooms.CloseAbandoned(ctx, s.config.RoomIdle)
	if err != nil {
		log.Printf("[sweep] abandoned room cleanup failed: %v", err)
	} else if idle > 0 {
		metrics.SweepDeleted.WithLabelValues("abandoned_rooms").Add(float64(idle))
		log.Printf("[sweep] closed %d abandoned rooms", idle)
	}

	// Refresh pool gauges while we are here.
	if count, err := s.rooms.WaitingCount(ctx); err == nil {
		metrics.WaitingPoolSize.Set(float64(count))
	}
	if count, err := s.rooms.ActiveCount(ctx); err == nil {
		metrics.ActiveRooms.Set(float64(count))
	}
}

func (s *Sweeper) expireSubscriptions() {
	ctx, cancel := s.jobContext()
	defer cancel()

	n, err := s.ents.ExpireLapsed(ctx)
	if err != nil {
		log.Printf("[sweep] subscription expiry failed: %v", err)
		return
	}
	if n > 0 {
		metrics.SweepDeleted.WithLabelValues("subscriptions").Add(float64(n))
		log.Printf("[sweep] expired %d lapsed subscriptions", n)
	}
}
