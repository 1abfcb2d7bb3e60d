// Package metrics provides Prometheus instrumentation for the Silent Circle
// backend. It exposes gauges for connection, room and waiting-pool counts,
// counters for matchmaking and message throughput, and histograms for
// match latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silentcircle_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// MatchAttempts counts finished match attempts, labeled by outcome:
	// "claimed" (joined an existing room), "created" (own room was claimed),
	// "timeout", or "error".
	MatchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silentcircle_match_attempts_total",
		Help: "Match attempts by outcome",
	}, []string{"outcome"})

	// ClaimConflicts counts lost claim races (expected under load).
	ClaimConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "silentcircle_claim_conflicts_total",
		Help: "Waiting-room claims lost to another searcher",
	})

	// MatchDuration records the time from match request to successful pairing.
	MatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "silentcircle_match_duration_seconds",
		Help:    "Time from match request to successful pairing",
		Buckets: []float64{.05, .25, 1, 2, 5, 10, 15, 20, 25, 30},
	})

	// WaitingPoolSize tracks the current number of unclaimed waiting rooms.
	WaitingPoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silentcircle_waiting_pool_size",
		Help: "Current number of unclaimed waiting rooms",
	})

	// ActiveRooms tracks the current number of active chat rooms.
	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "silentcircle_active_rooms",
		Help: "Current number of active chat rooms",
	})

	// MessagesTotal counts chat messages processed, labeled by type:
	// "sent", "delivered", or "blocked".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silentcircle_messages_total",
		Help: "Total number of chat messages processed",
	}, []string{"type"})

	// ConfessionsTotal counts confessions posted, labeled by type
	// ("text" or "voice").
	ConfessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silentcircle_confessions_total",
		Help: "Total number of confessions posted",
	}, []string{"type"})

	// SweepDeleted counts rows removed by the retention sweeper, labeled by
	// job: "messages", "waiting_rooms", "abandoned_rooms", "subscriptions".
	SweepDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "silentcircle_sweep_deleted_total",
		Help: "Rows removed or closed by the retention sweeper",
	}, []string{"job"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		MatchAttempts,
		ClaimConflicts,
		MatchDuration,
		WaitingPoolSize,
		ActiveRooms,
		MessagesTotal,
		ConfessionsTotal,
		SweepDeleted,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
