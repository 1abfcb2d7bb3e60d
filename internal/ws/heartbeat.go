package ws

import (
	"log"
	"time"
)

// HeartbeatConfig controls server-side liveness probing.
type HeartbeatConfig struct {
	Interval     time.Duration // how often to ping every connection
	StaleTimeout time.Duration // evict connections silent longer than this
}

// DefaultHeartbeatConfig pings every 30s and evicts after 90s of silence,
// allowing two missed pings before giving up.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval:     30 * time.Second,
		StaleTimeout: 90 * time.Second,
	}
}

// StartHeartbeat runs a background loop that pings every connection and
// evicts the ones that have gone silent. Returns a stop function.
func StartHeartbeat(s *Server, config HeartbeatConfig) func() {
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				sweep(s, config.StaleTimeout)
			}
		}
	}()

	return func() { close(stop) }
}

// sweep pings live connections and removes stale ones. A failed ping write
// means the socket is already dead.
func sweep(s *Server, staleAfter time.Duration) {
	now := time.Now()
	stale := 0

	for _, c := range s.conns.All() {
		if now.Sub(c.LastPing) > staleAfter {
			s.RemoveConnection(c)
			stale++
			continue
		}

		if err := c.WritePing(); err != nil {
			s.RemoveConnection(c)
			stale++
		}
	}

	if stale > 0 {
		log.Printf("[heartbeat] evicted %d stale connections (total=%d)", stale, s.conns.Count())
	}
}
