// Package messaging provides a NATS client wrapper for pub/sub messaging
// across Silent Circle services. It handles connection lifecycle,
// subject-based subscriptions, and convenience methods for room sessions,
// matchmaking claim nudges, and confession feed fanout.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used across Silent Circle services.
const (
	SubjectRoom         = "room"          // + .<room_id> (session events)
	SubjectMatchClaimed = "match.claimed" // + .<room_id> (waiter wake-up)
	SubjectFeed         = "feed.confessions"
)

// Client wraps the NATS connection with helper methods for pub/sub.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "silentcircle",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.store(subject, sub)
	return nil
}

// store replaces the subscription held under key. Any previous holder is
// unsubscribed first: the map is the only reference to it, so overwriting
// without unsubscribing would leave its handler firing forever.
func (c *Client) store(key string, sub *nats.Subscription) {
	c.mu.Lock()
	prev := c.subs[key]
	c.subs[key] = sub
	c.mu.Unlock()

	if prev != nil {
		if err := prev.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe stale %s: %v", key, err)
		}
	}
}

// PublishRoomEvent publishes data to the room.<roomID> subject. Both
// participants' gateways receive it.
func (c *Client) PublishRoomEvent(roomID string, data []byte) error {
	return c.Publish(SubjectRoom+"."+roomID, data)
}

// SubscribeRoom subscribes a user's session to the room.<roomID> subject.
// The subscription is keyed by userID so that two participants served by
// the same gateway do not overwrite each other's subscription, and so that
// a user moving to a new room drops the old room's subscription instead of
// leaking it.
func (c *Client) SubscribeRoom(roomID, userID string, handler func(data []byte)) error {
	subject := SubjectRoom + "." + roomID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.store("roomsub:"+userID, sub)
	return nil
}

// UnsubscribeRoom drops a user's room subscription.
func (c *Client) UnsubscribeRoom(userID string) error {
	return c.unsubscribe("roomsub:" + userID)
}

// AnnounceClaim publishes a wake-up on match.claimed.<roomID> after a
// successful claim. Implements matching.Nudger.
func (c *Client) AnnounceClaim(roomID string) error {
	return c.Publish(SubjectMatchClaimed+"."+roomID, nil)
}

// WatchClaim subscribes to match.claimed.<roomID> and delivers each
// notification as a (non-blocking) tick on the returned channel. The cancel
// function must be called to drop the subscription. Implements
// matching.Nudger.
func (c *Client) WatchClaim(roomID string) (<-chan struct{}, func(), error) {
	subject := SubjectMatchClaimed + "." + roomID
	ch := make(chan struct{}, 1)

	sub, err := c.conn.Subscribe(subject, func(_ *nats.Msg) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	cancel := func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("[nats] unsubscribe %s: %v", subject, err)
		}
	}
	return ch, cancel, nil
}

// PublishConfessionPosted fans a newly posted confession out to connected
// clients via the feed subject.
func (c *Client) PublishConfessionPosted(data []byte) error {
	return c.Publish(SubjectFeed, data)
}

// SubscribeFeed subscribes to new-confession fanout.
func (c *Client) SubscribeFeed(handler func(data []byte)) error {
	return c.Subscribe(SubjectFeed, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific subscription key.
func (c *Client) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
