package messaging

import (
	"fmt"
	"os"
	"testing"
	"time"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	config := DefaultConfig()
	if v := os.Getenv("NATS_URL"); v != "" {
		config.URL = v
	}
	config.Name = "messaging-test"
	config.MaxReconnects = 0

	c, err := NewClient(config)
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func testRoomID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// A user moving from one room to another re-subscribes under the same key.
// The old room's subscription must be dropped, not leaked: a leaked handler
// would keep firing on the old room's events after the move.
func TestSubscribeRoomReplacesPriorSubscription(t *testing.T) {
	c := newTestClient(t)

	room1 := testRoomID("room1")
	room2 := testRoomID("room2")
	received := make(chan string, 8)

	if err := c.SubscribeRoom(room1, "u1", func(data []byte) {
		received <- room1 + ":" + string(data)
	}); err != nil {
		t.Fatalf("SubscribeRoom(room1) error: %v", err)
	}
	if err := c.SubscribeRoom(room2, "u1", func(data []byte) {
		received <- room2 + ":" + string(data)
	}); err != nil {
		t.Fatalf("SubscribeRoom(room2) error: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := c.PublishRoomEvent(room1, []byte("old")); err != nil {
		t.Fatalf("publish room1: %v", err)
	}
	if err := c.PublishRoomEvent(room2, []byte("new")); err != nil {
		t.Fatalf("publish room2: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case got := <-received:
		if got != room2+":new" {
			t.Fatalf("delivered %q, want only the current room's event", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("current room's event never delivered")
	}

	select {
	case got := <-received:
		t.Fatalf("stale subscription still live, delivered %q", got)
	case <-time.After(200 * time.Millisecond):
	}
}

// Two participants on the same gateway subscribe to the same room under
// their own keys; both must receive the room's events.
func TestSubscribeRoomKeyedPerUser(t *testing.T) {
	c := newTestClient(t)

	roomID := testRoomID("shared")
	alice := make(chan []byte, 1)
	bob := make(chan []byte, 1)

	if err := c.SubscribeRoom(roomID, "alice", func(data []byte) { alice <- data }); err != nil {
		t.Fatalf("SubscribeRoom(alice) error: %v", err)
	}
	if err := c.SubscribeRoom(roomID, "bob", func(data []byte) { bob <- data }); err != nil {
		t.Fatalf("SubscribeRoom(bob) error: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := c.PublishRoomEvent(roomID, []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	for name, ch := range map[string]chan []byte{"alice": alice, "bob": bob} {
		select {
		case data := <-ch:
			if string(data) != "hello" {
				t.Errorf("%s received %q, want %q", name, data, "hello")
			}
		case <-time.After(2 * time.Second):
			t.Errorf("%s never received the room event", name)
		}
	}
}

// After UnsubscribeRoom the user's handler must stop firing, and a second
// unsubscribe reports the missing key instead of panicking.
func TestUnsubscribeRoom(t *testing.T) {
	c := newTestClient(t)

	roomID := testRoomID("gone")
	received := make(chan []byte, 1)

	if err := c.SubscribeRoom(roomID, "u1", func(data []byte) { received <- data }); err != nil {
		t.Fatalf("SubscribeRoom() error: %v", err)
	}
	if err := c.UnsubscribeRoom("u1"); err != nil {
		t.Fatalf("UnsubscribeRoom() error: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	if err := c.PublishRoomEvent(roomID, []byte("late")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := c.conn.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	select {
	case data := <-received:
		t.Fatalf("handler fired after unsubscribe: %q", data)
	case <-time.After(200 * time.Millisecond):
	}

	if err := c.UnsubscribeRoom("u1"); err == nil {
		t.Error("second UnsubscribeRoom() should report the missing subscription")
	}
}
