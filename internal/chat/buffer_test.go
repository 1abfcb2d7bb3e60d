package chat

import (
	"fmt"
	"sync"
	"testing"
)

func TestSnapshotObserveAndRead(t *testing.T) {
	b := NewSnapshotBuffer()

	b.Observe("room1", SnapshotMessage{SenderID: "a", Kind: TypeText, Text: "hello", Ts: 1})
	b.Observe("room1", SnapshotMessage{SenderID: "b", Kind: TypeText, Text: "hi", Ts: 2})
	b.Observe("room1", SnapshotMessage{SenderID: "a", Kind: TypeVoice, AudioURL: "voice/abc.webm", Ts: 3})

	msgs := b.Snapshot("room1")
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "hello" {
		t.Errorf("expected first message 'hello', got %q", msgs[0].Text)
	}
	if msgs[1].Text != "hi" {
		t.Errorf("expected second message 'hi', got %q", msgs[1].Text)
	}
	if msgs[2].AudioURL != "voice/abc.webm" {
		t.Errorf("expected voice reference, got %+v", msgs[2])
	}
}

func TestSnapshotWraparound(t *testing.T) {
	b := NewSnapshotBuffer()

	// Overfill the ring by three.
	total := SnapshotDepth + 3
	for i := 1; i <= total; i++ {
		b.Observe("room1", SnapshotMessage{
			SenderID: "sender",
			Kind:     TypeText,
			Text:     fmt.Sprintf("msg-%d", i),
			Ts:       int64(i),
		})
	}

	msgs := b.Snapshot("room1")
	if len(msgs) != SnapshotDepth {
		t.Fatalf("expected %d messages, got %d", SnapshotDepth, len(msgs))
	}

	// Only the newest SnapshotDepth messages survive, in order.
	for i, msg := range msgs {
		expected := fmt.Sprintf("msg-%d", i+total-SnapshotDepth+1)
		if msg.Text != expected {
			t.Errorf("index %d: expected %q, got %q", i, expected, msg.Text)
		}
	}
}

func TestSnapshotUnknownRoom(t *testing.T) {
	b := NewSnapshotBuffer()

	msgs := b.Snapshot("does-not-exist")
	if msgs == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(msgs) != 0 {
		t.Fatalf("expected 0 messages, got %d", len(msgs))
	}
}

func TestSnapshotDrop(t *testing.T) {
	b := NewSnapshotBuffer()

	b.Observe("room1", SnapshotMessage{SenderID: "a", Kind: TypeText, Text: "hello", Ts: 1})
	b.Observe("room1", SnapshotMessage{SenderID: "b", Kind: TypeText, Text: "hi", Ts: 2})

	b.Drop("room1")

	if msgs := b.Snapshot("room1"); len(msgs) != 0 {
		t.Fatalf("expected 0 messages after drop, got %d", len(msgs))
	}

	// Dropping an unknown room must not panic.
	b.Drop("never-existed")
}

func TestSnapshotMultipleRooms(t *testing.T) {
	b := NewSnapshotBuffer()

	b.Observe("room1", SnapshotMessage{SenderID: "a", Kind: TypeText, Text: "r1-msg1", Ts: 1})
	b.Observe("room2", SnapshotMessage{SenderID: "b", Kind: TypeText, Text: "r2-msg1", Ts: 2})
	b.Observe("room1", SnapshotMessage{SenderID: "b", Kind: TypeText, Text: "r1-msg2", Ts: 3})

	msgs1 := b.Snapshot("room1")
	msgs2 := b.Snapshot("room2")

	if len(msgs1) != 2 {
		t.Fatalf("room1: expected 2 messages, got %d", len(msgs1))
	}
	if len(msgs2) != 1 {
		t.Fatalf("room2: expected 1 message, got %d", len(msgs2))
	}
	if msgs1[0].Text != "r1-msg1" || msgs1[1].Text != "r1-msg2" {
		t.Errorf("room1 messages out of order: %+v", msgs1)
	}
}

func TestSnapshotConcurrentAccess(t *testing.T) {
	b := NewSnapshotBuffer()
	roomID := "concurrent-room"
	goroutines := 100
	messagesPerGoroutine := 20

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for m := 0; m < messagesPerGoroutine; m++ {
				b.Observe(roomID, SnapshotMessage{
					SenderID: fmt.Sprintf("sender-%d", id),
					Kind:     TypeText,
					Text:     fmt.Sprintf("g%d-m%d", id, m),
					Ts:       int64(id*messagesPerGoroutine + m),
				})
				// Interleave reads to stress the RWMutex.
				_ = b.Snapshot(roomID)
			}
		}(g)
	}

	wg.Wait()

	if msgs := b.Snapshot(roomID); len(msgs) != SnapshotDepth {
		t.Fatalf("expected %d messages after concurrent writes, got %d", SnapshotDepth, len(msgs))
	}
}
