package chat

import "sync"

// SnapshotDepth is the number of recent messages retained per room for
// report evidence. Rooms with no reports cost only this in-memory window;
// nothing here touches the database.
const SnapshotDepth = 10

// SnapshotMessage is a single message as captured for a report snapshot.
// Voice messages are captured by reference only.
type SnapshotMessage struct {
	SenderID string `json:"sender_id"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Ts       int64  `json:"ts"`
}

// SnapshotBuffer keeps the last SnapshotDepth messages per room in memory
// so a report filed mid-session can attach the recent conversation.
// Goroutine-safe; each room gets a fixed-size ring.
type SnapshotBuffer struct {
	mu    sync.RWMutex
	rooms map[string]*ring
}

type ring struct {
	items []SnapshotMessage
	pos   int
	count int
}

// NewSnapshotBuffer creates an empty snapshot buffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{
		rooms: make(map[string]*ring),
	}
}

// Observe records a message in the room's ring. When the ring is full the
// oldest entry is overwritten.
func (b *SnapshotBuffer) Observe(roomID string, msg SnapshotMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.rooms[roomID]
	if !ok {
		r = &ring{
			items: make([]SnapshotMessage, SnapshotDepth),
		}
		b.rooms[roomID] = r
	}

	r.items[r.pos] = msg
	r.pos = (r.pos + 1) % SnapshotDepth
	if r.count < SnapshotDepth {
		r.count++
	}
}

// Snapshot returns the room's retained messages in chronological order
// (oldest first). Returns an empty slice for an unknown room.
func (b *SnapshotBuffer) Snapshot(roomID string) []SnapshotMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.rooms[roomID]
	if !ok {
		return []SnapshotMessage{}
	}

	out := make([]SnapshotMessage, r.count)
	// The oldest entry sits at (pos - count) mod SnapshotDepth.
	start := (r.pos - r.count + SnapshotDepth) % SnapshotDepth
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(start+i)%SnapshotDepth]
	}
	return out
}

// Drop discards the room's ring once the session ends.
func (b *SnapshotBuffer) Drop(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.rooms, roomID)
}
