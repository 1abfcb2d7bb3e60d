package ws

import (
	"net"
	"testing"
	"time"
)

func newTestConn(t *testing.T, id, userID string) (*Connection, func()) {
	t.Helper()

	client, server := net.Pipe()
	c := &Connection{
		ID:        id,
		UserID:    userID,
		Conn:      server,
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}
	return c, func() {
		client.Close()
		server.Close()
	}
}

func TestManagerAddAndLookups(t *testing.T) {
	m := NewConnectionManager()

	c, done := newTestConn(t, "conn-1", "user-1")
	defer done()

	if stale := m.Add(c); stale != nil {
		t.Errorf("expected no stale connection, got %v", stale.ID)
	}

	if got := m.Get("conn-1"); got != c {
		t.Error("Get by ID returned wrong connection")
	}
	if got := m.GetByConn(c.Conn); got != c {
		t.Error("GetByConn returned wrong connection")
	}
	if got := m.GetByUser("user-1"); got != c {
		t.Error("GetByUser returned wrong connection")
	}
	if m.Count() != 1 {
		t.Errorf("expected count 1, got %d", m.Count())
	}
}

func TestManagerReconnectReplacesUserIndex(t *testing.T) {
	m := NewConnectionManager()

	first, done1 := newTestConn(t, "conn-1", "user-1")
	defer done1()
	second, done2 := newTestConn(t, "conn-2", "user-1")
	defer done2()

	m.Add(first)
	stale := m.Add(second)

	if stale != first {
		t.Fatal("expected first connection returned as stale")
	}
	if got := m.GetByUser("user-1"); got != second {
		t.Error("user index should point at the newer connection")
	}

	// Removing the stale connection must not clobber the user index.
	if !m.Remove(first.ID) {
		t.Fatal("Remove(first) should succeed")
	}
	if got := m.GetByUser("user-1"); got != second {
		t.Error("user index lost after removing the stale connection")
	}
}

func TestManagerRemoveIdempotent(t *testing.T) {
	m := NewConnectionManager()

	c, done := newTestConn(t, "conn-1", "user-1")
	defer done()
	m.Add(c)

	if !m.Remove("conn-1") {
		t.Error("first Remove should return true")
	}
	if m.Remove("conn-1") {
		t.Error("second Remove should return false")
	}
	if m.Count() != 0 {
		t.Errorf("expected count 0, got %d", m.Count())
	}
	if m.GetByUser("user-1") != nil {
		t.Error("user index should be empty after Remove")
	}
}

func TestManagerAll(t *testing.T) {
	m := NewConnectionManager()

	for i, id := range []string{"a", "b", "c"} {
		c, done := newTestConn(t, id, "user-"+id)
		defer done()
		m.Add(c)
		if m.Count() != i+1 {
			t.Fatalf("expected count %d, got %d", i+1, m.Count())
		}
	}

	all := m.All()
	if len(all) != 3 {
		t.Errorf("expected 3 connections, got %d", len(all))
	}
}
