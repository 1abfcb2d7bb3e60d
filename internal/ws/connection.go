package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is a single live WebSocket connection for one user.
type Connection struct {
	ID         string // server-assigned connection ID
	UserID     string // authenticated user this connection belongs to
	Conn       net.Conn
	Fd         int // socket file descriptor, used for epoll bookkeeping
	CreatedAt  time.Time
	LastPing   time.Time
	writeMu    sync.Mutex
	processing int32 // CAS guard against duplicate epoll dispatch
}

// WriteMessage writes a text frame. Serialized so concurrent handlers and
// the heartbeat never interleave frames.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// WritePing sends a WebSocket ping control frame.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpPing, nil)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager tracks live connections, indexed three ways: by
// connection ID, by net.Conn (for epoll readiness lookups), and by user ID
// (for routing chat events to a partner).
type ConnectionManager struct {
	mu     sync.RWMutex
	conns  map[string]*Connection // conn ID -> connection
	byConn map[net.Conn]*Connection
	byUser map[string]*Connection // user ID -> connection
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns:  make(map[string]*Connection),
		byConn: make(map[net.Conn]*Connection),
		byUser: make(map[string]*Connection),
	}
}

// Add registers a connection. A second connection for the same user
// replaces the first in the user index; the stale connection is returned
// to the caller for cleanup, or nil.
func (m *ConnectionManager) Add(c *Connection) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	stale := m.byUser[c.UserID]

	m.conns[c.ID] = c
	m.byConn[c.Conn] = c
	m.byUser[c.UserID] = c

	return stale
}

// Remove deletes a connection by ID. Returns false if it was already gone,
// which makes concurrent removal idempotent.
func (m *ConnectionManager) Remove(connID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[connID]
	if !ok {
		return false
	}

	delete(m.conns, connID)
	delete(m.byConn, c.Conn)

	// Only clear the user index if it still points at this connection.
	if m.byUser[c.UserID] == c {
		delete(m.byUser, c.UserID)
	}

	return true
}

// Get returns the connection with the given ID, or nil.
func (m *ConnectionManager) Get(connID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conns[connID]
}

// GetByConn returns the connection wrapping the given net.Conn, or nil.
func (m *ConnectionManager) GetByConn(conn net.Conn) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byConn[conn]
}

// GetByUser returns the user's live connection, or nil.
func (m *ConnectionManager) GetByUser(userID string) *Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byUser[userID]
}

// Count returns the number of live connections.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// All returns a snapshot slice of every live connection.
func (m *ConnectionManager) All() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}
