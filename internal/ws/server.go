// Package ws manages the gateway's WebSocket side: upgrading HTTP
// connections, tracking live user connections, and dispatching incoming
// frames to message handlers. Built on gobwas/ws with a Linux epoll event
// loop (goroutine-per-connection fallback elsewhere).
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/silentcircle/backend/internal/metrics"
	"github.com/silentcircle/backend/internal/session"
)

// ServerConfig holds tunable parameters for the WebSocket server.
type ServerConfig struct {
	ListenAddr     string        // address to listen on, e.g. ":8080"
	WorkerPoolSize int           // max concurrent read-worker goroutines
	MaxConnections int           // hard cap on total connections
	ReadTimeout    time.Duration // timeout for WebSocket read operations
	WriteTimeout   time.Duration // timeout for WebSocket write operations
}

// DefaultServerConfig returns production defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:     ":8080",
		WorkerPoolSize: 256,
		MaxConnections: 100000,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// AuthFunc resolves the connecting user from the upgrade request. An error
// rejects the connection before the upgrade happens.
type AuthFunc func(r *http.Request) (userID string, err error)

// Server accepts WebSocket connections, registers them with the epoll
// instance for readiness notifications, and hands ready connections to a
// bounded worker pool for frame reading.
type Server struct {
	config        ServerConfig
	epoll         *Epoll
	conns         *ConnectionManager
	sessions      *session.Store // Redis-backed presence state
	workerPool    chan struct{}  // semaphore limiting concurrent read workers
	authenticate  AuthFunc
	onMessage     func(conn *Connection, data []byte)
	onConnect     func(conn *Connection) bool // false rejects the connection
	onDisconnect  func(conn *Connection)
	routes        func(mux *http.ServeMux)
	httpServer    *http.Server
	done          chan struct{}
	stopHeartbeat func()
	startedAt     time.Time
}

// NewServer creates a Server. onMessage is called from a worker goroutine
// for every complete text frame received from a client.
func NewServer(config ServerConfig, sessions *session.Store, onMessage func(conn *Connection, data []byte)) *Server {
	return &Server{
		config:     config,
		conns:      NewConnectionManager(),
		sessions:   sessions,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		onMessage:  onMessage,
		done:       make(chan struct{}),
	}
}

// SetAuthenticator installs the upgrade-time authentication hook. Without
// one, every connection is rejected.
func (s *Server) SetAuthenticator(fn AuthFunc) {
	s.authenticate = fn
}

// SetOnConnect installs a hook run after a connection is registered and its
// presence entry exists. Returning false drops the connection; the hook is
// where ban checks and the greeting live.
func (s *Server) SetOnConnect(fn func(conn *Connection) bool) {
	s.onConnect = fn
}

// SetOnDisconnect registers a callback invoked when a connection is removed,
// before the presence entry is deleted.
func (s *Server) SetOnDisconnect(fn func(conn *Connection)) {
	s.onDisconnect = fn
}

// RegisterRoutes lets the caller attach additional HTTP routes (the JSON
// API, metrics) to the server's mux before Start.
func (s *Server) RegisterRoutes(fn func(mux *http.ServeMux)) {
	s.routes = fn
}

// Start initializes epoll, sets up the HTTP server, and begins accepting
// connections. Blocks until the listener stops.
func (s *Server) Start() error {
	var err error
	s.epoll, err = NewEpoll()
	if err != nil {
		return fmt.Errorf("ws: failed to create epoll: %w", err)
	}

	s.startedAt = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/health", s.handleHealth)
	if s.routes != nil {
		s.routes(mux)
	}

	s.httpServer = &http.Server{
		Addr:    s.config.ListenAddr,
		Handler: mux,
	}

	go s.startEventLoop()

	s.stopHeartbeat = StartHeartbeat(s, DefaultHeartbeatConfig())

	log.Printf("[ws] listening on %s (workers=%d, max_conns=%d)",
		s.config.ListenAddr, s.config.WorkerPoolSize, s.config.MaxConnections)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ws: http server error: %w", err)
	}
	return nil
}

// handleUpgrade authenticates the request, upgrades it to a WebSocket, and
// registers the connection with the manager and epoll.
func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.conns.Count() >= s.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if s.authenticate == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		UserID:    userID,
		Conn:      conn,
		Fd:        socketFD(conn),
		CreatedAt: time.Now(),
		LastPing:  time.Now(),
	}

	if stale := s.conns.Add(c); stale != nil {
		// Same user reconnected; drop the old connection quietly.
		_ = s.epoll.Remove(stale.Conn)
		s.conns.Remove(stale.ID)
		stale.Close()
	}
	if err := s.epoll.Add(conn); err != nil {
		log.Printf("[ws] epoll add failed user=%s: %v", userID, err)
		s.conns.Remove(c.ID)
		return
	}

	if s.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.sessions.Create(ctx, userID); err != nil {
			log.Printf("[ws] presence create failed user=%s: %v", userID, err)
		}
	}

	metrics.ConnectionsTotal.Inc()

	if s.onConnect != nil && !s.onConnect(c) {
		s.RemoveConnection(c)
		return
	}

	log.Printf("[ws] connected user=%s conn=%s fd=%d (total=%d)",
		userID, c.ID, c.Fd, s.conns.Count())
}

// handleHealth reports liveness plus connection count and uptime as JSON.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Uptime      string `json:"uptime"`
	}{
		Status:      "ok",
		Connections: s.conns.Count(),
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// startEventLoop runs the epoll wait loop, dispatching each ready
// connection to a worker goroutine bounded by the pool semaphore.
func (s *Server) startEventLoop() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		conns, err := s.epoll.Wait()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				// EINTR is expected during signal handling.
				if isEINTR(err) {
					continue
				}
				log.Printf("[ws] epoll wait error: %v", err)
				continue
			}
		}

		for _, conn := range conns {
			conn := conn

			s.workerPool <- struct{}{}

			go func() {
				defer func() { <-s.workerPool }()
				s.handleConn(conn)
			}()
		}
	}
}

// handleConn reads one WebSocket frame from a ready connection. Control
// frames are handled without blocking on a data frame that may never
// arrive; read failures remove the connection.
func (s *Server) handleConn(netConn net.Conn) {
	c := s.conns.GetByConn(netConn)
	if c == nil {
		return
	}

	// Guard against duplicate dispatch from level-triggered epoll.
	if !atomic.CompareAndSwapInt32(&c.processing, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&c.processing, 0)

	if s.config.ReadTimeout > 0 {
		_ = netConn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}

	header, reader, err := wsutil.NextReader(netConn, ws.StateServerSide)
	if err != nil {
		// A read timeout means no data was available (stale epoll
		// dispatch); the heartbeat handles genuinely dead connections.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return
		}
		s.RemoveConnection(c)
		return
	}

	_ = netConn.SetReadDeadline(time.Time{})

	// Any frame proves the connection is alive.
	c.LastPing = time.Now()

	if header.OpCode.IsControl() {
		if header.OpCode == ws.OpClose {
			s.RemoveConnection(c)
		}
		return
	}

	data := make([]byte, header.Length)
	if header.Length > 0 {
		if _, err := io.ReadFull(reader, data); err != nil {
			s.RemoveConnection(c)
			return
		}
	}

	if len(data) == 0 {
		return
	}

	if s.onMessage != nil {
		s.onMessage(c, data)
	}
}

// RemoveConnection removes a connection from epoll and the manager, runs
// the disconnect hook, and deletes the user's presence entry. Safe against
// concurrent removal attempts.
func (s *Server) RemoveConnection(c *Connection) {
	_ = s.epoll.Remove(c.Conn)

	if !s.conns.Remove(c.ID) {
		return
	}

	metrics.ConnectionsTotal.Dec()

	if s.onDisconnect != nil {
		s.onDisconnect(c)
	}

	if s.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.sessions.Delete(ctx, c.UserID); err != nil {
			log.Printf("[ws] presence delete failed user=%s: %v", c.UserID, err)
		}
	}

	log.Printf("[ws] disconnected user=%s conn=%s (total=%d)", c.UserID, c.ID, s.conns.Count())
}

// SendToUser writes a text frame to the user's live connection, if any.
func (s *Server) SendToUser(userID string, data []byte) error {
	c := s.conns.GetByUser(userID)
	if c == nil {
		return fmt.Errorf("ws: user %s not connected", userID)
	}
	return s.send(c, data)
}

// SendMessage writes a text frame to the connection identified by connID.
func (s *Server) SendMessage(connID string, data []byte) error {
	c := s.conns.Get(connID)
	if c == nil {
		return fmt.Errorf("ws: connection %s not found", connID)
	}
	return s.send(c, data)
}

func (s *Server) send(c *Connection, data []byte) error {
	if s.config.WriteTimeout > 0 {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	}

	err := c.WriteMessage(data)

	// Clear the write deadline so it does not affect heartbeat pings.
	_ = c.Conn.SetWriteDeadline(time.Time{})

	return err
}

// Connections returns the ConnectionManager for the heartbeat and handlers.
func (s *Server) Connections() *ConnectionManager {
	return s.conns
}

// Sessions returns the presence store for message handlers.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Shutdown stops the HTTP listener, the event loop, and every connection.
func (s *Server) Shutdown() error {
	log.Println("[ws] shutting down...")

	close(s.done)
	if s.stopHeartbeat != nil {
		s.stopHeartbeat()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("[ws] http shutdown error: %v", err)
	}

	for _, c := range s.conns.All() {
		if s.sessions != nil {
			delCtx, delCancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.sessions.Delete(delCtx, c.UserID)
			delCancel()
		}
		_ = s.epoll.Remove(c.Conn)
		c.Close()
	}

	if s.epoll != nil {
		_ = s.epoll.Close()
	}

	log.Printf("[ws] stopped, all connections closed")
	return nil
}

// isEINTR reports whether the error is an interrupted syscall, which is
// expected during signal handling and retried.
func isEINTR(err error) bool {
	if err == nil {
		return false
	}
	return err.Error() == "interrupted system call" ||
		err.Error() == "errno 4"
}
