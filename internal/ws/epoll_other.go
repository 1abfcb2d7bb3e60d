//go:build !linux

package ws

import (
	"net"
	"sync"
)

// Epoll on non-Linux platforms falls back to one watcher goroutine per
// connection feeding a ready channel. Good enough for local development;
// production runs on Linux with the real epoll build.
type Epoll struct {
	mu    sync.RWMutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

func NewEpoll() (*Epoll, error) {
	return &Epoll{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, 128),
		done:  make(chan struct{}),
	}, nil
}

// Add starts a watcher goroutine for the connection.
func (e *Epoll) Add(conn net.Conn) error {
	e.mu.Lock()
	e.conns[conn] = struct{}{}
	e.mu.Unlock()

	go e.watch(conn)
	return nil
}

// watch blocks on a 1-byte read to detect incoming data, then signals
// readiness. The consumed byte is lost to the frame parser; this fallback
// is a development convenience, not a correct WebSocket path, which is why
// non-Linux builds are not used in production. On read error the
// connection is reported ready one last time so the server's read path
// observes the closure.
func (e *Epoll) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)

		e.mu.RLock()
		_, registered := e.conns[conn]
		e.mu.RUnlock()
		if !registered {
			return
		}

		select {
		case e.ready <- conn:
		case <-e.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Remove stops tracking the connection; its watcher exits on the next
// readiness check.
func (e *Epoll) Remove(conn net.Conn) error {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued.
func (e *Epoll) Wait() ([]net.Conn, error) {
	var first net.Conn
	select {
	case first = <-e.ready:
	case <-e.done:
		return nil, net.ErrClosed
	}

	conns := []net.Conn{first}
	for {
		select {
		case conn := <-e.ready:
			conns = append(conns, conn)
		default:
			return conns, nil
		}
	}
}

func (e *Epoll) Close() error {
	close(e.done)
	e.mu.Lock()
	e.conns = nil
	e.mu.Unlock()
	return nil
}

// socketFD has no meaning without epoll; the fd field is unused on this
// build.
func socketFD(conn net.Conn) int {
	return -1
}
