//go:build linux

package ws

import (
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Epoll multiplexes read readiness over all registered connections with a
// single kernel interest list, so the server does not need a blocked
// reader goroutine per connection.
type Epoll struct {
	fd    int
	mu    sync.RWMutex
	byFd  map[int]net.Conn
	evbuf []unix.EpollEvent // reused across Wait calls
}

func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &Epoll{
		fd:    fd,
		byFd:  make(map[int]net.Conn),
		evbuf: make([]unix.EpollEvent, 128),
	}, nil
}

// Add puts the connection's descriptor on the interest list for read and
// hangup events.
func (e *Epoll) Add(conn net.Conn) error {
	fd := socketFD(conn)
	err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLHUP,
		Fd:     int32(fd),
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.byFd[fd] = conn
	e.mu.Unlock()
	return nil
}

// Remove drops the connection from the interest list.
func (e *Epoll) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return err
	}

	e.mu.Lock()
	delete(e.byFd, fd)
	e.mu.Unlock()
	return nil
}

// Wait blocks until at least one registered connection is readable.
// Descriptors removed between the kernel wakeup and the map lookup are
// skipped.
func (e *Epoll) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(e.fd, e.evbuf, -1)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	conns := make([]net.Conn, 0, n)
	for i := 0; i < n; i++ {
		if conn, ok := e.byFd[int(e.evbuf[i].Fd)]; ok {
			conns = append(conns, conn)
		}
	}
	e.mu.RUnlock()
	return conns, nil
}

func (e *Epoll) Close() error {
	e.mu.Lock()
	e.byFd = nil
	e.mu.Unlock()
	return unix.Close(e.fd)
}

// socketFD pulls the descriptor out of a net.Conn via SyscallConn. Unlike
// File(), this does not duplicate the fd, so the one registered with epoll
// is the one the connection actually reads on.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}

	fd := -1
	_ = raw.Control(func(sfd uintptr) {
		fd = int(sfd)
	})
	return fd
}
