//go:build linux

package netio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/progcache/progcache/internal/cache/manager"
	"github.com/progcache/progcache/internal/protocol"
)

const readScratchSize = 64 * 1024

// Loop is the single-threaded, non-blocking event loop: one epoll
// instance held for the process lifetime, a listening socket, a live
// connection set, and the Entry Manager every command dispatches to.
type Loop struct {
	epfd     int
	listenFD int

	conns map[int]*Conn

	mgr     *manager.Manager
	limiter *acceptLimiter
	log     zerolog.Logger

	stop chan struct{}
}

// NewLoop creates the epoll instance once (not recreated per iteration,
// unlike a naive port) and registers the listening socket for read
// readiness.
func NewLoop(listenFD int, mgr *manager.Manager, acceptRatePerSecond int, log zerolog.Logger) (*Loop, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("netio: epoll_create1: %w", err)
	}

	l := &Loop{
		epfd:     epfd,
		listenFD: listenFD,
		conns:    make(map[int]*Conn),
		mgr:      mgr,
		limiter:  newAcceptLimiter(acceptRatePerSecond),
		log:      log,
		stop:     make(chan struct{}),
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, listenFD, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(listenFD),
	}); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("netio: epoll_ctl add listener: %w", err)
	}

	return l, nil
}

// Stop asks Run to return after its current iteration.
func (l *Loop) Stop() {
	close(l.stop)
}

// Close releases the epoll instance, the accept limiter, and every
// tracked connection's file descriptor, then closes the listening socket
// last.
func (l *Loop) Close() {
	l.limiter.Close()
	for fd, c := range l.conns {
		_ = unix.Close(fd)
		delete(l.conns, fd)
		_ = c
	}
	_ = unix.Close(l.epfd)
	_ = unix.Close(l.listenFD)
}

// Run drives the loop until Stop is called. Each iteration sweeps
// expired entries, waits for readiness, then dispatches accepts and
// reads/writes.
func (l *Loop) Run() error {
	events := make([]unix.EpollEvent, 256)

	for {
		select {
		case <-l.stop:
			return nil
		default:
		}

		l.mgr.Sweep()

		n, err := unix.EpollWait(l.epfd, events, 1000)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("netio: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			flags := events[i].Events

			if fd == l.listenFD {
				l.handleAccept()
				continue
			}

			c, ok := l.conns[fd]
			if !ok {
				continue
			}

			if flags&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				c.WantClose = true
			} else {
				if flags&unix.EPOLLIN != 0 {
					l.handleRead(c)
				}
				if flags&unix.EPOLLOUT != 0 {
					l.handleWrite(c)
				}
			}

			if c.WantClose {
				l.closeConn(c)
				continue
			}
			l.updateInterest(c)
		}
	}
}

func (l *Loop) handleAccept() {
	if !l.limiter.TryTake() {
		return
	}

	fd, sa, err := unix.Accept4(l.listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		if !errors.Is(err, unix.EAGAIN) {
			l.log.Error().Err(err).Msg("accept failed")
		}
		return
	}

	c := NewConn(fd, remoteAddrString(sa))
	l.conns[fd] = c

	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		l.log.Error().Err(err).Msg("epoll_ctl add connection failed")
		_ = unix.Close(fd)
		delete(l.conns, fd)
	}
}

func remoteAddrString(sa unix.Sockaddr) string {
	switch addr := sa.(type) {
	case *unix.SockaddrInet4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", addr.Addr[0], addr.Addr[1], addr.Addr[2], addr.Addr[3], addr.Port)
	case *unix.SockaddrInet6:
		return fmt.Sprintf("[%x]:%d", addr.Addr, addr.Port)
	default:
		return "unknown"
	}
}

// handleRead implements the per-connection read step: read into a
// scratch buffer, append to Incoming, decode and execute as many
// complete pipelined frames as are available, queue their framed
// responses, and opportunistically write them right away.
func (l *Loop) handleRead(c *Conn) {
	scratch := make([]byte, readScratchSize)

	for {
		n, err := unix.Read(c.FD, scratch)
		if n > 0 {
			c.Incoming.Append(scratch[:n])
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				break
			}
			c.WantClose = true
			return
		}
		if n == 0 {
			c.WantClose = true
			return
		}
		if n < len(scratch) {
			break
		}
	}

	l.drainRequests(c)
	if !c.WantClose && c.Outgoing.Len() > 0 {
		l.handleWrite(c)
	}
}

func (l *Loop) drainRequests(c *Conn) {
	for {
		req, consumed, err := protocol.Decode(c.Incoming.Bytes())
		if err != nil {
			if errors.Is(err, protocol.ErrIncomplete) {
				return
			}
			l.log.Warn().Err(err).Str("remote", c.RemoteAddr).Msg("protocol error, closing connection")
			c.WantClose = true
			return
		}

		resp, closed := l.dispatchSafe(c, req)
		if closed {
			return
		}
		c.QueueResponse(protocol.EncodeResponse(resp.Status, resp.Payload))
		c.Incoming.Consume(consumed)
	}
}

// dispatchSafe runs dispatch behind a recover so that a panic anywhere
// inside a single command's execution degrades to closing this one
// connection instead of taking down the event loop or leaving a
// sibling connection's state corrupted.
func (l *Loop) dispatchSafe(c *Conn, req protocol.Request) (resp protocol.Response, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().
				Interface("panic", r).
				Str("remote", c.RemoteAddr).
				Msg("recovered panic dispatching command, closing connection")
			c.WantClose = true
			closed = true
		}
	}()
	return l.dispatch(req), false
}

func (l *Loop) dispatch(req protocol.Request) protocol.Response {
	switch req.Verb {
	case protocol.VerbGet:
		return fromResult(l.mgr.Get(req.Key))
	case protocol.VerbSet:
		return fromResult(l.mgr.Set(req.Key, req.Val))
	case protocol.VerbSetEx:
		return fromResult(l.mgr.SetEx(req.Key, req.Val, req.TTL))
	case protocol.VerbDel:
		return fromResult(l.mgr.Del(req.Key))
	case protocol.VerbTTL:
		return fromResult(l.mgr.TTL(req.Key))
	case protocol.VerbLRUEvict:
		return fromResult(l.mgr.LRUEvict())
	case protocol.VerbLFUEvict:
		return fromResult(l.mgr.LFUEvict())
	default:
		return protocol.Response{Status: protocol.StatusErr}
	}
}

func fromResult(r manager.Result) protocol.Response {
	var status protocol.Status
	switch r.Status {
	case manager.StatusOK:
		status = protocol.StatusOK
	case manager.StatusNX:
		status = protocol.StatusNX
	default:
		status = protocol.StatusErr
	}
	return protocol.Response{Status: status, Payload: r.Payload}
}

// handleWrite implements the per-connection write step: write from
// Outgoing, keeping WantWrite on a partial write and flipping back to
// WantRead on full drain.
func (l *Loop) handleWrite(c *Conn) {
	for c.Outgoing.Len() > 0 {
		n, err := unix.Write(c.FD, c.Outgoing.Bytes())
		if n > 0 {
			c.Outgoing.Consume(n)
		}
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				c.WantWrite = true
				return
			}
			c.WantClose = true
			return
		}
		if n == 0 {
			break
		}
	}
	if c.Outgoing.Len() == 0 {
		c.WantWrite = false
		c.WantRead = true
	}
}

func (l *Loop) updateInterest(c *Conn) {
	var events uint32
	if c.WantRead {
		events |= unix.EPOLLIN
	}
	if c.WantWrite {
		events |= unix.EPOLLOUT
	}
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_MOD, c.FD, &unix.EpollEvent{
		Events: events,
		Fd:     int32(c.FD),
	})
}

func (l *Loop) closeConn(c *Conn) {
	_ = unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, c.FD, nil)
	_ = unix.Close(c.FD)
	delete(l.conns, c.FD)
}

// Listen opens the listening TCP socket described by §6: address ANY on
// the given port, SO_REUSEADDR, backlog SOMAXCONN, non-blocking.
func Listen(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return 0, fmt.Errorf("netio: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("netio: setsockopt SO_REUSEADDR: %w", err)
	}
	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("netio: bind: %w", err)
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("netio: listen: %w", err)
	}
	return fd, nil
}

