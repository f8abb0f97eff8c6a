package fixnet

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"fixengine/internal/fix"
)

// Conn binds one TCP connection to a fix.Session: it implements
// fix.Responder (Send/Disconnect/RemoteAddress) and drives a read loop
// that frames inbound bytes via ScanMessages and feeds them to
// Session.NextBytes.
type Conn struct {
	nc     net.Conn
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	writeLock sync.Mutex
}

var _ fix.Responder = (*Conn)(nil)

// NewConn wraps an accepted or dialed net.Conn.
func NewConn(nc net.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{nc: nc, logger: logger}
}

// Send writes buf to the peer. Write errors close the connection and
// return false; the caller (Session) treats that as "could not send".
func (c *Conn) Send(buf []byte) bool {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if _, err := c.nc.Write(buf); err != nil {
		c.logger.Warn("write failed, closing connection",
			slog.String("remote", c.RemoteAddress()), slog.String("error", err.Error()))
		c.closeLocked()
		return false
	}
	return true
}

// Disconnect closes the underlying connection. Idempotent.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.nc.Close()
}

// RemoteAddress returns the peer's address in string form.
func (c *Conn) RemoteAddress() string {
	return c.nc.RemoteAddr().String()
}

// Serve attaches c to sess via SetResponder and runs the read loop until
// the connection closes. It returns once the peer disconnects or a
// framing error occurs; the caller is responsible for calling
// sess.Disconnect afterward to clear connection state for the next
// attempt.
func Serve(c *Conn, sess *fix.Session, clock fix.Clock) error {
	if clock == nil {
		clock = fix.SystemClock{}
	}

	if !sess.InAllowedRemoteAddresses(c.RemoteAddress()) {
		c.logger.Warn("rejecting connection from disallowed remote address",
			slog.String("remote", c.RemoteAddress()))
		c.Disconnect()
		return fmt.Errorf("fixnet: remote address %s not allowed", c.RemoteAddress())
	}

	if err := sess.SetResponder(c, clock.Now()); err != nil {
		c.Disconnect()
		return fmt.Errorf("fixnet: attach responder: %w", err)
	}

	return ServeLoop(c, sess, clock)
}

// ServeLoop runs the read loop for a connection already attached to sess
// via SetResponder, using a freshly created scanner over c's socket.
func ServeLoop(c *Conn, sess *fix.Session, clock fix.Clock) error {
	return ServeLoopWithScanner(NewScanner(bufio.NewReader(c.nc)), c, sess, clock)
}

// ServeLoopWithScanner runs the read loop using scanner, which the caller
// may have already partially consumed (the acceptor reads the initial
// Logon from it before resolving which Session to attach).
func ServeLoopWithScanner(scanner *bufio.Scanner, c *Conn, sess *fix.Session, clock fix.Clock) error {
	if clock == nil {
		clock = fix.SystemClock{}
	}

	for scanner.Scan() {
		raw := scanner.Bytes()
		msg := make([]byte, len(raw))
		copy(msg, raw)
		if err := sess.NextBytes(msg, clock.Now(), false); err != nil {
			c.logger.Warn("inbound message rejected",
				slog.String("remote", c.RemoteAddress()), slog.String("error", err.Error()))
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("fixnet: read loop: %w", err)
	}
	return nil
}

// Dial connects to addr and returns a Conn ready for Serve, with a
// connect timeout.
func Dial(addr string, timeout time.Duration, logger *slog.Logger) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("fixnet: dial %s: %w", addr, err)
	}
	return NewConn(nc, logger), nil
}
