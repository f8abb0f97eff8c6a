package fixnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"fixengine/internal/fix"
)

// SessionResolver maps (BeginString, SenderCompID, TargetCompID) in the
// local session's point of view to a locally registered acceptor Session.
// The Acceptor swaps the inbound header's CompIDs before calling it.
type SessionResolver func(beginString, senderCompID, targetCompID string) (*fix.Session, bool)

// Acceptor listens for inbound TCP connections and, after reading each
// peer's initial Logon header, binds the connection to the matching
// registered Session.
type Acceptor struct {
	ln      net.Listener
	resolve SessionResolver
	clock   fix.Clock
	logger  *slog.Logger
}

// NewAcceptor wraps ln. resolve is typically registry.Lookup adapted to
// this signature (see cmd/fixengine for the exact glue).
func NewAcceptor(ln net.Listener, resolve SessionResolver, clock fix.Clock, logger *slog.Logger) *Acceptor {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = fix.SystemClock{}
	}
	return &Acceptor{ln: ln, resolve: resolve, clock: clock, logger: logger}
}

// Listen opens a TCP listener on addr and wraps it in an Acceptor.
func Listen(addr string, resolve SessionResolver, clock fix.Clock, logger *slog.Logger) (*Acceptor, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("fixnet: listen on %s: %w", addr, err)
	}
	return NewAcceptor(ln, resolve, clock, logger), nil
}

// Addr returns the listener's bound address.
func (a *Acceptor) Addr() net.Addr { return a.ln.Addr() }

// Close stops accepting new connections.
func (a *Acceptor) Close() error { return a.ln.Close() }

// Run accepts connections until ctx is cancelled or the listener closes.
// Each connection is dispatched to its own goroutine that reads the
// initial Logon's header, resolves it to a registered Session via
// resolve, and then runs the read loop.
func (a *Acceptor) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = a.ln.Close()
	}()

	for {
		nc, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("fixnet: accept: %w", err)
		}
		go a.handle(nc)
	}
}

func (a *Acceptor) handle(nc net.Conn) {
	conn := NewConn(nc, a.logger)
	scanner := NewScanner(bufio.NewReader(nc))

	if !scanner.Scan() {
		a.logger.Warn("connection closed before a Logon arrived",
			slog.String("remote", conn.RemoteAddress()))
		conn.Disconnect()
		return
	}
	first := append([]byte(nil), scanner.Bytes()...)

	header, err := parseLogonHeader(first)
	if err != nil {
		a.logger.Warn("failed to read initial Logon header, closing",
			slog.String("remote", conn.RemoteAddress()), slog.String("error", err.Error()))
		conn.Disconnect()
		return
	}

	// An inbound header carries Sender/TargetCompID from the peer's point
	// of view, i.e. reversed relative to our own registered SessionID.
	sess, ok := a.resolve(header.beginString, header.targetCompID, header.senderCompID)
	if !ok {
		a.logger.Warn("no session registered for inbound Logon",
			slog.String("remote", conn.RemoteAddress()),
			slog.String("begin_string", header.beginString),
			slog.String("sender_comp_id", header.senderCompID),
			slog.String("target_comp_id", header.targetCompID))
		conn.Disconnect()
		return
	}

	if !sess.IsEnabled() {
		a.logger.Warn("session not enabled, rejecting inbound connection",
			slog.String("session_id", sess.ID().String()))
		conn.Disconnect()
		return
	}

	if err := attachAndReplay(sess, conn, first, a.clock); err != nil {
		a.logger.Warn("failed to process initial inbound Logon",
			slog.String("session_id", sess.ID().String()), slog.String("error", err.Error()))
	}

	if err := ServeLoopWithScanner(scanner, conn, sess, a.clock); err != nil {
		a.logger.Info("connection closed",
			slog.String("session_id", sess.ID().String()), slog.String("error", err.Error()))
	}
	sess.Disconnect("connection closed")
}

// attachAndReplay attaches conn to sess and feeds it the already-scanned
// first message, since handle's scanner consumed it ahead of
// ServeLoopWithScanner.
func attachAndReplay(sess *fix.Session, conn *Conn, first []byte, clock fix.Clock) error {
	if !sess.InAllowedRemoteAddresses(conn.RemoteAddress()) {
		conn.Disconnect()
		return fmt.Errorf("fixnet: remote address %s not allowed", conn.RemoteAddress())
	}
	if err := sess.SetResponder(conn, clock.Now()); err != nil {
		conn.Disconnect()
		return fmt.Errorf("fixnet: attach responder: %w", err)
	}
	return sess.NextBytes(first, clock.Now(), false)
}
