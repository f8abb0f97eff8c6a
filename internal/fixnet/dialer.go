package fixnet

import (
	"context"
	"log/slog"
	"time"

	"fixengine/internal/fix"
)

// DialTimeout is the default connect timeout used by RunInitiator.
const DialTimeout = 10 * time.Second

// RunInitiator connects to addr and serves sess until ctx is cancelled or
// the connection drops, reconnecting with backoff in between. It is
// intended to run for the lifetime of an initiator-role Session in its
// own goroutine.
func RunInitiator(ctx context.Context, addr string, sess *fix.Session, clock fix.Clock, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = fix.SystemClock{}
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if !sess.IsEnabled() {
			if !sleepCtx(ctx, backoff) {
				return
			}
			continue
		}

		conn, err := Dial(addr, DialTimeout, logger)
		if err != nil {
			logger.Warn("initiator dial failed, retrying",
				slog.String("session_id", sess.ID().String()),
				slog.String("addr", addr), slog.String("error", err.Error()))
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = time.Second

		stopWatcher := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Disconnect()
			case <-stopWatcher:
			}
		}()

		if err := Serve(conn, sess, clock); err != nil {
			logger.Info("initiator connection closed",
				slog.String("session_id", sess.ID().String()), slog.String("error", err.Error()))
		}
		close(stopWatcher)
		sess.Disconnect("connection closed")
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
