// Package fixlog adapts fix.Log and fix.LogFactory onto log/slog, the
// daemon's structured logging backend.
package fixlog

import (
	"fmt"
	"log/slog"

	"fixengine/internal/fix"
)

// SlogLog is a fix.Log that writes incoming/outgoing bytes and free-text
// events through a slog.Logger already enriched with the owning session's
// identity.
type SlogLog struct {
	logger *slog.Logger
}

var _ fix.Log = (*SlogLog)(nil)

// NewSlogLog wraps logger for use as a single session's fix.Log. Callers
// typically pass a logger already carrying session_id via .With(), which
// is exactly what SlogLogFactory.Create does.
func NewSlogLog(logger *slog.Logger) *SlogLog {
	return &SlogLog{logger: logger}
}

func (l *SlogLog) OnIncoming(b []byte) {
	l.logger.Debug("<- FIX", slog.String("msg", string(b)))
}

func (l *SlogLog) OnOutgoing(b []byte) {
	l.logger.Debug("-> FIX", slog.String("msg", string(b)))
}

func (l *SlogLog) OnEvent(text string) {
	l.logger.Info(text)
}

func (l *SlogLog) OnEventf(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

// SlogLogFactory creates a SlogLog per session, enriching a shared base
// logger with that session's identity.
type SlogLogFactory struct {
	base *slog.Logger
}

var _ fix.LogFactory = (*SlogLogFactory)(nil)

// NewSlogLogFactory returns a LogFactory that derives each session's
// logger from base.
func NewSlogLogFactory(base *slog.Logger) *SlogLogFactory {
	return &SlogLogFactory{base: base}
}

func (f *SlogLogFactory) Create(sessionID fix.SessionID) fix.Log {
	return NewSlogLog(f.base.With(
		slog.String("session_id", sessionID.String()),
		slog.String("begin_string", sessionID.BeginString),
	))
}
