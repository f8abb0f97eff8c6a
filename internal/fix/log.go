package fix

// Log is the per-session event logging sink (C10). The session layer logs
// three channels: raw incoming bytes, raw outgoing bytes, and free-text
// events (state transitions, errors, protocol violations). A production
// Log is typically backed by log/slog (see the fixlog package); tests use
// a recording fake.
type Log interface {
	OnIncoming(bytes []byte)
	OnOutgoing(bytes []byte)
	OnEvent(text string)
	OnEventf(format string, args ...any)
}

// LogFactory creates a Log for a given SessionID. The engine calls it
// once per Session at construction time, mirroring MessageStoreFactory's
// role for MessageStore.
type LogFactory interface {
	Create(sessionID SessionID) Log
}

// NopLog discards everything. Useful as a default when no LogFactory is
// configured and in tests that don't care about log output.
type NopLog struct{}

func (NopLog) OnIncoming([]byte)        {}
func (NopLog) OnOutgoing([]byte)        {}
func (NopLog) OnEvent(string)           {}
func (NopLog) OnEventf(string, ...any)  {}

var _ Log = NopLog{}

// nopLogFactory creates NopLog instances.
type nopLogFactory struct{}

func (nopLogFactory) Create(SessionID) Log { return NopLog{} }

// NopLogFactory is the zero-configuration LogFactory.
var NopLogFactory LogFactory = nopLogFactory{}
