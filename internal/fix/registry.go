package fix

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// stateChangeBufferSize bounds the StateChanges fan-out channel. A
// consumer that falls behind causes new notifications to be dropped
// rather than blocking the Application callback that produced them.
const stateChangeBufferSize = 64

// ConnectionState is the coarse logged-on/logged-off state reported by a
// StateChange notification.
type ConnectionState int

const (
	// ConnectionStateLoggedOff indicates the session is not currently logged on.
	ConnectionStateLoggedOff ConnectionState = iota
	// ConnectionStateLoggedOn indicates the session completed a logon handshake.
	ConnectionStateLoggedOn
)

func (s ConnectionState) String() string {
	if s == ConnectionStateLoggedOn {
		return "LoggedOn"
	}
	return "LoggedOff"
}

// StateChange describes a single session's transition into or out of the
// logged-on state, modeled on the session-manager state notification
// idiom used elsewhere in this codebase for decoupling FSM transitions
// from their consumers.
type StateChange struct {
	SessionID SessionID
	State     ConnectionState
	Timestamp time.Time
}

// SessionRegistry is the process-wide lookup table mapping SessionID to
// Session (C8), grounded on the original engine's static
// registerSession/lookupSession/unregisterSession methods and on the
// Manager's discriminator-keyed map idiom.
//
// A single mutex guards the registry map. Session.mu is never acquired
// while the registry mutex is held (§5 ordering discipline) — Add/Remove
// only store/delete a pointer, and SendToTarget looks the Session up,
// releases the registry lock, and only then calls the Session's own
// locked Send method.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*Session

	rawNotifyCh    chan StateChange
	publicNotifyCh chan StateChange
	dispatchDone   chan struct{}

	logger *slog.Logger
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		sessions:       make(map[SessionID]*Session),
		rawNotifyCh:    make(chan StateChange, stateChangeBufferSize),
		publicNotifyCh: make(chan StateChange, stateChangeBufferSize),
		dispatchDone:   make(chan struct{}),
		logger:         logger.With(slog.String("component", "fix.registry")),
	}
}

// StateChanges returns a channel of state transitions for every session
// registered through this registry. The channel is shared by all
// consumers; a slow consumer sees drops rather than stalling the Session
// goroutine that produced the notification. Callers must range over the
// channel from a goroutine that stays alive for the registry's lifetime,
// and must have started RunDispatch.
func (r *SessionRegistry) StateChanges() <-chan StateChange {
	return r.publicNotifyCh
}

// RunDispatch fans rawNotifyCh out to publicNotifyCh until ctx is done. It
// must be started exactly once per registry, typically from the daemon's
// main goroutine alongside the other long-running loops.
func (r *SessionRegistry) RunDispatch(ctx context.Context) {
	defer close(r.dispatchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-r.rawNotifyCh:
			select {
			case r.publicNotifyCh <- change:
			default:
				r.logger.Warn("state change notification dropped, consumer too slow",
					slog.String("session_id", change.SessionID.String()),
					slog.String("state", change.State.String()))
			}
		}
	}
}

// NotifyStateChange publishes a state transition without blocking the
// caller. It is safe to call from any goroutine, including one holding a
// Session's own lock, since rawNotifyCh is only ever drained by
// RunDispatch.
//
// Sessions do not call this directly — they have no registry reference.
// Wire it in by constructing each Session's Application with
// NotifyingApplication(app, registry.NotifyStateChange), so the registry
// learns of logon/logout the same way any other Application observer
// would.
func (r *SessionRegistry) NotifyStateChange(id SessionID, state ConnectionState, now time.Time) {
	change := StateChange{SessionID: id, State: state, Timestamp: now}
	select {
	case r.rawNotifyCh <- change:
	default:
		r.logger.Warn("state change notification queue full, dropping",
			slog.String("session_id", change.SessionID.String()),
			slog.String("state", change.State.String()))
	}
}

// Add registers sess under its own SessionID. Returns ErrDuplicateSession
// if a session is already registered with that identity.
func (r *SessionRegistry) Add(sess *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := sess.ID()
	if _, exists := r.sessions[id]; exists {
		return fmt.Errorf("register session %s: %w", id, ErrDuplicateSession)
	}
	r.sessions[id] = sess
	r.logger.Info("session registered", slog.String("session_id", id.String()))
	return nil
}

// Remove unregisters the session with the given SessionID, if present.
// Removing an unregistered SessionID is a no-op.
func (r *SessionRegistry) Remove(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		r.logger.Info("session unregistered", slog.String("session_id", id.String()))
	}
}

// Lookup returns the session registered under id.
func (r *SessionRegistry) Lookup(id SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// LookupString parses s with ParseSessionID(s, reverse) and looks up the
// resulting SessionID — the registry-level analogue of resolving an
// inbound header's (BeginString, SenderCompID, TargetCompID) to the local
// session that owns the opposite role.
func (r *SessionRegistry) LookupString(s string, reverse bool) (*Session, bool) {
	id, ok := ParseSessionID(s, reverse)
	if !ok {
		return nil, false
	}
	return r.Lookup(id)
}

// IsRegistered reports whether id names a currently-registered session.
func (r *SessionRegistry) IsRegistered(id SessionID) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Sessions returns every registered Session, for enumeration (e.g. the
// admin API's session listing and the timer loop driving Tick on each
// session).
func (r *SessionRegistry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}

// NumSessions returns the number of registered sessions.
func (r *SessionRegistry) NumSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SendToTarget resolves id to its registered Session and sends msg through
// it, mirroring the original engine's static Session::sendToTarget
// overloads. Returns ErrSessionNotFound if no session matches.
func (r *SessionRegistry) SendToTarget(msg *Message, id SessionID) (bool, error) {
	sess, ok := r.Lookup(id)
	if !ok {
		return false, fmt.Errorf("send to target %s: %w", id, ErrSessionNotFound)
	}
	return sess.Send(msg)
}
