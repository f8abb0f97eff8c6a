package fix

import "time"

// Application is the upcall sink the Session drives (C6). An
// implementation owns business semantics; the session layer only knows
// the small set of hooks below exist.
//
// FromAdmin and FromApp may return an error to veto processing of the
// inbound message:
//   - wrapping ErrRejectLogon (FromAdmin on a Logon only) causes a
//     Reject + Logout + disconnect.
//   - a FieldNotFoundError (or anything wrapping ErrFieldNotFound) causes
//     a Reject(reason=RequiredTagMissing); RefTagID is not set on it.
//   - wrapping ErrIncorrectTagValue causes a Reject(reason=ValueIncorrect).
//   - wrapping ErrUnsupportedMessageType (FromApp only) causes a
//     BusinessMessageReject.
//   - any other error causes a Reject with a free-text reason.
//
// ToApp may return an error wrapping ErrDoNotSend to veto an outbound
// application message after the sequence number has already been
// assigned; the session consumes the assigned number (it is not reused)
// but never calls the Responder.
type Application interface {
	// OnCreate is called once, when a Session is constructed.
	OnCreate(sessionID SessionID)

	// OnLogon is called when the session completes a successful logon
	// handshake (both sentLogon and receivedLogon become true).
	OnLogon(sessionID SessionID)

	// OnLogout is called when the session transitions out of the
	// logged-on state, however that happens (graceful or not).
	OnLogout(sessionID SessionID)

	// ToAdmin is called on every outbound admin message immediately
	// before it is sent, after the header has been filled. Implementations
	// may mutate msg (e.g. to add a custom tag) but must not change
	// MsgType, MsgSeqNum, or the CompIDs.
	ToAdmin(msg *Message, sessionID SessionID)

	// FromAdmin is called on every inbound admin message after sequence
	// number acceptance, before the session's own handler runs.
	FromAdmin(msg *Message, sessionID SessionID) error

	// ToApp is called on every outbound application (non-admin) message
	// immediately before it is sent.
	ToApp(msg *Message, sessionID SessionID) error

	// FromApp is called on every inbound application (non-admin) message
	// after sequence number acceptance.
	FromApp(msg *Message, sessionID SessionID) error
}

// NopApplication is a no-op Application, useful as an embeddable base for
// tests and tools that only care about a subset of the callbacks.
type NopApplication struct{}

func (NopApplication) OnCreate(SessionID)                   {}
func (NopApplication) OnLogon(SessionID)                    {}
func (NopApplication) OnLogout(SessionID)                   {}
func (NopApplication) ToAdmin(*Message, SessionID)          {}
func (NopApplication) FromAdmin(*Message, SessionID) error  { return nil }
func (NopApplication) ToApp(*Message, SessionID) error      { return nil }
func (NopApplication) FromApp(*Message, SessionID) error    { return nil }

var _ Application = NopApplication{}

// notifyingApplication decorates an Application with a callback invoked
// alongside OnLogon/OnLogout, so an observer (typically a
// SessionRegistry) learns of state transitions without the Session
// holding a reference to it.
type notifyingApplication struct {
	Application
	notify func(sessionID SessionID, state ConnectionState, now time.Time)
}

// NotifyingApplication wraps app so that notify is also called on every
// OnLogon (ConnectionStateLoggedOn) and OnLogout
// (ConnectionStateLoggedOff). Use it to let a SessionRegistry's
// StateChanges channel observe logon/logout without the Session package
// depending on the registry.
func NotifyingApplication(app Application, notify func(sessionID SessionID, state ConnectionState, now time.Time)) Application {
	return &notifyingApplication{Application: app, notify: notify}
}

func (n *notifyingApplication) OnLogon(sessionID SessionID) {
	n.Application.OnLogon(sessionID)
	n.notify(sessionID, ConnectionStateLoggedOn, time.Now())
}

func (n *notifyingApplication) OnLogout(sessionID SessionID) {
	n.Application.OnLogout(sessionID)
	n.notify(sessionID, ConnectionStateLoggedOff, time.Now())
}

var _ Application = (*notifyingApplication)(nil)
