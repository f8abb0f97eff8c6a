package fix

import "errors"

// Sentinel errors shared across the session, store, and registry.
var (
	// ErrSessionNotFound is returned by SessionRegistry.SendToTarget when
	// no session matches the requested identity.
	ErrSessionNotFound = errors.New("fix: session not found")

	// ErrDuplicateSession is returned by SessionRegistry.Add when a
	// session with the same SessionID is already registered.
	ErrDuplicateSession = errors.New("fix: duplicate session")

	// ErrNoResponder is returned by Session.Send when no Responder is
	// currently attached.
	ErrNoResponder = errors.New("fix: no responder attached")

	// ErrStoreFailure is joined into the errors Session methods (Send,
	// Reset, Refresh, SetResponder, inbound processing) return when the
	// MessageStore fails a read or write.
	ErrStoreFailure = errors.New("fix: message store failure")

	// ErrInvalidConfig is returned by NewSession for an incomplete
	// SessionID, a nil Application, or a TimestampPrecision other than 0,
	// 3, 6, or 9.
	ErrInvalidConfig = errors.New("fix: invalid configuration")

	// ErrDoNotSend is returned by Application.ToApp to veto sending an
	// outbound application message.
	ErrDoNotSend = errors.New("fix: do not send")

	// ErrUnsupportedMessageType is returned by Application.FromApp for a
	// business MsgType the application does not handle; the session
	// replies with BusinessMessageReject.
	ErrUnsupportedMessageType = errors.New("fix: unsupported message type")

	// ErrIncorrectTagValue is returned by Application.FromApp/FromAdmin
	// when a field's value fails application-level validation; the
	// session replies with Reject.
	ErrIncorrectTagValue = errors.New("fix: incorrect tag value")

	// ErrRejectLogon is returned by Application.FromAdmin to veto an
	// inbound Logon (e.g. credential check failure); the session replies
	// with Reject/Logout and disconnects.
	ErrRejectLogon = errors.New("fix: logon rejected")
)

// FieldNotFoundError reports a required field missing during application
// processing, carrying the tag of the missing field. The session answers
// it with a Reject(reason=RequiredTagMissing); Tag is not copied into the
// Reject's RefTagID.
type FieldNotFoundError struct {
	Tag int
}

func (e FieldNotFoundError) Error() string {
	return "fix: required field missing"
}

func (e FieldNotFoundError) Unwrap() error { return ErrFieldNotFound }
