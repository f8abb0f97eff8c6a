package fix

import "strings"

// SessionID is the immutable identity of a FIX session: the triple of
// BeginString, SenderCompID, and TargetCompID, plus an optional qualifier
// disambiguating multiple sessions that otherwise share the triple (e.g.
// parallel order and drop-copy channels to the same counterparty).
//
// SessionID is a value type: comparable, hashable, safe to use as a map
// key, and never mutated after construction.
type SessionID struct {
	BeginString      string
	SenderCompID     string
	TargetCompID     string
	SessionQualifier string
}

// NewSessionID constructs a SessionID with no qualifier.
func NewSessionID(beginString, senderCompID, targetCompID string) SessionID {
	return SessionID{
		BeginString:  beginString,
		SenderCompID: senderCompID,
		TargetCompID: targetCompID,
	}
}

// WithQualifier returns a copy of id with SessionQualifier set.
func (id SessionID) WithQualifier(qualifier string) SessionID {
	id.SessionQualifier = qualifier
	return id
}

// Reversed swaps SenderCompID and TargetCompID, producing the SessionID
// that would identify the counterparty's view of this session. Used to
// match an inbound header (where the roles are reversed from our own) to
// our local session.
func (id SessionID) Reversed() SessionID {
	id.SenderCompID, id.TargetCompID = id.TargetCompID, id.SenderCompID
	return id
}

// IsFIXT reports whether BeginString is the FIXT.1.1 transport-session
// begin string used by FIX 5.0 and later (session and application version
// are negotiated separately under FIXT.1.1).
func (id SessionID) IsFIXT() bool {
	return id.BeginString == BeginStringFIXT11
}

// String renders the canonical form: BeginString:SenderCompID->TargetCompID,
// with an optional :Qualifier suffix. This is the inverse of ParseSessionID.
func (id SessionID) String() string {
	var b strings.Builder
	b.WriteString(id.BeginString)
	b.WriteByte(':')
	b.WriteString(id.SenderCompID)
	b.WriteString("->")
	b.WriteString(id.TargetCompID)
	if id.SessionQualifier != "" {
		b.WriteByte(':')
		b.WriteString(id.SessionQualifier)
	}
	return b.String()
}

// ParseSessionID parses the canonical string form produced by
// SessionID.String: BeginString:SenderCompID->TargetCompID[:Qualifier].
// If reverse is true, SenderCompID and TargetCompID are swapped after
// parsing, matching SessionID.Reversed's semantics — used when resolving an
// inbound header (whose Sender/Target are from the peer's perspective) to
// our local SessionID.
func ParseSessionID(s string, reverse bool) (SessionID, bool) {
	beginString, rest, ok := strings.Cut(s, ":")
	if !ok {
		return SessionID{}, false
	}

	qualifier := ""
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		qualifier = rest[idx+1:]
		rest = rest[:idx]
	}

	sender, target, ok := strings.Cut(rest, "->")
	if !ok {
		return SessionID{}, false
	}

	id := SessionID{
		BeginString:      beginString,
		SenderCompID:     sender,
		TargetCompID:     target,
		SessionQualifier: qualifier,
	}
	if reverse {
		id = id.Reversed()
	}
	return id, true
}

// Well-known BeginString values (tag 8).
const (
	BeginStringFIX40    = "FIX.4.0"
	BeginStringFIX41    = "FIX.4.1"
	BeginStringFIX42    = "FIX.4.2"
	BeginStringFIX43    = "FIX.4.3"
	BeginStringFIX44    = "FIX.4.4"
	BeginStringFIX50    = "FIX.5.0"
	BeginStringFIX50SP1 = "FIX.5.0SP1"
	BeginStringFIX50SP2 = "FIX.5.0SP2"
	BeginStringFIXT11   = "FIXT.1.1"
)

// supportsSubSecondTimestamps reports whether beginString's SendingTime
// grammar allows sub-second precision. FIXT.1.1 always does; earlier
// versions do starting at FIX.4.2 (lexical BeginString comparison mirrors
// the ascending version ordering of the "FIX.4.x"/"FIX.5.x" strings).
func supportsSubSecondTimestamps(beginString string) bool {
	if beginString == BeginStringFIXT11 {
		return true
	}
	return beginString >= BeginStringFIX42
}

// supportsOpenEndedResendRequest reports whether beginString's
// ResendRequest grammar treats EndSeqNo == 0 as "through infinity".
// FIXT.1.1 always does; earlier versions do starting at FIX.4.2. Below
// that, EndSeqNo must name the actual last sequence number needed.
func supportsOpenEndedResendRequest(beginString string) bool {
	if beginString == BeginStringFIXT11 {
		return true
	}
	return beginString >= BeginStringFIX42
}
