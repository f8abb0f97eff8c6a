package fix

import "time"

// Settings holds the Session configuration knobs (§4.1 Configuration
// options). Unlike SessionID, Settings is mutable for the lifetime of a
// Session — callers may reconfigure most fields between connections.
type Settings struct {
	// CheckCompID rejects inbound messages whose Sender/Target CompIDs
	// don't mirror this session's IDs.
	CheckCompID bool

	// CheckLatency rejects inbound messages whose SendingTime differs
	// from the local clock by more than MaxLatency.
	CheckLatency bool

	// MaxLatency bounds SendingTime skew when CheckLatency is true.
	MaxLatency time.Duration

	// ResetOnLogout and ResetOnDisconnect zero sequence numbers at the
	// corresponding transition. ResetOnLogon is carried here but is not
	// read by Session: on Logon, sequence numbers are reset only when the
	// peer's Logon carries ResetSeqNumFlag=Y.
	ResetOnLogon      bool
	ResetOnLogout     bool
	ResetOnDisconnect bool

	// RefreshOnLogon re-loads the store before sending the initial Logon.
	RefreshOnLogon bool

	// SendRedundantResendRequests re-issues a ResendRequest each time a
	// new gap is observed even if one is already outstanding.
	SendRedundantResendRequests bool

	// PersistMessages, if false, never stores outbound messages; any
	// ResendRequest is answered entirely with SequenceReset-GapFill.
	PersistMessages bool

	// ValidateLengthAndChecksum, if false, skips BodyLength/CheckSum
	// verification on inbound bytes (for testing).
	ValidateLengthAndChecksum bool

	// SendNextExpectedMsgSeqNum includes tag 789 in outbound Logons.
	SendNextExpectedMsgSeqNum bool

	// IsNonStopSession disables session-time window enforcement.
	IsNonStopSession bool

	// TimestampPrecision is 0, 3, 6, or 9 fractional digits on
	// SendingTime. NewSession rejects any other value with
	// ErrInvalidConfig (see the Open Question resolution in DESIGN.md).
	TimestampPrecision int

	// AllowedRemoteAddresses, if non-empty, restricts which peer
	// addresses may attach a Responder.
	AllowedRemoteAddresses map[string]struct{}

	// SessionTime gates when the session as a whole may be active.
	SessionTime TimeRange

	// LogonTime further restricts when Tick sends an initiator's *initial*
	// Logon, independent of SessionTime (original_source supplement, see
	// SPEC_FULL.md).
	LogonTime TimeRange

	// LogonTimeout/LogoutTimeout bound how long to wait for the peer's
	// Logon/Logout reply before giving up.
	LogonTimeout  time.Duration
	LogoutTimeout time.Duration

	// HeartBtInt is the initiator's proposed heartbeat interval. The
	// negotiated value (what is actually enforced) is whatever the peer
	// echoes back, or what we approve as acceptor.
	HeartBtInt time.Duration

	// SenderDefaultApplVerID / TargetDefaultApplVerID carry the
	// negotiated FIXT.1.1 application version, when BeginString is
	// FIXT.1.1 (original_source supplement).
	SenderDefaultApplVerID string
	TargetDefaultApplVerID string
}

// DefaultSettings returns conservative defaults matching the source
// engine: latency checking on with a 120s window, persistence on,
// framing validation on, second-precision timestamps.
func DefaultSettings() Settings {
	return Settings{
		CheckCompID:               true,
		CheckLatency:              true,
		MaxLatency:                120 * time.Second,
		PersistMessages:           true,
		ValidateLengthAndChecksum: true,
		TimestampPrecision:        0,
		LogonTimeout:              10 * time.Second,
		LogoutTimeout:             2 * time.Second,
		HeartBtInt:                30 * time.Second,
	}
}

// AllowsRemoteAddress reports whether addr may attach, per
// AllowedRemoteAddresses. An empty set allows everything.
func (s Settings) AllowsRemoteAddress(addr string) bool {
	if len(s.AllowedRemoteAddresses) == 0 {
		return true
	}
	_, ok := s.AllowedRemoteAddresses[addr]
	return ok
}

// SupportedTimestampPrecision returns the effective precision for
// beginString: TimestampPrecision if the version supports sub-second
// SendingTime, 0 otherwise.
func (s Settings) SupportedTimestampPrecision(beginString string) int {
	if supportsSubSecondTimestamps(beginString) {
		return s.TimestampPrecision
	}
	return 0
}
