package fix

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the per-connection administrative state machine (C7): logon
// handshake, heartbeating, sequence-number enforcement, resend/gap-fill,
// and logout, driven by inbound bytes/messages and periodic timer ticks.
//
// Session does not own a network connection. It is driven by a caller that
// owns the transport: feed inbound bytes to Next, attach a Responder via
// SetResponder once a connection is accepted/established, and call Tick
// once per timer interval (typically every second) so heartbeat and
// timeout logic runs even when no bytes arrive.
//
// Concurrency: a single mutex guards all mutable Session state (§5). The
// mutex is never held across an Application upcall (OnLogon, OnLogout,
// ToAdmin, FromAdmin, ToApp, FromApp) — it is released before the call and
// re-acquired after, so an upcall that turns around and calls Session.Send
// on this same session (or any other) never deadlocks. The sequence number
// assignment, message persistence, and Responder.Send for any given
// message still happen atomically under the mutex, in a single critical
// section immediately following the upcall, so wire ordering is preserved
// even though the mutex is not held continuously.
type Session struct {
	mu sync.Mutex

	id       SessionID
	settings Settings

	state        *SessionState
	dictionary   DataDictionaryProvider
	app          Application
	responder    Responder
	clock        Clock
	log          Log
	createdAt    time.Time
	lastTickTime time.Time
}

// SessionConfig is the required, construction-time configuration for a
// Session. Peripheral wiring (the Clock, via WithClock) is supplied via
// SessionOption.
type SessionConfig struct {
	ID          SessionID
	Initiate    bool
	Application Application
	Settings    Settings

	// Store is the MessageStore this session owns exclusively. If nil, a
	// fresh MemoryStore is created.
	Store MessageStore

	// LogFactory creates this session's Log. If nil, NopLogFactory is
	// used.
	LogFactory LogFactory

	// DataDictionaryProvider resolves schema validators. If nil,
	// NopDataDictionaryProvider is used.
	DataDictionaryProvider DataDictionaryProvider
}

// SessionOption configures peripheral Session wiring not central enough to
// warrant a SessionConfig field.
type SessionOption func(*Session)

// WithClock overrides the Session's Clock (default SystemClock).
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// NewSession validates cfg and constructs a Session. The Session starts
// disabled (Logon must be called explicitly to enable it) and calls
// Application.OnCreate once before returning.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if cfg.ID.BeginString == "" || cfg.ID.SenderCompID == "" || cfg.ID.TargetCompID == "" {
		return nil, fmt.Errorf("new session: incomplete SessionID: %w", ErrInvalidConfig)
	}
	if cfg.Application == nil {
		return nil, fmt.Errorf("new session: Application is required: %w", ErrInvalidConfig)
	}
	if cfg.Settings.TimestampPrecision != 0 && cfg.Settings.TimestampPrecision != 3 &&
		cfg.Settings.TimestampPrecision != 6 && cfg.Settings.TimestampPrecision != 9 {
		return nil, fmt.Errorf("new session: timestamp precision %d not in {0,3,6,9}: %w",
			cfg.Settings.TimestampPrecision, ErrInvalidConfig)
	}

	logFactory := cfg.LogFactory
	if logFactory == nil {
		logFactory = NopLogFactory
	}
	dictProvider := cfg.DataDictionaryProvider
	if dictProvider == nil {
		dictProvider = NopDataDictionaryProvider
	}

	clock := Clock(SystemClock{})
	now := clock.Now()

	store := cfg.Store
	if store == nil {
		store = NewMemoryStore(now)
	}

	log := logFactory.Create(cfg.ID)
	state := newSessionState(store, log, cfg.Initiate, cfg.Settings.LogonTimeout, cfg.Settings.LogoutTimeout)

	s := &Session{
		id:         cfg.ID,
		settings:   cfg.Settings,
		state:      state,
		dictionary: dictProvider.Clone(),
		app:        cfg.Application,
		clock:      clock,
		log:        log,
		createdAt:  now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}

	s.app.OnCreate(s.id)
	return s, nil
}

// ID returns this session's identity.
func (s *Session) ID() SessionID { return s.id }

// Logon marks the session enabled: if acting as initiator, the next Tick
// sends the initial Logon; if acting as acceptor, an inbound Logon is now
// accepted.
func (s *Session) Logon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.enabled = true
	s.state.logoutReason = ""
}

// Logout marks the session disabled and, if currently logged on, sends a
// Logout(reason) and starts the logout timeout.
func (s *Session) Logout(reason string) {
	s.mu.Lock()
	loggedOn := s.state.isLoggedOn()
	s.state.enabled = false
	now := s.clock.Now()
	s.mu.Unlock()

	if !loggedOn {
		return
	}
	s.sendLogout(reason, now)
}

// IsLoggedOn reports whether both sides have completed the Logon
// handshake.
func (s *Session) IsLoggedOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.isLoggedOn()
}

// IsEnabled reports the operator intent set by Logon/Logout, independent
// of current connection state.
func (s *Session) IsEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.enabled
}

// IsConnected reports whether a Logon has been sent or received on the
// current Responder.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.isConnected()
}

// SetResponder attaches the transport-facing Responder, as a connection is
// accepted or established. It applies RefreshOnLogon and resets the
// session if its time window has rolled over since creation.
func (s *Session) SetResponder(r Responder, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responder = r
	// Seed the heartbeat/timeout clocks to the moment of connection, not
	// the zero time.Time: otherwise the very first Tick would see an
	// unbounded gap since lastReceivedTime and immediately time out the
	// logon/logout wait or fire a spurious heartbeat.
	s.state.lastReceivedTime = now
	s.state.lastSentTime = now

	if s.settings.RefreshOnLogon {
		if err := s.state.store.Refresh(); err != nil {
			return fmt.Errorf("refresh on logon: %w", errors.Join(ErrStoreFailure, err))
		}
	}
	if !s.settings.IsNonStopSession && !s.settings.SessionTime.isUnset() {
		created, err := s.state.store.CreationTime()
		if err == nil && !s.settings.SessionTime.IsInSameRange(created, now) {
			if err := s.resetLocked(now); err != nil {
				return err
			}
		}
	}
	return nil
}

// ClearResponder detaches the Responder, as a connection drops.
func (s *Session) ClearResponder() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = nil
}

// Disconnect tears down the current connection: detaches the Responder,
// clears connection-scoped state, and notifies the Application if the
// session was logged on.
func (s *Session) Disconnect(reason string) {
	s.mu.Lock()
	wasLoggedOn := s.state.isLoggedOn()
	if s.settings.ResetOnDisconnect {
		now := s.clock.Now()
		_ = s.state.store.Reset(now)
	}
	s.state.clearLogonFlags()
	if s.responder != nil {
		s.log.OnEventf("disconnecting: %s", reason)
		s.responder.Disconnect()
	}
	s.responder = nil
	s.mu.Unlock()

	if wasLoggedOn {
		s.app.OnLogout(s.id)
	}
}

// Reset clears persisted messages and resets both sequence counters to 1.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(s.clock.Now())
}

func (s *Session) resetLocked(now time.Time) error {
	if err := s.state.store.Reset(now); err != nil {
		return fmt.Errorf("reset session: %w", errors.Join(ErrStoreFailure, err))
	}
	s.state.clearQueue()
	s.state.clearResend()
	return nil
}

// Refresh reloads sequence-number and persisted-message state from the
// backing MessageStore.
func (s *Session) Refresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.store.Refresh(); err != nil {
		return fmt.Errorf("refresh session: %w", errors.Join(ErrStoreFailure, err))
	}
	return nil
}

// Send assigns the next sender sequence number to msg, stamps the header,
// runs it through Application.ToAdmin/ToApp, and hands it to the
// Responder. It returns false and ErrNoResponder if no Responder is
// attached, and false with a nil error if ToApp vetoed the send with
// ErrDoNotSend.
func (s *Session) Send(msg *Message) (bool, error) {
	s.mu.Lock()
	if s.responder == nil {
		s.mu.Unlock()
		return false, ErrNoResponder
	}
	now := s.clock.Now()
	seq, err := s.state.store.NextSenderMsgSeqNum()
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("send: %w", errors.Join(ErrStoreFailure, err))
	}
	s.fillHeaderLocked(msg, seq, now)
	isAdmin := msg.IsAdmin()
	s.mu.Unlock()

	if isAdmin {
		s.app.ToAdmin(msg, s.id)
	} else if err := s.app.ToApp(msg, s.id); err != nil {
		if errors.Is(err, ErrDoNotSend) {
			s.mu.Lock()
			_ = s.state.store.IncrNextSenderMsgSeqNum()
			s.mu.Unlock()
			return false, nil
		}
		s.log.OnEventf("toApp application error: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(msg)
}

// sendLocked performs the final, atomic assign+persist+transmit step. The
// caller must hold s.mu. It re-reads the next sequence number (rather than
// trusting a value computed before an upcall) so that, under concurrent
// Send calls, numbers are still assigned in the single order they are
// actually persisted and transmitted in.
func (s *Session) sendLocked(msg *Message) (bool, error) {
	if s.responder == nil {
		return false, ErrNoResponder
	}
	now := s.clock.Now()
	seq, err := s.state.store.NextSenderMsgSeqNum()
	if err != nil {
		return false, fmt.Errorf("send: %w", errors.Join(ErrStoreFailure, err))
	}
	s.fillHeaderLocked(msg, seq, now)

	raw, err := msg.Build()
	if err != nil {
		return false, fmt.Errorf("send: %w", err)
	}

	if s.settings.PersistMessages {
		if err := s.state.store.SaveMessage(seq, raw); err != nil {
			return false, fmt.Errorf("send: persist seq %d: %w", seq, errors.Join(ErrStoreFailure, err))
		}
	}

	if !s.responder.Send(raw) {
		return false, nil
	}
	if err := s.state.store.IncrNextSenderMsgSeqNum(); err != nil {
		return false, fmt.Errorf("send: advance sender sequence: %w", errors.Join(ErrStoreFailure, err))
	}
	s.state.lastSentTime = now
	s.log.OnOutgoing(raw)
	return true, nil
}

// sendHistoricalLocked transmits msg stamped with an explicit, already-
// consumed sequence number (used for SequenceReset-GapFill and literal
// resend retransmission): it does not touch the sender counter and is
// never persisted, since it is filling in for history rather than
// advancing it.
func (s *Session) sendHistoricalLocked(msg *Message, seqNum uint64, now time.Time) (bool, error) {
	if s.responder == nil {
		return false, ErrNoResponder
	}
	msg.Header.Set(TagBeginString, s.id.BeginString)
	msg.Header.Set(TagSenderCompID, s.id.SenderCompID)
	msg.Header.Set(TagTargetCompID, s.id.TargetCompID)
	msg.Header.SetUint64(TagMsgSeqNum, seqNum)
	msg.Header.SetTime(TagSendingTime, now, s.settings.SupportedTimestampPrecision(s.id.BeginString))

	raw, err := msg.Build()
	if err != nil {
		return false, fmt.Errorf("send historical: %w", err)
	}
	if !s.responder.Send(raw) {
		return false, nil
	}
	s.state.lastSentTime = now
	s.log.OnOutgoing(raw)
	return true, nil
}

// fillHeaderLocked stamps BeginString/SenderCompID/TargetCompID/MsgSeqNum/
// SendingTime onto msg's header.
func (s *Session) fillHeaderLocked(msg *Message, seq uint64, now time.Time) {
	msg.Header.Set(TagBeginString, s.id.BeginString)
	msg.Header.Set(TagSenderCompID, s.id.SenderCompID)
	msg.Header.Set(TagTargetCompID, s.id.TargetCompID)
	msg.Header.SetUint64(TagMsgSeqNum, seq)
	msg.Header.SetTime(TagSendingTime, now, s.settings.SupportedTimestampPrecision(s.id.BeginString))
}

// NextBytes decodes raw inbound bytes and processes the resulting Message.
// queued indicates this call is replaying a previously out-of-order
// message from the internal queue, rather than freshly-arrived bytes.
func (s *Session) NextBytes(raw []byte, now time.Time, queued bool) error {
	s.mu.Lock()
	validate := s.settings.ValidateLengthAndChecksum
	s.mu.Unlock()

	msg, err := ParseMessage(raw, validate)
	if err != nil {
		s.mu.Lock()
		s.log.OnEventf("malformed inbound message, disconnecting: %v", err)
		if s.responder != nil {
			s.responder.Disconnect()
		}
		s.mu.Unlock()
		return fmt.Errorf("next bytes: %w", err)
	}
	s.mu.Lock()
	s.log.OnIncoming(raw)
	s.mu.Unlock()
	return s.Next(msg, now, queued)
}

// Next processes a decoded inbound Message: the BeginString check, the Logon
// special case, verify() (CompID/latency/sequence enforcement), the
// per-type admin handler, and out-of-order queue drain.
func (s *Session) Next(msg *Message, now time.Time, queued bool) error {
	s.mu.Lock()

	beginString, err := msg.Header.GetString(TagBeginString)
	if err != nil || beginString != s.id.BeginString {
		s.log.OnEventf("BeginString mismatch (%q), disconnecting", beginString)
		if s.responder != nil {
			s.responder.Disconnect()
		}
		s.responder = nil
		s.mu.Unlock()
		return fmt.Errorf("next: BeginString mismatch: %w", ErrMalformedMessage)
	}

	msgType, err := msg.MsgType()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("next: %w", err)
	}
	s.state.lastReceivedTime = now

	var accepted bool
	if msgType == MsgTypeLogon {
		accepted, err = s.nextLogonLocked(msg, now)
	} else {
		accepted, err = s.verifyLocked(msg, now)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !accepted {
		s.mu.Unlock()
		return nil
	}

	// Admin handlers that run beyond the generic fromAdmin/fromApp
	// delivery already performed inside verifyLocked/nextLogonLocked.
	switch msgType {
	case MsgTypeHeartbeat:
		s.state.testRequestCounter = 0
	case MsgTypeTestRequest:
		s.replyTestRequestLocked(msg, now)
	case MsgTypeResendRequest:
		s.serviceResendRequestLocked(msg, now)
	case MsgTypeSequenceReset:
		s.applySequenceResetLocked(msg, now)
	case MsgTypeLogout:
		s.handleLogoutLocked(msg, now)
	}

	if queued {
		s.mu.Unlock()
		return nil
	}

	// Drain any queued messages the gap fill for this one unblocked.
	for {
		next, err := s.state.store.NextTargetMsgSeqNum()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("next: %w", errors.Join(ErrStoreFailure, err))
		}
		queuedMsg, ok := s.state.dequeue(next)
		if !ok {
			break
		}
		s.mu.Unlock()
		if err := s.Next(queuedMsg, now, true); err != nil {
			return err
		}
		s.mu.Lock()
	}
	s.mu.Unlock()
	return nil
}

// nextLogonLocked handles the Logon message type: the already-logged-on
// guard, CompID/latency checks, ResetSeqNumFlag, and (once verify's
// generic sequence handling accepts it) the handshake completion. Caller
// holds s.mu; it may be released and re-acquired for upcalls.
func (s *Session) nextLogonLocked(msg *Message, now time.Time) (bool, error) {
	if s.settings.CheckCompID && !s.checkCompIDLocked(msg) {
		s.rejectAndDisconnectLocked(msg, now, "CompID problem on Logon", RejectReasonCompIDProblem)
		return false, fmt.Errorf("next logon: %w", ErrRejectLogon)
	}
	if s.settings.CheckLatency && !s.checkLatencyLocked(msg, now) {
		s.rejectAndDisconnectLocked(msg, now, "SendingTime accuracy problem on Logon", RejectReasonSendingTimeAccuracy)
		return false, fmt.Errorf("next logon: %w", ErrRejectLogon)
	}
	if s.state.receivedLogon {
		// A second Logon on an already-established session is a protocol
		// violation, not a renegotiation (see DESIGN.md Open Question
		// resolution).
		s.rejectAndDisconnectLocked(msg, now, "Logon already received", RejectReasonOther)
		return false, fmt.Errorf("next logon: %w", ErrRejectLogon)
	}
	if s.responder != nil && !s.settings.AllowsRemoteAddress(s.responder.RemoteAddress()) {
		s.rejectAndDisconnectLocked(msg, now, "remote address not allowed", RejectReasonOther)
		return false, fmt.Errorf("next logon: remote address not allowed")
	}

	heartBtInt, err := msg.Body.GetInt(TagHeartBtInt)
	if err != nil {
		s.rejectAndDisconnectLocked(msg, now, "HeartBtInt missing on Logon", RejectReasonRequiredTagMissing)
		return false, fmt.Errorf("next logon: %w", err)
	}
	resetFlag, _ := msg.Body.GetBool(TagResetSeqNumFlag)

	if resetFlag {
		if err := s.state.store.Reset(now); err != nil {
			return false, fmt.Errorf("next logon: reset: %w", errors.Join(ErrStoreFailure, err))
		}
		s.state.clearQueue()
		s.state.clearResend()
	}

	accepted, err := s.verifyLocked(msg, now)
	if err != nil || !accepted {
		return accepted, err
	}

	s.state.heartBtInt = time.Duration(heartBtInt) * time.Second
	s.state.receivedLogon = true

	nextExpected, hasNextExpected := uint64(0), false
	if v, err := msg.Body.GetUint64(TagNextExpectedMsgSeqNum); err == nil {
		nextExpected, hasNextExpected = v, true
	}

	if !s.state.sentLogon {
		// Acting as acceptor: echo a Logon reply before anything else.
		s.sendLogonLocked(now)
	}

	if hasNextExpected {
		lastSent, err := s.state.store.NextSenderMsgSeqNum()
		if err == nil && nextExpected < lastSent {
			s.serviceResendLocked(nextExpected, lastSent-1, now)
		}
	}

	loggedOn := s.state.isLoggedOn()
	s.mu.Unlock()
	if loggedOn {
		s.app.OnLogon(s.id)
	}
	s.mu.Lock()
	return true, nil
}

// sendLogonLocked constructs and sends a Logon in response to (or to
// initiate) a handshake. Caller holds s.mu.
func (s *Session) sendLogonLocked(now time.Time) {
	msg := NewMessage(MsgTypeLogon)
	heartBtInt := s.settings.HeartBtInt
	if s.state.heartBtInt > 0 {
		heartBtInt = s.state.heartBtInt
	}
	msg.Body.SetInt(TagHeartBtInt, int(heartBtInt/time.Second))
	msg.Body.SetInt(TagEncryptMethod, 0)
	if s.settings.SendNextExpectedMsgSeqNum {
		if next, err := s.state.store.NextTargetMsgSeqNum(); err == nil {
			msg.Body.SetUint64(TagNextExpectedMsgSeqNum, next)
		}
	}
	s.state.sentLogon = true
	s.mu.Unlock()
	_, _ = s.Send(msg)
	s.mu.Lock()
}

// InitiateLogon is called by the connection owner, once a Responder has
// been attached, to send the outbound Logon when acting as initiator.
func (s *Session) InitiateLogon(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.initiate || s.state.sentLogon {
		return nil
	}
	if s.responder == nil {
		return ErrNoResponder
	}
	s.sendLogonLocked(now)
	return nil
}

// verifyLocked runs the CompID/latency/sequence checks common to every
// inbound message (including an already-Logon-handled Logon) and, on
// acceptance, delivers the message to Application.FromAdmin/FromApp and
// advances the target sequence counter. It returns accepted=true only when
// the message was processed and the target counter was advanced.
func (s *Session) verifyLocked(msg *Message, now time.Time) (bool, error) {
	msgType, _ := msg.MsgType()

	if s.settings.CheckCompID && !s.checkCompIDLocked(msg) {
		s.rejectAndDisconnectLocked(msg, now, "CompID problem", RejectReasonCompIDProblem)
		return false, nil
	}
	if s.settings.CheckLatency && !s.checkLatencyLocked(msg, now) {
		s.rejectAndDisconnectLocked(msg, now, "SendingTime accuracy problem", RejectReasonSendingTimeAccuracy)
		return false, nil
	}

	seqNum, err := msg.MsgSeqNum()
	if err != nil {
		s.sendRejectLocked(now, 0, msgType, RejectReasonRequiredTagMissing, "MsgSeqNum missing")
		return false, nil
	}
	expected, err := s.state.store.NextTargetMsgSeqNum()
	if err != nil {
		return false, fmt.Errorf("verify: %w", errors.Join(ErrStoreFailure, err))
	}

	switch {
	case seqNum > expected:
		if !s.state.resendOutstanding() || s.settings.SendRedundantResendRequests {
			s.state.enqueue(seqNum, msg)
			end := seqNum - 1
			if supportsOpenEndedResendRequest(s.id.BeginString) {
				end = 0
			}
			s.sendResendRequestLocked(expected, end, now)
		} else {
			s.state.enqueue(seqNum, msg)
		}
		return false, nil

	case seqNum < expected:
		if msg.IsPossDup() {
			// A duplicate of something already processed: deliver to the
			// application for visibility but do not re-advance the
			// counter or treat it as a protocol error.
			s.deliverLocked(msg, msgType, now)
			return false, nil
		}
		s.sendLogoutLocked(fmt.Sprintf("MsgSeqNum too low, expecting %d but received %d", expected, seqNum), now)
		if s.responder != nil {
			s.responder.Disconnect()
		}
		return false, fmt.Errorf("verify: sequence too low")

	default:
		s.deliverLocked(msg, msgType, now)
		if err := s.state.store.IncrNextTargetMsgSeqNum(); err != nil {
			return false, fmt.Errorf("verify: %w", errors.Join(ErrStoreFailure, err))
		}
		if s.state.resend != nil && expected >= s.state.resend.endSeqNo && s.state.resend.endSeqNo != 0 {
			s.state.clearResend()
		} else if s.state.resend != nil && s.state.resend.endSeqNo == 0 {
			// Open-ended resend range closes once no more queued gap
			// remains ahead of expected+1.
			if _, queuedAhead := s.state.queue[expected+1]; !queuedAhead {
				s.state.clearResend()
			}
		}
		return true, nil
	}
}

// deliverLocked invokes the appropriate Application upcall, releasing the
// lock for the duration of the call, and reacts to an error per the
// documented veto/Reject mapping (see Application).
func (s *Session) deliverLocked(msg *Message, msgType string, now time.Time) {
	isAdmin := isAdminMsgType(msgType)
	s.mu.Unlock()
	var err error
	if isAdmin {
		err = s.app.FromAdmin(msg, s.id)
	} else {
		err = s.app.FromApp(msg, s.id)
	}
	s.mu.Lock()
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, ErrRejectLogon):
		s.rejectAndDisconnectLocked(msg, now, "logon rejected by application", RejectReasonOther)
	case errors.Is(err, ErrUnsupportedMessageType):
		s.sendBusinessRejectLocked(msg, now, BusinessRejectUnsupportedMsgType, err.Error())
	default:
		if errors.Is(err, ErrFieldNotFound) {
			s.sendRejectLocked(now, mustSeqNum(msg), msgType, RejectReasonRequiredTagMissing, err.Error())
			return
		}
		if errors.Is(err, ErrIncorrectTagValue) {
			s.sendRejectLocked(now, mustSeqNum(msg), msgType, RejectReasonValueIncorrect, err.Error())
			return
		}
		s.sendRejectLocked(now, mustSeqNum(msg), msgType, RejectReasonOther, err.Error())
	}
}

func mustSeqNum(msg *Message) uint64 {
	n, _ := msg.MsgSeqNum()
	return n
}

func (s *Session) checkCompIDLocked(msg *Message) bool {
	sender, err := msg.Header.GetString(TagSenderCompID)
	if err != nil || sender != s.id.TargetCompID {
		return false
	}
	target, err := msg.Header.GetString(TagTargetCompID)
	if err != nil || target != s.id.SenderCompID {
		return false
	}
	return true
}

func (s *Session) checkLatencyLocked(msg *Message, now time.Time) bool {
	sendingTime, err := msg.Header.GetTime(TagSendingTime)
	if err != nil {
		return false
	}
	delta := now.Sub(sendingTime)
	if delta < 0 {
		delta = -delta
	}
	return delta <= s.settings.MaxLatency
}

// rejectAndDisconnectLocked sends a Reject (best-effort) followed by a
// Logout and disconnects. Used for CompID/latency/logon-protocol
// violations that cannot be allowed to continue.
func (s *Session) rejectAndDisconnectLocked(msg *Message, now time.Time, reason string, code SessionRejectReason) {
	msgType, _ := msg.MsgType()
	s.sendRejectLocked(now, mustSeqNum(msg), msgType, code, reason)
	s.sendLogoutLocked(reason, now)
	if s.responder != nil {
		s.responder.Disconnect()
	}
}

func (s *Session) sendRejectLocked(now time.Time, refSeqNum uint64, refMsgType string, reason SessionRejectReason, text string) {
	msg := NewMessage(MsgTypeReject)
	msg.Body.SetUint64(TagRefSeqNum, refSeqNum)
	if refMsgType != "" {
		msg.Body.Set(TagRefMsgType, refMsgType)
	}
	msg.Body.SetInt(TagSessionRejectReason, int(reason))
	if text != "" {
		msg.Body.Set(TagText, text)
	}
	s.mu.Unlock()
	_, _ = s.Send(msg)
	s.mu.Lock()
}

func (s *Session) sendBusinessRejectLocked(msg *Message, now time.Time, reason BusinessRejectReason, text string) {
	refMsgType, _ := msg.MsgType()
	reply := NewMessage(MsgTypeBusinessMessageReject)
	reply.Body.Set(TagRefMsgType, refMsgType)
	reply.Body.SetUint64(TagRefSeqNum, mustSeqNum(msg))
	reply.Body.SetInt(TagBusinessRejectReason, int(reason))
	if text != "" {
		reply.Body.Set(TagText, text)
	}
	s.mu.Unlock()
	_, _ = s.Send(reply)
	s.mu.Lock()
}

// sendLogout builds and sends a Logout(reason), acquiring the lock itself.
func (s *Session) sendLogout(reason string, now time.Time) {
	s.mu.Lock()
	s.sendLogoutLocked(reason, now)
	s.mu.Unlock()
}

func (s *Session) sendLogoutLocked(reason string, now time.Time) {
	if s.state.sentLogout {
		return
	}
	msg := NewMessage(MsgTypeLogout)
	if reason != "" {
		msg.Body.Set(TagText, reason)
	}
	s.state.sentLogout = true
	s.state.logoutReason = reason
	s.mu.Unlock()
	_, _ = s.Send(msg)
	s.mu.Lock()
}

func (s *Session) handleLogoutLocked(msg *Message, now time.Time) {
	wasLoggedOn := s.state.isLoggedOn()
	s.state.receivedLogout = true
	if !s.state.sentLogout {
		// Peer-initiated logout: reply in kind before tearing down.
		s.sendLogoutLocked("", now)
	}
	if s.responder != nil {
		s.responder.Disconnect()
	}
	s.responder = nil
	if s.settings.ResetOnLogout {
		_ = s.state.store.Reset(now)
	}
	s.state.clearLogonFlags()
	s.mu.Unlock()
	if wasLoggedOn {
		s.app.OnLogout(s.id)
	}
	s.mu.Lock()
}

func (s *Session) replyTestRequestLocked(msg *Message, now time.Time) {
	testReqID, _ := msg.Body.GetString(TagTestReqID)
	reply := NewMessage(MsgTypeHeartbeat)
	if testReqID != "" {
		reply.Body.Set(TagTestReqID, testReqID)
	}
	s.mu.Unlock()
	_, _ = s.Send(reply)
	s.mu.Lock()
}

func (s *Session) sendResendRequestLocked(begin, end uint64, now time.Time) {
	s.state.setResend(begin, end)
	msg := NewMessage(MsgTypeResendRequest)
	msg.Body.SetUint64(TagBeginSeqNo, begin)
	msg.Body.SetUint64(TagEndSeqNo, end)
	s.mu.Unlock()
	_, _ = s.Send(msg)
	s.mu.Lock()
}

// applySequenceResetLocked handles an inbound SequenceReset: GapFill mode
// advances the target counter to NewSeqNo (only forward), Reset mode sets
// it unconditionally.
func (s *Session) applySequenceResetLocked(msg *Message, now time.Time) {
	newSeqNo, err := msg.Body.GetUint64(TagNewSeqNo)
	if err != nil {
		return
	}
	gapFill, _ := msg.Body.GetBool(TagGapFillFlag)

	current, err := s.state.store.NextTargetMsgSeqNum()
	if err != nil {
		return
	}
	if gapFill && newSeqNo < current {
		// A GapFill may never move the counter backward.
		s.sendRejectLocked(now, mustSeqNum(msg), MsgTypeSequenceReset, RejectReasonValueIncorrect,
			"NewSeqNo less than expected target sequence number")
		return
	}
	_ = s.state.store.SetNextTargetMsgSeqNum(newSeqNo)
	if s.state.resend != nil && newSeqNo >= s.state.resend.endSeqNo && s.state.resend.endSeqNo != 0 {
		s.state.clearResend()
	}
}

// serviceResendRequestLocked answers an inbound ResendRequest by
// retransmitting persisted messages and filling gaps (unpersisted or
// admin-type history) with SequenceReset-GapFill (§4.1 ResendRequest).
func (s *Session) serviceResendRequestLocked(msg *Message, now time.Time) {
	begin, err := msg.Body.GetUint64(TagBeginSeqNo)
	if err != nil {
		return
	}
	end, _ := msg.Body.GetUint64(TagEndSeqNo)
	s.serviceResendLocked(begin, end, now)
}

func (s *Session) serviceResendLocked(begin, end uint64, now time.Time) {
	if end == 0 {
		if last, err := s.state.store.NextSenderMsgSeqNum(); err == nil {
			end = last - 1
		}
	}
	if begin > end {
		return
	}

	stored, err := s.state.store.GetMessages(begin, end)
	if err != nil {
		s.log.OnEventf("resend service: store read failed: %v", err)
		return
	}

	current := begin
	gapStart := uint64(0)

	flushGap := func(upTo uint64) {
		if gapStart == 0 {
			return
		}
		s.sendGapFillLocked(gapStart, upTo, now)
		gapStart = 0
	}

	for _, sm := range stored {
		if sm.SeqNum > current && gapStart == 0 {
			gapStart = current
		}

		parsed, err := ParseMessage(sm.Bytes, false)
		if err != nil {
			if gapStart == 0 {
				gapStart = sm.SeqNum
			}
			current = sm.SeqNum + 1
			continue
		}
		msgType, _ := parsed.MsgType()
		if isAdminMsgType(msgType) {
			if gapStart == 0 {
				gapStart = sm.SeqNum
			}
			current = sm.SeqNum + 1
			continue
		}

		flushGap(sm.SeqNum)
		s.retransmitLocked(sm.SeqNum, parsed, now)
		current = sm.SeqNum + 1
	}

	if gapStart != 0 {
		flushGap(end + 1)
	} else if current <= end {
		s.sendGapFillLocked(current, end+1, now)
	}
}

// retransmitLocked resends a previously-persisted application message
// verbatim except for PossDupFlag/OrigSendingTime/SendingTime, without
// consuming a new sequence number or invoking ToApp again.
func (s *Session) retransmitLocked(seqNum uint64, parsed *Message, now time.Time) {
	origSendingTime, _ := parsed.Header.GetString(TagSendingTime)
	parsed.Header.SetBool(TagPossDupFlag, true)
	if origSendingTime != "" {
		parsed.Header.Set(TagOrigSendingTime, origSendingTime)
	}
	_, _ = s.sendHistoricalLocked(parsed, seqNum, now)
}

// sendGapFillLocked sends a SequenceReset-GapFill occupying [begin, newSeqNo).
func (s *Session) sendGapFillLocked(begin, newSeqNo uint64, now time.Time) {
	msg := NewMessage(MsgTypeSequenceReset)
	msg.Header.SetBool(TagPossDupFlag, true)
	msg.Body.SetBool(TagGapFillFlag, true)
	msg.Body.SetUint64(TagNewSeqNo, newSeqNo)
	_, _ = s.sendHistoricalLocked(msg, begin, now)
}

// Tick drives timer-based behavior: session-time window enforcement,
// logon/logout timeouts, and the heartbeat/test-request/disconnect
// cascade. The caller is expected to invoke Tick roughly once per second.
func (s *Session) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.IsNonStopSession && !s.settings.SessionTime.isUnset() {
		if !s.settings.SessionTime.IsInRange(now) {
			if s.state.isConnected() {
				s.sendLogoutLocked("session time ended", now)
				if s.responder != nil {
					s.responder.Disconnect()
				}
				s.responder = nil
				s.state.clearLogonFlags()
			}
			return
		}
		if created, err := s.state.store.CreationTime(); err == nil && !s.settings.SessionTime.IsInSameRange(created, now) {
			if err := s.resetLocked(now); err != nil {
				s.log.OnEventf("session time rollover reset failed: %v", err)
			}
		}
	}

	if s.state.enabled && s.state.initiate && !s.state.sentLogon && s.responder != nil &&
		s.settings.LogonTime.IsInRange(now) {
		s.sendLogonLocked(now)
	}

	if s.state.sentLogon && !s.state.receivedLogon {
		if now.Sub(s.state.lastReceivedTime) > s.state.logonTimeout && s.state.logonTimeout > 0 {
			s.log.OnEvent("timed out waiting for Logon response")
			if s.responder != nil {
				s.responder.Disconnect()
			}
			s.responder = nil
			s.state.clearLogonFlags()
			return
		}
	}

	if s.state.sentLogout && !s.state.receivedLogout {
		if now.Sub(s.state.lastSentTime) > s.state.logoutTimeout && s.state.logoutTimeout > 0 {
			s.log.OnEvent("timed out waiting for Logout response")
			if s.responder != nil {
				s.responder.Disconnect()
			}
			s.responder = nil
			s.state.clearLogonFlags()
			return
		}
	}

	if !s.state.isLoggedOn() || s.state.heartBtInt <= 0 {
		return
	}

	sinceSent := now.Sub(s.state.lastSentTime)
	sinceReceived := now.Sub(s.state.lastReceivedTime)

	if sinceSent >= s.state.heartBtInt {
		heartbeat := NewMessage(MsgTypeHeartbeat)
		s.mu.Unlock()
		_, _ = s.Send(heartbeat)
		s.mu.Lock()
	}

	testRequestDue := s.state.heartBtInt + s.state.heartBtInt/5
	if sinceReceived >= testRequestDue {
		if s.state.testRequestCounter >= 2 {
			s.log.OnEvent("no response to TestRequest, disconnecting")
			if s.responder != nil {
				s.responder.Disconnect()
			}
			s.responder = nil
			s.state.clearLogonFlags()
			return
		}
		s.state.testRequestCounter++
		testReqID := uuid.NewString()
		s.state.lastTestReqID = testReqID
		msg := NewMessage(MsgTypeTestRequest)
		msg.Body.Set(TagTestReqID, testReqID)
		s.mu.Unlock()
		_, _ = s.Send(msg)
		s.mu.Lock()
	}
}
