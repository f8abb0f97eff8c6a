package fix

import "time"

// resendRange is the outstanding inbound gap being filled by a
// ResendRequest we issued. At most one is active at a time (§3
// invariants). endSeqNo == 0 means "through infinity" (open-ended).
type resendRange struct {
	beginSeqNo uint64
	endSeqNo   uint64
}

func (r *resendRange) active() bool { return r != nil }

// SessionState holds the per-session mutable fields the Session state
// machine reads and mutates on every operation (C3): logon/logout flags,
// timers, the negotiated heartbeat interval, the outstanding resend
// range, the out-of-order inbound queue, and the MessageStore/Log the
// Session owns exclusively.
//
// All mutation of SessionState happens under the owning Session's mutex
// (§5); SessionState itself does no locking.
type SessionState struct {
	store MessageStore
	log   Log

	enabled        bool
	sentLogon      bool
	receivedLogon  bool
	sentLogout     bool
	receivedLogout bool
	initiate       bool

	logonTimeout  time.Duration
	logoutTimeout time.Duration
	heartBtInt    time.Duration

	lastReceivedTime time.Time
	lastSentTime     time.Time

	testRequestCounter int
	lastTestReqID      string

	resend *resendRange

	// queue holds out-of-order inbound messages awaiting gap fill, keyed
	// by target sequence number. Sparse; bounded implicitly by peer
	// backlog (§9 Design Notes).
	queue map[uint64]*Message

	logoutReason string
}

// newSessionState constructs a SessionState backed by store and log, with
// the given initiator role and timeout/heartbeat defaults.
func newSessionState(store MessageStore, log Log, initiate bool, logonTimeout, logoutTimeout time.Duration) *SessionState {
	return &SessionState{
		store:         store,
		log:           log,
		initiate:      initiate,
		logonTimeout:  logonTimeout,
		logoutTimeout: logoutTimeout,
		queue:         make(map[uint64]*Message),
	}
}

func (s *SessionState) isLoggedOn() bool {
	return s.enabled && s.sentLogon && s.receivedLogon
}

func (s *SessionState) isConnected() bool {
	return s.sentLogon || s.receivedLogon
}

// enqueue stashes msg for later replay once the gap preceding seqNum is
// filled.
func (s *SessionState) enqueue(seqNum uint64, msg *Message) {
	s.queue[seqNum] = msg
}

// dequeue removes and returns the queued message at seqNum, if any.
func (s *SessionState) dequeue(seqNum uint64) (*Message, bool) {
	msg, ok := s.queue[seqNum]
	if ok {
		delete(s.queue, seqNum)
	}
	return msg, ok
}

func (s *SessionState) clearQueue() {
	s.queue = make(map[uint64]*Message)
}

// setResend begins tracking an outstanding resend request for
// [begin, end]. end == 0 means open-ended.
func (s *SessionState) setResend(begin, end uint64) {
	s.resend = &resendRange{beginSeqNo: begin, endSeqNo: end}
}

func (s *SessionState) clearResend() {
	s.resend = nil
}

func (s *SessionState) resendOutstanding() bool {
	return s.resend.active()
}

// clearLogonFlags resets the logon/logout/timer bookkeeping that only
// applies to a single connection, leaving `enabled` (operator intent)
// and sequence numbers untouched. Called on disconnect.
func (s *SessionState) clearLogonFlags() {
	s.sentLogon = false
	s.receivedLogon = false
	s.sentLogout = false
	s.receivedLogout = false
	s.testRequestCounter = 0
	s.lastTestReqID = ""
	s.heartBtInt = 0
	s.clearResend()
	s.clearQueue()
}
