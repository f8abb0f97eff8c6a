package fix

import "time"

// Settings returns a copy of the session's current configuration. Mutate
// and pass back through SetSettings; the zero value is never meaningful
// on its own since most fields interact (e.g. CheckLatency/MaxLatency).
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the session's configuration. Safe to call at any
// time; takes effect on the next inbound message or Tick.
func (s *Session) SetSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// InAllowedRemoteAddresses reports whether addr may attach a Responder,
// per Settings.AllowedRemoteAddresses (original_source supplement: the
// source engine checks this at the transport-accept boundary, ahead of
// SetResponder, so operators can reject a peer before the handshake
// starts).
func (s *Session) InAllowedRemoteAddresses(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.AllowsRemoteAddress(addr)
}

// GetLogonTime returns the configured LogonTime window, restricting when
// Tick sends an initiator's initial Logon, independent of SessionTime.
func (s *Session) GetLogonTime() TimeRange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.LogonTime
}

// SetLogonTime replaces the configured LogonTime window.
func (s *Session) SetLogonTime(window TimeRange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.LogonTime = window
}

// IsLogonTime reports whether now falls within the configured LogonTime
// window. An unset window always permits logon.
func (s *Session) IsLogonTime(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings.LogonTime.isUnset() {
		return true
	}
	return s.settings.LogonTime.IsInRange(now)
}

// GetSenderDefaultApplVerID returns the negotiated FIXT.1.1 application
// version this session presents as sender, if BeginString is FIXT.1.1.
func (s *Session) GetSenderDefaultApplVerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.SenderDefaultApplVerID
}

// SetSenderDefaultApplVerID sets the negotiated FIXT.1.1 application
// version this session presents as sender.
func (s *Session) SetSenderDefaultApplVerID(applVerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.SenderDefaultApplVerID = applVerID
}

// GetTargetDefaultApplVerID returns the negotiated FIXT.1.1 application
// version expected from the peer.
func (s *Session) GetTargetDefaultApplVerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.TargetDefaultApplVerID
}

// SetTargetDefaultApplVerID sets the negotiated FIXT.1.1 application
// version expected from the peer.
func (s *Session) SetTargetDefaultApplVerID(applVerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.TargetDefaultApplVerID = applVerID
}

// GetSupportedTimestampPrecision returns the effective SendingTime
// fractional-digit precision for this session's BeginString.
func (s *Session) GetSupportedTimestampPrecision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.SupportedTimestampPrecision(s.id.BeginString)
}

// SetNextSenderMsgSeqNum forcibly overrides the outbound sequence number,
// bypassing the Logon/SequenceReset negotiation path. Operator-triggered
// (e.g. via an admin API), mirroring the source engine's direct sequence
// number setters used for manual gap recovery.
func (s *Session) SetNextSenderMsgSeqNum(next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.store.SetNextSenderMsgSeqNum(next); err != nil {
		return err
	}
	s.log.OnEventf("next sender sequence number set to %d by operator", next)
	return nil
}

// SetNextTargetMsgSeqNum forcibly overrides the expected inbound sequence
// number, bypassing gap-fill. Operator-triggered.
func (s *Session) SetNextTargetMsgSeqNum(next uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.store.SetNextTargetMsgSeqNum(next); err != nil {
		return err
	}
	s.log.OnEventf("next target sequence number set to %d by operator", next)
	return nil
}

// NextSenderMsgSeqNum returns the sequence number that will be assigned
// to the next outbound message.
func (s *Session) NextSenderMsgSeqNum() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.store.NextSenderMsgSeqNum()
}

// NextTargetMsgSeqNum returns the sequence number expected on the next
// inbound message.
func (s *Session) NextTargetMsgSeqNum() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.store.NextTargetMsgSeqNum()
}

// CreationTime returns the session's current time-window creation
// timestamp, as tracked by its MessageStore.
func (s *Session) CreationTime() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.store.CreationTime()
}
