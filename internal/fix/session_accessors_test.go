package fix_test

import (
	"testing"
	"time"

	"fixengine/internal/fix"
)

func newAccessorTestSession(t *testing.T) *fix.Session {
	t.Helper()
	cfg := fix.SessionConfig{
		ID:          fix.NewSessionID(fix.BeginStringFIX44, "A", "B"),
		Application: fix.NopApplication{},
		Settings:    fix.DefaultSettings(),
	}
	sess, err := fix.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return sess
}

func TestSessionInAllowedRemoteAddresses(t *testing.T) {
	sess := newAccessorTestSession(t)

	if !sess.InAllowedRemoteAddresses("10.0.0.1") {
		t.Fatal("empty allow-list should permit any address")
	}

	settings := sess.Settings()
	settings.AllowedRemoteAddresses = map[string]struct{}{"10.0.0.1": {}}
	sess.SetSettings(settings)

	if !sess.InAllowedRemoteAddresses("10.0.0.1") {
		t.Fatal("expected allowed address to be permitted")
	}
	if sess.InAllowedRemoteAddresses("10.0.0.2") {
		t.Fatal("expected unlisted address to be rejected")
	}
}

func TestSessionLogonTimeWindow(t *testing.T) {
	sess := newAccessorTestSession(t)

	if !sess.IsLogonTime(time.Now()) {
		t.Fatal("unset LogonTime window should always permit logon")
	}

	window := fix.TimeRange{
		Start:    fix.TimeOfDay{Hour: 9},
		End:      fix.TimeOfDay{Hour: 17},
		Location: time.UTC,
	}
	sess.SetLogonTime(window)
	if got := sess.GetLogonTime(); got.Start != window.Start || got.End != window.End {
		t.Fatalf("GetLogonTime() = %+v, want %+v", got, window)
	}

	inside := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	if !sess.IsLogonTime(inside) {
		t.Fatalf("IsLogonTime(%v) = false, want true", inside)
	}
	if sess.IsLogonTime(outside) {
		t.Fatalf("IsLogonTime(%v) = true, want false", outside)
	}
}

func TestSessionApplVerIDAccessors(t *testing.T) {
	sess := newAccessorTestSession(t)

	sess.SetSenderDefaultApplVerID("9")
	sess.SetTargetDefaultApplVerID("8")

	if got := sess.GetSenderDefaultApplVerID(); got != "9" {
		t.Fatalf("GetSenderDefaultApplVerID() = %q, want %q", got, "9")
	}
	if got := sess.GetTargetDefaultApplVerID(); got != "8" {
		t.Fatalf("GetTargetDefaultApplVerID() = %q, want %q", got, "8")
	}
}

func TestSessionSequenceNumberOverrides(t *testing.T) {
	sess := newAccessorTestSession(t)

	if err := sess.SetNextSenderMsgSeqNum(100); err != nil {
		t.Fatalf("SetNextSenderMsgSeqNum() error: %v", err)
	}
	if err := sess.SetNextTargetMsgSeqNum(200); err != nil {
		t.Fatalf("SetNextTargetMsgSeqNum() error: %v", err)
	}

	sender, err := sess.NextSenderMsgSeqNum()
	if err != nil || sender != 100 {
		t.Fatalf("NextSenderMsgSeqNum() = %d, %v, want 100, nil", sender, err)
	}
	target, err := sess.NextTargetMsgSeqNum()
	if err != nil || target != 200 {
		t.Fatalf("NextTargetMsgSeqNum() = %d, %v, want 200, nil", target, err)
	}
}

func TestSessionSupportedTimestampPrecision(t *testing.T) {
	cfg := fix.SessionConfig{
		ID:          fix.NewSessionID(fix.BeginStringFIX44, "A", "B"),
		Application: fix.NopApplication{},
		Settings:    fix.DefaultSettings(),
	}
	cfg.Settings.TimestampPrecision = 6
	sess, err := fix.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}

	// FIX.4.4 is at or after FIX.4.2, so sub-second precision is honored.
	if got := sess.GetSupportedTimestampPrecision(); got != 6 {
		t.Fatalf("GetSupportedTimestampPrecision() = %d, want 6 for FIX.4.4", got)
	}
}
