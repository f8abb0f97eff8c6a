package fix_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fixengine/internal/fix"
)

func newRegistryTestSession(t *testing.T, sender, target string) *fix.Session {
	t.Helper()
	cfg := fix.SessionConfig{
		ID:          fix.NewSessionID(fix.BeginStringFIX44, sender, target),
		Application: fix.NopApplication{},
		Settings:    fix.DefaultSettings(),
	}
	sess, err := fix.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return sess
}

func TestSessionRegistryAddLookupRemove(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)
	sess := newRegistryTestSession(t, "A", "B")

	if err := reg.Add(sess); err != nil {
		t.Fatalf("Add() error: %v", err)
	}
	if reg.NumSessions() != 1 {
		t.Fatalf("NumSessions() = %d, want 1", reg.NumSessions())
	}

	got, ok := reg.Lookup(sess.ID())
	if !ok || got != sess {
		t.Fatalf("Lookup() = %v, %v, want the registered session", got, ok)
	}

	reg.Remove(sess.ID())
	if _, ok := reg.Lookup(sess.ID()); ok {
		t.Fatal("expected Lookup to fail after Remove")
	}
	if reg.NumSessions() != 0 {
		t.Fatalf("NumSessions() after Remove = %d, want 0", reg.NumSessions())
	}
}

func TestSessionRegistryDuplicateAdd(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)

	first := newRegistryTestSession(t, "A", "B")
	second := newRegistryTestSession(t, "A", "B")

	if err := reg.Add(first); err != nil {
		t.Fatalf("Add(first) error: %v", err)
	}
	if err := reg.Add(second); !errors.Is(err, fix.ErrDuplicateSession) {
		t.Fatalf("Add(second) error = %v, want ErrDuplicateSession", err)
	}
}

func TestSessionRegistryLookupStringReversed(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)
	sess := newRegistryTestSession(t, "US", "THEM")
	if err := reg.Add(sess); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	// An inbound header has Sender/Target from the peer's perspective:
	// SenderCompID=THEM, TargetCompID=US. The registry must resolve that
	// back to our local session via the reversed lookup.
	inbound := fix.NewSessionID(fix.BeginStringFIX44, "THEM", "US").String()
	got, ok := reg.LookupString(inbound, true)
	if !ok || got != sess {
		t.Fatalf("LookupString(reverse) = %v, %v, want the registered session", got, ok)
	}
}

func TestSessionRegistrySendToTargetNotFound(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)
	msg := fix.NewMessage(fix.MsgTypeHeartbeat)

	_, err := reg.SendToTarget(msg, fix.NewSessionID(fix.BeginStringFIX44, "X", "Y"))
	if !errors.Is(err, fix.ErrSessionNotFound) {
		t.Fatalf("SendToTarget() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionRegistrySessionsSnapshot(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)
	a := newRegistryTestSession(t, "A", "X")
	b := newRegistryTestSession(t, "B", "X")
	_ = reg.Add(a)
	_ = reg.Add(b)

	sessions := reg.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("Sessions() returned %d entries, want 2", len(sessions))
	}
}

func TestSessionRegistryStateChangesDelivered(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reg.RunDispatch(ctx)

	id := fix.NewSessionID(fix.BeginStringFIX44, "A", "B")
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	reg.NotifyStateChange(id, fix.ConnectionStateLoggedOn, now)

	select {
	case change := <-reg.StateChanges():
		if change.SessionID != id || change.State != fix.ConnectionStateLoggedOn || !change.Timestamp.Equal(now) {
			t.Fatalf("StateChanges() delivered %+v, want session %s LoggedOn at %v", change, id, now)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for state change notification")
	}
}

func TestSessionRegistryStateChangesDropWhenFull(t *testing.T) {
	reg := fix.NewSessionRegistry(nil)
	id := fix.NewSessionID(fix.BeginStringFIX44, "A", "B")
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	// No RunDispatch running: rawNotifyCh fills and further notifications
	// are dropped rather than blocking the caller.
	for i := 0; i < 100; i++ {
		reg.NotifyStateChange(id, fix.ConnectionStateLoggedOn, now)
	}
}

func TestNotifyingApplicationCallsNotifyOnLogonLogout(t *testing.T) {
	var calls []fix.ConnectionState
	app := fix.NotifyingApplication(fix.NopApplication{}, func(_ fix.SessionID, state fix.ConnectionState, _ time.Time) {
		calls = append(calls, state)
	})

	id := fix.NewSessionID(fix.BeginStringFIX44, "A", "B")
	app.OnLogon(id)
	app.OnLogout(id)

	if len(calls) != 2 || calls[0] != fix.ConnectionStateLoggedOn || calls[1] != fix.ConnectionStateLoggedOff {
		t.Fatalf("notify calls = %v, want [LoggedOn LoggedOff]", calls)
	}
}
