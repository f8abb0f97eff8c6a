package fix_test

import (
	"testing"
	"time"

	"fixengine/internal/fix"
)

func TestMemoryStoreSequenceNumbers(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	store := fix.NewMemoryStore(now)

	sender, err := store.NextSenderMsgSeqNum()
	if err != nil || sender != 1 {
		t.Fatalf("NextSenderMsgSeqNum() = %d, %v, want 1, nil", sender, err)
	}
	target, err := store.NextTargetMsgSeqNum()
	if err != nil || target != 1 {
		t.Fatalf("NextTargetMsgSeqNum() = %d, %v, want 1, nil", target, err)
	}

	if err := store.IncrNextSenderMsgSeqNum(); err != nil {
		t.Fatalf("IncrNextSenderMsgSeqNum() error: %v", err)
	}
	sender, _ = store.NextSenderMsgSeqNum()
	if sender != 2 {
		t.Fatalf("NextSenderMsgSeqNum() after incr = %d, want 2", sender)
	}

	if err := store.SetNextTargetMsgSeqNum(50); err != nil {
		t.Fatalf("SetNextTargetMsgSeqNum() error: %v", err)
	}
	target, _ = store.NextTargetMsgSeqNum()
	if target != 50 {
		t.Fatalf("NextTargetMsgSeqNum() after set = %d, want 50", target)
	}
}

func TestMemoryStoreSaveAndGetMessages(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	store := fix.NewMemoryStore(now)

	if err := store.SaveMessage(1, []byte("one")); err != nil {
		t.Fatalf("SaveMessage(1) error: %v", err)
	}
	if err := store.SaveMessage(3, []byte("three")); err != nil {
		t.Fatalf("SaveMessage(3) error: %v", err)
	}

	msgs, err := store.GetMessages(1, 3)
	if err != nil {
		t.Fatalf("GetMessages() error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("GetMessages() returned %d messages, want 2 (seq 2 is a gap)", len(msgs))
	}
	if msgs[0].SeqNum != 1 || string(msgs[0].Bytes) != "one" {
		t.Errorf("msgs[0] = %+v, want seq 1 \"one\"", msgs[0])
	}
	if msgs[1].SeqNum != 3 || string(msgs[1].Bytes) != "three" {
		t.Errorf("msgs[1] = %+v, want seq 3 \"three\"", msgs[1])
	}
}

func TestMemoryStoreReset(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	store := fix.NewMemoryStore(now)
	_ = store.IncrNextSenderMsgSeqNum()
	_ = store.SaveMessage(1, []byte("x"))

	resetAt := now.Add(24 * time.Hour)
	if err := store.Reset(resetAt); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}

	sender, _ := store.NextSenderMsgSeqNum()
	target, _ := store.NextTargetMsgSeqNum()
	if sender != 1 || target != 1 {
		t.Fatalf("after Reset sender=%d target=%d, want 1, 1", sender, target)
	}
	msgs, _ := store.GetMessages(1, 10)
	if len(msgs) != 0 {
		t.Fatalf("after Reset GetMessages returned %d messages, want 0", len(msgs))
	}
	created, _ := store.CreationTime()
	if !created.Equal(resetAt) {
		t.Fatalf("CreationTime() after Reset = %v, want %v", created, resetAt)
	}
}

func TestSessionIDZeroValueWithQualifier(t *testing.T) {
	id := fix.NewSessionID(fix.BeginStringFIX44, "A", "B")
	if id.SessionQualifier != "" {
		t.Fatalf("new SessionID should have no qualifier, got %q", id.SessionQualifier)
	}
	qualified := id.WithQualifier("extra")
	if id.SessionQualifier != "" {
		t.Fatal("WithQualifier must not mutate the receiver")
	}
	if qualified.SessionQualifier != "extra" {
		t.Fatalf("qualified.SessionQualifier = %q, want \"extra\"", qualified.SessionQualifier)
	}
}
