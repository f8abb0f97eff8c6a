package fixlog_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"fixengine/internal/fix"
	"fixengine/internal/fixlog"
)

func TestSlogLogFactoryEnrichesSessionID(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	factory := fixlog.NewSlogLogFactory(base)
	id := fix.NewSessionID(fix.BeginStringFIX44, "BUYER", "SELLER")
	log := factory.Create(id)

	log.OnEvent("session created")

	out := buf.String()
	if !strings.Contains(out, "session created") {
		t.Fatalf("log output missing event text: %s", out)
	}
	if !strings.Contains(out, id.String()) {
		t.Fatalf("log output missing session_id %q: %s", id.String(), out)
	}
}

func TestSlogLogIncomingOutgoing(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	log := fixlog.NewSlogLog(base)

	log.OnIncoming([]byte("8=FIX.4.4"))
	log.OnOutgoing([]byte("8=FIX.4.4"))
	log.OnEventf("heartbeat missed after %d attempts", 3)

	out := buf.String()
	if !strings.Contains(out, "<- FIX") || !strings.Contains(out, "-> FIX") {
		t.Fatalf("log output missing incoming/outgoing markers: %s", out)
	}
	if !strings.Contains(out, "heartbeat missed after 3 attempts") {
		t.Fatalf("log output missing formatted event: %s", out)
	}
}
