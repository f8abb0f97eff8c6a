package fixmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"fixengine/internal/fix"
	fixmetrics "fixengine/internal/metrics"
)

func testSessionID() fix.SessionID {
	return fix.NewSessionID(fix.BeginStringFIX44, "BUYER", "SELLER")
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.MessagesSent == nil {
		t.Error("MessagesSent is nil")
	}
	if c.MessagesReceived == nil {
		t.Error("MessagesReceived is nil")
	}
	if c.Rejects == nil {
		t.Error("Rejects is nil")
	}
	if c.Resends == nil {
		t.Error("Resends is nil")
	}
	if c.Heartbeats == nil {
		t.Error("Heartbeats is nil")
	}
	if c.Disconnects == nil {
		t.Error("Disconnects is nil")
	}

	// Verify all metrics are registered by gathering them.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRegisterUnregisterSession(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testSessionID()

	c.RegisterSession(id)

	val := gaugeValue(t, c.Sessions, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 1 {
		t.Errorf("after RegisterSession: sessions gauge = %v, want 1", val)
	}

	c.UnregisterSession(id)

	val = gaugeValue(t, c.Sessions, id.BeginString, id.SenderCompID, id.TargetCompID)
	if val != 0 {
		t.Errorf("after UnregisterSession: sessions gauge = %v, want 0", val)
	}
}

func TestMessageCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testSessionID()

	c.IncMessagesSent(id, fix.MsgTypeHeartbeat)
	c.IncMessagesSent(id, fix.MsgTypeHeartbeat)
	c.IncMessagesSent(id, fix.MsgTypeLogon)

	val := counterValue(t, c.MessagesSent, id.BeginString, id.SenderCompID, id.TargetCompID, fix.MsgTypeHeartbeat)
	if val != 2 {
		t.Errorf("MessagesSent(Heartbeat) = %v, want 2", val)
	}

	val = counterValue(t, c.MessagesSent, id.BeginString, id.SenderCompID, id.TargetCompID, fix.MsgTypeLogon)
	if val != 1 {
		t.Errorf("MessagesSent(Logon) = %v, want 1", val)
	}

	c.IncMessagesReceived(id, fix.MsgTypeTestRequest)

	val = counterValue(t, c.MessagesReceived, id.BeginString, id.SenderCompID, id.TargetCompID, fix.MsgTypeTestRequest)
	if val != 1 {
		t.Errorf("MessagesReceived(TestRequest) = %v, want 1", val)
	}
}

func TestProtocolEventCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := fixmetrics.NewCollector(reg)
	id := testSessionID()

	c.IncRejects(id)
	c.IncResends(id)
	c.IncResends(id)
	c.IncHeartbeats(id)
	c.IncDisconnects(id)

	if val := counterValue(t, c.Rejects, id.BeginString, id.SenderCompID, id.TargetCompID); val != 1 {
		t.Errorf("Rejects = %v, want 1", val)
	}
	if val := counterValue(t, c.Resends, id.BeginString, id.SenderCompID, id.TargetCompID); val != 2 {
		t.Errorf("Resends = %v, want 2", val)
	}
	if val := counterValue(t, c.Heartbeats, id.BeginString, id.SenderCompID, id.TargetCompID); val != 1 {
		t.Errorf("Heartbeats = %v, want 1", val)
	}
	if val := counterValue(t, c.Disconnects, id.BeginString, id.SenderCompID, id.TargetCompID); val != 1 {
		t.Errorf("Disconnects = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
