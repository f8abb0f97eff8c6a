// Package fixmetrics provides Prometheus instrumentation for the FIX
// session engine.
package fixmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"fixengine/internal/fix"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "fixengine"
	subsystem = "session"
)

// Label names for session metrics.
const (
	labelBeginString  = "begin_string"
	labelSenderCompID = "sender_comp_id"
	labelTargetCompID = "target_comp_id"
	labelMsgType      = "msg_type"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Session Metrics
// -------------------------------------------------------------------------

// Collector holds all FIX session Prometheus metrics.
//
//   - Sessions tracks currently logged-on sessions.
//   - MessagesSent/MessagesReceived track message volume per session, labeled
//     by MsgType so admin/app traffic can be distinguished from heartbeats.
//   - Rejects/Resends/Heartbeats/Disconnects count protocol-level events
//     used for alerting.
type Collector struct {
	// Sessions tracks the number of currently logged-on sessions.
	Sessions *prometheus.GaugeVec

	// MessagesSent counts outbound messages per session and MsgType.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts inbound messages per session and MsgType.
	MessagesReceived *prometheus.CounterVec

	// Rejects counts Reject/SessionLevelReject messages sent per session.
	Rejects *prometheus.CounterVec

	// Resends counts ResendRequests sent per session.
	Resends *prometheus.CounterVec

	// Heartbeats counts Heartbeat messages sent per session.
	Heartbeats *prometheus.CounterVec

	// Disconnects counts session disconnects per session.
	Disconnects *prometheus.CounterVec
}

// NewCollector creates a Collector with all session metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.MessagesSent,
		c.MessagesReceived,
		c.Rejects,
		c.Resends,
		c.Heartbeats,
		c.Disconnects,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	sessionLabels := []string{labelBeginString, labelSenderCompID, labelTargetCompID}
	msgLabels := []string{labelBeginString, labelSenderCompID, labelTargetCompID, labelMsgType}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "logged_on",
			Help:      "Number of currently logged-on FIX sessions.",
		}, sessionLabels),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total FIX messages transmitted, labeled by MsgType.",
		}, msgLabels),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Total FIX messages received, labeled by MsgType.",
		}, msgLabels),

		Rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejects_total",
			Help:      "Total Reject/SessionLevelReject messages sent.",
		}, sessionLabels),

		Resends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resend_requests_total",
			Help:      "Total ResendRequest messages sent.",
		}, sessionLabels),

		Heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "heartbeats_total",
			Help:      "Total Heartbeat messages sent.",
		}, sessionLabels),

		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "disconnects_total",
			Help:      "Total session disconnects.",
		}, sessionLabels),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the logged-on sessions gauge.
// cmd/fixengine calls it when SessionRegistry.StateChanges reports a logon.
func (c *Collector) RegisterSession(id fix.SessionID) {
	c.Sessions.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// UnregisterSession decrements the logged-on sessions gauge.
// cmd/fixengine calls it when SessionRegistry.StateChanges reports a logoff.
func (c *Collector) UnregisterSession(id fix.SessionID) {
	c.Sessions.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Dec()
}

// -------------------------------------------------------------------------
// Message Counters
// -------------------------------------------------------------------------

// IncMessagesSent increments the outbound message counter for id and msgType.
func (c *Collector) IncMessagesSent(id fix.SessionID, msgType string) {
	c.MessagesSent.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID, msgType).Inc()
}

// IncMessagesReceived increments the inbound message counter for id and msgType.
func (c *Collector) IncMessagesReceived(id fix.SessionID, msgType string) {
	c.MessagesReceived.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID, msgType).Inc()
}

// -------------------------------------------------------------------------
// Protocol Events
// -------------------------------------------------------------------------

// IncRejects increments the reject counter for id.
func (c *Collector) IncRejects(id fix.SessionID) {
	c.Rejects.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// IncResends increments the resend-request counter for id.
func (c *Collector) IncResends(id fix.SessionID) {
	c.Resends.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// IncHeartbeats increments the heartbeat counter for id.
func (c *Collector) IncHeartbeats(id fix.SessionID) {
	c.Heartbeats.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}

// IncDisconnects increments the disconnect counter for id.
func (c *Collector) IncDisconnects(id fix.SessionID) {
	c.Disconnects.WithLabelValues(id.BeginString, id.SenderCompID, id.TargetCompID).Inc()
}
