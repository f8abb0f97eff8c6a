// Package fix implements the FIX (Financial Information eXchange) session
// layer: the per-connection administrative state machine (logon,
// heartbeating, resend/gap-fill, logout) and the process-wide session
// registry that dispatches inbound messages and routes outbound sends.
//
// The package does not parse or validate the FIX wire grammar against a
// schema (that is a DataDictionary's job, modeled here only as the
// [DataDictionary] interface) and does not own a transport; it is driven by
// a [Responder] for outbound bytes and fed inbound bytes/messages by
// whatever owns the TCP connection.
package fix
