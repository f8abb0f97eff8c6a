package fix

// Responder abstracts sending raw bytes to the peer and requesting
// disconnection (C5). The transport layer (TCP acceptor/initiator) is the
// production implementation; tests use a recording fake.
//
// Responder implementations are responsible for their own internal
// synchronization — the Session invokes Send/Disconnect while holding its
// own mutex (§5).
type Responder interface {
	// Send writes buf to the peer. Returns false (and does not block
	// indefinitely) if the connection cannot currently accept data.
	Send(buf []byte) bool

	// Disconnect requests the transport layer tear down the connection.
	// Idempotent.
	Disconnect()

	// RemoteAddress returns the peer's address in string form, used for
	// AllowedRemoteAddresses enforcement and logging.
	RemoteAddress() string
}
