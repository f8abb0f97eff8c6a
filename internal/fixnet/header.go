package fixnet

import (
	"fmt"

	"fixengine/internal/fix"
)

// logonHeader holds the three SessionID-identifying fields read off an
// inbound connection's first message, before the local Session that owns
// it is known.
type logonHeader struct {
	beginString  string
	senderCompID string
	targetCompID string
}

// parseLogonHeader decodes raw's header fields without BodyLength/CheckSum
// validation — the Acceptor only needs enough to resolve which registered
// Session should own the connection. Session.NextBytes performs the full
// validated parse once the Session is known.
func parseLogonHeader(raw []byte) (logonHeader, error) {
	msg, err := fix.ParseMessage(raw, false)
	if err != nil {
		return logonHeader{}, fmt.Errorf("fixnet: parse inbound header: %w", err)
	}

	if msgType, err := msg.MsgType(); err != nil || msgType != fix.MsgTypeLogon {
		return logonHeader{}, fmt.Errorf("fixnet: first message is not a Logon")
	}

	beginString, err := msg.Header.GetString(fix.TagBeginString)
	if err != nil {
		return logonHeader{}, fmt.Errorf("fixnet: missing BeginString: %w", err)
	}
	sender, err := msg.Header.GetString(fix.TagSenderCompID)
	if err != nil {
		return logonHeader{}, fmt.Errorf("fixnet: missing SenderCompID: %w", err)
	}
	target, err := msg.Header.GetString(fix.TagTargetCompID)
	if err != nil {
		return logonHeader{}, fmt.Errorf("fixnet: missing TargetCompID: %w", err)
	}

	return logonHeader{beginString: beginString, senderCompID: sender, targetCompID: target}, nil
}
