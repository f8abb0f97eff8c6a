// Package fixnet provides the TCP transport binding for fix.Session: a
// stream framer that splits inbound bytes on FIX message boundaries, an
// acceptor for inbound connections, and a dialer for initiator sessions.
package fixnet

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// checksumFieldPrefix marks the start of the trailer field (10=nnn<SOH>)
// that terminates every well-formed FIX message.
var checksumFieldPrefix = []byte{0x01, '1', '0', '='}

// errIncompleteMessage is returned by findMessageEnd while more bytes are
// still needed. ScanMessages wraps it into its own error only at EOF or
// once the buffered data exceeds maxMessageSize.
var errIncompleteMessage = errors.New("fixnet: incomplete message")

// maxMessageSize bounds a single FIX message, guarding against a peer that
// never sends a checksum trailer from growing the scan buffer unbounded.
const maxMessageSize = 16 << 20 // 16 MiB

// ScanMessages is a bufio.SplitFunc that frames a FIX byte stream on
// message boundaries: BeginString (8=...) to the end of the CheckSum
// field (10=nnn followed by SOH). It does not validate BodyLength or the
// checksum itself — that is Session.NextBytes's job — it only locates
// where one message ends and the next begins.
func ScanMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}

	end, findErr := findMessageEnd(data)
	if findErr != nil {
		if atEOF {
			return 0, nil, fmt.Errorf("scan FIX message: %w", findErr)
		}
		if len(data) > maxMessageSize {
			return 0, nil, fmt.Errorf("scan FIX message: exceeds %d bytes without trailer: %w",
				maxMessageSize, errIncompleteMessage)
		}
		return 0, nil, nil // request more data
	}

	msg := make([]byte, end)
	copy(msg, data[:end])
	return end, msg, nil
}

// findMessageEnd locates the byte offset one past the SOH terminating the
// first message's CheckSum field, or errIncompleteMessage if data does
// not yet contain a full trailer.
func findMessageEnd(data []byte) (int, error) {
	idx := bytes.Index(data, checksumFieldPrefix)
	if idx < 0 {
		return 0, errIncompleteMessage
	}
	// idx points at the SOH preceding "10=". The value runs from idx+4 to
	// the next SOH.
	valueStart := idx + len(checksumFieldPrefix)
	soh := bytes.IndexByte(data[valueStart:], 0x01)
	if soh < 0 {
		return 0, errIncompleteMessage
	}
	return valueStart + soh + 1, nil
}

// NewScanner wraps r in a bufio.Scanner configured with ScanMessages and a
// buffer large enough for maxMessageSize.
func NewScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 4096), maxMessageSize)
	sc.Split(ScanMessages)
	return sc
}
