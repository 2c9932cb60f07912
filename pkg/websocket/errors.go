package websocket

import "errors"

// Kind discriminates the ways a handshake or frame stream can be
// rejected, so callers can decide fatal-vs-not without string matching,
// the same role the teacher's Opcode/StatusCode named types play.
type Kind int

const (
	// KindMalformedRequest covers anything wrong with the HTTP/1.1
	// request line or header block itself (bad method, missing
	// version, header line with no colon, request line too long).
	KindMalformedRequest Kind = iota
	// KindMissingHost is a request with no Host header.
	KindMissingHost
	// KindNotUpgrade is a request that isn't attempting a WebSocket
	// upgrade at all (no Upgrade: websocket token).
	KindNotUpgrade
	// KindMissingKey is a request with no (or an empty) Sec-WebSocket-Key.
	KindMissingKey
	// KindBadKeyLength is a Sec-WebSocket-Key whose decoded length isn't 16 bytes.
	KindBadKeyLength
	// KindUnsupportedVariant is a detected-but-unsupported protocol
	// variant (Hixie-76/hybi-00).
	KindUnsupportedVariant
	// KindUnsupportedVersion is a request whose Sec-WebSocket-Version
	// isn't one of the values RFC 6455 §4.4 recognizes (4, 5, 6, 7, 8,
	// or 13).
	KindUnsupportedVersion
	// KindUnmaskedClientFrame is a client-to-server frame missing the
	// required MASK bit.
	KindUnmaskedClientFrame
	// KindReservedOpcode is a frame using one of the RFC 6455 reserved
	// opcodes (3-7, 11-15).
	KindReservedOpcode
	// KindFragmentedControlFrame is a control frame (close/ping/pong)
	// sent with FIN=0 or as a continuation.
	KindFragmentedControlFrame
	// KindControlFrameTooLarge is a control frame payload over 125 bytes.
	KindControlFrameTooLarge
	// KindInvalidContinuation is a continuation frame with no message in
	// progress, or a new data frame started before the previous one finished.
	KindInvalidContinuation
	// KindInvalidUTF8 is a completed text message whose payload isn't
	// valid UTF-8.
	KindInvalidUTF8
	// KindReservedBitsSet is a frame with a nonzero RSV1/RSV2/RSV3 bit
	// (no extension negotiation is supported).
	KindReservedBitsSet
	// KindPayloadTooLarge is a 64-bit extended length whose high 32 bits
	// are nonzero, or whose low 32 bits would overflow a signed 32-bit
	// length once converted.
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRequest:
		return "malformed_request"
	case KindMissingHost:
		return "missing_host"
	case KindNotUpgrade:
		return "not_upgrade"
	case KindMissingKey:
		return "missing_key"
	case KindBadKeyLength:
		return "bad_key_length"
	case KindUnsupportedVariant:
		return "unsupported_variant"
	case KindUnsupportedVersion:
		return "unsupported_version"
	case KindUnmaskedClientFrame:
		return "unmasked_client_frame"
	case KindReservedOpcode:
		return "reserved_opcode"
	case KindFragmentedControlFrame:
		return "fragmented_control_frame"
	case KindControlFrameTooLarge:
		return "control_frame_too_large"
	case KindInvalidContinuation:
		return "invalid_continuation"
	case KindInvalidUTF8:
		return "invalid_utf8"
	case KindReservedBitsSet:
		return "reserved_bits_set"
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "unknown"
	}
}

// ProtocolError is returned by the request parser, handshake
// negotiator, and frame decoder for anything that isn't "need more
// bytes" (see errNeedMore, which never escapes this package).
type ProtocolError struct {
	Kind    Kind
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return "websocket: " + e.Kind.String()
	}
	return "websocket: " + e.Kind.String() + ": " + e.Message
}

func newProtocolError(k Kind, msg string) *ProtocolError {
	return &ProtocolError{Kind: k, Message: msg}
}

// errNeedMore signals that a parser reached the end of the currently
// buffered view without finding a complete unit (request line, header
// block, or frame header/payload) and must wait for Stream.Next before
// retrying. It is internal: callers outside this package only ever see
// it wrapped away by the read loops in accept.go/message.go, which retry
// automatically.
var errNeedMore = errors.New("websocket: need more data")
