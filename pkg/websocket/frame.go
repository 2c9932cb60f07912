package websocket

import (
	"encoding/binary"
	"strconv"
)

// Opcode denotes the type of a WebSocket frame, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2 and
// https://datatracker.ietf.org/doc/html/rfc6455#section-11.8.
type Opcode int

const (
	OpcodeContinuation Opcode = iota
	OpcodeText
	OpcodeBinary
	// 3-7 are reserved for further non-control frames.
	_
	_
	_
	_
	_
	OpcodeClose
	OpcodePing
	OpcodePong
	// 11-15 are reserved for further control frames.
)

// String returns the opcode's name, or its number if it's unrecognized.
func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return strconv.Itoa(int(o))
	}
}

// IsControl reports whether o is one of the three control opcodes,
// which RFC 6455 §5.5 forbids fragmenting.
func (o Opcode) IsControl() bool {
	return o == OpcodeClose || o == OpcodePing || o == OpcodePong
}

// isReserved reports whether o is one of the opcodes RFC 6455 §11.8
// reserves for future use. An implementer note in the source this
// specification was distilled from treats reserved opcodes the same as
// any other unrecognized value; this implementation instead fails the
// connection with a distinct error for them, so callers can tell
// "client is using a future extension we don't know about" apart from
// "client sent garbage".
func (o Opcode) isReserved() bool {
	switch {
	case o >= 3 && o <= 7:
		return true
	case o >= 11 && o <= 15:
		return true
	default:
		return false
	}
}

// Frame parsing/construction constants, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2.
const (
	bit0     = 0x80
	bit1     = 0x40
	bit2     = 0x20
	bit3     = 0x10
	bits1to7 = 0x7f
	bits4to7 = 0x0f

	len7bits  = 125 // Payload length of up to 125 bytes.
	len16bits = 126 // Extended payload length of up to 64 KiB.
	len64bits = 127 // Extended payload length of up to 16 EiB.
)

// maxControlPayload is the maximum length of a control frame payload,
// as defined in https://datatracker.ietf.org/doc/html/rfc6455#section-5.5.
const maxControlPayload = 125

// Frame is one decoded WebSocket frame, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.2, minus the
// masking key (already applied to Payload by the time TryReadFrame
// returns). Payload aliases the Stream's buffered spans; callers that
// need it to outlive the connection's next read should clone it.
type Frame struct {
	// Bit 0: Indicates that this is the final fragment in a message.
	// The first fragment MAY also be the final fragment.
	Fin bool
	// Bits 4-7: Defines the interpretation of the "Payload data".
	Opcode Opcode
	// Payload data, unmasked. Aliases the decoding Stream's spans.
	Payload ByteView
}

// frameHeader mirrors the wire layout described above, before the
// masking key and payload have been located.
type frameHeader struct {
	fin           bool
	rsv           [3]bool
	opcode        Opcode
	mask          bool
	payloadLength uint64
	headerLen     int // bytes occupied by fin/opcode/mask-bit/length fields, not counting the mask key
}

// TryReadFrame decodes one complete client-to-server frame (header,
// mask key, and payload) from the front of view. It returns
// errNeedMore if view doesn't yet hold a complete frame; the caller
// should pull more data from the Stream and retry with the larger
// view. On success it returns the number of bytes the frame occupied,
// to be passed to Stream.Consumed once the payload has been read by
// the caller (TryReadFrame does not consume anything itself, since it
// takes a plain ByteView rather than the Stream).
//
// It is based on:
//   - Base framing protocol: https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
//   - Client-to-server masking: https://datatracker.ietf.org/doc/html/rfc6455#section-5.3
//   - Receiving data: https://datatracker.ietf.org/doc/html/rfc6455#section-6.2
func TryReadFrame(view ByteView) (Frame, int, error) {
	h, err := readFrameHeader(view)
	if err != nil {
		return Frame{}, 0, err
	}

	total := h.headerLen
	var maskKey [4]byte
	if h.mask {
		if view.Length() < total+4 {
			return Frame{}, 0, errNeedMore
		}
		view.SliceRange(offsetCursor(view, total), offsetCursor(view, total+4)).CopyTo(maskKey[:])
		total += 4
	}

	if view.Length() < total+int(h.payloadLength) {
		return Frame{}, 0, errNeedMore
	}
	payload := view.SliceRange(offsetCursor(view, total), offsetCursor(view, total+int(h.payloadLength)))
	total += int(h.payloadLength)

	if err := checkFrameHeader(h); err != nil {
		return Frame{}, 0, err
	}

	if h.mask {
		applyMask(payload, maskKey)
	}

	return Frame{Fin: h.fin, Opcode: h.opcode, Payload: payload}, total, nil
}

// offsetCursor returns the cursor n bytes into view from its start.
func offsetCursor(view ByteView, n int) Cursor {
	return view.advance(Cursor{}, n)
}

// readFrameHeader decodes the fixed-size header fields, requiring at
// most 10 bytes to be buffered (2 base bytes plus up to 8 for a
// 64-bit extended length), without requiring the mask key or payload
// to be present yet.
func readFrameHeader(view ByteView) (frameHeader, error) {
	if view.Length() < 2 {
		return frameHeader{}, errNeedMore
	}
	var first [2]byte
	view.Take(2).CopyTo(first[:])

	h := frameHeader{
		fin:    first[0]&bit0 != 0,
		opcode: Opcode(first[0] & bits4to7),
		mask:   first[1]&bit0 != 0,
	}
	h.rsv[0] = first[0]&bit1 != 0
	h.rsv[1] = first[0]&bit2 != 0
	h.rsv[2] = first[0]&bit3 != 0

	lenField := first[1] & bits1to7
	switch {
	case lenField <= len7bits:
		h.payloadLength = uint64(lenField)
		h.headerLen = 2
	case lenField == len16bits:
		if view.Length() < 4 {
			return frameHeader{}, errNeedMore
		}
		var b [2]byte
		view.SliceRange(offsetCursor(view, 2), offsetCursor(view, 4)).CopyTo(b[:])
		h.payloadLength = uint64(binary.BigEndian.Uint16(b[:]))
		h.headerLen = 4
	default: // len64bits
		if view.Length() < 10 {
			return frameHeader{}, errNeedMore
		}
		var b [8]byte
		view.SliceRange(offsetCursor(view, 2), offsetCursor(view, 10)).CopyTo(b[:])
		h.payloadLength = binary.BigEndian.Uint64(b[:])
		// The high word must be zero and the low word must fit in a
		// signed 32-bit length; reject anything else outright rather
		// than risk an int overflow later when the length is used to
		// slice the view.
		if h.payloadLength > 0x7FFFFFFF {
			return frameHeader{}, newProtocolError(KindPayloadTooLarge, strconv.FormatUint(h.payloadLength, 10))
		}
		h.headerLen = 10
	}
	return h, nil
}

// checkFrameHeader fails the connection for anything RFC 6455 requires
// a server to reject in an incoming client frame.
//
// It is based on:
//   - Overview: https://datatracker.ietf.org/doc/html/rfc6455#section-5.1
//   - Base framing protocol: https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
//   - Control frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5
func checkFrameHeader(h frameHeader) error {
	// "Reserved bits MUST be 0 unless an extension is negotiated that defines
	// meanings for non-zero values."
	if h.rsv[0] || h.rsv[1] || h.rsv[2] {
		return newProtocolError(KindReservedBitsSet, "")
	}

	if h.opcode.isReserved() {
		return newProtocolError(KindReservedOpcode, h.opcode.String())
	}

	// "All frames sent from client to server have [the mask bit] set to 1."
	if !h.mask {
		return newProtocolError(KindUnmaskedClientFrame, "")
	}

	// "All control frames MUST have a payload length of 125 bytes or
	// less and MUST NOT be fragmented."
	if h.opcode.IsControl() {
		if h.payloadLength > maxControlPayload {
			return newProtocolError(KindControlFrameTooLarge, strconv.FormatUint(h.payloadLength, 10))
		}
		if !h.fin {
			return newProtocolError(KindFragmentedControlFrame, h.opcode.String())
		}
	}

	return nil
}

// applyMask XORs payload in place against key, as defined in
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.3, correctly
// rotating the key across span boundaries.
//
// The source this specification was distilled from advances the
// rotating key index by the *total* number of bytes processed so far
// in the buffer, rather than by the number of bytes consumed within
// the current span; that desynchronizes the key the moment a masked
// payload straddles more than one span, because the next span doesn't
// start at a mask-aligned offset within the overall message unless it
// happens to start at a multiple-of-4 boundary. This implementation
// tracks the position explicitly and carries it from one span into the
// next, which is correct regardless of how the view happens to be
// split — matching the spirit of
// yanzongzhen-nats-server's wsReadInfo.unmask, which persists mkpos
// across reads instead of deriving it from a cumulative byte count.
func applyMask(payload ByteView, key [4]byte) {
	pos := 0
	payload.ForEachSpan(func(s Span) bool {
		for i := range s {
			s[i] ^= key[pos&3]
			pos++
		}
		return true
	})
}

// WriteFrameHeader appends a frame header for a server-to-client frame
// to dst and returns the extended slice. Per
// https://datatracker.ietf.org/doc/html/rfc6455#section-5.1, "a server
// MUST NOT mask any frames that it sends to the client", so unlike the
// client-side writer this never emits a mask bit or mask key.
func WriteFrameHeader(dst []byte, fin bool, op Opcode, payloadLen int) []byte {
	var b0 byte
	if fin {
		b0 |= bit0
	}
	b0 |= byte(op) & bits4to7
	dst = append(dst, b0)

	switch {
	case payloadLen <= len7bits:
		dst = append(dst, byte(payloadLen))
	case payloadLen <= 0xFFFF:
		dst = append(dst, len16bits)
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(payloadLen)) //gosec:disable G115 -- bounded by the case above
		dst = append(dst, b[:]...)
	default:
		dst = append(dst, len64bits)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(payloadLen))
		dst = append(dst, b[:]...)
	}
	return dst
}
