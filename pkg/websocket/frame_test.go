package websocket

import (
	"bytes"
	"errors"
	"testing"
)

// https://datatracker.ietf.org/doc/html/rfc6455#section-5.7
func TestTryReadFrame(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		wantOpcode  Opcode
		wantFin     bool
		wantPayload string
		wantKind    Kind
		wantErr     bool
	}{
		{
			name:        "masked_text_hello",
			data:        []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58},
			wantOpcode:  OpcodeText,
			wantFin:     true,
			wantPayload: "Hello",
		},
		{
			name: "unmasked_text_hello_rejected",
			data: []byte{0x81, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f},
			wantErr: true,
			wantKind: KindUnmaskedClientFrame,
		},
		{
			name:     "fragmented_ping_rejected",
			data:     append([]byte{0x09, 0x80}, mockMaskKey()...),
			wantErr:  true,
			wantKind: KindFragmentedControlFrame,
		},
		{
			name:     "reserved_opcode_rejected",
			data:     append([]byte{0x83, 0x80}, mockMaskKey()...),
			wantErr:  true,
			wantKind: KindReservedOpcode,
		},
		{
			name:     "reserved_bit_rejected",
			data:     append([]byte{0xc1, 0x80}, mockMaskKey()...),
			wantErr:  true,
			wantKind: KindReservedBitsSet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := newByteView([]Span{tt.data})
			f, n, err := TryReadFrame(view)
			if tt.wantErr {
				var pe *ProtocolError
				if !errors.As(err, &pe) || pe.Kind != tt.wantKind {
					t.Fatalf("TryReadFrame() error = %v, want kind %v", err, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("TryReadFrame() unexpected error: %v", err)
			}
			if f.Opcode != tt.wantOpcode || f.Fin != tt.wantFin {
				t.Errorf("TryReadFrame() = opcode %v fin %v, want opcode %v fin %v", f.Opcode, f.Fin, tt.wantOpcode, tt.wantFin)
			}
			if got := f.Payload.GetASCIIString(); got != tt.wantPayload {
				t.Errorf("TryReadFrame() payload = %q, want %q", got, tt.wantPayload)
			}
			if n != len(tt.data) {
				t.Errorf("TryReadFrame() consumed = %d, want %d", n, len(tt.data))
			}
		})
	}
}

func mockMaskKey() []byte {
	return []byte{0, 0, 0, 0}
}

// TestTryReadFramePayloadTooLarge checks that a 64-bit extended length
// with a nonzero high word is rejected outright instead of being
// truncated or causing an int overflow when later used to slice a view.
func TestTryReadFramePayloadTooLarge(t *testing.T) {
	data := append([]byte{0x82, 0xff}, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00)
	data = append(data, mockMaskKey()...)
	view := newByteView([]Span{data})
	_, _, err := TryReadFrame(view)

	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Kind != KindPayloadTooLarge {
		t.Fatalf("TryReadFrame() error = %v, want kind %v", err, KindPayloadTooLarge)
	}
}

// TestTryReadFrameNeedsMore checks that an incomplete frame split at
// every possible byte offset correctly reports errNeedMore instead of
// misparsing a short buffer.
func TestTryReadFrameNeedsMore(t *testing.T) {
	full := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}
	for n := 0; n < len(full); n++ {
		view := newByteView([]Span{full[:n]})
		_, _, err := TryReadFrame(view)
		if !errors.Is(err, errNeedMore) {
			t.Errorf("TryReadFrame() with %d/%d bytes: error = %v, want errNeedMore", n, len(full), err)
		}
	}
}

// TestApplyMaskCrossSpan checks that masking a payload split across two
// spans produces the same result as masking the same bytes
// contiguously, for every possible split point. This is the
// property spec.md calls out by name: the rotating mask key must track
// position across span boundaries, not reset or desync at them.
func TestApplyMaskCrossSpan(t *testing.T) {
	key := [4]byte{0x37, 0xfa, 0x21, 0x3d}
	payload := []byte("Hello, cross-span masking world!")

	want := append([]byte(nil), payload...)
	applyMask(newByteView([]Span{want}), key)

	for split := 0; split <= len(payload); split++ {
		got := append([]byte(nil), payload...)
		spans := []Span{got[:split], got[split:]}
		applyMask(newByteView(spans), key)
		if !bytes.Equal(got, want) {
			t.Errorf("applyMask() with split at %d = %v, want %v", split, got, want)
		}
	}
}

// TestApplyMaskIsInvolution checks that masking twice restores the
// original bytes, as RFC 6455 §5.3 requires.
func TestApplyMaskIsInvolution(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	orig := []byte("round trip payload of arbitrary length")
	got := append([]byte(nil), orig...)

	applyMask(newByteView([]Span{got}), key)
	applyMask(newByteView([]Span{got}), key)

	if !bytes.Equal(got, orig) {
		t.Errorf("double applyMask() = %v, want %v", got, orig)
	}
}

func TestWriteFrameHeader(t *testing.T) {
	tests := []struct {
		name string
		fin  bool
		op   Opcode
		n    int
		want []byte
	}{
		{name: "0", fin: true, op: OpcodeText, n: 0, want: []byte{0x81, 0x00}},
		{name: "125", fin: true, op: OpcodeBinary, n: 125, want: []byte{0x82, 125}},
		{name: "126", fin: true, op: OpcodeBinary, n: 126, want: []byte{0x82, 126, 0x00, 0x7e}},
		{name: "65536", fin: true, op: OpcodeBinary, n: 65536, want: []byte{0x82, 127, 0, 0, 0, 0, 0, 1, 0, 0}},
		{name: "unfinished_continuation", fin: false, op: OpcodeContinuation, n: 3, want: []byte{0x00, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WriteFrameHeader(nil, tt.fin, tt.op, tt.n)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("WriteFrameHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}
