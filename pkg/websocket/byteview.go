package websocket

// Span is one contiguous byte region of a possibly-segmented buffer view.
// WebSocket connections are fed by independent net.Conn reads, and a
// single HTTP request line, header block, or frame header can straddle
// the boundary between two such reads; Span is what lets the parsers in
// this package treat that boundary as an implementation detail instead
// of a special case.
type Span = []byte

// Cursor addresses a byte position inside a [ByteView]: which span, and
// which offset within that span. The zero Cursor addresses the first
// byte of the view.
type Cursor struct {
	span int
	off  int
}

// endCursor returns the cursor one past the end of a view with the
// given span count; used as the "end" sentinel returned by IndexOf.
func endCursor(spanCount int) Cursor {
	return Cursor{span: spanCount}
}

// ByteView is a read-only view over a possibly non-contiguous sequence
// of byte spans, with cursor-based navigation. It never copies the
// underlying bytes: Slice, SliceRange, Drop, and Take all return new
// views over the same backing spans.
type ByteView struct {
	spans []Span
}

func newByteView(spans []Span) ByteView {
	return ByteView{spans: spans}
}

// Length returns the total number of bytes across all spans.
func (v ByteView) Length() int {
	n := 0
	for _, s := range v.spans {
		n += len(s)
	}
	return n
}

// IsEmpty reports whether the view has zero bytes.
func (v ByteView) IsEmpty() bool {
	return v.Length() == 0
}

// IsSingleSpan reports whether the view's bytes are all contiguous.
func (v ByteView) IsSingleSpan() bool {
	n := 0
	for _, s := range v.spans {
		if len(s) > 0 {
			n++
		}
	}
	return n <= 1
}

// FirstSpan returns the view's first non-empty span, or nil if the view
// is empty. Callers on the fast path (e.g. frame header decoding) use
// this to avoid a copy when the data they need doesn't straddle a span.
func (v ByteView) FirstSpan() Span {
	for _, s := range v.spans {
		if len(s) > 0 {
			return s
		}
	}
	return nil
}

// ForEachSpan iterates over the view's spans in order, skipping empty
// ones. It stops early if f returns false.
func (v ByteView) ForEachSpan(f func(Span) bool) {
	for _, s := range v.spans {
		if len(s) == 0 {
			continue
		}
		if !f(s) {
			return
		}
	}
}

// Peek returns the value of the next byte (0-255), or -1 if the view is
// empty. It does not advance anything, since ByteView is a value type.
func (v ByteView) Peek() int {
	for _, s := range v.spans {
		if len(s) > 0 {
			return int(s[0])
		}
	}
	return -1
}

// at returns the byte at the given cursor and whether it was in range.
func (v ByteView) at(c Cursor) (byte, bool) {
	for i := c.span; i < len(v.spans); i++ {
		off := 0
		if i == c.span {
			off = c.off
		}
		if off < len(v.spans[i]) {
			return v.spans[i][off], true
		}
	}
	return 0, false
}

// advance returns the cursor n bytes after c, within this view.
func (v ByteView) advance(c Cursor, n int) Cursor {
	for n > 0 && c.span < len(v.spans) {
		remaining := len(v.spans[c.span]) - c.off
		if n < remaining {
			c.off += n
			return c
		}
		n -= remaining
		c.span++
		c.off = 0
	}
	return c
}

// IndexOf scans the view for the first occurrence of b, starting at the
// beginning, and returns a cursor to it. The second return value is
// false if b does not occur anywhere in the view (the "end" sentinel).
func (v ByteView) IndexOf(b byte) (Cursor, bool) {
	for i, s := range v.spans {
		for j := 0; j < len(s); j++ {
			if s[j] == b {
				return Cursor{span: i, off: j}, true
			}
		}
	}
	return endCursor(len(v.spans)), false
}

// Slice returns the O(1) subview starting at start and running to the
// end of v.
func (v ByteView) Slice(start Cursor) ByteView {
	return v.SliceRange(start, endCursor(len(v.spans)))
}

// SliceRange returns the O(1) subview [start, end) of v. end may be the
// sentinel returned by IndexOf on a miss, meaning "to the end of v".
func (v ByteView) SliceRange(start, end Cursor) ByteView {
	if start.span >= len(v.spans) {
		return ByteView{}
	}
	if end.span > len(v.spans) {
		end = endCursor(len(v.spans))
	}

	out := make([]Span, 0, end.span-start.span+1)
	for i := start.span; i <= end.span && i < len(v.spans); i++ {
		s := v.spans[i]
		lo, hi := 0, len(s)
		if i == start.span {
			lo = start.off
		}
		if i == end.span {
			hi = end.off
		}
		if lo < hi {
			out = append(out, s[lo:hi])
		}
	}
	return ByteView{spans: out}
}

// Drop returns the view that remains after skipping the first n bytes.
// If n is at least the view's length, the result is an empty view.
func (v ByteView) Drop(n int) ByteView {
	return v.Slice(v.advance(Cursor{}, n))
}

// Take returns the first n bytes of v as their own view, without
// advancing v itself.
func (v ByteView) Take(n int) ByteView {
	return v.SliceRange(Cursor{}, v.advance(Cursor{}, n))
}

// TrimStart returns the view with leading ASCII whitespace (space, tab,
// CR, LF) removed.
func (v ByteView) TrimStart() ByteView {
	c := Cursor{}
	for {
		b, ok := v.at(c)
		if !ok || !isASCIISpace(b) {
			break
		}
		c = v.advance(c, 1)
	}
	return v.Slice(c)
}

func isASCIISpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// CopyTo copies min(v.Length(), len(dst)) bytes into dst and returns the
// number of bytes copied.
func (v ByteView) CopyTo(dst []byte) int {
	n := 0
	for _, s := range v.spans {
		if n >= len(dst) {
			break
		}
		c := copy(dst[n:], s)
		n += c
	}
	return n
}

// Clone returns an owning copy of the view's bytes, detached from
// whatever Stream produced it. Callers that must outlive the next
// Stream.Consumed call (e.g. [Request]'s method/path/header values) use
// this, per spec.md's buffer-ownership rule.
func (v ByteView) Clone() []byte {
	out := make([]byte, v.Length())
	v.CopyTo(out)
	return out
}

// GetASCIIString returns the view's bytes interpreted as an ASCII
// string. It is equivalent to string(v.Clone()) but named for parity
// with the buffer-channel contract in spec.md §4.1.
func (v ByteView) GetASCIIString() string {
	return string(v.Clone())
}
