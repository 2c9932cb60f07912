package websocket

import (
	"bufio"
	"io"
)

// defaultReadSize is the size of each individual read requested from the
// underlying reader. It deliberately doesn't try to guess a message's
// total size: a read returns whatever the kernel handed back, and that
// chunk becomes one more span in the accumulated view.
const defaultReadSize = 4096

// Stream turns a sequence of reads from an [io.Reader] into a single
// growing [ByteView]. Spans accumulate until the caller calls Consumed,
// at which point fully-consumed leading spans are dropped and the rest
// is kept so a parser can resume mid-span on the next call. This is the
// concrete realization of spec.md §4.1's buffer channel: Next is
// "await the next chunk, or return what's already buffered", and
// Consumed is "I'm done with this many bytes, free them".
type Stream struct {
	r     *bufio.Reader
	spans []Span
}

// NewStream wraps r for incremental span accumulation.
func NewStream(r io.Reader) *Stream {
	return &Stream{r: bufio.NewReaderSize(r, defaultReadSize)}
}

// View returns the current accumulated view without reading anything
// new from the underlying reader.
func (s *Stream) View() ByteView {
	return newByteView(s.spans)
}

// Next blocks on one read from the underlying reader, appends it as a
// new span, and returns the resulting view. It returns io.EOF only when
// the underlying reader is exhausted and no new span was appended; a
// short read that returns some bytes is reported as success with that
// data included; err is nil in that case even if the underlying Read
// itself returned io.EOF alongside n>0 bytes (see io.Reader's contract).
func (s *Stream) Next() (ByteView, error) {
	buf := make([]byte, defaultReadSize)
	n, err := s.r.Read(buf)
	if n > 0 {
		s.spans = append(s.spans, buf[:n])
	}
	if n == 0 && err != nil {
		return s.View(), err
	}
	return s.View(), nil
}

// Consumed discards the leading n bytes of the accumulated view. Callers
// pass the number of bytes their parser fully consumed (e.g. a parsed
// request line plus its trailing CRLF, or a decoded frame); any
// remaining partially-consumed span is preserved so the next parse
// resumes where this one left off.
func (s *Stream) Consumed(n int) {
	if n <= 0 {
		return
	}
	remaining := n
	i := 0
	for i < len(s.spans) {
		if remaining < len(s.spans[i]) {
			s.spans[i] = s.spans[i][remaining:]
			break
		}
		remaining -= len(s.spans[i])
		i++
	}
	if i >= len(s.spans) {
		s.spans = s.spans[:0]
		return
	}
	s.spans = s.spans[i:]
}
