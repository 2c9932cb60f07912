package websocket

import "fmt"

// maxStartLineLength and maxHeaderBlockLength bound how much
// unconsumed, unparsed data this package will hold in memory for a
// single handshake before giving up. A client that never sends a
// terminating CRLF would otherwise grow the Stream's buffered spans
// without limit.
const (
	maxStartLineLength   = 8 * 1024
	maxHeaderBlockLength = 64 * 1024
)

// Header is one parsed request header. Name is the canonical spelling
// if the header was recognized (see canonicalHeaderName), or the raw
// bytes as received otherwise. Both Name and Value are owned copies
// (via ByteView.Clone), safe to keep past the next Stream.Consumed call.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed HTTP/1.1 request line plus header block, parsed
// directly off the incoming byte stream rather than via net/http: a
// WebSocket upgrade request is the one case where this package needs
// to read the handshake bytes itself before handing the connection off
// to the frame codec, and net/http's server has no hook for that.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
}

// Header looks up the first header matching name case-insensitively,
// returning its value and whether it was found.
func (r *Request) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if equalFoldASCIIStr(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// requestParserState is the two-state machine spec.md §4.3 describes:
// first consume the request line, then consume headers one line at a
// time until the blank line that terminates the block.
type requestParserState int

const (
	stateStartLine requestParserState = iota
	stateHeaders
)

// requestParser incrementally parses a [Request] from a [Stream]. It
// retains parsed fields across calls to ParseNext so that a request
// split across arbitrarily many reads parses identically to one
// delivered in a single read.
type requestParser struct {
	state   requestParserState
	req     Request
	scanned int // not read by ParseNext; its size-limit checks measure the buffered view directly
}

func newRequestParser() *requestParser {
	return &requestParser{req: Request{}}
}

// ParseNext attempts to advance parsing using whatever is currently
// buffered in s. It returns (nil, errNeedMore) if the buffered view
// doesn't yet contain a full request line + header block; the caller
// is expected to call s.Next() and retry. On success it returns the
// parsed Request and has already called s.Consumed for exactly the
// bytes that made up the request line and header block (including the
// terminating blank line), leaving anything after it (e.g. the start of
// frame data, which cannot happen on a well-behaved WebSocket client
// but is handled correctly regardless) untouched in the stream.
func (p *requestParser) ParseNext(s *Stream) (*Request, error) {
	for {
		view := s.View()
		switch p.state {
		case stateStartLine:
			line, lineLen, ok := splitLine(view)
			if !ok {
				if view.Length() > maxStartLineLength {
					return nil, newProtocolError(KindMalformedRequest, "request line too long")
				}
				return nil, errNeedMore
			}
			if err := p.parseStartLine(line); err != nil {
				return nil, err
			}
			s.Consumed(lineLen)
			p.state = stateHeaders

		case stateHeaders:
			view = s.View()
			line, lineLen, ok := splitLine(view)
			if !ok {
				if view.Length() > maxHeaderBlockLength {
					return nil, newProtocolError(KindMalformedRequest, "header block too long")
				}
				return nil, errNeedMore
			}
			if line.IsEmpty() {
				s.Consumed(lineLen)
				req := p.req
				return &req, nil
			}
			h, err := parseHeaderLine(line)
			if err != nil {
				return nil, err
			}
			p.req.Headers = append(p.req.Headers, h)
			s.Consumed(lineLen)
		}
	}
}

// splitLine finds the first CRLF-terminated line in view and returns
// the line's content (without the CRLF), the total length including
// the CRLF, and whether a terminator was found at all.
func splitLine(view ByteView) (ByteView, int, bool) {
	cr, ok := view.IndexOf('\r')
	if !ok {
		return ByteView{}, 0, false
	}
	// Confirm the byte after \r is \n; if not yet buffered, ask for more.
	afterCR := view.advance(cr, 1)
	nb, ok := view.at(afterCR)
	if !ok {
		return ByteView{}, 0, false
	}
	if nb != '\n' {
		// Not a valid CRLF line ending. This is reported the same as a
		// missing terminator, so the caller keeps waiting for more data
		// until its size limit rejects the request.
		return ByteView{}, 0, false
	}
	line := view.SliceRange(Cursor{}, cr)
	total := view.lengthTo(afterCR) + 1
	return line, total, true
}

// lengthTo returns the number of bytes in v before cursor c, used to
// compute a line's total on-wire length including its CRLF terminator.
func (v ByteView) lengthTo(c Cursor) int {
	n := 0
	for i := 0; i < c.span && i < len(v.spans); i++ {
		n += len(v.spans[i])
	}
	if c.span < len(v.spans) {
		n += c.off
	}
	return n
}

func (p *requestParser) parseStartLine(line ByteView) error {
	s := line.GetASCIIString()
	sp1 := indexByte(s, ' ')
	if sp1 < 0 {
		return newProtocolError(KindMalformedRequest, "request line missing method")
	}
	rest := s[sp1+1:]
	sp2 := indexByte(rest, ' ')
	if sp2 < 0 {
		return newProtocolError(KindMalformedRequest, "request line missing version")
	}
	p.req.Method = s[:sp1]
	p.req.Path = rest[:sp2]
	p.req.Version = rest[sp2+1:]
	if p.req.Version != "HTTP/1.1" && p.req.Version != "HTTP/1.0" {
		return newProtocolError(KindMalformedRequest, fmt.Sprintf("unsupported HTTP version %q", p.req.Version))
	}
	return nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func parseHeaderLine(line ByteView) (Header, error) {
	colon, ok := line.IndexOf(':')
	if !ok {
		return Header{}, newProtocolError(KindMalformedRequest, "header line missing colon")
	}
	nameView := line.SliceRange(Cursor{}, colon)
	valueView := line.Slice(line.advance(colon, 1)).TrimStart()

	name := canonicalHeaderName(nameView.FirstSpanOrClone())
	if name == "" {
		name = nameView.GetASCIIString()
	}
	return Header{Name: name, Value: valueView.GetASCIIString()}, nil
}

// FirstSpanOrClone returns the view's bytes as a single contiguous
// slice: its first span directly if the view is single-span (no
// copy), or a fresh clone if the header name straddled a read boundary.
// Header names are short and rarely straddle a boundary, so this keeps
// the common case allocation-free.
func (v ByteView) FirstSpanOrClone() []byte {
	if v.IsSingleSpan() {
		return v.FirstSpan()
	}
	return v.Clone()
}
