package websocket

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

const sampleRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: example.com\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n" +
	"\r\n"

func TestRequestParserSingleRead(t *testing.T) {
	s := NewStream(bytes.NewReader([]byte(sampleRequest)))
	p := newRequestParser()

	req, err := parseFullyBuffered(t, p, s)
	if err != nil {
		t.Fatalf("ParseNext() error: %v", err)
	}
	checkSampleRequest(t, req)
}

// TestRequestParserArbitrarySplits checks that the incremental parser
// produces an identical result when the input is split into two reads
// at every possible offset, which is the property an incremental HTTP
// parser exists to guarantee.
func TestRequestParserArbitrarySplits(t *testing.T) {
	raw := []byte(sampleRequest)
	for split := 1; split < len(raw); split++ {
		r := &twoPartReader{parts: [][]byte{raw[:split], raw[split:]}}
		s := NewStream(r)
		p := newRequestParser()

		req, err := parseFullyBuffered(t, p, s)
		if err != nil {
			t.Fatalf("split at %d: ParseNext() error: %v", split, err)
		}
		checkSampleRequest(t, req)
	}
}

func checkSampleRequest(t *testing.T, req *Request) {
	t.Helper()
	if req.Method != "GET" || req.Path != "/chat" || req.Version != "HTTP/1.1" {
		t.Errorf("parsed start line = %q %q %q, want GET /chat HTTP/1.1", req.Method, req.Path, req.Version)
	}
	if v, ok := req.Header("host"); !ok || v != "example.com" {
		t.Errorf("Header(host) = %q, %v, want example.com, true", v, ok)
	}
	if v, ok := req.Header("SEC-WEBSOCKET-KEY"); !ok || v != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Errorf("Header(Sec-WebSocket-Key) = %q, %v", v, ok)
	}
	if len(req.Headers) != 5 {
		t.Errorf("len(Headers) = %d, want 5", len(req.Headers))
	}
}

// parseFullyBuffered drives ParseNext, pulling more data from the
// stream every time it reports errNeedMore, until a Request is parsed.
func parseFullyBuffered(t *testing.T, p *requestParser, s *Stream) (*Request, error) {
	t.Helper()
	for {
		req, err := p.ParseNext(s)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, errNeedMore) {
			return nil, err
		}
		if _, nextErr := s.Next(); nextErr != nil {
			return nil, nextErr
		}
	}
}

// twoPartReader returns one of its byte slices per Read call, then io.EOF.
type twoPartReader struct {
	parts [][]byte
	i     int
}

func (r *twoPartReader) Read(p []byte) (int, error) {
	if r.i >= len(r.parts) {
		return 0, io.EOF
	}
	n := copy(p, r.parts[r.i])
	r.i++
	return n, nil
}
