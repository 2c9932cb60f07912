package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/tzrikka/wsgate/internal/logger"
)

// AuthenticateFunc decides whether to accept a handshake after it has
// already passed protocol validation. Returning false makes [Accept]
// answer with an HTTP 403 Forbidden response and return an error
// instead of completing the upgrade. See [JWTAuthenticate] for a
// concrete implementation.
type AuthenticateFunc func(req *Request) bool

// AcceptOpt configures [Accept], following the same functional-options
// pattern the teacher's client-side Dial used.
type AcceptOpt func(*acceptConfig)

type acceptConfig struct {
	handshake           HandshakeOptions
	authenticate        AuthenticateFunc
	onHandshakeComplete func(*Conn)
	onPing              func(*Conn, Frame)
	onPong              func(*Conn, Frame)
}

// WithLenientConnectionHeader tolerates a missing Connection: Upgrade
// header, per spec.md's `allow_clients_missing_connection_headers`
// configuration knob.
func WithLenientConnectionHeader(lenient bool) AcceptOpt {
	return func(c *acceptConfig) { c.handshake.AllowMissingConnectionHeader = lenient }
}

// WithAuthenticate installs an optional authentication hook run after
// the handshake validates but before the 101 response is written.
func WithAuthenticate(f AuthenticateFunc) AcceptOpt {
	return func(c *acceptConfig) { c.authenticate = f }
}

// WithOnHandshakeComplete installs a hook run once the connection has
// been upgraded and its read/write goroutines started, but before
// [Accept] returns it to the caller.
func WithOnHandshakeComplete(f func(*Conn)) AcceptOpt {
	return func(c *acceptConfig) { c.onHandshakeComplete = f }
}

// WithOnPing installs a hook run whenever a ping frame is received,
// after this package's automatic pong reply has already been queued.
func WithOnPing(f func(*Conn, Frame)) AcceptOpt {
	return func(c *acceptConfig) { c.onPing = f }
}

// WithOnPong installs a hook run whenever a pong frame is received.
func WithOnPong(f func(*Conn, Frame)) AcceptOpt {
	return func(c *acceptConfig) { c.onPong = f }
}

// Accept reads and validates one HTTP/1.1 WebSocket upgrade request
// from nc, completes the RFC 6455 handshake, and returns a [Conn] ready
// to exchange frames. It blocks until either a well-formed request has
// been read or the connection fails; callers typically run it in its
// own goroutine per accepted net.Conn, the way net/http's server
// dispatches one goroutine per connection.
func Accept(ctx context.Context, nc net.Conn, opts ...AcceptOpt) (*Conn, error) {
	cfg := acceptConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := logger.FromContext(ctx)
	stream := NewStream(nc)
	parser := newRequestParser()

	var req *Request
	for {
		r, err := parser.ParseNext(stream)
		if err == nil {
			req = r
			break
		}
		if err != errNeedMore { //nolint:errorlint // errNeedMore is a sentinel, never wrapped.
			return nil, fmt.Errorf("failed to parse WebSocket upgrade request: %w", err)
		}
		if _, err := stream.Next(); err != nil {
			return nil, fmt.Errorf("failed to read WebSocket upgrade request: %w", err)
		}
	}

	hs, err := Negotiate(req, cfg.handshake)
	if err != nil {
		return nil, fmt.Errorf("WebSocket handshake rejected: %w", err)
	}

	if cfg.authenticate != nil && !cfg.authenticate(req) {
		resp := []byte("HTTP/1.1 403 Forbidden\r\nConnection: close\r\n\r\n")
		_, _ = nc.Write(resp)
		return nil, newProtocolError(KindNotUpgrade, "rejected by authenticate hook")
	}

	resp := WriteHandshakeResponse(nil, hs)
	if _, err := nc.Write(resp); err != nil {
		return nil, fmt.Errorf("failed to write WebSocket handshake response: %w", err)
	}

	c := newConn(nc, stream, log)
	c.onPing = cfg.onPing
	c.onPong = cfg.onPong

	log.Info("WebSocket connection established",
		slog.String("conn_id", c.id), slog.String("remote_addr", c.remote.String()))

	go c.readMessages()
	go c.writeMessages()

	if cfg.onHandshakeComplete != nil {
		cfg.onHandshakeComplete(c)
	}

	return c, nil
}
