package websocket

import (
	"bufio"
	"log/slog"
	"net"
	"sync"

	"github.com/lithammer/shortuuid/v4"
)

// Conn represents one accepted, handshake-complete WebSocket connection
// to a client. Unlike the dial-side Conn this package used to provide,
// a server Conn never masks outgoing frames and always requires masked
// incoming ones (RFC 6455 §5.1).
type Conn struct {
	// Initialized during the handshake.
	logger *slog.Logger
	id     string
	remote net.Addr

	// Initialized after the handshake.
	conn   net.Conn
	stream *Stream
	bufout *bufio.Writer
	reader chan Message
	writer chan internalMessage

	// Application hooks, installed via [WithOnPing]/[WithOnPong] before
	// the read loop starts; never reassigned afterward.
	onPing func(*Conn, Frame)
	onPong func(*Conn, Frame)

	// No need for synchronization: value changes are possible only in
	// one direction (false to true), and are always done by a single
	// function, which is guaranteed to run in a single goroutine.
	closeReceived bool

	closeSent   bool
	closeSentMu sync.RWMutex

	// Only for the purpose of minimizing memory allocations (safely),
	// not for state management or memory sharing of any kind.
	closeBuf [maxControlPayload]byte
}

// Message holds WebSocket data from one or more (defragmented) data
// frames, as defined in https://datatracker.ietf.org/doc/html/rfc6455#section-5.6.
// Returned by the Go channel that is exposed by [Conn.IncomingMessages].
type Message struct {
	Opcode Opcode
	Data   []byte
}

// internalMessage synchronizes concurrent calls to the frame writer.
type internalMessage struct {
	Opcode Opcode
	Data   []byte
	err    chan<- error
}

// newConn wraps an already-handshaken net.Conn, reusing the [Stream]
// that read the handshake request so that any bytes it already pulled
// off the wire (a pipelined first frame, or just read-ahead inside
// bufio) aren't stranded behind a second, independent reader over the
// same net.Conn. id is a short, human-loggable correlation ID (see
// github.com/lithammer/shortuuid), generated once per connection and
// threaded through every log line for it, the same role
// github.com/lithammer/shortuuid/v4 plays for the teacher's
// reconnecting client IDs.
func newConn(nc net.Conn, stream *Stream, logger *slog.Logger) *Conn {
	id := shortuuid.New()
	return &Conn{
		logger: logger.With(slog.String("conn_id", id)),
		id:     id,
		remote: nc.RemoteAddr(),
		conn:   nc,
		stream: stream,
		bufout: bufio.NewWriter(nc),
		reader: make(chan Message),
		writer: make(chan internalMessage),
	}
}

// ID returns the connection's correlation ID.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the client's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

// IncomingMessages returns the connection's channel that publishes data
// [Message]s as they are received from the client.
func (c *Conn) IncomingMessages() <-chan Message {
	return c.reader
}

// readMessages runs as a [Conn] goroutine to call [Conn.readMessage]
// continuously, in order to process control and data frames, and
// publish data [Message]s to the connection's subscribers.
func (c *Conn) readMessages() {
	msg := c.readMessage()
	for msg != nil {
		c.reader <- Message{Opcode: msg.Opcode, Data: msg.Data}
		msg = c.readMessage()
	}
	close(c.reader)
}

// writeMessages runs as a [Conn] goroutine to synchronize concurrent
// calls to the frame writer. This package doesn't fragment outbound
// messages.
func (c *Conn) writeMessages() {
	for msg := range c.writer {
		msg.err <- c.writeFrame(msg.Opcode, msg.Data)
		// The message's error channel can be used at most once.
		close(msg.err)
	}
}

// writeFrame writes a single, unfragmented, unmasked frame, as RFC 6455
// §5.1 requires of a server, and flushes it immediately.
//
// Do not call this function directly; call [Conn.sendControlFrame] or
// [Conn.SendTextMessage]/[Conn.SendBinaryMessage] instead, to ensure
// frames are never interleaved on the wire.
func (c *Conn) writeFrame(op Opcode, payload []byte) error {
	hdr := WriteFrameHeader(make([]byte, 0, 10), true, op, len(payload))
	if _, err := c.bufout.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := c.bufout.Write(payload); err != nil {
			return err
		}
	}
	return c.bufout.Flush()
}

// closeNetConn tears down the underlying network connection. It's safe
// to call after the closing handshake has completed, or to force-close
// an unresponsive connection.
func (c *Conn) closeNetConn() error {
	return c.conn.Close()
}
