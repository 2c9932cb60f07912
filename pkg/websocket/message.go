package websocket

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"unicode/utf8"
)

// readMessage reads incoming frames from the client, responds to
// control frames (whether or not they're interleaved with data
// frames), and defragments data frames if needed. This function
// handles errors and connection closures gracefully, and returns nil in
// such cases.
//
// Do not call this function directly, it is meant to be used
// exclusively (and continuously) by [Conn.readMessages]!
//
// It is based on:
//   - Base framing protocol: https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
//   - Fragmentation: https://datatracker.ietf.org/doc/html/rfc6455#section-5.4
//   - Control frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5
//   - Data frames: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
//   - Receiving data: https://datatracker.ietf.org/doc/html/rfc6455#section-6.2
//   - Closing the connection: https://datatracker.ietf.org/doc/html/rfc6455#section-7
//   - Handling Errors in UTF-8-Encoded Data: https://datatracker.ietf.org/doc/html/rfc6455#section-8.1
func (c *Conn) readMessage() *internalMessage {
	var msg bytes.Buffer
	var op Opcode
	haveOp := false

	for {
		f, err := c.nextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Debug("WebSocket connection closed")
				c.closeReceived = true
				c.closeSent = true
				return nil
			}

			var pe *ProtocolError
			if errors.As(err, &pe) {
				c.logger.Error("protocol error due to invalid frame", slog.Any("error", err))
				c.sendCloseControlFrame(StatusProtocolError, pe.Error())
				return nil
			}

			c.logger.Error("failed to read WebSocket frame", slog.Any("error", err))
			c.sendCloseControlFrame(StatusInternalError, "frame reading error")
			return nil
		}

		c.logger.Debug("received WebSocket frame", slog.Bool("fin", f.Fin),
			slog.String("opcode", f.Opcode.String()), slog.Int("length", f.Payload.Length()))

		// "A fragmented message consists of a single frame with the FIN bit
		// clear and an opcode other than 0, followed by zero or more frames
		// with the FIN bit clear and the opcode set to 0, and terminated by
		// a single frame with the FIN bit set and an opcode of 0".
		switch f.Opcode {
		case OpcodeContinuation, OpcodeText, OpcodeBinary:
			if f.Opcode == OpcodeContinuation {
				if !haveOp {
					c.logger.Error("protocol error due to invalid continuation")
					c.sendCloseControlFrame(StatusProtocolError, "continuation frame with nothing to continue")
					return nil
				}
			} else {
				if haveOp {
					c.logger.Error("protocol error due to invalid continuation")
					c.sendCloseControlFrame(StatusProtocolError, "new data frame before previous one finished")
					return nil
				}
				op = f.Opcode
				haveOp = true
			}
			if f.Payload.Length() > 0 {
				if _, err := msg.Write(f.Payload.Clone()); err != nil {
					c.logger.Error("failed to store WebSocket data frame payload", slog.Any("error", err))
					c.sendCloseControlFrame(StatusInternalError, "data frame payload storing error")
					return nil
				}
			}

		// "If an endpoint receives a Close frame and did not previously send
		// a Close frame, the endpoint MUST send a Close frame in response".
		case OpcodeClose:
			c.closeReceived = true
			status, reason := c.parseClosePayload(f.Payload.Clone())
			c.sendCloseControlFrame(status, reason)
			return nil // Not an error, but we no longer need to receive new frames.

		// "An endpoint MUST be capable of handling control
		// frames in the middle of a fragmented message".
		case OpcodePing:
			payload := f.Payload.Clone()
			if err := <-c.sendControlFrame(OpcodePong, payload); err != nil {
				c.logger.Error("failed to send WebSocket pong control frame",
					slog.Any("error", err), slog.Any("payload", payload))
			}
			if c.onPing != nil {
				c.onPing(c, Frame{Fin: f.Fin, Opcode: f.Opcode, Payload: newByteView([]Span{payload})})
			}

		case OpcodePong:
			// This server doesn't send unsolicited pings, but still
			// surfaces an unsolicited pong to the application.
			if c.onPong != nil {
				c.onPong(c, Frame{Fin: f.Fin, Opcode: f.Opcode, Payload: newByteView([]Span{f.Payload.Clone()})})
			}
		}

		if f.Fin && f.Opcode <= OpcodeBinary {
			return c.finalizeMessage(op, msg.Bytes())
		}
	}
}

// nextFrame pulls bytes from the connection's Stream until a complete
// frame is available, then returns it and advances the stream past it.
func (c *Conn) nextFrame() (Frame, error) {
	for {
		f, n, err := TryReadFrame(c.stream.View())
		if err == nil {
			c.stream.Consumed(n)
			return f, nil
		}
		if !errors.Is(err, errNeedMore) {
			return Frame{}, err
		}
		if _, err := c.stream.Next(); err != nil {
			return Frame{}, err
		}
	}
}

func (c *Conn) finalizeMessage(op Opcode, data []byte) *internalMessage {
	if data == nil {
		data = []byte{}
	}

	c.logger.Debug("finished receiving WebSocket data message",
		slog.String("opcode", op.String()), slog.Int("length", len(data)))

	// "When an endpoint is to interpret a byte stream as UTF-8 but finds
	// that the byte stream is not, in fact, a valid UTF-8 stream, that
	// endpoint MUST _Fail the WebSocket Connection_. This rule applies both
	// during the opening handshake and during subsequent data exchange".
	if op == OpcodeText && len(data) > 0 && !utf8.Valid(data) {
		c.logger.Error("protocol error due to invalid UTF-8 text")
		c.sendCloseControlFrame(StatusInvalidData, "invalid UTF-8 text")
		return nil
	}

	return &internalMessage{Opcode: op, Data: data}
}

// SendTextMessage sends a [UTF-8 text] message to the client.
//
// This is done asynchronously, to manage isolation/safe multiplexing of
// multiple concurrent calls, including interleaved control frames.
// Despite that, this function enables the caller to block and/or
// handle errors, with the returned channel.
//
// [UTF-8 text]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
func (c *Conn) SendTextMessage(data []byte) <-chan error {
	err := make(chan error)
	c.writer <- internalMessage{Opcode: OpcodeText, Data: data, err: err}
	return err
}

// SendBinaryMessage sends a [binary] message to the client.
//
// [binary]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.6
func (c *Conn) SendBinaryMessage(data []byte) <-chan error {
	err := make(chan error)
	c.writer <- internalMessage{Opcode: OpcodeBinary, Data: data, err: err}
	return err
}

// sendControlFrame sends a [WebSocket control frame] to the client.
//
// Use this function instead of calling writeFrame directly!
//
// [WebSocket control frame]: https://datatracker.ietf.org/doc/html/rfc6455#section-5.5
func (c *Conn) sendControlFrame(op Opcode, payload []byte) <-chan error {
	err := make(chan error)
	c.writer <- internalMessage{Opcode: op, Data: payload, err: err}
	return err
}
