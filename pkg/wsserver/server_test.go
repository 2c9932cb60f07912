package wsserver_test

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // part of the RFC 6455 accept-key algorithm, not a security use.
	"encoding/base64"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/tzrikka/wsgate/pkg/wsserver"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func acceptKey(key string) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(key + websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func dialAndUpgrade(t *testing.T, addr string) (net.Conn, *textproto.Reader) {
	t.Helper()

	var conn net.Conn
	var err error
	for range 20 {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial %s: %v", addr, err)
	}

	req := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	return conn, textproto.NewReader(bufio.NewReader(conn))
}

// TestServerLifecycle starts a Server, completes one real TCP handshake
// against it, then confirms Stop() drains the connection and Run()
// returns cleanly.
func TestServerLifecycle(t *testing.T) {
	srv := wsserver.New(wsserver.Config{
		BindAddress: "127.0.0.1",
		Port:        18765,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(context.Background())
	}()

	time.Sleep(50 * time.Millisecond)

	conn, tp := dialAndUpgrade(t, "127.0.0.1:18765")
	defer conn.Close()

	line, err := tp.ReadLine()
	if err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}
	if !strings.Contains(line, "101") {
		t.Fatalf("status line = %q, want 101 Switching Protocols", line)
	}

	hdrs, err := tp.ReadMIMEHeader()
	if err != nil {
		t.Fatalf("failed to read headers: %v", err)
	}
	want := acceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	if got := hdrs.Get("Sec-Websocket-Accept"); got != want {
		t.Errorf("Sec-WebSocket-Accept = %q, want %q", got, want)
	}

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Stop()")
	}
}

func TestServerRejectsStrictHandshakeMissingConnectionHeader(t *testing.T) {
	srv := wsserver.New(wsserver.Config{
		BindAddress:                  "127.0.0.1",
		Port:                         18766,
		AllowMissingConnectionHeader: false,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(context.Background())
	}()
	defer func() {
		_ = srv.Stop()
		<-errCh
	}()

	time.Sleep(50 * time.Millisecond)

	var conn net.Conn
	var err error
	for range 20 {
		conn, err = net.Dial("tcp", "127.0.0.1:18766")
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	defer conn.Close()

	req := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}

	// The server doesn't write an error response on handshake rejection;
	// it closes the connection. Confirm the read side observes EOF
	// rather than a successful 101 response.
	buf := make([]byte, 64)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _ := conn.Read(buf)
	if strings.Contains(string(buf[:n]), "101") {
		t.Errorf("expected the handshake to be rejected, got: %q", buf[:n])
	}
}
