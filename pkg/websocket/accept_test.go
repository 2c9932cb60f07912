package websocket

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"
)

func TestAcceptHandshake(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	request := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"

	done := make(chan struct{})
	var conn *Conn
	var acceptErr error
	go func() {
		conn, acceptErr = Accept(context.Background(), server)
		close(done)
	}()

	if _, err := client.Write([]byte(request)); err != nil {
		t.Fatalf("client write error: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}
	if !strings.HasPrefix(statusLine, "HTTP/1.1 101") {
		t.Fatalf("status line = %q, want 101 prefix", statusLine)
	}

	var acceptHeader string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read header line: %v", err)
		}
		if line == "\r\n" {
			break
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept:") {
			acceptHeader = strings.TrimSpace(strings.TrimPrefix(line, "Sec-WebSocket-Accept:"))
		}
	}
	if want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="; acceptHeader != want {
		t.Errorf("Sec-WebSocket-Accept = %q, want %q", acceptHeader, want)
	}

	<-done
	if acceptErr != nil {
		t.Fatalf("Accept() error: %v", acceptErr)
	}
	if conn == nil {
		t.Fatal("Accept() returned nil Conn with no error")
	}
}

func TestAcceptInvokesOnHandshakeComplete(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	request := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"

	done := make(chan struct{})
	var conn, hookConn *Conn
	go func() {
		conn, _ = Accept(context.Background(), server, WithOnHandshakeComplete(func(c *Conn) {
			hookConn = c
		}))
		close(done)
	}()

	if _, err := client.Write([]byte(request)); err != nil {
		t.Fatalf("client write error: %v", err)
	}

	_ = client.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(client)
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}

	<-done
	if conn == nil {
		t.Fatal("Accept() returned nil Conn with no error")
	}
	if hookConn != conn {
		t.Error("WithOnHandshakeComplete hook was not invoked with the accepted connection")
	}
}

func TestAcceptRejectsMissingConnectionHeaderByDefault(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	request := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"\r\n"

	errCh := make(chan error, 1)
	go func() {
		_, err := Accept(context.Background(), server)
		errCh <- err
	}()

	if _, err := client.Write([]byte(request)); err != nil {
		t.Fatalf("client write error: %v", err)
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("Accept() = nil error, want rejection")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Accept() did not return in time")
	}
}
