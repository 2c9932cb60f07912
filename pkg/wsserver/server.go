// Package wsserver is the connection-accepting facade around
// pkg/websocket: it owns the listening socket, applies accept-rate
// backpressure, tracks active connections, and dispatches each one to
// application-supplied hooks.
package wsserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tzrikka/wsgate/internal/logger"
	"github.com/tzrikka/wsgate/pkg/websocket"
	"github.com/tzrikka/wsgate/pkg/wsmetrics"
)

// Hooks are the application's callbacks for connection and message
// events. Any nil hook is simply skipped.
type Hooks struct {
	OnHandshakeComplete func(c *websocket.Conn)
	OnPing              func(c *websocket.Conn, f websocket.Frame)
	OnPong              func(c *websocket.Conn, f websocket.Frame)
	OnText              func(c *websocket.Conn, data []byte)
	OnBinary            func(c *websocket.Conn, data []byte)
	OnClose             func(c *websocket.Conn)
}

// Config configures a [Server].
type Config struct {
	BindAddress                  string
	Port                         int
	AllowMissingConnectionHeader bool
	JWTSecret                    []byte
	MetricsDir                   string // Empty disables metrics.
	MaxAcceptsPerSecond          float64 // 0 means unlimited.
	Hooks                        Hooks
}

// Server listens for TCP connections and upgrades each one to a
// WebSocket connection via pkg/websocket.Accept.
type Server struct {
	cfg      Config
	listener net.Listener
	limiter  *rate.Limiter
	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc

	// conns mirrors the teacher's pkg/websocket/client.go clients
	// sync.Map keyed by a SHA-256 hash of the ID, here used to
	// enumerate/drain active connections instead of deduplicating
	// reconnect attempts.
	conns sync.Map
}

// New creates a Server bound to cfg. It does not start listening;
// call [Server.Run].
func New(cfg Config) *Server {
	limit := rate.Inf
	if cfg.MaxAcceptsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxAcceptsPerSecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	return &Server{
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, 1),
		group:    group,
		groupCtx: groupCtx,
		cancel:   cancel,
	}
}

// Run binds the listening socket and accepts connections until the
// context is canceled or [Server.Stop] is called. It blocks until the
// accept loop and all in-flight connection goroutines have exited.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln

	log.Info().Str("addr", addr).Msg("WebSocket server listening")

	s.group.Go(func() error {
		select {
		case <-ctx.Done():
		case <-s.groupCtx.Done():
		}
		return s.listener.Close()
	})

	s.group.Go(func() error {
		return s.acceptLoop()
	})

	return s.group.Wait()
}

// acceptLoop calls net.Listener.Accept in a loop, spawning one goroutine
// per accepted connection, throttled by s.limiter.
func (s *Server) acceptLoop() error {
	for {
		if err := s.limiter.Wait(s.groupCtx); err != nil {
			return nil // context canceled; Run is shutting down.
		}

		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.groupCtx.Done():
				return nil
			default:
				return fmt.Errorf("accept failed: %w", err)
			}
		}

		s.group.Go(func() error {
			s.handleConnection(nc)
			return nil
		})
	}
}

// handleConnection completes the WebSocket handshake for one accepted
// net.Conn and, on success, dispatches its messages to the configured
// hooks until it closes.
func (s *Server) handleConnection(nc net.Conn) {
	remote := nc.RemoteAddr().String()
	ctx := logger.WithAttrs(context.Background(), slog.String("remote_addr", remote))

	opts := []websocket.AcceptOpt{
		websocket.WithLenientConnectionHeader(s.cfg.AllowMissingConnectionHeader),
	}
	if len(s.cfg.JWTSecret) > 0 {
		opts = append(opts, websocket.WithAuthenticate(websocket.JWTAuthenticate(s.cfg.JWTSecret)))
	}
	if s.cfg.Hooks.OnHandshakeComplete != nil {
		opts = append(opts, websocket.WithOnHandshakeComplete(s.cfg.Hooks.OnHandshakeComplete))
	}
	if s.cfg.Hooks.OnPing != nil {
		opts = append(opts, websocket.WithOnPing(s.cfg.Hooks.OnPing))
	}
	if s.cfg.Hooks.OnPong != nil {
		opts = append(opts, websocket.WithOnPong(s.cfg.Hooks.OnPong))
	}

	c, err := websocket.Accept(ctx, nc, opts...)
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", remote).Msg("WebSocket handshake failed")
		s.recordConnection(remote, "rfc6455", "rejected: "+err.Error())
		_ = nc.Close()
		return
	}

	s.recordConnection(remote, "rfc6455", "accepted")
	s.register(c)
	defer s.unregister(c)

	// On shutdown, send the going-away close frame and then drop the
	// socket, so a client that never answers it can't block Stop.
	stopClosing := context.AfterFunc(s.groupCtx, func() {
		c.Close(websocket.StatusGoingAway)
		_ = nc.Close()
	})
	defer stopClosing()

	for msg := range c.IncomingMessages() {
		if s.cfg.MetricsDir != "" {
			wsmetrics.RecordFrame(slog.Default(), s.cfg.MetricsDir, time.Now(), c.ID(), msg.Opcode, len(msg.Data))
		}
		switch msg.Opcode {
		case websocket.OpcodeText:
			if s.cfg.Hooks.OnText != nil {
				s.cfg.Hooks.OnText(c, msg.Data)
			}
		case websocket.OpcodeBinary:
			if s.cfg.Hooks.OnBinary != nil {
				s.cfg.Hooks.OnBinary(c, msg.Data)
			}
		}
	}

	if s.cfg.Hooks.OnClose != nil {
		s.cfg.Hooks.OnClose(c)
	}
}

func (s *Server) recordConnection(remoteAddr, variant, outcome string) {
	if s.cfg.MetricsDir == "" {
		return
	}
	wsmetrics.RecordConnection(slog.Default(), s.cfg.MetricsDir, time.Now(), remoteAddr, variant, outcome)
}

// connKey returns the SHA-256 hash of a connection's ID, the same
// keying scheme as the teacher's pkg/websocket/client.go hash(id string).
func connKey(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (s *Server) register(c *websocket.Conn) {
	s.conns.Store(connKey(c.ID()), c)
}

func (s *Server) unregister(c *websocket.Conn) {
	s.conns.Delete(connKey(c.ID()))
}

// Stop cancels the accept loop and closes every tracked connection,
// then waits for all connection-handling goroutines to finish.
func (s *Server) Stop() error {
	s.cancel()

	s.conns.Range(func(_, v any) bool {
		c, _ := v.(*websocket.Conn)
		if c != nil {
			c.Close(websocket.StatusGoingAway)
		}
		return true
	})

	return s.group.Wait()
}
