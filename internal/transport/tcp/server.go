package tcp

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
)

// Server accepts TCP connections and hands each one to the hub as a session.
type Server struct {
	addr string
	hub  *core.Hub
	cfg  config.SessionConfig
	log  *zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer builds a TCP server listening on addr.
func NewServer(addr string, hub *core.Hub, cfg config.SessionConfig, logger *zerolog.Logger) *Server {
	return &Server{addr: addr, hub: hub, cfg: cfg, log: logger}
}

// ListenAndServe listens on the configured address and serves until Shutdown or ctx
// cancellation.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil once the listener is closed by
// Shutdown or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.listener = ln
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("tcp server listening")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept failed")
				time.Sleep(backoff)
				continue
			}
			return err
		}
		backoff = 0

		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	lc := NewLineConn(conn, s.cfg.MaxLineBytes, s.cfg.IdleTimeout)
	if err := s.hub.Serve(ctx, lc); err != nil {
		s.log.Debug().Err(err).Str("remote", lc.RemoteAddr()).Msg("tcp session ended")
	}
}

// Addr returns the listener address once Serve has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting, closes every session and waits for them to finish or
// for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
