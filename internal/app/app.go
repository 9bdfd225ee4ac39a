// Package app wires configuration, storage, the chat hub and both transports together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/store/memory"
	"github.com/vovakirdan/linechat-server/internal/store/postgres"
	"github.com/vovakirdan/linechat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/linechat-server/internal/transport/http"
	"github.com/vovakirdan/linechat-server/internal/transport/tcp"
)

// App wires together core and transport layers.
type App struct {
	tcp             *tcp.Server
	http            *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger

	mu       sync.Mutex
	httpAddr net.Addr
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	hub := core.NewHub(authService, st, HubOptions(cfg.Session), logger)

	a := &App{
		tcp:             tcp.NewServer(cfg.TCPAddr, hub, cfg.Session, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}
	if cfg.HTTPAddr != "" {
		a.http = transporthttp.NewServer(hub, authService, st, cfg, logger)
	}
	return a, nil
}

// HubOptions translates session configuration into hub options.
func HubOptions(cfg config.SessionConfig) core.Options {
	policy := core.DuplicateReject
	if cfg.DuplicateLogin == config.DuplicateLoginReplace {
		policy = core.DuplicateReplace
	}
	return core.Options{
		OutboundBuffer:     cfg.OutboundBuffer,
		HistoryLimit:       cfg.HistoryLimit,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		DuplicateLogin:     policy,
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		return sqlite.New(cfg.SQLitePath)
	case config.StoreDriverPostgres:
		return postgres.Open(ctx, cfg.PostgresDSN)
	case config.StoreDriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Run starts both listeners and blocks until context cancellation or a fatal error.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	var httpLn net.Listener
	if a.http != nil {
		ln, err := net.Listen("tcp", a.http.Addr)
		if err != nil {
			return fmt.Errorf("listen http: %w", err)
		}
		httpLn = ln
		a.mu.Lock()
		a.httpAddr = ln.Addr()
		a.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.tcp.ListenAndServe(gctx)
	})

	if a.http != nil {
		ln := httpLn
		// Shutdown leaves hijacked websocket connections alone; their sessions end with gctx.
		a.http.BaseContext = func(net.Listener) context.Context { return gctx }

		g.Go(func() error {
			a.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
			if err := a.http.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down servers")
		var errs []error
		if a.http != nil {
			errs = append(errs, a.http.Shutdown(shutdownCtx))
		}
		errs = append(errs, a.tcp.Shutdown(shutdownCtx))
		if err := a.hub.Wait(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("wait for sessions: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

// TCPAddr returns the bound TCP listener address once Run has started listening.
func (a *App) TCPAddr() net.Addr {
	return a.tcp.Addr()
}

// HTTPAddr returns the bound HTTP listener address once Run has started listening.
func (a *App) HTTPAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.httpAddr
}
