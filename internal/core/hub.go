package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/store"
	"github.com/vovakirdan/linechat-server/internal/utils"
)

// UserStore verifies and creates credentials on behalf of sessions.
type UserStore interface {
	// Register creates an account. Any error means the registration failed.
	Register(ctx context.Context, username, password string) error
	// Verify reports whether the credentials are valid. The error is reserved
	// for failures of the backing store.
	Verify(ctx context.Context, username, password string) (bool, error)
}

// Options tunes session behaviour.
type Options struct {
	// OutboundBuffer is the number of lines a session may have queued before it is
	// considered too slow and disconnected.
	OutboundBuffer int
	// HistoryLimit is how many recent messages a session receives after logging in.
	HistoryLimit int
	// RateLimitPerMinute caps commands per session; zero disables the limit.
	RateLimitPerMinute int
	// DuplicateLogin decides what happens to a second login of an online identity.
	DuplicateLogin DuplicatePolicy
}

// Stats is a point-in-time view of hub activity.
type Stats struct {
	Sessions int64 `json:"sessions"`
	Online   int   `json:"online"`
}

// Hub owns the state shared by all sessions: the registry, the broadcaster and the
// ownership ledger.
type Hub struct {
	users       UserStore
	messages    store.MessageStore
	registry    *Registry
	broadcaster *Broadcaster
	ledger      *Ledger
	opts        Options
	log         *zerolog.Logger

	sessions atomic.Int64
}

// NewHub creates a new chat hub instance.
func NewHub(users UserStore, messages store.MessageStore, opts Options, logger *zerolog.Logger) *Hub {
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = 64
	}
	// SUCCESS plus the replayed history must fit in the buffer.
	if opts.HistoryLimit >= opts.OutboundBuffer {
		opts.HistoryLimit = opts.OutboundBuffer - 1
	}

	registry := NewRegistry(opts.DuplicateLogin)
	return &Hub{
		users:       users,
		messages:    messages,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
		ledger:      NewLedger(messages),
		opts:        opts,
		log:         logger,
	}
}

// Serve runs a session over conn until the peer disconnects, an I/O error occurs,
// the session is evicted, or ctx is cancelled. The connection is closed on return.
func (h *Hub) Serve(ctx context.Context, conn Conn) error {
	h.sessions.Add(1)
	defer h.sessions.Add(-1)

	return h.NewSession(conn).Run(ctx)
}

// NewSession prepares a session over conn without starting it.
func (h *Hub) NewSession(conn Conn) *Session {
	id := utils.NewID()
	logger := h.log.With().Str("session_id", id).Str("remote", conn.RemoteAddr()).Logger()

	return &Session{
		ID:      id,
		hub:     h,
		conn:    conn,
		client:  NewClient(id, conn.RemoteAddr(), h.opts.OutboundBuffer),
		limiter: newRateLimiter(h.opts.RateLimitPerMinute),
		log:     logger,
	}
}

// Wait blocks until every session started by Serve has returned, or ctx expires.
// Callers cancel the sessions' context first.
func (h *Hub) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for h.sessions.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Registry exposes the online registry.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish broadcasts a server-originated line to every online session.
func (h *Hub) Publish(event string) int {
	return h.broadcaster.Publish(event)
}

// Stats reports live session and online identity counts.
func (h *Hub) Stats() Stats {
	return Stats{
		Sessions: h.sessions.Load(),
		Online:   h.registry.Len(),
	}
}
