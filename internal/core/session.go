package core

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/proto"
)

// State is the lifecycle stage of a session.
type State int32

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session drives one connection through authentication and chat commands.
type Session struct {
	ID string

	hub     *Hub
	conn    Conn
	client  *Client
	limiter *rateLimiter
	log     zerolog.Logger

	// mu orders login against close so a registry entry can never outlive the session.
	mu       sync.Mutex
	state    State
	identity string

	closeOnce sync.Once
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the authenticated username, or "" before login.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Run processes commands until the session closes. A nil error means the session
// ended normally: the peer hung up or the session was shut down from outside.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.log.Info().Msg("session opened")

	writerDone := make(chan error, 1)
	go func() {
		err := s.writeLoop(ctx)
		s.close()
		writerDone <- err
	}()

	readErr := s.readLoop(ctx)
	closedElsewhere := s.State() == StateClosed
	s.close()
	cancel()
	writeErr := <-writerDone

	switch {
	case closedElsewhere, readErr == nil, errors.Is(readErr, io.EOF), errors.Is(readErr, net.ErrClosed),
		errors.Is(readErr, context.Canceled):
		if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
			s.log.Warn().Err(writeErr).Msg("session write failed")
		}
		s.log.Info().Bool("evicted", s.client.Overflowed()).Msg("session closed")
		return nil
	default:
		s.log.Warn().Err(readErr).Msg("session closed with error")
		return readErr
	}
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		line, err := s.conn.ReadLine(ctx)
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s.State() == StateClosed {
			return ErrSessionClosed
		}
		s.handle(ctx, proto.Decode(line))
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case line := <-s.client.Outbound():
			if err := s.conn.WriteLine(ctx, line); err != nil {
				return err
			}
		case <-s.client.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close is the only path to StateClosed. It is idempotent and safe from any goroutine.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		identity := s.identity
		s.state = StateClosed
		s.mu.Unlock()

		if identity != "" && s.hub.registry.Unregister(identity, s.client) {
			s.log.Info().Str("user", identity).Int("online", s.hub.registry.Len()).Msg("user went offline")
		}
		s.client.Close()
		if err := s.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close connection")
		}
	})
}

func (s *Session) handle(ctx context.Context, req proto.Request) {
	if !s.limiter.allow() {
		s.fail(coreError(ErrCodeRateLimited, proto.ErrLineRateLimited))
		return
	}

	switch req.Kind {
	case proto.KindMalformed:
		s.fail(coreError(ErrCodeBadRequest, proto.MalformedLine(req.Reason)))
	case proto.KindRegister:
		s.handleRegister(ctx, req)
	case proto.KindLogin:
		s.handleLogin(ctx, req)
	case proto.KindSend, proto.KindEdit, proto.KindDelete:
		identity := s.Identity()
		if identity == "" {
			s.fail(coreError(ErrCodeUnauthorized, proto.ErrLineNotLoggedIn))
			return
		}
		if req.User != identity {
			s.log.Debug().Str("user", identity).Str("claimed", req.User).Msg("claimed author differs from session identity")
		}
		switch req.Kind {
		case proto.KindSend:
			s.handleSend(ctx, identity, req)
		case proto.KindEdit:
			s.handleEdit(ctx, identity, req)
		default:
			s.handleDelete(ctx, identity, req)
		}
	}
}

func (s *Session) handleRegister(ctx context.Context, req proto.Request) {
	if s.State() == StateAuthenticated {
		s.fail(coreError(ErrCodeBadRequest, proto.ErrLineAlreadyLoggedIn))
		return
	}

	if err := s.hub.users.Register(ctx, req.User, req.Password); err != nil {
		s.log.Info().Err(err).Str("user", req.User).Msg("registration failed")
		s.reply(proto.ReplyFailed)
		return
	}

	s.log.Info().Str("user", req.User).Msg("user registered")
	s.reply(proto.ReplySuccess)
}

func (s *Session) handleLogin(ctx context.Context, req proto.Request) {
	if s.State() == StateAuthenticated {
		s.fail(coreError(ErrCodeBadRequest, proto.ErrLineAlreadyLoggedIn))
		return
	}

	ok, err := s.hub.users.Verify(ctx, req.User, req.Password)
	if err != nil {
		s.log.Error().Err(err).Str("user", req.User).Msg("verify credentials")
		s.reply(proto.ReplyFailed)
		return
	}
	if !ok {
		s.log.Info().Str("user", req.User).Msg("login rejected")
		s.reply(proto.ReplyFailed)
		return
	}

	greeting := append([]string{proto.ReplySuccess}, s.history(ctx)...)
	if err := s.bind(req.User, greeting); err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return
		}
		code := ErrCodeInternal
		if errors.Is(err, ErrAlreadyOnline) {
			code = ErrCodeAlreadyOnline
		}
		s.log.Info().Err(err).Str("user", req.User).Str("code", code).Msg("login rejected")
		s.reply(proto.ReplyFailed)
		return
	}

	s.log.Info().Str("user", req.User).Int("online", s.hub.registry.Len()).Msg("user logged in")
}

// bind registers the session under identity and moves it to StateAuthenticated.
func (s *Session) bind(identity string, greeting []string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	prev, err := s.hub.registry.Register(identity, s.client, greeting...)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.identity = identity
	s.state = StateAuthenticated
	s.mu.Unlock()

	if prev != nil {
		s.log.Info().Str("user", identity).Msg("replacing previous session")
		prev.Close()
	}
	return nil
}

// history renders the most recent messages for a freshly logged in session.
func (s *Session) history(ctx context.Context) []string {
	limit := s.hub.opts.HistoryLimit
	if limit <= 0 {
		return nil
	}

	msgs, err := s.hub.messages.ListMessages(ctx, limit, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("load history")
		return nil
	}

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Deleted {
			continue
		}
		lines = append(lines, proto.MessageEvent(m.Author, m.ID, m.Text))
	}
	return lines
}

func (s *Session) handleSend(ctx context.Context, identity string, req proto.Request) {
	id, err := s.hub.ledger.Create(ctx, identity, req.Text)
	if err != nil {
		s.log.Error().Err(err).Str("user", identity).Msg("store message")
		s.fail(coreError(ErrCodeInternal, proto.ErrLineInternal))
		return
	}

	s.log.Debug().Str("user", identity).Int64("message_id", id).Msg("message sent")
	s.hub.broadcaster.Publish(proto.MessageEvent(identity, id, req.Text))
}

func (s *Session) handleEdit(ctx context.Context, identity string, req proto.Request) {
	if err := s.hub.ledger.Edit(ctx, identity, req.ID, req.Text); err != nil {
		s.fail(s.ledgerError(err, identity, req.ID, proto.ErrLineNotOwnerEdit))
		return
	}

	s.log.Debug().Str("user", identity).Int64("message_id", req.ID).Msg("message edited")
	s.hub.broadcaster.Publish(proto.EditedEvent(req.ID, req.Text))
}

func (s *Session) handleDelete(ctx context.Context, identity string, req proto.Request) {
	changed, err := s.hub.ledger.Delete(ctx, identity, req.ID, proto.DeletedText)
	if err != nil {
		s.fail(s.ledgerError(err, identity, req.ID, proto.ErrLineNotOwnerDelete))
		return
	}

	if !changed {
		// Already a tombstone: confirm to the requester, nobody else needs to hear it again.
		s.reply(proto.DeletedEvent(req.ID))
		return
	}

	s.log.Debug().Str("user", identity).Int64("message_id", req.ID).Msg("message deleted")
	s.hub.broadcaster.Publish(proto.DeletedEvent(req.ID))
}

func (s *Session) ledgerError(err error, identity string, id int64, notOwnerLine string) *CoreError {
	switch {
	case errors.Is(err, ErrMessageNotFound):
		return coreError(ErrCodeNotFound, proto.ErrLineNotFound)
	case errors.Is(err, ErrNotOwner):
		return coreError(ErrCodeForbidden, notOwnerLine)
	case errors.Is(err, ErrMessageDeleted):
		return coreError(ErrCodeGone, proto.ErrLineDeleted)
	default:
		s.log.Error().Err(err).Str("user", identity).Int64("message_id", id).Msg("mutate message")
		return coreError(ErrCodeInternal, proto.ErrLineInternal)
	}
}

// reply queues a line for this session only.
func (s *Session) reply(line string) {
	if !s.client.Send(line) {
		s.log.Debug().Msg("reply dropped, session closing")
	}
}

func (s *Session) fail(e *CoreError) {
	s.log.Debug().Str("code", e.Code).Msg(e.Message)
	s.reply(e.Message)
}
