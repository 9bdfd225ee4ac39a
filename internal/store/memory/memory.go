// Package memory implements an in-memory store for development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// DB implements store.Store in process memory.
type DB struct {
	mu       sync.RWMutex
	users    map[string]*store.User
	messages []*store.Message // index i holds id i+1

	userIDCounter int64
}

var _ store.Store = (*DB)(nil)

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		users: make(map[string]*store.User),
	}
}

// Close is a no-op.
func (db *DB) Close() error {
	return nil
}

// --- UserStore ---

// CreateUser adds a user unless the username is taken.
func (db *DB) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[username]; ok {
		return nil, store.ErrUserExists
	}
	db.userIDCounter++
	u := &store.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	db.users[username] = u
	clone := *u
	return &clone, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[username]
	if !ok {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

// --- MessageStore ---

// CreateMessage appends a message; the id is its position in the log.
func (db *DB) CreateMessage(_ context.Context, author, text string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now().UTC()
	id := int64(len(db.messages)) + 1
	db.messages = append(db.messages, &store.Message{
		ID:        id,
		Author:    author,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return id, nil
}

// GetMessage returns a copy of the message.
func (db *DB) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.lookup(id)
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	clone := *m
	return &clone, nil
}

// UpdateMessage replaces text and deleted flag.
func (db *DB) UpdateMessage(_ context.Context, id int64, text string, deleted bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.lookup(id)
	if !ok {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	m.Text = text
	m.Deleted = deleted
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// ListMessages returns up to limit messages older than beforeID, oldest first.
func (db *DB) ListMessages(_ context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	end := len(db.messages)
	if beforeID != nil && *beforeID-1 < int64(end) {
		end = int(max(*beforeID-1, 0))
	}
	start := max(end-limit, 0)

	out := make([]*store.Message, 0, end-start)
	for _, m := range db.messages[start:end] {
		clone := *m
		out = append(out, &clone)
	}
	return out, nil
}

func (db *DB) lookup(id int64) (*store.Message, bool) {
	if id < 1 || id > int64(len(db.messages)) {
		return nil, false
	}
	return db.messages[id-1], true
}
