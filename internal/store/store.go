package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserExists is returned when a username is already taken.
	ErrUserExists = errors.New("user already exists")
)

// User represents a registered account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Message represents a persisted chat message. Deleted messages are kept as tombstones.
type Message struct {
	ID        int64
	Author    string
	Text      string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	// Returns ErrUserExists if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message and returns its id.
	// Ids are assigned atomically and strictly increase.
	CreateMessage(ctx context.Context, author, text string) (int64, error)

	// GetMessage retrieves a message by id.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// UpdateMessage replaces the text and deleted flag of a message.
	UpdateMessage(ctx context.Context, id int64, text string, deleted bool) error

	// ListMessages returns up to limit messages in ascending id order.
	// If beforeID is provided, only messages older than that id are considered.
	ListMessages(ctx context.Context, limit int, beforeID *int64) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
