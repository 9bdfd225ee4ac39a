// Package postgres implements store.Store on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DB wraps a *sql.DB and implements store.Store.
type DB struct {
	sql *sql.DB
}

var _ store.Store = (*DB)(nil)

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(ctx context.Context, connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	d := &DB{sql: s}
	if err := d.migrate(pingCtx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id BIGSERIAL PRIMARY KEY, username TEXT UNIQUE NOT NULL, password_hash TEXT NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS messages (id BIGSERIAL PRIMARY KEY, author TEXT NOT NULL, text TEXT NOT NULL, deleted BOOLEAN NOT NULL DEFAULT FALSE, created_at TIMESTAMPTZ NOT NULL, updated_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author);",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// CreateUser creates a new user.
func (d *DB) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	var u store.User
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id, username, password_hash, created_at",
		username, passwordHash, time.Now(),
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	var u store.User
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, username, password_hash, created_at FROM users WHERE username = $1",
		username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

// CreateMessage inserts a message; the BIGSERIAL sequence assigns the id.
func (d *DB) CreateMessage(ctx context.Context, author, text string) (int64, error) {
	now := time.Now()
	var id int64
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO messages (author, text, deleted, created_at, updated_at) VALUES ($1, $2, FALSE, $3, $3) RETURNING id",
		author, text, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// GetMessage retrieves a message by id.
func (d *DB) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	var m store.Message
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, author, text, deleted, created_at, updated_at FROM messages WHERE id = $1",
		id,
	).Scan(&m.ID, &m.Author, &m.Text, &m.Deleted, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query message: %w", err)
	}
	return &m, nil
}

// UpdateMessage replaces text and deleted flag.
func (d *DB) UpdateMessage(ctx context.Context, id int64, text string, deleted bool) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE messages SET text = $1, deleted = $2, updated_at = $3 WHERE id = $4",
		text, deleted, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListMessages returns up to limit messages, oldest first.
func (d *DB) ListMessages(ctx context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	// A NULL bound disables the filter.
	var before sql.NullInt64
	if beforeID != nil {
		before = sql.NullInt64{Int64: *beforeID, Valid: true}
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, author, text, deleted, created_at, updated_at FROM messages WHERE ($1::BIGINT IS NULL OR id < $1) ORDER BY id DESC LIMIT $2",
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []*store.Message
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.Author, &m.Text, &m.Deleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
