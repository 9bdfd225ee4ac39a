package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// Schema is applied by New. Tests may pass it to NewWithSetup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	author     TEXT NOT NULL,
	text       TEXT NOT NULL,
	deleted    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getUser(ctx, "id = ?", id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE ` + where
	var user store.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message and returns the AUTOINCREMENT id.
func (s *SQLiteStore) CreateMessage(ctx context.Context, author, text string) (int64, error) {
	query := `
		INSERT INTO messages (author, text)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, author, text)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// GetMessage retrieves a message by id.
func (s *SQLiteStore) GetMessage(ctx context.Context, id int64) (*store.Message, error) {
	query := `
		SELECT id, author, text, deleted, created_at, updated_at
		FROM messages
		WHERE id = ?
	`
	var msg store.Message
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.Author,
		&msg.Text,
		&msg.Deleted,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query message: %w", err)
	}

	return &msg, nil
}

// UpdateMessage replaces text and deleted flag.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id int64, text string, deleted bool) error {
	query := `
		UPDATE messages
		SET text = ?, deleted = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, text, deleted, id)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("message %d: %w", id, store.ErrNotFound)
	}
	return nil
}

// ListMessages retrieves messages with pagination, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int, beforeID *int64) ([]*store.Message, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if beforeID != nil {
		query := `
			SELECT id, author, text, deleted, created_at, updated_at
			FROM messages
			WHERE id < ?
			ORDER BY id DESC
			LIMIT ?
		`
		rows, err = s.db.QueryContext(ctx, query, *beforeID, limit)
	} else {
		query := `
			SELECT id, author, text, deleted, created_at, updated_at
			FROM messages
			ORDER BY id DESC
			LIMIT ?
		`
		rows, err = s.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.Author,
			&msg.Text,
			&msg.Deleted,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to get chronological order (oldest first)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
