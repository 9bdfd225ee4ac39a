package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// These tests need a live database; point LINECHAT_TEST_POSTGRES_DSN at a disposable one.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("LINECHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LINECHAT_TEST_POSTGRES_DSN not set")
	}

	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.sql.Exec("TRUNCATE users, messages RESTART IDENTITY")
		_ = db.Close()
	})
	_, err = db.sql.Exec("TRUNCATE users, messages RESTART IDENTITY")
	require.NoError(t, err)
	return db
}

func TestPostgresUsers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	u, err := db.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)

	_, err = db.CreateUser(ctx, "alice", "hash")
	assert.True(t, errors.Is(err, store.ErrUserExists), "got %v", err)

	_, err = db.GetUserByUsername(ctx, "bob")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func TestPostgresMessages(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.CreateMessage(ctx, "alice", "hello")
	require.NoError(t, err)
	second, err := db.CreateMessage(ctx, "bob", "hi")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	require.NoError(t, db.UpdateMessage(ctx, first, "hey", false))
	m, err := db.GetMessage(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Author)
	assert.Equal(t, "hey", m.Text)

	err = db.UpdateMessage(ctx, 999, "x", true)
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)

	list, err := db.ListMessages(ctx, 10, &second)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first, list[0].ID)
}
