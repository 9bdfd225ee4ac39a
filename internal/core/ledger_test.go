package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/store/memory"
)

func TestLedgerOwnership(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New())

	id, err := l.Create(ctx, "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	assert.ErrorIs(t, l.Edit(ctx, "bob", id, "x"), ErrNotOwner)
	assert.ErrorIs(t, l.Edit(ctx, "alice", 42, "x"), ErrMessageNotFound)
	require.NoError(t, l.Edit(ctx, "alice", id, "edited"))

	_, err = l.Delete(ctx, "bob", id, "[deleted]")
	assert.ErrorIs(t, err, ErrNotOwner)

	changed, err := l.Delete(ctx, "alice", id, "[deleted]")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = l.Delete(ctx, "alice", id, "[deleted]")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.ErrorIs(t, l.Edit(ctx, "alice", id, "again"), ErrMessageDeleted)
	// Ownership is checked before tombstone state.
	assert.ErrorIs(t, l.Edit(ctx, "bob", id, "again"), ErrNotOwner)
}

func TestLedgerConcurrentIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New())

	const n = 100
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := l.Create(ctx, "alice", "hi")
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestLedgerSingleDeleteWins(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(memory.New())
	id, err := l.Create(ctx, "alice", "hello")
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := l.Delete(ctx, "alice", id, "[deleted]")
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changes)
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	r := newRateLimiter(2)
	r.now = func() time.Time { return now }

	assert.True(t, r.allow())
	assert.True(t, r.allow())
	assert.False(t, r.allow())

	now = now.Add(time.Minute)
	assert.True(t, r.allow())

	assert.True(t, newRateLimiter(0).allow())
}
