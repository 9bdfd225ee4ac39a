package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vovakirdan/linechat-server/internal/store"
)

const ledgerStripes = 64

// Ledger enforces message ownership on top of a MessageStore. The fetch, compare and
// update of one message id run under a lock striped by id, so two concurrent
// mutations of the same message cannot interleave.
type Ledger struct {
	store store.MessageStore
	locks [ledgerStripes]sync.Mutex
}

// NewLedger wraps a message store.
func NewLedger(st store.MessageStore) *Ledger {
	return &Ledger{store: st}
}

// Create stores a new message authored by identity and returns its id.
func (l *Ledger) Create(ctx context.Context, identity, text string) (int64, error) {
	id, err := l.store.CreateMessage(ctx, identity, text)
	if err != nil {
		return 0, fmt.Errorf("create message: %w", err)
	}
	return id, nil
}

// Edit replaces the text of message id if identity wrote it.
func (l *Ledger) Edit(ctx context.Context, identity string, id int64, text string) error {
	unlock := l.lock(id)
	defer unlock()

	msg, err := l.owned(ctx, identity, id)
	if err != nil {
		return err
	}
	if msg.Deleted {
		return ErrMessageDeleted
	}
	return l.update(ctx, id, text, false)
}

// Delete tombstones message id if identity wrote it. Deleting a tombstone again
// changes nothing and reports changed=false.
func (l *Ledger) Delete(ctx context.Context, identity string, id int64, tombstone string) (bool, error) {
	unlock := l.lock(id)
	defer unlock()

	msg, err := l.owned(ctx, identity, id)
	if err != nil {
		return false, err
	}
	if msg.Deleted {
		return false, nil
	}
	if err := l.update(ctx, id, tombstone, true); err != nil {
		return false, err
	}
	return true, nil
}

// owned loads the message and checks authorship. Callers hold the stripe lock.
func (l *Ledger) owned(ctx context.Context, identity string, id int64) (*store.Message, error) {
	msg, err := l.store.GetMessage(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	if msg.Author != identity {
		return nil, ErrNotOwner
	}
	return msg, nil
}

func (l *Ledger) update(ctx context.Context, id int64, text string, deleted bool) error {
	if err := l.store.UpdateMessage(ctx, id, text, deleted); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("update message %d: %w", id, err)
	}
	return nil
}

func (l *Ledger) lock(id int64) func() {
	mu := &l.locks[uint64(id)%ledgerStripes]
	mu.Lock()
	return mu.Unlock
}
