package core

import (
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster fans events out to every registered sink.
type Broadcaster struct {
	registry *Registry
	log      *zerolog.Logger

	// mu gives every sink the same total order of events. It only covers
	// non-blocking enqueues, never network writes.
	mu sync.Mutex
}

// NewBroadcaster constructs a broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{registry: registry, log: logger}
}

// Publish queues event on every sink in a registry snapshot and returns how many
// accepted it. Sinks that refuse the line are closed by their own Send and drop out
// of the registry when their session finishes closing.
func (b *Broadcaster) Publish(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	sinks := b.registry.Snapshot()
	delivered := 0
	for _, sink := range sinks {
		if sink.Send(event) {
			delivered++
			continue
		}
		if c, ok := sink.(*Client); ok {
			b.log.Warn().Str("session_id", c.ID).Bool("overflow", c.Overflowed()).Msg("sink refused broadcast")
		}
	}

	b.log.Debug().Int("recipients", len(sinks)).Int("delivered", delivered).Msg("broadcast")
	return delivered
}
