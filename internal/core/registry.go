package core

import (
	"slices"
	"sync"
)

// DuplicatePolicy decides what happens when an identity logs in twice.
type DuplicatePolicy int

const (
	// DuplicateReject fails the second login and keeps the first session.
	DuplicateReject DuplicatePolicy = iota
	// DuplicateReplace closes the first session and hands the entry to the second.
	DuplicateReplace
)

// Registry maps each online identity to its sink. It is the single source of truth
// for who is online. All methods hold the lock only for in-memory work.
type Registry struct {
	mu     sync.RWMutex
	sinks  map[string]Sink
	policy DuplicatePolicy
}

// NewRegistry constructs an empty registry.
func NewRegistry(policy DuplicatePolicy) *Registry {
	return &Registry{
		sinks:  make(map[string]Sink),
		policy: policy,
	}
}

// Register binds identity to sink. The greeting lines are queued on sink while the
// entry is being added, so no broadcast can overtake them.
//
// With DuplicateReject an existing entry yields ErrAlreadyOnline. With DuplicateReplace
// the previous sink is returned; the caller is expected to Close it.
func (r *Registry) Register(identity string, sink Sink, greeting ...string) (Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.sinks[identity]
	if exists && prev != sink && r.policy == DuplicateReject {
		return nil, ErrAlreadyOnline
	}

	for _, line := range greeting {
		sink.Send(line)
	}
	r.sinks[identity] = sink

	if exists && prev != sink {
		return prev, nil
	}
	return nil, nil
}

// Unregister removes identity only if it is still bound to sink, so a session that was
// replaced never removes its successor. It reports whether an entry was removed.
func (r *Registry) Unregister(identity string, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.sinks[identity]; ok && current == sink {
		delete(r.sinks, identity)
		return true
	}
	return false
}

// Snapshot returns a point-in-time copy of the sinks ordered by identity.
func (r *Registry) Snapshot() []Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.namesLocked()
	sinks := make([]Sink, 0, len(names))
	for _, name := range names {
		sinks = append(sinks, r.sinks[name])
	}
	return sinks
}

// Online returns the identities currently registered, sorted.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Len returns the number of online identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.sinks))
	for name := range r.sinks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
