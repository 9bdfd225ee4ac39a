package core

import (
	"sync"
	"sync/atomic"
)

// Sink is a destination for server-originated lines, one per session.
type Sink interface {
	// Send queues a line without blocking. It reports false if the line was not
	// accepted because the sink is closed or has just been evicted for falling behind.
	Send(line string) bool
	// Close detaches the sink; its session shuts down in response.
	Close()
}

// Client is the Sink of one connection: a bounded outbound queue drained by the
// session's writer goroutine.
type Client struct {
	ID     string
	Remote string

	out  chan string
	done chan struct{}

	mu         sync.Mutex
	closed     bool
	overflowed atomic.Bool
}

var _ Sink = (*Client)(nil)

// NewClient constructs a client with an outbound buffer of the given size.
func NewClient(id, remote string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:     id,
		Remote: remote,
		out:    make(chan string, buffer),
		done:   make(chan struct{}),
	}
}

// Send implements Sink. A full buffer closes the client: a peer that cannot keep up
// is disconnected instead of stalling everybody else's fan-out.
func (c *Client) Send(line string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.out <- line:
		return true
	default:
		c.overflowed.Store(true)
		c.closeLocked()
		return false
	}
}

// Close implements Sink. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// Outbound yields queued lines in the order they were accepted.
func (c *Client) Outbound() <-chan string {
	return c.out
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Overflowed reports whether the client was closed because its buffer filled up.
func (c *Client) Overflowed() bool {
	return c.overflowed.Load()
}
