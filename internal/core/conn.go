package core

import "context"

// Conn is a line-oriented network stream. Implementations must make WriteLine
// atomic per line and must unblock a pending ReadLine when Close is called.
type Conn interface {
	// ReadLine blocks until one line (without its terminator) is available.
	ReadLine(ctx context.Context) (string, error)
	// WriteLine writes one line followed by the terminator.
	WriteLine(ctx context.Context, line string) error
	// Close releases the underlying stream.
	Close() error
	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}
