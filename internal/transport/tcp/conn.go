// Package tcp serves the line protocol over raw TCP connections.
package tcp

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/linechat-server/internal/core"
)

const writeTimeout = 10 * time.Second

// LineConn adapts a net.Conn to core.Conn: newline-framed reads with an idle deadline
// and serialized writes.
type LineConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	idle    time.Duration

	wmu sync.Mutex
}

var _ core.Conn = (*LineConn)(nil)

// NewLineConn wraps conn. Lines longer than maxLine bytes fail the read. A zero idle
// timeout disables the read deadline.
func NewLineConn(conn net.Conn, maxLine int, idle time.Duration) *LineConn {
	scanner := bufio.NewScanner(conn)
	if maxLine > 0 {
		scanner.Buffer(make([]byte, 0, min(maxLine, 4096)), maxLine)
	}
	return &LineConn{conn: conn, scanner: scanner, idle: idle}
}

// ReadLine blocks until a full line arrives. Cancellation is delivered by Close.
func (c *LineConn) ReadLine(_ context.Context) (string, error) {
	if c.idle > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return "", err
		}
	}
	if c.scanner.Scan() {
		return c.scanner.Text(), nil
	}
	if err := c.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// WriteLine writes line followed by a newline.
func (c *LineConn) WriteLine(ctx context.Context, line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

func (c *LineConn) Close() error {
	return c.conn.Close()
}

func (c *LineConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
