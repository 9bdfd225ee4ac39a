package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/coder/websocket"
)

// lineConn is the client side of the line protocol.
type lineConn interface {
	ReadLine(ctx context.Context) (string, error)
	WriteLine(ctx context.Context, line string) error
	Close() error
}

// dial connects over TCP, or over websocket when addr is a ws:// or wss:// URL.
func dial(ctx context.Context, addr string) (lineConn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		conn, _, err := websocket.Dial(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
		return &wsLineConn{conn: conn}, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &tcpLineConn{conn: conn, reader: bufio.NewReader(conn)}, nil
}

type tcpLineConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func (c *tcpLineConn) ReadLine(ctx context.Context) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *tcpLineConn) WriteLine(_ context.Context, line string) error {
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *tcpLineConn) Close() error {
	return c.conn.Close()
}

type wsLineConn struct {
	conn *websocket.Conn
}

func (c *wsLineConn) ReadLine(ctx context.Context) (string, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

func (c *wsLineConn) WriteLine(ctx context.Context, line string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsLineConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}
