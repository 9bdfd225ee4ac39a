package tcp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/store/memory"
)

func startServer(t *testing.T, cfg config.SessionConfig) (*Server, *core.Hub) {
	t.Helper()

	logger := zerolog.Nop()
	st := memory.New()
	authService := auth.NewService(st, &auth.JWTConfig{Secret: []byte("test"), TTL: time.Hour})
	hub := core.NewHub(authService, st, core.Options{OutboundBuffer: 16}, &logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(ln.Addr().String(), hub, cfg, &logger)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		assert.NoError(t, srv.Shutdown(shutdownCtx))
		cancel()
		assert.NoError(t, <-errCh)
	})
	return srv, hub
}

type lineClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, addr string) *lineClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &lineClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

func (c *lineClient) send(line string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(line + "\r\n"))
	require.NoError(c.t, err)
}

func (c *lineClient) expect(want string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err)
	assert.Equal(c.t, want, strings.TrimRight(line, "\n"))
}

func (c *lineClient) expectClosed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, err := c.reader.ReadString('\n')
	require.Error(c.t, err)
}

func TestTCPChatRoundTrip(t *testing.T) {
	srv, hub := startServer(t, config.SessionConfig{MaxLineBytes: 1024})
	addr := srv.Addr().String()

	alice := dial(t, addr)
	alice.send(proto.EncodeRegister("alice", "secret"))
	alice.expect(proto.ReplySuccess)
	alice.send(proto.EncodeLogin("alice", "secret"))
	alice.expect(proto.ReplySuccess)

	bob := dial(t, addr)
	bob.send(proto.EncodeRegister("bob", "secret"))
	bob.expect(proto.ReplySuccess)
	bob.send(proto.EncodeLogin("bob", "secret"))
	bob.expect(proto.ReplySuccess)

	alice.send("MESSAGE alice hello   there ")
	alice.expect("alice: [ID: 1] hello   there ")
	bob.expect("alice: [ID: 1] hello   there ")

	require.NoError(t, alice.conn.Close())
	require.Eventually(t, func() bool { return hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestTCPOversizedLineDisconnects(t *testing.T) {
	srv, _ := startServer(t, config.SessionConfig{MaxLineBytes: 64})

	c := dial(t, srv.Addr().String())
	c.send("MESSAGE alice " + strings.Repeat("x", 256))
	c.expectClosed()
}

func TestTCPIdleTimeout(t *testing.T) {
	srv, _ := startServer(t, config.SessionConfig{IdleTimeout: 100 * time.Millisecond})

	c := dial(t, srv.Addr().String())
	c.expectClosed()
}

func TestTCPShutdownClosesSessions(t *testing.T) {
	logger := zerolog.Nop()
	st := memory.New()
	hub := core.NewHub(auth.NewService(st, &auth.JWTConfig{}), st, core.Options{}, &logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := NewServer(ln.Addr().String(), hub, config.SessionConfig{}, &logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(context.Background(), ln) }()

	c := dial(t, ln.Addr().String())
	c.send("PING")
	c.expect(proto.ErrLineUnknownCommand)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	c.expectClosed()
	require.NoError(t, <-errCh)
}
