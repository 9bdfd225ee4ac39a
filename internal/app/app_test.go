package app

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
)

func TestHubOptions(t *testing.T) {
	cfg := config.Default().Session
	opts := HubOptions(cfg)
	assert.Equal(t, core.DuplicateReject, opts.DuplicateLogin)
	assert.Equal(t, cfg.OutboundBuffer, opts.OutboundBuffer)

	cfg.DuplicateLogin = config.DuplicateLoginReplace
	assert.Equal(t, core.DuplicateReplace, HubOptions(cfg).DuplicateLogin)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Store.Driver = "mongo"

	_, err := New(context.Background(), &cfg, &logger)
	require.Error(t, err)
}

func TestRunServesAndStops(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.Store.Driver = config.StoreDriverMemory

	a, err := New(context.Background(), &cfg, &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.TCPAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", a.TCPAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("REGISTER alice secret\n"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "SUCCESS\n", line)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRunDisconnectsWebSocketSessions(t *testing.T) {
	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.Store.Driver = config.StoreDriverMemory

	a, err := New(context.Background(), &cfg, &logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.HTTPAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer dialCancel()
	ws, _, err := websocket.Dial(dialCtx, "ws://"+a.HTTPAddr().String()+"/ws", nil)
	require.NoError(t, err)
	defer ws.CloseNow()

	roundTrip := func(line string) string {
		require.NoError(t, ws.Write(dialCtx, websocket.MessageText, []byte(line)))
		_, data, err := ws.Read(dialCtx)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "SUCCESS", roundTrip("REGISTER alice secret"))
	assert.Equal(t, "SUCCESS", roundTrip("LOGIN alice secret"))
	assert.Equal(t, 1, a.hub.Registry().Len())

	cancel()

	_, _, err = ws.Read(dialCtx)
	require.Error(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, int64(0), a.hub.Stats().Sessions)
	assert.Equal(t, 0, a.hub.Registry().Len())
}
