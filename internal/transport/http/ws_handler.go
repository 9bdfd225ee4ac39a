package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
)

var errBinaryFrame = errors.New("binary frames are not supported")

// WSHandler upgrades HTTP connections and runs a chat session over them. Every text
// frame carries exactly one protocol line.
type WSHandler struct {
	hub *core.Hub
	cfg config.SessionConfig
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg config.SessionConfig, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.cfg.MaxLineBytes > 0 {
		conn.SetReadLimit(int64(h.cfg.MaxLineBytes))
	}

	wc := &wsConn{conn: conn, remote: r.RemoteAddr, idle: h.cfg.IdleTimeout}
	if err := h.hub.Serve(r.Context(), wc); err != nil {
		h.log.Debug().Err(err).Str("remote", wc.remote).Msg("ws session ended")
	}
}

// wsConn adapts a websocket connection to core.Conn.
type wsConn struct {
	conn   *websocket.Conn
	remote string
	idle   time.Duration
}

var _ core.Conn = (*wsConn)(nil)

func (c *wsConn) ReadLine(ctx context.Context) (string, error) {
	if c.idle > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.idle)
		defer cancel()
	}

	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	if typ != websocket.MessageText {
		return "", errBinaryFrame
	}
	// Only one terminator is dropped. Any line break left inside the frame reaches the
	// decoder, which answers it as malformed instead of splitting it into several lines.
	line := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (c *wsConn) WriteLine(ctx context.Context, line string) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
