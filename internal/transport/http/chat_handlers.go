package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/proto"
	"github.com/vovakirdan/linechat-server/internal/store"
)

const (
	defaultMessagesLimit = 50
	maxMessagesLimit     = 500
)

// ChatHandlers exposes read-mostly views of the chat to operators.
type ChatHandlers struct {
	hub      *core.Hub
	messages store.MessageStore
	log      *zerolog.Logger
}

// NewChatHandlers creates chat handlers.
func NewChatHandlers(hub *core.Hub, messages store.MessageStore, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{hub: hub, messages: messages, log: logger}
}

// OnlineResponse lists online identities.
type OnlineResponse struct {
	Users []string `json:"users"`
}

// AnnounceRequest is the body of an operator announcement.
type AnnounceRequest struct {
	Text string `json:"text" binding:"required"`
}

// AnnounceResponse reports how many sessions accepted the announcement.
type AnnounceResponse struct {
	Delivered int `json:"delivered"`
}

// Online handles GET /api/online.
func (h *ChatHandlers) Online(c *gin.Context) {
	c.JSON(http.StatusOK, OnlineResponse{Users: h.hub.Registry().Online()})
}

// Stats handles GET /api/stats.
func (h *ChatHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// Messages handles GET /api/messages?limit=N&before=ID.
func (h *ChatHandlers) Messages(c *gin.Context) {
	limit := defaultMessagesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxMessagesLimit)
	}

	var before *int64
	if raw := c.Query("before"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return
		}
		before = &id
	}

	msgs, err := h.messages.ListMessages(c.Request.Context(), limit, before)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, MessagesResponse{Messages: messagesFromStore(msgs)})
}

// Announce handles POST /api/announce and broadcasts a server notice to every
// online session.
func (h *ChatHandlers) Announce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.ContainsAny(req.Text, "\r\n") {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	delivered := h.hub.Publish(proto.NoticeEvent(req.Text))
	h.log.Info().Str("by", c.GetString(ContextKeyUsername)).Int("delivered", delivered).Msg("announcement sent")
	c.JSON(http.StatusOK, AnnounceResponse{Delivered: delivered})
}
