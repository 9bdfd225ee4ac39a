package http

import (
	"time"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// MessageResponse is a stored message as returned by the admin API.
type MessageResponse struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessagesResponse wraps a page of messages, oldest first.
type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

func messageFromStore(m *store.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Author:    m.Author,
		Text:      m.Text,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func messagesFromStore(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageFromStore(m))
	}
	return out
}
