package models

import (
	"time"

	"github.com/dmitrijs2005/recochat/internal/api"
)

// Message is a stored chat message. Content is the opaque encrypted
// envelope; Seq is the server-assigned insertion order within the relay.
type Message struct {
	Seq       int64
	ID        string
	ChatID    string
	SenderID  string
	CreatedBy string
	Content   string
	CreatedAt time.Time
}

// API converts m to its wire form.
func (m Message) API() api.Message {
	return api.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		CreatedBy: m.CreatedBy,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
