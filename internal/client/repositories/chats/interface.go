// Package chats keeps the local directory of conversations the user created
// or opened on this device, so they can be listed without a server call.
package chats

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/client/models"
)

type Repository interface {
	// Upsert records a chat. An empty name keeps the stored one.
	Upsert(ctx context.Context, chat models.Chat) error
	// Touch marks a chat as opened now, recording it if unknown.
	Touch(ctx context.Context, id string) error
	// List returns known chats, most recently opened first.
	List(ctx context.Context) ([]models.Chat, error)
}
