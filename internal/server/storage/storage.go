// Package storage is the persistence boundary of the relay services. The
// in-memory backend serves development and tests; the PostgreSQL backend
// wraps the repositories in transactions.
package storage

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/server/models"
)

// Storage persists users, chats with their members and messages.
//
// Lookups of missing rows return common.ErrorNotFound.
type Storage interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	SetPublicKey(ctx context.Context, userID string, publicKey []byte) error

	// CreateChat stores chat together with all of its members atomically.
	CreateChat(ctx context.Context, chat *models.Chat, members []models.Member) error
	GetMember(ctx context.Context, chatID, userID string) (*models.Member, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)

	AddMessage(ctx context.Context, msg *models.Message) error
	// ListMessages skips the offset newest messages of chatID and returns
	// up to limit of the following ones, oldest first.
	ListMessages(ctx context.Context, chatID string, offset, limit int) ([]models.Message, error)

	Close() error
}
