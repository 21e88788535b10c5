package chats

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, chat *models.Chat) error
	AddMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, chatID, userID string) (*models.Member, error)
	ListForUser(ctx context.Context, userID string) ([]models.Chat, error)
}
