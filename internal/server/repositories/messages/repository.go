package messages

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, msg *models.Message) error
	// ListPage returns up to limit messages of chatID after skipping the
	// offset newest ones, oldest first.
	ListPage(ctx context.Context, chatID string, offset, limit int) ([]models.Message, error)
}
