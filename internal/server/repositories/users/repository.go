package users

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	SetPublicKey(ctx context.Context, id string, publicKey []byte) error
}
