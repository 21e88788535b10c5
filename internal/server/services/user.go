// Package services contains the relay's business logic. This file implements
// UserService, which issues identities with their access tokens and stores
// uploaded identity public keys.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/recochat/internal/common"
	"github.com/dmitrijs2005/recochat/internal/cryptox"
	"github.com/dmitrijs2005/recochat/internal/server/auth"
	"github.com/dmitrijs2005/recochat/internal/server/config"
	"github.com/dmitrijs2005/recochat/internal/server/models"
	"github.com/dmitrijs2005/recochat/internal/server/storage"
	"github.com/google/uuid"
)

// Registration is the result of UserService.Register.
type Registration struct {
	UserID      string
	AccessToken string
}

type UserService struct {
	store                       storage.Storage
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	newID                       func() string
}

func NewUserService(store storage.Storage, cfg *config.Config) *UserService {
	return &UserService{
		store:                       store,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		newID:                       uuid.NewString,
	}
}

// Register creates a new identity without a public key and returns it with
// a freshly signed access token.
func (s *UserService) Register(ctx context.Context) (*Registration, error) {
	user := &models.User{ID: s.newID()}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &Registration{UserID: user.ID, AccessToken: token}, nil
}

// Authenticate resolves an access token to its user id. Every failure is
// reported as common.ErrorUnauthorized.
func (s *UserService) Authenticate(token string) (string, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return userID, nil
}

// UploadPublicKey replaces userID's identity public key. Conversation keys
// already sealed to the previous key are not re-wrapped.
func (s *UserService) UploadPublicKey(ctx context.Context, userID string, publicKey []byte) error {
	if len(publicKey) != cryptox.IdentityKeySize {
		return fmt.Errorf("%w: public key must be %d bytes, got %d",
			common.ErrorValidation, cryptox.IdentityKeySize, len(publicKey))
	}

	if err := s.store.SetPublicKey(ctx, userID, publicKey); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: unknown user", common.ErrorUnauthorized)
		}
		return fmt.Errorf("error storing public key: %w", err)
	}
	return nil
}
