package client

import (
	"context"

	"github.com/dmitrijs2005/recochat/internal/api"
)

// Client is the REST surface the chat core depends on.
type Client interface {
	Close() error

	// SetAccessToken replaces the bearer token sent with every request.
	SetAccessToken(token string)

	// Register asks the server for a new identity and access token.
	Register(ctx context.Context) (*api.RegisterResponse, error)

	// Ping checks that the server is reachable.
	Ping(ctx context.Context) error

	// GetChatKey returns the base64 conversation key sealed for the caller.
	GetChatKey(ctx context.Context, chatID string) (string, error)

	// GetMessages returns page (1-based, newest page first) of chatID's
	// history, oldest message first within the page.
	GetMessages(ctx context.Context, chatID string, page, limit int) ([]api.Message, error)

	// SendMessage submits an already encrypted message.
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*api.Message, error)

	// UploadPublicKey publishes the caller's base64 identity public key.
	UploadPublicKey(ctx context.Context, publicKey string) error

	// CreateChat creates a conversation with the given participants.
	CreateChat(ctx context.Context, name string, participants []string) (string, error)
}
