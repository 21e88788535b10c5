// Package api holds the JSON wire types shared by the recochat client and the
// relay server: REST request/response bodies and realtime frames.
package api

import "time"

// Message is a stored chat message as returned by GET /chats/{id}/messages
// and carried by realtime events. Content is the encrypted envelope string.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	CreatedBy string    `json:"createdBy"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	CreatedBy string `json:"createdBy"`
}

// ChatKeyResponse is the body of GET /chats/{id}/keys: the conversation key
// sealed for the requesting user, base64-encoded.
type ChatKeyResponse struct {
	EncryptedKey string `json:"encryptedKey"`
}

// PublicKeyRequest is the body of POST /user/keys.
type PublicKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// RegisterResponse is returned by POST /users.
type RegisterResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// CreateChatRequest is the body of POST /chats. The creator is always added
// to Participants.
type CreateChatRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// CreateChatResponse is returned by POST /chats.
type CreateChatResponse struct {
	ID string `json:"id"`
}

// ChatSummary is one element of GET /chats.
type ChatSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Query parameters of GET /chats/{id}/messages.
const (
	PageParam  = "page"
	LimitParam = "limit"
)
