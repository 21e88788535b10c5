package models

import "time"

type Chat struct {
	ID        string
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// Member binds a user to a chat. EncryptedKey is the conversation key
// sealed to the member's public key at the time the chat was created.
type Member struct {
	ChatID       string
	UserID       string
	EncryptedKey []byte
}
