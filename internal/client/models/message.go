// Package models defines client-side view models of the chat core.
package models

import "time"

// Message is a decrypted chat message ready for display.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	CreatedBy string
	CreatedAt time.Time

	// Content is the plaintext, or cryptox.DecryptionFailedText when the
	// envelope could not be decrypted.
	Content string

	// DecryptFailed reports that Content is the failure placeholder.
	DecryptFailed bool
}
