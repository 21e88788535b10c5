package models

import "time"

// Chat is a conversation this device knows about.
type Chat struct {
	ID           string
	Name         string
	LastOpenedAt *time.Time
}
