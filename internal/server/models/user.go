// Package models defines server-side data models persisted by the relay.
package models

import "time"

// User is an identity issued by the relay. PublicKey stays nil until the
// device uploads its identity key.
type User struct {
	ID        string
	PublicKey []byte
	CreatedAt time.Time
}
