// Package keystore is the device-local custody of identity private keys.
//
// Each user id owns one record named "privateKey:{userId}" holding the
// base64-encoded private key. The store has its own table and is never used
// for unrelated cached data. It performs no network access.
package keystore

import (
	"context"
	"errors"
	"strings"
)

// KeyNamePrefix prefixes every record name.
const KeyNamePrefix = "privateKey:"

var (
	// ErrNotFound means no key pair was provisioned for the user on this
	// device. It is a provisioning state, not a transient failure: callers
	// must not retry.
	ErrNotFound = errors.New("private key not found")

	ErrInvalidUserID = errors.New("invalid user id")
)

// Store keeps one private key per user id.
type Store interface {
	// Store upserts the private key of userID, replacing any previous one.
	Store(ctx context.Context, userID string, privateKey []byte) error

	// Retrieve returns the private key of userID or ErrNotFound.
	Retrieve(ctx context.Context, userID string) ([]byte, error)

	// Delete removes the key of userID. Deleting a missing key is not an error.
	Delete(ctx context.Context, userID string) error
}

// KeyName returns the record name for userID.
func KeyName(userID string) string {
	return KeyNamePrefix + userID
}

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUserID
	}
	return nil
}
