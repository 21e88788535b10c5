package common

import (
	"crypto/rand"
	"encoding/hex"
)

// BearerPrefix is the scheme prefix of the Authorization header carrying
// the access token.
const BearerPrefix = "Bearer "

// GenerateRandByteArray returns size bytes read from crypto/rand.
// It panics if the system randomness source fails, which leaves the process
// unable to produce keys or nonces anyway.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// MakeRandHexString generates size random bytes and returns them hex-encoded,
// so the resulting string is twice as long as size.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. Used to drop key material from
// memory once it is no longer needed. A nil slice is ignored.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
