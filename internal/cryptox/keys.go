package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/common"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// IdentityKeySize is the length of both halves of an identity key pair.
const IdentityKeySize = 32

var (
	ErrInvalidIdentityKey = errors.New("invalid identity key")
	ErrUnwrap             = errors.New("conversation key unwrap failed")
)

// Identity is a user's X25519 key pair. The public half is uploaded to the
// server so conversation keys can be wrapped for the user; the private half
// never leaves the device.
type Identity struct {
	PublicKey  []byte
	PrivateKey []byte
}

// GenerateIdentity creates a fresh identity key pair.
func GenerateIdentity() (*Identity, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	return &Identity{PublicKey: pub[:], PrivateKey: priv[:]}, nil
}

// PublicKeyFromPrivate recomputes the public key for a stored private key.
func PublicKeyFromPrivate(private []byte) ([]byte, error) {
	if len(private) != IdentityKeySize {
		return nil, ErrInvalidIdentityKey
	}
	pub, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityKey, err)
	}
	return pub, nil
}

// NewConversationKey returns a random AES-256 key for a new conversation.
func NewConversationKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

// WrapKey seals a conversation key for the owner of recipientPublic using an
// anonymous sealed box.
func WrapKey(conversationKey, recipientPublic []byte) ([]byte, error) {
	if len(recipientPublic) != IdentityKeySize {
		return nil, ErrInvalidIdentityKey
	}
	var pub [IdentityKeySize]byte
	copy(pub[:], recipientPublic)

	wrapped, err := box.SealAnonymous(nil, conversationKey, &pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("wrap key: %w", err)
	}
	return wrapped, nil
}

// UnwrapKey opens a sealed conversation key with the recipient's private key.
// A box addressed to another key pair, or a result of the wrong length,
// yields ErrUnwrap.
func UnwrapKey(wrapped, private []byte) ([]byte, error) {
	pubBytes, err := PublicKeyFromPrivate(private)
	if err != nil {
		return nil, err
	}

	var pub, priv [IdentityKeySize]byte
	copy(pub[:], pubBytes)
	copy(priv[:], private)
	defer common.WipeByteArray(priv[:])

	key, ok := box.OpenAnonymous(nil, wrapped, &pub, &priv)
	if !ok {
		return nil, ErrUnwrap
	}
	if len(key) != KeySize {
		common.WipeByteArray(key)
		return nil, fmt.Errorf("%w: key is %d bytes", ErrUnwrap, len(key))
	}
	return key, nil
}

// EncodeKey renders key material as padded standard base64.
func EncodeKey(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeKey parses base64 key material produced by EncodeKey.
func DecodeKey(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	return b, nil
}
