// Package cryptox implements the cryptography of recochat: AES-GCM message
// envelopes and NaCl sealed-box wrapping of per-conversation keys.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/recochat/internal/common"
)

const (
	// IVSize is the AES-GCM nonce length carried in every envelope.
	IVSize = 12
	// TagSize is the AES-GCM authentication tag length.
	TagSize = 16
	// KeySize is the length of a conversation key (AES-256).
	KeySize = 32
)

// DecryptionFailedText replaces the content of a message that could not be
// decrypted. It is shown to the user instead of an error.
const DecryptionFailedText = "[unable to decrypt message]"

var (
	ErrMalformedEnvelope = errors.New("malformed message envelope")
	ErrAuthentication    = errors.New("message authentication failed")
	ErrInvalidKey        = errors.New("invalid conversation key")
)

// b64 is padded standard base64 that rejects non-canonical input.
var b64 = base64.StdEncoding.Strict()

// Envelope is the wire form of one encrypted message body. The JSON field
// names are shared with every other client of the chat service and must not
// change.
type Envelope struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
}

// wireEnvelope detects absent fields; an empty "encrypted" is legal for an
// empty plaintext, a missing one is not.
type wireEnvelope struct {
	Encrypted *string `json:"encrypted"`
	IV        *string `json:"iv"`
	AuthTag   *string `json:"authTag"`
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return cipher.NewGCM(block)
}

// EncryptMessage seals plaintext under key with a fresh random IV and returns
// the JSON envelope string {"encrypted","iv","authTag"}.
func EncryptMessage(plaintext string, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := common.GenerateRandByteArray(IVSize)
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	split := len(sealed) - TagSize

	b, err := json.Marshal(Envelope{
		Encrypted: b64.EncodeToString(sealed[:split]),
		IV:        b64.EncodeToString(iv),
		AuthTag:   b64.EncodeToString(sealed[split:]),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OpenMessage parses and decrypts an envelope produced by EncryptMessage.
// Parse problems are reported as ErrMalformedEnvelope, tampering or a wrong
// key as ErrAuthentication.
func OpenMessage(envelope string, key []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	env, err := parseEnvelope(envelope)
	if err != nil {
		return "", err
	}

	ciphertext, err := b64.DecodeString(*env.Encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: encrypted: %v", ErrMalformedEnvelope, err)
	}
	iv, err := b64.DecodeString(*env.IV)
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}
	tag, err := b64.DecodeString(*env.AuthTag)
	if err != nil {
		return "", fmt.Errorf("%w: authTag: %v", ErrMalformedEnvelope, err)
	}
	if len(iv) != IVSize {
		return "", fmt.Errorf("%w: iv is %d bytes", ErrMalformedEnvelope, len(iv))
	}
	if len(tag) != TagSize {
		return "", fmt.Errorf("%w: authTag is %d bytes", ErrMalformedEnvelope, len(tag))
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}

// DecryptMessage is OpenMessage for display: any failure yields
// DecryptionFailedText instead of an error.
func DecryptMessage(envelope string, key []byte) string {
	plaintext, err := OpenMessage(envelope, key)
	if err != nil {
		return DecryptionFailedText
	}
	return plaintext
}

func parseEnvelope(s string) (*wireEnvelope, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var env wireEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedEnvelope)
	}
	if env.Encrypted == nil || env.IV == nil || env.AuthTag == nil {
		return nil, fmt.Errorf("%w: missing field", ErrMalformedEnvelope)
	}
	return &env, nil
}
