// Package services contains the key-handling services of the chat client:
// identity provisioning and per-conversation key exchange.
package services

import "errors"

// Error taxonomy of the encrypted chat core. Match with errors.Is.
var (
	// ErrKeyNotProvisioned: no identity private key on this device. The user
	// can recover by provisioning a new key pair.
	ErrKeyNotProvisioned = errors.New("identity key not provisioned on this device")

	// ErrKeyFetchFailed: the wrapped conversation key could not be fetched.
	// Transient; the caller may retry.
	ErrKeyFetchFailed = errors.New("conversation key fetch failed")

	// ErrKeyUnwrapFailed: the wrapped key does not open with the local
	// private key. Signals a key rotation or provisioning problem and must
	// not be retried in a loop.
	ErrKeyUnwrapFailed = errors.New("conversation key unwrap failed")

	// ErrDecryptionFailed: a single message could not be decrypted. Never
	// returned from page loads; the message is shown as a placeholder.
	ErrDecryptionFailed = errors.New("message decryption failed")
)

// IsBlocking reports whether err leaves the conversation unusable until the
// device's keys are fixed, as opposed to a transient failure.
func IsBlocking(err error) bool {
	return errors.Is(err, ErrKeyNotProvisioned) || errors.Is(err, ErrKeyUnwrapFailed)
}
