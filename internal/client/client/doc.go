// Package client is the client side of the recochat REST contract.
//
// # Overview
//
// Client is the transport-agnostic contract the rest of the client core uses
// to talk to the chat server: fetch a wrapped conversation key, fetch a page
// of encrypted history, submit an encrypted message and upload the identity
// public key. HTTPClient implements it over JSON/HTTP.
//
// # Error Handling
//
// Transport conditions are mapped to sentinel errors that callers match with
// errors.Is: ErrUnavailable (network failure or 5xx, retryable),
// ErrUnauthorized (401), ErrForbidden (403), ErrNotFound (404) and
// ErrBadRequest (any other 4xx). Context cancellation is returned unchanged.
//
// # Concurrency
//
// HTTPClient is safe for concurrent use.
package client
