package session

import "errors"

var (
	// ErrStaleConversation: the conversation was switched while the
	// operation was in flight; its result was dropped.
	ErrStaleConversation = errors.New("conversation switched during load")

	// ErrFetchFailed: a history page could not be fetched. Retryable.
	ErrFetchFailed = errors.New("message history fetch failed")

	ErrLoadInProgress = errors.New("a page load is already in progress")
	ErrNoConversation = errors.New("no conversation open")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrInvalidPage    = errors.New("page must be >= 1")
	ErrSessionClosed  = errors.New("session closed")
)
