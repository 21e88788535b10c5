// Package session holds the state of the conversation currently on screen:
// the decrypted, ordered message list, pagination, and live updates.
//
// Lifecycle:
//
//	Idle -> LoadingFirstPage -> Ready <-> LoadingMorePages
//
// Open switches conversations and always returns to Idle. Results of loads
// started before a switch are discarded with ErrStaleConversation.
package session
