// Package cli provides the interactive recochat command-line client.
//
// It wires configuration, the local database, the relay API client, the
// realtime connection and the conversation session, and runs a REPL:
//
//	register [name]              create an identity on the relay
//	keygen                       generate and upload a new key pair
//	chat create <name> <user..>  create a conversation
//	chats                        list conversations known to this device
//	open <chatId>                open a conversation and show the newest page
//	more                         load the next older page
//	send <text>                  encrypt and send a message
//	show                         print the loaded messages
//	status                       show identity, connection and session state
//	exit | quit                  leave the program
//
// New messages of the open conversation are printed as they arrive.
package cli
