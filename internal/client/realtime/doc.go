// Package realtime delivers server-pushed chat events to subscribers.
//
// A Dispatcher keeps the registry of per-chat subscriptions and fans events
// out to them. Conn owns one websocket connection to the relay, feeds the
// events it reads into its Dispatcher and tells the server which chats to
// join or leave as subscriptions come and go. Both satisfy Feed.
package realtime
