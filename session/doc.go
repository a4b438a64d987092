// Package session houses concrete implementations of core.ChatStore, the
// canonical per-chat message log of a world. Agent memories are replicated
// separately; the chat log records each dispatched message exactly once in
// dispatch order.
package session
