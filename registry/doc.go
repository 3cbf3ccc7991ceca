// Package registry maintains bidirectional session↔room mappings for a
// server driver: which sessions are subscribed to a room (for
// broadcast) and which rooms a session is in (for cleanup on
// disconnect).
//
// Subscription is always explicit; there is no lazy room creation.
// Unregistering a session removes all of its subscriptions from both
// directions of the mapping.
package registry
