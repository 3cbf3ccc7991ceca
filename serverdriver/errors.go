package serverdriver

import "errors"

// ErrSessionNotRegistered is returned when an event references a
// session that was never registered (or was already unregistered).
var ErrSessionNotRegistered = errors.New("serverdriver: session not registered")

// ErrUnauthenticated is returned when a session attempts an operation
// that requires a completed Hello handshake.
var ErrUnauthenticated = errors.New("serverdriver: session not authenticated")
