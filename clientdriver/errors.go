package clientdriver

import "errors"

// ErrRoomNotFound is returned when an event references a room the
// driver has no local state for.
var ErrRoomNotFound = errors.New("clientdriver: room not found")

// ErrRoomAlreadyExists is returned by CreateRoom/JoinRoom when the
// driver already holds state for that room id.
var ErrRoomAlreadyExists = errors.New("clientdriver: room already exists")

// ErrNoSenderKeyStore is returned when a message must be encrypted or
// decrypted but the room has no sender-key store yet (no MLS epoch has
// been established).
var ErrNoSenderKeyStore = errors.New("clientdriver: room has no sender key store")
