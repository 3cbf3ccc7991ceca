package clientdriver

import (
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// ActionKind discriminates the Action sum type Driver.HandleEvent returns.
type ActionKind int

const (
	// ActionSend requests Frame be sent to the server.
	ActionSend ActionKind = iota
	// ActionDeliverMessage hands decrypted plaintext to the application.
	ActionDeliverMessage
	// ActionRequestSync asks the caller to fetch missing frames for a
	// room and feed them back as FrameReceived events.
	ActionRequestSync
	// ActionPersistRoom asks the caller to persist a room snapshot.
	ActionPersistRoom
	// ActionRoomRemoved signals a room's local state was discarded.
	ActionRoomRemoved
	// ActionRoomJoined signals a room was successfully joined.
	ActionRoomJoined
	// ActionKeyPackagePublished signals a key package was sent.
	ActionKeyPackagePublished
	// ActionKeyPackageNeeded signals a key package must be fetched for
	// a user before they can be added to a room.
	ActionKeyPackageNeeded
	// ActionLog requests a diagnostic log line.
	ActionLog
)

// RoomSnapshot is a serializable view of a room's state for persistence.
type RoomSnapshot struct {
	RoomID   mls.RoomID
	Epoch    uint64
	MlsState *mls.GroupState
	MemberID uint64
}

// Action is a single effect the caller must execute after HandleEvent
// returns, in order.
type Action struct {
	Kind ActionKind

	// Send
	Frame *wire.Frame

	// DeliverMessage
	RoomID    mls.RoomID
	SenderID  uint64
	Plaintext []byte
	LogIndex  uint64

	// RequestSync
	FromEpoch uint64
	ToEpoch   uint64

	// PersistRoom
	Snapshot RoomSnapshot

	// RoomRemoved
	Reason string

	// Log
	Message string

	// KeyPackageNeeded
	UserID uint64
}

func logAction(message string) Action {
	return Action{Kind: ActionLog, Message: message}
}
