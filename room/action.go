package room

import (
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// ActionKind discriminates the Action sum type RoomManager returns.
type ActionKind int

const (
	ActionBroadcast ActionKind = iota
	ActionPersistFrame
	ActionPersistMlsState
	ActionPersistGroupInfo
	ActionReject
)

// Action is one step the caller must execute after RoomManager
// processes a frame.
type Action struct {
	Kind ActionKind

	// Broadcast, PersistFrame
	RoomID [16]byte
	Frame  *wire.Frame

	// Broadcast
	ExcludeSender bool

	// PersistFrame
	LogIndex uint64

	// PersistMlsState
	State *mls.GroupState

	// PersistGroupInfo
	Epoch uint64
	Bytes []byte

	// Reject
	SenderID uint64
	Reason   string
}
