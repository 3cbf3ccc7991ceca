package serverdriver

import (
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// ActionKind discriminates the Action sum type Driver returns.
type ActionKind int

const (
	// ActionSend delivers Frame to exactly one session.
	ActionSend ActionKind = iota
	// ActionPersistFrame asks the caller to store Frame at LogIndex in RoomID.
	ActionPersistFrame
	// ActionPersistMlsState asks the caller to persist updated MLS state.
	ActionPersistMlsState
	// ActionPersistGroupInfo asks the caller to store the latest GroupInfo
	// snapshot for a room, for future external joiners to fetch.
	ActionPersistGroupInfo
	// ActionCloseSession asks the caller to close a session's connection.
	ActionCloseSession
	// ActionLog is an informational action with no side effect.
	ActionLog
)

// Action is one step the caller must execute after Driver handles an
// event, in the order returned.
type Action struct {
	Kind ActionKind

	// ActionSend, ActionCloseSession
	SessionID uint64

	// ActionSend
	Frame *wire.Frame

	// ActionPersistFrame
	RoomID   [16]byte
	LogIndex uint64

	// ActionPersistMlsState
	State *mls.GroupState

	// ActionPersistGroupInfo
	Epoch uint64
	Bytes []byte

	// ActionLog, ActionCloseSession
	Message string
}

func logAction(message string) Action {
	return Action{Kind: ActionLog, Message: message}
}
