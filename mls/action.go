package mls

import "github.com/opd-ai/kalandra/wire"

// ActionKind enumerates the effects a ClientGroup operation can request
// from its caller. ClientGroup performs no I/O itself; the caller (a
// client driver) executes these.
type ActionKind int

const (
	// ActionSendCommit requests the frame be sent to the sequencer.
	ActionSendCommit ActionKind = iota
	// ActionSendWelcome requests the frame be delivered to a specific
	// new member out of band (not through the sequencer's broadcast).
	ActionSendWelcome
	// ActionSendMessage requests an application-message frame be sent
	// to the sequencer.
	ActionSendMessage
	// ActionDeliverMessage requests decrypted plaintext be handed to
	// the application.
	ActionDeliverMessage
	// ActionRemoveGroup signals this client has left or been removed
	// and local group state should be discarded.
	ActionRemoveGroup
	// ActionPublishGroupInfo requests the current (post-commit) group
	// view be published to the server as its latest GroupInfo snapshot,
	// for future external joiners to fetch.
	ActionPublishGroupInfo
	// ActionLog requests a diagnostic log line.
	ActionLog
)

// Action is a single effect emitted by a ClientGroup state transition.
type Action struct {
	Kind ActionKind

	// SendCommit / SendWelcome / SendMessage
	Frame *wire.Frame

	// SendWelcome
	Recipient uint64

	// DeliverMessage
	Sender    uint64
	Plaintext []byte

	// RemoveGroup
	Reason string

	// PublishGroupInfo
	RoomID RoomID
	Epoch  uint64
	Bytes  []byte

	// Log
	Message string
}

func logAction(message string) Action {
	return Action{Kind: ActionLog, Message: message}
}
