package sequencer

import "github.com/opd-ai/kalandra/wire"

// SequencerActionKind discriminates the Action sum type.
type SequencerActionKind int

const (
	AcceptFrame SequencerActionKind = iota
	StoreFrame
	BroadcastToRoom
)

// SequencerAction is one step the caller must execute after ProcessFrame
// returns. Actions are returned in the order they should be applied.
//
// Structural validation failures are reported as a SequencerError, not
// as an action: there is no RejectFrame kind here.
type SequencerAction struct {
	Kind SequencerActionKind

	RoomID [16]byte

	// AcceptFrame, StoreFrame
	LogIndex uint64

	// AcceptFrame, StoreFrame, BroadcastToRoom
	Frame *wire.Frame
}
