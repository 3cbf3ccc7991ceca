package sequencer

import (
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
	"github.com/sirupsen/logrus"
)

// roomSequencer is the per-room cached state.
type roomSequencer struct {
	nextLogIndex uint64
}

// Sequencer assigns monotonic log indices to frames, enforcing total
// ordering within each room. It caches next_log_index per room,
// lazily loading it from Storage the first time a room is seen.
type Sequencer struct {
	rooms map[[16]byte]*roomSequencer
}

// New creates an empty Sequencer.
func New() *Sequencer {
	return &Sequencer{rooms: make(map[[16]byte]*roomSequencer)}
}

// validateFrameStructure checks a frame's header for structural
// validity before it is sequenced. MLS membership/signature validation
// happens upstream (the room manager); this only guards against
// corrupted or adversarial headers.
func validateFrameStructure(frame *wire.Frame) error {
	if int(frame.Header.PayloadSize) != len(frame.Payload) {
		return &SequencerError{
			Kind:   ErrValidation,
			Detail: "payload size mismatch between header and body",
		}
	}

	var zero [16]byte
	if frame.Header.RoomID == zero {
		return &SequencerError{Kind: ErrValidation, Detail: "room_id is zero (uninitialized?)"}
	}

	if frame.Header.Epoch > mls.MaxEpoch {
		return &SequencerError{Kind: ErrValidation, Detail: "epoch exceeds MaxEpoch"}
	}

	return nil
}

// ProcessFrame assigns the next log index to frame and returns the
// actions the caller must execute, in order: AcceptFrame, StoreFrame,
// BroadcastToRoom.
//
// Precondition: frame has already passed MLS validation (membership,
// signature) upstream. ProcessFrame only assigns ordering.
func (s *Sequencer) ProcessFrame(frame *wire.Frame, store storage.Storage) ([]SequencerAction, error) {
	if err := validateFrameStructure(frame); err != nil {
		return nil, err
	}

	roomID := frame.Header.RoomID

	room, ok := s.rooms[roomID]
	if !ok {
		latest, found, err := store.LatestLogIndex(roomID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "ProcessFrame",
				"room_id":  roomID,
				"error":    err,
			}).Error("failed to load latest log index during room initialization")
			return nil, &SequencerError{Kind: ErrStorage, Detail: err.Error()}
		}

		nextLogIndex := uint64(0)
		if found {
			nextLogIndex = latest + 1
		}

		logrus.WithFields(logrus.Fields{
			"function":       "ProcessFrame",
			"room_id":        roomID,
			"next_log_index": nextLogIndex,
		}).Debug("initialized room state from storage")

		room = &roomSequencer{nextLogIndex: nextLogIndex}
		s.rooms[roomID] = room
	}

	logIndex := room.nextLogIndex
	if logIndex == ^uint64(0) {
		return nil, &SequencerError{Kind: ErrValidation, Detail: "log index overflow"}
	}
	room.nextLogIndex = logIndex + 1

	sequenced := &wire.Frame{Header: frame.Header, Payload: frame.Payload}
	sequenced.Header.LogIndex = logIndex

	return []SequencerAction{
		{Kind: AcceptFrame, RoomID: roomID, LogIndex: logIndex, Frame: sequenced},
		{Kind: StoreFrame, RoomID: roomID, LogIndex: logIndex, Frame: sequenced},
		{Kind: BroadcastToRoom, RoomID: roomID, Frame: sequenced},
	}, nil
}

// NextLogIndex returns the cached next log index for a room, for tests.
func (s *Sequencer) NextLogIndex(roomID [16]byte) (uint64, bool) {
	room, ok := s.rooms[roomID]
	if !ok {
		return 0, false
	}
	return room.nextLogIndex, true
}
