package room

import (
	"time"

	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/sequencer"
	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
)

// Metadata describes a room (an extension point for future
// authorization: admins, roles, permissions).
type Metadata struct {
	Creator   uint64
	CreatedAt time.Time
}

// Manager orchestrates MLS validation and frame sequencing per room.
// Like Sequencer, it caches per-room state (here, the lightweight MLS
// GroupState) lazily loaded from Storage the first time a room is
// touched in a session.
type Manager struct {
	sequencer *sequencer.Sequencer
	metadata  map[[16]byte]Metadata
	states    map[[16]byte]*mls.GroupState
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		sequencer: sequencer.New(),
		metadata:  make(map[[16]byte]Metadata),
		states:    make(map[[16]byte]*mls.GroupState),
	}
}

// HasRoom reports whether roomID has been created.
func (m *Manager) HasRoom(roomID [16]byte) bool {
	_, ok := m.metadata[roomID]
	return ok
}

// CreateRoom registers a new room, persisting its metadata via store so
// it survives a restart. Returns RoomAlreadyExists if roomID is already
// known locally.
func (m *Manager) CreateRoom(roomID [16]byte, creator uint64, now time.Time, store storage.Storage) error {
	if m.HasRoom(roomID) {
		return &RoomError{Kind: ErrRoomAlreadyExists, RoomID: roomID}
	}
	if err := store.CreateRoom(roomID, creator, now); err != nil {
		return &RoomError{Kind: ErrStorage, RoomID: roomID, Detail: err.Error()}
	}
	m.metadata[roomID] = Metadata{Creator: creator, CreatedAt: now}
	return nil
}

// GroupState returns the cached MLS group state for roomID, lazily
// loading it from store on first access. A room with no MLS state yet
// (no Commit or ExternalCommit has been sequenced for it) returns nil.
func (m *Manager) GroupState(roomID [16]byte, store storage.Storage) (*mls.GroupState, error) {
	if state, ok := m.states[roomID]; ok {
		return state, nil
	}

	state, err := store.LoadMlsState(roomID)
	if err != nil {
		return nil, &RoomError{Kind: ErrStorage, RoomID: roomID, Detail: err.Error()}
	}
	if state != nil {
		m.states[roomID] = state
	}
	return state, nil
}

// UpdateGroupState replaces the cached MLS group state for roomID,
// returning the PersistMlsState action the caller must execute. Called
// by the server driver once it has merged a Commit and knows the new
// group state — RoomManager itself never interprets MLS actions.
func (m *Manager) UpdateGroupState(roomID [16]byte, state *mls.GroupState) Action {
	m.states[roomID] = state
	return Action{Kind: ActionPersistMlsState, RoomID: roomID, State: state}
}

// ProcessFrame validates frame against the room's current MLS state,
// then sequences it, returning the actions the caller must execute in
// order.
func (m *Manager) ProcessFrame(frame *wire.Frame, store storage.Storage) ([]Action, error) {
	roomID := frame.Header.RoomID
	if !m.HasRoom(roomID) {
		return nil, &RoomError{Kind: ErrRoomNotFound, RoomID: roomID}
	}

	// GroupInfo is stored directly, never sequenced or broadcast: it is
	// a session-scoped publish, not a room-ordered frame.
	if frame.Header.Opcode == wire.OpcodeGroupInfo {
		return []Action{{
			Kind:   ActionPersistGroupInfo,
			RoomID: roomID,
			Epoch:  frame.Header.Epoch,
			Bytes:  frame.Payload,
		}}, nil
	}

	state, err := m.GroupState(roomID, store)
	if err != nil {
		return nil, err
	}

	var result ValidationResult
	if state == nil {
		result = ValidateFrameNoState(frame)
	} else {
		result = ValidateFrame(frame, state.Epoch, state)
	}

	if !result.Accepted {
		return []Action{{
			Kind:     ActionReject,
			SenderID: frame.Header.SenderID,
			Reason:   result.Reason,
		}}, nil
	}

	seqActions, err := m.sequencer.ProcessFrame(frame, store)
	if err != nil {
		return nil, &RoomError{Kind: ErrSequencing, RoomID: roomID, Detail: err.Error()}
	}

	actions := make([]Action, 0, len(seqActions)+1)
	for _, a := range seqActions {
		switch a.Kind {
		case sequencer.StoreFrame:
			actions = append(actions, Action{
				Kind:     ActionPersistFrame,
				RoomID:   a.RoomID,
				LogIndex: a.LogIndex,
				Frame:    a.Frame,
			})
		case sequencer.BroadcastToRoom:
			actions = append(actions, Action{
				Kind:   ActionBroadcast,
				RoomID: a.RoomID,
				Frame:  a.Frame,
				// AppMessage (and other ordinary ordered frames) are
				// delivered locally by the sender already; Commit and
				// ExternalCommit must echo back to their own sender,
				// since that echo is how the committer learns the
				// sequencer accepted it and merges its pending commit.
				ExcludeSender: frame.Header.Opcode != wire.OpcodeCommit && frame.Header.Opcode != wire.OpcodeExternalCommit,
			})
		}
	}

	if newState, ok := deriveGroupState(frame, state); ok {
		actions = append(actions, m.UpdateGroupState(roomID, newState))
	}

	return actions, nil
}

// deriveGroupState computes the room's next cached MLS view once a
// Commit/ExternalCommit frame has passed validation and been
// sequenced, so the server's own validation state advances alongside
// the group without waiting for any member to report it back.
func deriveGroupState(frame *wire.Frame, current *mls.GroupState) (*mls.GroupState, bool) {
	roomID := mls.RoomID(frame.Header.RoomID)

	switch frame.Header.Opcode {
	case wire.OpcodeCommit:
		epoch, members, err := mls.DecodeCommitBody(frame.Payload)
		if err != nil {
			return nil, false
		}
		return &mls.GroupState{
			RoomID:     roomID,
			Epoch:      epoch,
			StateHash:  mls.ComputeStateHash(roomID, epoch, members),
			Members:    members,
			MemberKeys: map[uint64][32]byte{},
		}, true

	case wire.OpcodeExternalCommit:
		members := []uint64{}
		if current != nil {
			members = append(members, current.Members...)
		}
		joinerID := frame.Header.SenderID
		alreadyMember := false
		for _, id := range members {
			if id == joinerID {
				alreadyMember = true
				break
			}
		}
		if !alreadyMember {
			members = append(members, joinerID)
		}
		epoch := frame.Header.Epoch
		return &mls.GroupState{
			RoomID:     roomID,
			Epoch:      epoch,
			StateHash:  mls.ComputeStateHash(roomID, epoch, members),
			Members:    members,
			MemberKeys: map[uint64][32]byte{},
		}, true

	default:
		return nil, false
	}
}
