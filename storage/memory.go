package storage

import (
	"sync"
	"time"

	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
	"github.com/sirupsen/logrus"
)

// groupInfoEntry is the single latest GroupInfo snapshot held for a room.
type groupInfoEntry struct {
	epoch uint64
	bytes []byte
}

// MemoryStorage is an in-memory, mutex-guarded Storage implementation.
// It is the only reference implementation the protocol requires; a
// production deployment would swap in a durable store behind the same
// interface.
type MemoryStorage struct {
	mu         sync.RWMutex
	frames     map[[16]byte][]*wire.Frame
	mlsStates  map[[16]byte]*mls.GroupState
	rooms      map[[16]byte]RoomMetadata
	groupInfos map[[16]byte]groupInfoEntry
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	logrus.WithFields(logrus.Fields{
		"function": "NewMemoryStorage",
		"package":  "storage",
	}).Debug("creating in-memory storage")

	return &MemoryStorage{
		frames:     make(map[[16]byte][]*wire.Frame),
		mlsStates:  make(map[[16]byte]*mls.GroupState),
		rooms:      make(map[[16]byte]RoomMetadata),
		groupInfos: make(map[[16]byte]groupInfoEntry),
	}
}

func (s *MemoryStorage) StoreFrame(roomID [16]byte, logIndex uint64, frame *wire.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := uint64(len(s.frames[roomID]))
	if logIndex != expected {
		return &StorageError{Kind: ErrConflict, Expected: expected, Got: logIndex}
	}

	s.frames[roomID] = append(s.frames[roomID], frame)
	return nil
}

func (s *MemoryStorage) LatestLogIndex(roomID [16]byte) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.frames[roomID]
	if len(log) == 0 {
		return 0, false, nil
	}
	return uint64(len(log) - 1), true, nil
}

func (s *MemoryStorage) LoadFrames(roomID [16]byte, from uint64, limit int) ([]*wire.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.frames[roomID]
	if !ok {
		return nil, &StorageError{Kind: ErrNotFound, RoomID: roomID, LogIndex: from}
	}

	if from >= uint64(len(log)) {
		return []*wire.Frame{}, nil
	}

	end := from + uint64(limit)
	if end > uint64(len(log)) || limit < 0 {
		end = uint64(len(log))
	}

	out := make([]*wire.Frame, end-from)
	copy(out, log[from:end])
	return out, nil
}

func (s *MemoryStorage) StoreMlsState(roomID [16]byte, state *mls.GroupState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mlsStates[roomID] = state
	return nil
}

func (s *MemoryStorage) LoadMlsState(roomID [16]byte) (*mls.GroupState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.mlsStates[roomID], nil
}

func (s *MemoryStorage) CreateRoom(roomID [16]byte, creator uint64, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[roomID]; exists {
		return nil
	}
	s.rooms[roomID] = RoomMetadata{Creator: creator, CreatedAt: createdAt}
	return nil
}

func (s *MemoryStorage) LoadRoomMetadata(roomID [16]byte) (RoomMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metadata, ok := s.rooms[roomID]
	return metadata, ok, nil
}

func (s *MemoryStorage) ListRooms() ([][16]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([][16]byte, 0, len(s.rooms))
	for roomID := range s.rooms {
		out = append(out, roomID)
	}
	return out, nil
}

func (s *MemoryStorage) StoreGroupInfo(roomID [16]byte, epoch uint64, bytes []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groupInfos[roomID] = groupInfoEntry{epoch: epoch, bytes: append([]byte(nil), bytes...)}
	return nil
}

func (s *MemoryStorage) LoadGroupInfo(roomID [16]byte) (epoch uint64, bytes []byte, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.groupInfos[roomID]
	if !ok {
		return 0, nil, false, nil
	}
	return entry.epoch, entry.bytes, true, nil
}
