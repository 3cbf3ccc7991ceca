package storage

import (
	"time"

	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// RoomMetadata describes a room's origin, independent of its MLS
// group state or frame log.
type RoomMetadata struct {
	Creator   uint64
	CreatedAt time.Time
}

// Storage abstracts persistence of frames, MLS group state, room
// metadata, and GroupInfo snapshots. Implementations must be safe for
// concurrent use.
type Storage interface {
	// StoreFrame persists frame at logIndex in room's log. logIndex must
	// equal the current length of the room's log; otherwise a Conflict
	// error is returned, signalling a gap in the sequence.
	StoreFrame(roomID [16]byte, logIndex uint64, frame *wire.Frame) error

	// LatestLogIndex returns the highest log index stored for roomID.
	// ok is false if the room has no frames yet.
	LatestLogIndex(roomID [16]byte) (index uint64, ok bool, err error)

	// LoadFrames returns up to limit frames starting at from. Returns
	// NotFound if the room doesn't exist.
	LoadFrames(roomID [16]byte, from uint64, limit int) ([]*wire.Frame, error)

	// StoreMlsState overwrites the stored MLS group state for roomID.
	StoreMlsState(roomID [16]byte, state *mls.GroupState) error

	// LoadMlsState returns the stored MLS group state for roomID, or nil
	// if none exists.
	LoadMlsState(roomID [16]byte) (*mls.GroupState, error)

	// CreateRoom records roomID's metadata. Idempotent: calling it again
	// for a room that already exists leaves the stored metadata
	// untouched and returns no error.
	CreateRoom(roomID [16]byte, creator uint64, createdAt time.Time) error

	// LoadRoomMetadata returns the stored metadata for roomID. ok is
	// false if the room doesn't exist.
	LoadRoomMetadata(roomID [16]byte) (metadata RoomMetadata, ok bool, err error)

	// ListRooms returns every known room id. Implementations must serve
	// this from a dedicated rooms index, not by scanning frames, so its
	// cost is O(rooms) rather than O(frames).
	ListRooms() ([][16]byte, error)

	// StoreGroupInfo overwrites the single latest GroupInfo snapshot
	// held for roomID.
	StoreGroupInfo(roomID [16]byte, epoch uint64, bytes []byte) error

	// LoadGroupInfo returns the latest stored GroupInfo snapshot for
	// roomID. ok is false if none has been published yet.
	LoadGroupInfo(roomID [16]byte) (epoch uint64, bytes []byte, ok bool, err error)
}
