package mls

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"github.com/google/uuid"
)

// MaxEpoch bounds the epoch field accepted from an untrusted frame.
// It is far above any epoch a real group will reach; its purpose is to
// reject corrupted or adversarial headers before they reach the
// sequencer's per-room cache.
const MaxEpoch uint64 = 1 << 48

// RoomID is the 128-bit room identifier shared with the wire layer.
type RoomID [16]byte

// NewRoomID generates a fresh, collision-resistant room identifier for
// an application creating a brand new room. It draws from the system's
// random source rather than an Environment, so it is only appropriate
// for production call sites; deterministic simulation tests construct
// their RoomIDs directly instead.
func NewRoomID() RoomID {
	return RoomID(uuid.New())
}

// MemberID identifies a client within a group.
type MemberID = uint64

// GroupState is the lightweight, serializable view of a ClientGroup used
// for storage and for validation by components (the room manager) that
// don't need the full handshake machinery.
//
// Heavy cryptographic material (the opaque epoch secret) is stored
// alongside the lightweight fields so the state can be persisted as a
// single unit; components that only validate membership and signatures
// never need to touch it.
type GroupState struct {
	RoomID RoomID

	// Epoch is the current group epoch. Monotonically increasing.
	Epoch uint64

	// StateHash lets members cheaply confirm convergence on the same
	// membership view without comparing full member lists.
	StateHash [32]byte

	// Members is the set of member IDs currently in the group, in the
	// order they were recorded; StateHash is computed over a sorted copy.
	Members []uint64

	// MemberKeys maps member ID to its Ed25519 signing public key, used
	// to verify frame header signatures.
	MemberKeys map[uint64][32]byte

	// EpochSecret is the opaque per-epoch secret from which sender-key
	// seeds are derived. All zero in states built without it, such as
	// the ones the room manager derives from sequenced commits.
	EpochSecret [32]byte
}

// IsMember reports whether memberID currently belongs to the group.
func (s *GroupState) IsMember(memberID uint64) bool {
	for _, m := range s.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

// MemberCount returns the number of members in the group.
func (s *GroupState) MemberCount() int {
	return len(s.Members)
}

// MemberKey returns the stored Ed25519 public key for memberID, if any.
func (s *GroupState) MemberKey(memberID uint64) (key [32]byte, ok bool) {
	key, ok = s.MemberKeys[memberID]
	return key, ok
}

// ComputeStateHash derives a deterministic hash over (roomID, epoch,
// sorted members) so that members who converge on the same membership
// view can cheaply confirm agreement. Exported so the room manager can
// compute the same hash for the cached GroupState it derives from a
// Commit/ExternalCommit frame's plaintext membership body.
func ComputeStateHash(roomID RoomID, epoch uint64, members []uint64) [32]byte {
	return computeStateHash(roomID, epoch, members)
}

// computeStateHash derives a deterministic hash over (roomID, epoch,
// sorted members) so that members who converge on the same membership
// view can cheaply confirm agreement.
func computeStateHash(roomID RoomID, epoch uint64, members []uint64) [32]byte {
	sorted := append([]uint64(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := sha256.New()
	h.Write(roomID[:])

	var epochBuf [8]byte
	binary.BigEndian.PutUint64(epochBuf[:], epoch)
	h.Write(epochBuf[:])

	for _, m := range sorted {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], m)
		h.Write(buf[:])
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
