package mls

import "testing"

func TestNewRoomIDIsUniqueAndNonZero(t *testing.T) {
	a := NewRoomID()
	b := NewRoomID()

	var zero RoomID
	if a == zero {
		t.Error("NewRoomID() returned the zero room id")
	}
	if a == b {
		t.Error("NewRoomID() returned the same id twice in a row")
	}
}

func TestGroupStateIsMember(t *testing.T) {
	state := &GroupState{Members: []uint64{100, 200, 300}}

	for _, id := range []uint64{100, 200, 300} {
		if !state.IsMember(id) {
			t.Errorf("IsMember(%d) = false, want true", id)
		}
	}
	if state.IsMember(400) {
		t.Error("IsMember(400) = true, want false")
	}
}

func TestGroupStateMemberCount(t *testing.T) {
	state := &GroupState{Members: []uint64{1, 2, 3, 4, 5}}
	if got := state.MemberCount(); got != 5 {
		t.Errorf("MemberCount() = %d, want 5", got)
	}
}

func TestGroupStateMemberKey(t *testing.T) {
	state := &GroupState{MemberKeys: map[uint64][32]byte{1: {0xaa}}}

	key, ok := state.MemberKey(1)
	if !ok {
		t.Fatal("MemberKey(1) ok = false, want true")
	}
	if key[0] != 0xaa {
		t.Errorf("key[0] = %x, want 0xaa", key[0])
	}

	if _, ok := state.MemberKey(2); ok {
		t.Error("MemberKey(2) ok = true, want false for absent member")
	}
}

func TestComputeStateHashOrderIndependent(t *testing.T) {
	roomID := testRoomID(0xaa)

	a := computeStateHash(roomID, 3, []uint64{1, 2, 3})
	b := computeStateHash(roomID, 3, []uint64{3, 1, 2})

	if a != b {
		t.Error("computeStateHash must be independent of member slice order")
	}
}

func TestComputeStateHashVariesByEpoch(t *testing.T) {
	roomID := testRoomID(0xbb)

	a := computeStateHash(roomID, 1, []uint64{1, 2})
	b := computeStateHash(roomID, 2, []uint64{1, 2})

	if a == b {
		t.Error("computeStateHash must vary by epoch")
	}
}
