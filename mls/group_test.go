package mls

import (
	"bytes"
	"crypto/rand"
	"testing"
	"time"

	"github.com/opd-ai/kalandra/crypto"
	"github.com/opd-ai/kalandra/wire"
)

func deriveTestStaticPublic(priv [32]byte) ([32]byte, error) {
	kp, err := crypto.FromSecretKey(priv)
	if err != nil {
		return [32]byte{}, err
	}
	return kp.Public, nil
}

func testRoomID(fill byte) RoomID {
	var id RoomID
	for i := range id {
		id[i] = fill
	}
	return id
}

func TestNewClientGroupStartsAtEpochZero(t *testing.T) {
	now := time.Now()
	group, actions, err := NewClientGroup(testRoomID(0x01), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	if group.Epoch() != 0 {
		t.Errorf("Epoch() = %d, want 0", group.Epoch())
	}
	if group.MemberID() != 1 {
		t.Errorf("MemberID() = %d, want 1", group.MemberID())
	}
	if !group.IsMember(1) {
		t.Error("creator must be a member")
	}
	if group.HasPendingCommit() {
		t.Error("new group must not have a pending commit")
	}
	if len(actions) != 2 || actions[0].Kind != ActionLog || actions[1].Kind != ActionPublishGroupInfo {
		t.Errorf("actions = %+v, want Log then PublishGroupInfo", actions)
	}
}

func TestCommitTimeoutDetection(t *testing.T) {
	now := time.Now()
	group, _, err := NewClientGroup(testRoomID(0x02), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	if group.IsCommitTimeout(now, 30*time.Second) {
		t.Error("no pending commit must never report timeout")
	}

	joinerPriv := [32]byte{9, 9, 9}
	joinerKey, err := deriveTestStaticPublic(joinerPriv)
	if err != nil {
		t.Fatalf("deriving test static public key: %v", err)
	}

	if _, err := group.AddMembers(map[uint64][32]byte{2: joinerKey}, now); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}
	if !group.HasPendingCommit() {
		t.Fatal("AddMembers must leave a pending commit")
	}

	if group.IsCommitTimeout(now, 30*time.Second) {
		t.Error("must not be timed out immediately")
	}

	future := now.Add(31 * time.Second)
	if !group.IsCommitTimeout(future, 30*time.Second) {
		t.Error("must be timed out after the timeout duration elapses")
	}
}

func TestAddMembersThenMergeAdvancesEpoch(t *testing.T) {
	now := time.Now()
	group, _, err := NewClientGroup(testRoomID(0x03), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	joinerPriv := [32]byte{1, 2, 3, 4}
	joinerPub, err := deriveTestStaticPublic(joinerPriv)
	if err != nil {
		t.Fatalf("deriving test static public key: %v", err)
	}

	actions, err := group.AddMembers(map[uint64][32]byte{2: joinerPub}, now)
	if err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	var commitFrameSeen, welcomeFrameSeen bool
	var welcomePayload []byte
	for _, a := range actions {
		switch a.Kind {
		case ActionSendCommit:
			commitFrameSeen = true
		case ActionSendWelcome:
			welcomeFrameSeen = true
			if a.Recipient != 2 {
				t.Errorf("welcome recipient = %d, want 2", a.Recipient)
			}
			welcomePayload = a.Frame.Payload
		}
	}
	if !commitFrameSeen || !welcomeFrameSeen {
		t.Fatalf("expected both a commit and a welcome action, got %+v", actions)
	}

	preSecret := group.EpochSecret()

	if _, err := group.MergePendingCommit(1, []uint64{1, 2}); err != nil {
		t.Fatalf("MergePendingCommit() error = %v", err)
	}

	if group.Epoch() != 1 {
		t.Errorf("Epoch() = %d, want 1", group.Epoch())
	}
	if group.HasPendingCommit() {
		t.Error("pending commit must be cleared after merge")
	}
	if !group.IsMember(2) {
		t.Error("new member must be present after merge")
	}

	postSecret := group.EpochSecret()
	if bytes.Equal(preSecret[:], postSecret[:]) {
		t.Error("epoch secret must change across a commit")
	}

	welcomeFrame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeWelcome,
		RoomID:   testRoomID(0x03),
		SenderID: 1,
		LogIndex: 2,
		Epoch:    1,
	}, welcomePayload)
	if err != nil {
		t.Fatalf("wire.New() error = %v", err)
	}

	joined, _, err := JoinFromWelcome(2, joinerPriv, welcomeFrame)
	if err != nil {
		t.Fatalf("JoinFromWelcome() error = %v", err)
	}
	if joined.Epoch() != 1 {
		t.Errorf("joined.Epoch() = %d, want 1", joined.Epoch())
	}
	joinedSecret := joined.EpochSecret()
	if !bytes.Equal(joinedSecret[:], postSecret[:]) {
		t.Error("joining member must recover the same epoch secret as the inviter")
	}
}

func TestMergePendingCommitRejectsEpochMismatch(t *testing.T) {
	now := time.Now()
	group, _, err := NewClientGroup(testRoomID(0x04), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	joinerPub, err := deriveTestStaticPublic([32]byte{5})
	if err != nil {
		t.Fatalf("deriving test static public key: %v", err)
	}
	if _, err := group.AddMembers(map[uint64][32]byte{2: joinerPub}, now); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}

	_, err = group.MergePendingCommit(99, []uint64{1, 2})
	if err == nil {
		t.Fatal("expected epoch mismatch error")
	}
	mlsErr, ok := err.(*MlsError)
	if !ok || mlsErr.Kind != ErrEpochMismatch {
		t.Fatalf("err = %v, want ErrEpochMismatch", err)
	}
}

func TestRemoveMembersProducesCommit(t *testing.T) {
	now := time.Now()
	group, _, err := NewClientGroup(testRoomID(0x05), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	joinerPub, err := deriveTestStaticPublic([32]byte{6})
	if err != nil {
		t.Fatalf("deriving test static public key: %v", err)
	}
	if _, err := group.AddMembers(map[uint64][32]byte{2: joinerPub}, now); err != nil {
		t.Fatalf("AddMembers() error = %v", err)
	}
	if _, err := group.MergePendingCommit(1, []uint64{1, 2}); err != nil {
		t.Fatalf("MergePendingCommit() error = %v", err)
	}

	actions, err := group.RemoveMembers([]uint64{2}, now)
	if err != nil {
		t.Fatalf("RemoveMembers() error = %v", err)
	}
	if len(actions) != 1 || actions[0].Kind != ActionSendCommit {
		t.Fatalf("actions = %+v, want single SendCommit action", actions)
	}

	if _, err := group.MergePendingCommit(2, []uint64{1}); err != nil {
		t.Fatalf("MergePendingCommit() error = %v", err)
	}
	if group.IsMember(2) {
		t.Error("removed member must not remain in group")
	}
}

func TestProcessRemoteCommitRemovesSelf(t *testing.T) {
	now := time.Now()
	group, _, err := NewClientGroup(testRoomID(0x06), 2, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}
	group.members = []uint64{1, 2}

	actions, err := group.ProcessRemoteCommit(1, []uint64{1})
	if err != nil {
		t.Fatalf("ProcessRemoteCommit() error = %v", err)
	}
	if len(actions) != 1 || actions[0].Kind != ActionRemoveGroup {
		t.Fatalf("actions = %+v, want single RemoveGroup action", actions)
	}
}

// TestJoinFromGroupInfoRoundTrip exercises server-mediated external
// join: a joiner reconstructs group state from a published GroupInfo
// snapshot, then both the joiner and an existing member converge on
// the new epoch via ProcessRemoteCommit, matching how the server
// echoes an ExternalCommit to everyone, including its sender.
func TestJoinFromGroupInfoRoundTrip(t *testing.T) {
	now := time.Now()
	owner, actions, err := NewClientGroup(testRoomID(0x07), 1, rand.Reader, now)
	if err != nil {
		t.Fatalf("NewClientGroup() error = %v", err)
	}

	var groupInfoBytes []byte
	for _, a := range actions {
		if a.Kind == ActionPublishGroupInfo {
			groupInfoBytes = a.Bytes
		}
	}
	if len(groupInfoBytes) == 0 {
		t.Fatal("expected NewClientGroup to publish group info")
	}

	joiner, err := JoinFromGroupInfo(2, groupInfoBytes)
	if err != nil {
		t.Fatalf("JoinFromGroupInfo() error = %v", err)
	}
	if joiner.Epoch() != 0 {
		t.Errorf("joiner.Epoch() = %d, want 0", joiner.Epoch())
	}
	if !joiner.IsMember(1) {
		t.Error("joiner must see the existing owner as a member")
	}

	nextEpoch := owner.Epoch() + 1

	ownerActions, err := owner.ProcessRemoteCommit(nextEpoch, []uint64{1, 2})
	if err != nil {
		t.Fatalf("owner.ProcessRemoteCommit() error = %v", err)
	}
	for _, a := range ownerActions {
		if a.Kind == ActionRemoveGroup {
			t.Fatal("owner must not be removed by the external joiner's commit")
		}
	}
	if owner.Epoch() != nextEpoch || !owner.IsMember(2) {
		t.Error("owner must converge to the new epoch with the joiner included")
	}

	joinerActions, err := joiner.ProcessRemoteCommit(nextEpoch, []uint64{1, 2})
	if err != nil {
		t.Fatalf("joiner.ProcessRemoteCommit() error = %v", err)
	}
	for _, a := range joinerActions {
		if a.Kind == ActionRemoveGroup {
			t.Fatal("joiner must not remove itself via its own join commit")
		}
	}
	if joiner.Epoch() != nextEpoch {
		t.Errorf("joiner.Epoch() = %d, want %d", joiner.Epoch(), nextEpoch)
	}
	if !bytes.Equal(owner.EpochSecret()[:], joiner.EpochSecret()[:]) {
		t.Error("owner and joiner must converge on the same epoch secret")
	}
}
