package mls

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/opd-ai/kalandra/crypto"
	"github.com/opd-ai/kalandra/noise"
	"github.com/opd-ai/kalandra/wire"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/hkdf"
)

const epochUpdateLabel = "kalandraEpochUpdateV1"

// commitTimeout is how long a client waits for the sequencer to accept a
// commit it sent before treating the attempt as failed.
const commitTimeout = 30 * time.Second

// pendingCommit tracks a commit we sent that's awaiting sequencer
// acceptance, so a second local operation doesn't race it.
type pendingCommit struct {
	targetEpoch uint64
	sentAt      time.Time
}

// ClientGroup is client-side participation in a single room's MLS group.
// A client may hold many ClientGroups, one per room it has joined.
//
// Invariants: Epoch only increases; members converging on an epoch share
// the same StateHash; only current members can decrypt for that epoch.
type ClientGroup struct {
	roomID   RoomID
	memberID uint64

	epoch      uint64
	stateHash  [32]byte
	members    []uint64
	memberKeys map[uint64][32]byte

	epochSecret [32]byte
	staticKey   *crypto.KeyPair

	pending *pendingCommit
}

// NewClientGroup creates a new group at epoch 0 with memberID as its sole
// member. randSource supplies the initial epoch secret's entropy; pass a
// deterministic source under simulation.
func NewClientGroup(roomID RoomID, memberID uint64, randSource io.Reader, now time.Time) (*ClientGroup, []Action, error) {
	logger := logrus.WithFields(logrus.Fields{
		"function":  "NewClientGroup",
		"package":   "mls",
		"member_id": memberID,
	})

	staticKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, nil, fmt.Errorf("mls: generating static keypair: %w", err)
	}

	var epochSecret [32]byte
	if _, err := io.ReadFull(randSource, epochSecret[:]); err != nil {
		return nil, nil, fmt.Errorf("mls: generating epoch secret: %w", err)
	}

	members := []uint64{memberID}
	group := &ClientGroup{
		roomID:      roomID,
		memberID:    memberID,
		epoch:       0,
		members:     members,
		memberKeys:  map[uint64][32]byte{},
		epochSecret: epochSecret,
		staticKey:   staticKey,
	}
	group.stateHash = computeStateHash(roomID, 0, members)

	logger.Debug("created group at epoch 0")

	groupInfo := encodeWelcomeBody(roomID, 0, members, epochSecret, group.stateHash)

	return group, []Action{
		logAction(fmt.Sprintf("created group %x at epoch 0 (member_id=%d)", roomID, memberID)),
		{Kind: ActionPublishGroupInfo, RoomID: roomID, Epoch: 0, Bytes: groupInfo},
	}, nil
}

// Epoch returns the current epoch number.
func (g *ClientGroup) Epoch() uint64 { return g.epoch }

// MemberID returns this client's member id in the group.
func (g *ClientGroup) MemberID() uint64 { return g.memberID }

// RoomID returns the group's room id.
func (g *ClientGroup) RoomID() RoomID { return g.roomID }

// StaticPublicKey returns our X25519 static public key, published in our
// KeyPackage so other members can address Welcome handshakes to us.
func (g *ClientGroup) StaticPublicKey() [32]byte { return g.staticKey.Public }

// EpochSecret returns the current opaque epoch secret, consumed by the
// senderkey package to derive per-sender ratchets.
func (g *ClientGroup) EpochSecret() [32]byte { return g.epochSecret }

// Members returns the current membership list.
func (g *ClientGroup) Members() []uint64 {
	return append([]uint64(nil), g.members...)
}

// State returns a serializable snapshot of the group for storage/validation.
func (g *ClientGroup) State() *GroupState {
	keys := make(map[uint64][32]byte, len(g.memberKeys))
	for k, v := range g.memberKeys {
		keys[k] = v
	}
	return &GroupState{
		RoomID:      g.roomID,
		Epoch:       g.epoch,
		StateHash:   g.stateHash,
		Members:     g.Members(),
		MemberKeys:  keys,
		EpochSecret: g.epochSecret,
	}
}

// HasPendingCommit reports whether a commit we sent is awaiting sequencer
// acceptance.
func (g *ClientGroup) HasPendingCommit() bool {
	return g.pending != nil
}

// IsCommitTimeout reports whether a pending commit has been waiting
// longer than timeout.
func (g *ClientGroup) IsCommitTimeout(now time.Time, timeout time.Duration) bool {
	if g.pending == nil {
		return false
	}
	return now.Sub(g.pending.sentAt) > timeout
}

// AddMembers proposes and immediately commits the addition of newMembers,
// identified by member id and X25519 static public key (taken from their
// published KeyPackage). It emits one ActionSendCommit for the next epoch
// plus one ActionSendWelcome per new member carrying that epoch's secret,
// and records the commit as pending. The group's own epoch, epoch secret
// and membership change only when MergePendingCommit applies the commit.
func (g *ClientGroup) AddMembers(newMembers map[uint64][32]byte, now time.Time) ([]Action, error) {
	if g.pending != nil && !g.IsCommitTimeout(now, commitTimeout) {
		return nil, &MlsError{Kind: ErrInvalidState, Reason: "a commit is already pending"}
	}

	for id := range newMembers {
		if g.IsMember(id) {
			return nil, &MlsError{Kind: ErrAlreadyMember, MemberID: id}
		}
	}

	nextEpoch := g.epoch + 1
	nextMembers := append([]uint64(nil), g.members...)
	for id := range newMembers {
		nextMembers = append(nextMembers, id)
	}
	nextSecret := deriveNextEpochSecret(g.epochSecret, nextEpoch)
	nextHash := computeStateHash(g.roomID, nextEpoch, nextMembers)

	commitFrame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeCommit,
		RoomID:   g.roomID,
		SenderID: g.memberID,
		Epoch:    nextEpoch,
	}, EncodeCommitBody(nextEpoch, nextMembers))
	if err != nil {
		return nil, fmt.Errorf("mls: building commit frame: %w", err)
	}

	actions := []Action{{Kind: ActionSendCommit, Frame: commitFrame}}

	for memberID, peerPub := range newMembers {
		welcomeFrame, err := g.buildWelcome(memberID, peerPub, nextEpoch, nextMembers, nextSecret, nextHash)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Kind: ActionSendWelcome, Recipient: memberID, Frame: welcomeFrame})
	}

	g.pending = &pendingCommit{targetEpoch: nextEpoch, sentAt: now}

	return actions, nil
}

// RemoveMembers proposes and immediately commits the removal of members:
// it emits one ActionSendCommit for the next epoch and records the commit
// as pending. The epoch advances and the epoch secret is re-derived only
// when MergePendingCommit applies the commit.
func (g *ClientGroup) RemoveMembers(removed []uint64, now time.Time) ([]Action, error) {
	if g.pending != nil && !g.IsCommitTimeout(now, commitTimeout) {
		return nil, &MlsError{Kind: ErrInvalidState, Reason: "a commit is already pending"}
	}
	for _, id := range removed {
		if !g.IsMember(id) {
			return nil, &MlsError{Kind: ErrNotMember, MemberID: id}
		}
	}

	nextEpoch := g.epoch + 1

	removedSet := make(map[uint64]struct{}, len(removed))
	for _, id := range removed {
		removedSet[id] = struct{}{}
	}
	nextMembers := make([]uint64, 0, len(g.members))
	for _, id := range g.members {
		if _, gone := removedSet[id]; !gone {
			nextMembers = append(nextMembers, id)
		}
	}

	commitFrame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeCommit,
		RoomID:   g.roomID,
		SenderID: g.memberID,
		Epoch:    nextEpoch,
	}, EncodeCommitBody(nextEpoch, nextMembers))
	if err != nil {
		return nil, fmt.Errorf("mls: building commit frame: %w", err)
	}

	g.pending = &pendingCommit{targetEpoch: nextEpoch, sentAt: now}

	return []Action{{Kind: ActionSendCommit, Frame: commitFrame}}, nil
}

// MergePendingCommit finalizes the pending local commit once the
// sequencer has accepted it, applying the membership and epoch-secret
// change that AddMembers/RemoveMembers computed.
func (g *ClientGroup) MergePendingCommit(acceptedEpoch uint64, members []uint64) ([]Action, error) {
	if g.pending == nil {
		return nil, &MlsError{Kind: ErrInvalidState, Reason: "no pending commit to merge"}
	}
	if acceptedEpoch != g.pending.targetEpoch {
		err := &MlsError{Kind: ErrEpochMismatch, ExpectedEpoch: g.pending.targetEpoch, ActualEpoch: acceptedEpoch}
		return nil, err
	}

	g.epochSecret = deriveNextEpochSecret(g.epochSecret, acceptedEpoch)
	g.epoch = acceptedEpoch
	g.members = append([]uint64(nil), members...)
	g.stateHash = computeStateHash(g.roomID, g.epoch, g.members)
	g.pending = nil

	groupInfo := encodeWelcomeBody(g.roomID, g.epoch, g.members, g.epochSecret, g.stateHash)

	return []Action{
		logAction(fmt.Sprintf("advanced to epoch %d with %d members", g.epoch, len(g.members))),
		{Kind: ActionPublishGroupInfo, RoomID: g.roomID, Epoch: g.epoch, Bytes: groupInfo},
	}, nil
}

// ProcessRemoteCommit applies a commit authored by another member,
// advancing our epoch to match. Used when we are not the commit's author.
func (g *ClientGroup) ProcessRemoteCommit(acceptedEpoch uint64, members []uint64) ([]Action, error) {
	if acceptedEpoch <= g.epoch {
		return nil, &MlsError{Kind: ErrEpochMismatch, ExpectedEpoch: g.epoch + 1, ActualEpoch: acceptedEpoch}
	}

	g.epochSecret = deriveNextEpochSecret(g.epochSecret, acceptedEpoch)
	g.epoch = acceptedEpoch
	g.members = append([]uint64(nil), members...)
	g.stateHash = computeStateHash(g.roomID, g.epoch, g.members)

	if !g.IsMember(g.memberID) {
		return []Action{{Kind: ActionRemoveGroup, Reason: "removed from group by commit"}}, nil
	}

	return []Action{logAction(fmt.Sprintf("observed remote commit to epoch %d", g.epoch))}, nil
}

// SetMemberKey registers memberID's Ed25519 signature-verification
// public key, included in the next State() snapshot so the room
// manager can validate that member's frame signatures.
func (g *ClientGroup) SetMemberKey(memberID uint64, verifyKey [32]byte) {
	g.memberKeys[memberID] = verifyKey
}

// IsMember reports whether memberID currently belongs to the group.
func (g *ClientGroup) IsMember(memberID uint64) bool {
	for _, m := range g.members {
		if m == memberID {
			return true
		}
	}
	return false
}

// buildWelcome runs the IK handshake as initiator (we know the joining
// member's static key from its KeyPackage) and wraps the new group state
// as the handshake payload, producing a Welcome frame for that member.
func (g *ClientGroup) buildWelcome(recipient uint64, recipientPub [32]byte, nextEpoch uint64, members []uint64, secret [32]byte, stateHash [32]byte) (*wire.Frame, error) {
	ik, err := noise.NewIKHandshake(g.staticKey.Private[:], recipientPub[:], noise.Initiator)
	if err != nil {
		return nil, &MlsError{Kind: ErrHandshakeFailed, Reason: err.Error()}
	}

	payload := encodeWelcomeBody(g.roomID, nextEpoch, members, secret, stateHash)

	message, _, err := ik.WriteMessage(payload, nil)
	if err != nil {
		return nil, &MlsError{Kind: ErrHandshakeFailed, Reason: err.Error()}
	}

	return wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeWelcome,
		RoomID:   g.roomID,
		SenderID: g.memberID,
		LogIndex: recipient,
		Epoch:    nextEpoch,
	}, message)
}

// JoinFromWelcome processes a Welcome frame sent to us by an existing
// member, recovering the new group's epoch secret and membership.
func JoinFromWelcome(memberID uint64, myPriv [32]byte, welcome *wire.Frame) (*ClientGroup, []Action, error) {
	ik, err := noise.NewIKHandshake(myPriv[:], nil, noise.Responder)
	if err != nil {
		return nil, nil, &MlsError{Kind: ErrHandshakeFailed, Reason: err.Error()}
	}

	if _, _, err := ik.WriteMessage(nil, welcome.Payload); err != nil {
		return nil, nil, &MlsError{Kind: ErrHandshakeFailed, Reason: err.Error()}
	}

	body, err := decodeWelcomeBody(ik.ReceivedPayload())
	if err != nil {
		return nil, nil, err
	}

	staticKey, err := crypto.FromSecretKey(myPriv)
	if err != nil {
		return nil, nil, fmt.Errorf("mls: deriving static keypair: %w", err)
	}

	group := &ClientGroup{
		roomID:      body.roomID,
		memberID:    memberID,
		epoch:       body.epoch,
		stateHash:   body.stateHash,
		members:     body.members,
		memberKeys:  map[uint64][32]byte{},
		epochSecret: body.secret,
		staticKey:   staticKey,
	}

	return group, []Action{logAction(fmt.Sprintf("joined group %x at epoch %d via welcome", body.roomID, body.epoch))}, nil
}

// deriveNextEpochSecret advances the opaque epoch secret forward via
// HKDF-SHA256, giving forward secrecy across membership changes without
// requiring fresh randomness.
func deriveNextEpochSecret(current [32]byte, nextEpoch uint64) [32]byte {
	info := make([]byte, 0, len(epochUpdateLabel)+8)
	info = append(info, epochUpdateLabel...)
	info = binary.BigEndian.AppendUint64(info, nextEpoch)

	reader := hkdf.New(sha256.New, current[:], nil, info)
	var next [32]byte
	if _, err := io.ReadFull(reader, next[:]); err != nil {
		panic("mls: HKDF expand of 32 bytes failed unexpectedly: " + err.Error())
	}
	return next
}
