package clientdriver

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/opd-ai/kalandra/crypto"
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/senderkey"
	"github.com/opd-ai/kalandra/wire"
)

// roomEntry is everything the driver tracks for a single joined room.
type roomEntry struct {
	group *mls.ClientGroup
	keys  *senderkey.Store

	// pendingMembers is the membership list a not-yet-merged local
	// AddMembers/RemoveMembers is targeting. ClientGroup's pending-commit
	// record only remembers the target epoch, not the membership diff,
	// so the driver carries it across the commit round trip.
	pendingMembers []uint64

	// lastLogIndex is the highest sequencer log index observed for this
	// room, used to resume a SyncRequest from the right offset.
	lastLogIndex uint64
	haveLogIndex bool
}

// observeLogIndex records frame's log index if it is higher than any
// seen so far, so a subsequent SyncRequest resumes from the right spot.
func (e *roomEntry) observeLogIndex(logIndex uint64) {
	if !e.haveLogIndex || logIndex > e.lastLogIndex {
		e.lastLogIndex = logIndex
		e.haveLogIndex = true
	}
}

// Driver is the client's single-threaded sans-I/O event/action core. One
// Driver represents one identity (memberID) participating in any number
// of rooms.
type Driver struct {
	memberID uint64

	// staticKey is the identity X25519 key published in our key
	// package and used to receive Welcome handshakes
	// addressed to us. Each room's ClientGroup keeps its own separate
	// static key for handshakes it initiates as an existing member.
	staticKey *crypto.KeyPair
	signSeed  [32]byte
	verifyKey [32]byte

	rand io.Reader

	rooms map[mls.RoomID]*roomEntry

	// pendingExternalJoins tracks rooms for which a GroupInfoRequest has
	// been sent but no GroupInfo reply has arrived yet.
	pendingExternalJoins map[mls.RoomID]struct{}
}

// New creates a Driver for memberID. rand supplies entropy for group
// creation, message nonces and the Ed25519 frame-signing key; pass a
// deterministic source under simulation. The X25519 identity key is
// drawn from crypto/rand.
func New(memberID uint64, rand io.Reader) (*Driver, error) {
	staticKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("clientdriver: generating identity key: %w", err)
	}
	var signSeed, verifyKey [32]byte
	if _, err := io.ReadFull(rand, signSeed[:]); err != nil {
		return nil, fmt.Errorf("clientdriver: generating signing key: %w", err)
	}
	copy(verifyKey[:], ed25519.NewKeyFromSeed(signSeed[:]).Public().(ed25519.PublicKey))

	return &Driver{
		memberID:             memberID,
		staticKey:            staticKey,
		signSeed:             signSeed,
		verifyKey:            verifyKey,
		rand:                 rand,
		rooms:                make(map[mls.RoomID]*roomEntry),
		pendingExternalJoins: make(map[mls.RoomID]struct{}),
	}, nil
}

// MemberID returns this driver's identity.
func (d *Driver) MemberID() uint64 { return d.memberID }

// KeyPackage returns the bundle to publish so other members can invite
// this identity into a room.
func (d *Driver) KeyPackage() KeyPackage {
	return KeyPackage{MemberID: d.memberID, StaticKey: d.staticKey.Public, VerifyKey: d.verifyKey}
}

// HasRoom reports whether roomID has local state.
func (d *Driver) HasRoom(roomID mls.RoomID) bool {
	_, ok := d.rooms[roomID]
	return ok
}

// RoomEpoch returns this member's current view of roomID's epoch. ok is
// false if we hold no local state for roomID.
func (d *Driver) RoomEpoch(roomID mls.RoomID) (epoch uint64, ok bool) {
	entry, ok := d.rooms[roomID]
	if !ok {
		return 0, false
	}
	return entry.group.Epoch(), true
}

// RoomMembers returns this member's current view of roomID's
// membership set. ok is false if we hold no local state for roomID.
func (d *Driver) RoomMembers(roomID mls.RoomID) (members []uint64, ok bool) {
	entry, ok := d.rooms[roomID]
	if !ok {
		return nil, false
	}
	return entry.group.Members(), true
}

// HandleEvent processes event and returns the actions the caller must
// execute, in order.
func (d *Driver) HandleEvent(event Event) ([]Action, error) {
	switch event.Kind {
	case EventCreateRoom:
		return d.handleCreateRoom(event.RoomID, event.Now)
	case EventJoinRoom:
		return d.handleJoinRoom(event.RoomID, event.Welcome)
	case EventSendMessage:
		return d.handleSendMessage(event.RoomID, event.Plaintext)
	case EventFrameReceived:
		return d.handleFrameReceived(event.Frame)
	case EventTick:
		return d.handleTick(event.Now)
	case EventAddMembers:
		return d.handleAddMembers(event.RoomID, event.KeyPackages, event.Now)
	case EventRemoveMembers:
		return d.handleRemoveMembers(event.RoomID, event.MemberIDs, event.Now)
	case EventLeaveRoom:
		return d.handleLeaveRoom(event.RoomID)
	case EventPublishKeyPackage:
		return d.handlePublishKeyPackage()
	case EventExternalJoin:
		return d.handleExternalJoin(event.RoomID)
	case EventFetchAndAddMember:
		return d.handleFetchAndAddMember(event.RoomID, event.UserID)
	default:
		return nil, fmt.Errorf("clientdriver: unknown event kind %d", event.Kind)
	}
}

func (d *Driver) handleCreateRoom(roomID mls.RoomID, now time.Time) ([]Action, error) {
	if _, exists := d.rooms[roomID]; exists {
		return nil, ErrRoomAlreadyExists
	}

	group, mlsActions, err := mls.NewClientGroup(roomID, d.memberID, d.rand, now)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: creating room: %w", err)
	}
	group.SetMemberKey(d.memberID, d.verifyKey)

	d.rooms[roomID] = &roomEntry{group: group, keys: d.freshStore(group)}

	actions, err := d.translateMlsActions(roomID, mlsActions)
	if err != nil {
		return nil, err
	}
	actions = append(actions, Action{Kind: ActionRoomJoined, RoomID: roomID})
	return actions, nil
}

func (d *Driver) handleJoinRoom(roomID mls.RoomID, welcome *wire.Frame) ([]Action, error) {
	if _, exists := d.rooms[roomID]; exists {
		return nil, ErrRoomAlreadyExists
	}
	if welcome == nil {
		return nil, fmt.Errorf("clientdriver: JoinRoom event missing welcome frame")
	}
	return d.joinFromWelcome(roomID, welcome)
}

func (d *Driver) joinFromWelcome(roomID mls.RoomID, welcome *wire.Frame) ([]Action, error) {
	group, mlsActions, err := mls.JoinFromWelcome(d.memberID, d.staticKey.Private, welcome)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: joining from welcome: %w", err)
	}
	group.SetMemberKey(d.memberID, d.verifyKey)

	d.rooms[roomID] = &roomEntry{group: group, keys: d.freshStore(group)}

	actions, err := d.translateMlsActions(roomID, mlsActions)
	if err != nil {
		return nil, err
	}
	actions = append(actions, Action{Kind: ActionRoomJoined, RoomID: roomID})
	return actions, nil
}

func (d *Driver) handleSendMessage(roomID mls.RoomID, plaintext []byte) ([]Action, error) {
	entry, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if entry.keys == nil {
		return nil, ErrNoSenderKeyStore
	}

	var randomSuffix [senderkey.NonceRandomSize]byte
	if _, err := io.ReadFull(d.rand, randomSuffix[:]); err != nil {
		return nil, fmt.Errorf("clientdriver: generating nonce randomness: %w", err)
	}

	encrypted, err := entry.keys.Encrypt(uint32(d.memberID), plaintext, randomSuffix)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: encrypting message: %w", err)
	}

	frame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeAppMessage,
		RoomID:   roomID,
		SenderID: d.memberID,
		Epoch:    entry.group.Epoch(),
	}, encodeEncryptedMessage(encrypted))
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building app message frame: %w", err)
	}
	if err := d.sign(frame); err != nil {
		return nil, err
	}

	return []Action{
		{Kind: ActionSend, Frame: frame},
		// The server broadcasts with sender-exclusion and our ratchet
		// has already advanced past this ciphertext, so we cannot
		// decrypt our own message: deliver it locally instead.
		{Kind: ActionDeliverMessage, RoomID: roomID, SenderID: d.memberID, Plaintext: plaintext},
	}, nil
}

func (d *Driver) handleFrameReceived(frame *wire.Frame) ([]Action, error) {
	if frame == nil {
		return nil, fmt.Errorf("clientdriver: FrameReceived event missing frame")
	}

	switch frame.Header.Opcode {
	case wire.OpcodeWelcome:
		return d.handleIncomingWelcome(frame)
	case wire.OpcodeGroupInfo:
		return d.handleGroupInfoFrame(frame)
	}

	roomID := mls.RoomID(frame.Header.RoomID)
	entry, ok := d.rooms[roomID]
	if !ok {
		return []Action{logAction(fmt.Sprintf("frame for unknown room %x ignored", roomID))}, nil
	}
	entry.observeLogIndex(frame.Header.LogIndex)

	switch frame.Header.Opcode {
	case wire.OpcodeAppMessage:
		return d.handleAppMessage(roomID, entry, frame)
	case wire.OpcodeCommit, wire.OpcodeExternalCommit:
		return d.handleCommitFrame(roomID, entry, frame)
	default:
		return []Action{logAction(fmt.Sprintf("unhandled opcode %s for room %x", frame.Header.Opcode, roomID))}, nil
	}
}

func (d *Driver) handleIncomingWelcome(frame *wire.Frame) ([]Action, error) {
	if frame.Header.RecipientID() != d.memberID {
		return []Action{logAction("welcome not addressed to us, ignoring")}, nil
	}

	roomID := mls.RoomID(frame.Header.RoomID)
	if _, exists := d.rooms[roomID]; exists {
		return []Action{logAction("already joined room, ignoring duplicate welcome")}, nil
	}

	return d.joinFromWelcome(roomID, frame)
}

// handleGroupInfoFrame reconstructs group state from a server-supplied
// GroupInfo snapshot and answers with a bare ExternalCommit naming the
// epoch it targets. The server sequences and broadcasts that commit,
// including an echo back to us, which is how we and every existing
// member converge on the new epoch (see handleCommitFrame). We must
// subscribe to the room (ActionRoomJoined) before sending the commit:
// the server may answer synchronously, and if we haven't subscribed
// yet we would miss our own echo.
func (d *Driver) handleGroupInfoFrame(frame *wire.Frame) ([]Action, error) {
	roomID := mls.RoomID(frame.Header.RoomID)
	if _, ok := d.pendingExternalJoins[roomID]; !ok {
		return []Action{logAction("group info received with no pending external join")}, nil
	}
	delete(d.pendingExternalJoins, roomID)

	group, err := mls.JoinFromGroupInfo(d.memberID, frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: reconstructing group from group info: %w", err)
	}
	group.SetMemberKey(d.memberID, d.verifyKey)
	d.rooms[roomID] = &roomEntry{group: group, keys: d.freshStore(group)}

	nextEpoch := group.Epoch() + 1
	commitFrame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeExternalCommit,
		RoomID:   roomID,
		SenderID: d.memberID,
		Epoch:    nextEpoch,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building external commit frame: %w", err)
	}
	if err := d.sign(commitFrame); err != nil {
		return nil, err
	}

	return []Action{
		{Kind: ActionRoomJoined, RoomID: roomID},
		{Kind: ActionSend, Frame: commitFrame},
	}, nil
}

func (d *Driver) handleAppMessage(roomID mls.RoomID, entry *roomEntry, frame *wire.Frame) ([]Action, error) {
	if frame.Header.SenderID == d.memberID {
		// Already delivered locally in handleSendMessage.
		return nil, nil
	}
	if entry.keys == nil {
		return []Action{logAction("app message received with no sender key store")}, nil
	}

	encrypted, err := decodeEncryptedMessage(frame.Payload)
	if err != nil {
		return []Action{logAction(fmt.Sprintf("malformed app message: %s", err))}, nil
	}

	plaintext, err := entry.keys.Decrypt(encrypted)
	if err != nil {
		if skErr, ok := err.(*senderkey.SenderKeyError); ok && !skErr.Fatal() {
			actions := []Action{{Kind: ActionRequestSync, RoomID: roomID, FromEpoch: entry.group.Epoch(), ToEpoch: entry.group.Epoch()}}
			if syncFrame, syncErr := d.buildSyncRequest(roomID, entry); syncErr == nil {
				actions = append(actions, Action{Kind: ActionSend, Frame: syncFrame})
			}
			return actions, nil
		}
		return []Action{logAction(fmt.Sprintf("dropping app message: %s", err))}, nil
	}

	return []Action{{
		Kind:      ActionDeliverMessage,
		RoomID:    roomID,
		SenderID:  frame.Header.SenderID,
		Plaintext: plaintext,
		LogIndex:  frame.Header.LogIndex,
	}}, nil
}

// handleCommitFrame applies an incoming Commit or ExternalCommit. Two
// distinct paths: a Commit echoing back our own not-yet-merged
// AddMembers/RemoveMembers is finalized via MergePendingCommit (we
// already know its membership diff); everything else — a commit
// authored by another member, or the echo of our own ExternalCommit —
// is applied via ProcessRemoteCommit using membership resolved from
// the frame itself, since we have no local pending-commit record for it.
func (d *Driver) handleCommitFrame(roomID mls.RoomID, entry *roomEntry, frame *wire.Frame) ([]Action, error) {
	if frame.Header.Opcode == wire.OpcodeCommit && frame.Header.SenderID == d.memberID && entry.group.HasPendingCommit() {
		mlsActions, err := entry.group.MergePendingCommit(frame.Header.Epoch, entry.pendingMembers)
		if err != nil {
			return nil, fmt.Errorf("clientdriver: merging commit: %w", err)
		}
		entry.pendingMembers = nil
		entry.keys = d.freshStore(entry.group)

		actions, err := d.translateMlsActions(roomID, mlsActions)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{
			Kind: ActionPersistRoom,
			Snapshot: RoomSnapshot{
				RoomID:   roomID,
				Epoch:    entry.group.Epoch(),
				MlsState: entry.group.State(),
				MemberID: d.memberID,
			},
		})
		return actions, nil
	}

	if frame.Header.Epoch <= entry.group.Epoch() {
		return []Action{logAction("ignoring commit at or behind our current epoch")}, nil
	}

	members, ok := resolveRemoteCommitMembers(entry.group, frame)
	if !ok {
		actions := []Action{{Kind: ActionRequestSync, RoomID: roomID, FromEpoch: entry.group.Epoch(), ToEpoch: frame.Header.Epoch}}
		if syncFrame, syncErr := d.buildSyncRequest(roomID, entry); syncErr == nil {
			actions = append(actions, Action{Kind: ActionSend, Frame: syncFrame})
		}
		return actions, nil
	}

	mlsActions, err := entry.group.ProcessRemoteCommit(frame.Header.Epoch, members)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: processing remote commit: %w", err)
	}
	entry.keys = d.freshStore(entry.group)

	actions, err := d.translateMlsActions(roomID, mlsActions)
	if err != nil {
		return nil, err
	}
	actions = append(actions, Action{
		Kind: ActionPersistRoom,
		Snapshot: RoomSnapshot{
			RoomID:   roomID,
			Epoch:    entry.group.Epoch(),
			MlsState: entry.group.State(),
			MemberID: d.memberID,
		},
	})
	return actions, nil
}

// resolveRemoteCommitMembers determines the post-commit membership set
// for a frame we did not author, without decrypting anything: a
// Commit carries its membership snapshot in plaintext (see
// mls.EncodeCommitBody); an ExternalCommit carries none, so membership
// is the group's current view plus the joining sender.
func resolveRemoteCommitMembers(group *mls.ClientGroup, frame *wire.Frame) ([]uint64, bool) {
	switch frame.Header.Opcode {
	case wire.OpcodeCommit:
		_, members, err := mls.DecodeCommitBody(frame.Payload)
		if err != nil {
			return nil, false
		}
		return members, true
	case wire.OpcodeExternalCommit:
		members := append([]uint64(nil), group.Members()...)
		joinerID := frame.Header.SenderID
		for _, id := range members {
			if id == joinerID {
				return members, true
			}
		}
		return append(members, joinerID), true
	default:
		return nil, false
	}
}

func (d *Driver) handleAddMembers(roomID mls.RoomID, keyPackageBytes [][]byte, now time.Time) ([]Action, error) {
	entry, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	newMembers := make(map[uint64][32]byte, len(keyPackageBytes))
	for _, kpBytes := range keyPackageBytes {
		kp, err := DecodeKeyPackage(kpBytes)
		if err != nil {
			return nil, fmt.Errorf("clientdriver: decoding key package: %w", err)
		}
		newMembers[kp.MemberID] = kp.StaticKey
		entry.group.SetMemberKey(kp.MemberID, kp.VerifyKey)
	}

	mlsActions, err := entry.group.AddMembers(newMembers, now)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: adding members: %w", err)
	}

	nextMembers := append([]uint64(nil), entry.group.Members()...)
	for id := range newMembers {
		nextMembers = append(nextMembers, id)
	}
	entry.pendingMembers = nextMembers

	return d.translateMlsActions(roomID, mlsActions)
}

func (d *Driver) handleRemoveMembers(roomID mls.RoomID, memberIDs []uint64, now time.Time) ([]Action, error) {
	entry, ok := d.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}

	mlsActions, err := entry.group.RemoveMembers(memberIDs, now)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: removing members: %w", err)
	}

	removed := make(map[uint64]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		removed[id] = struct{}{}
	}
	remaining := make([]uint64, 0, len(entry.group.Members()))
	for _, id := range entry.group.Members() {
		if _, gone := removed[id]; !gone {
			remaining = append(remaining, id)
		}
	}
	entry.pendingMembers = remaining

	return d.translateMlsActions(roomID, mlsActions)
}

func (d *Driver) handleLeaveRoom(roomID mls.RoomID) ([]Action, error) {
	if _, ok := d.rooms[roomID]; !ok {
		return nil, ErrRoomNotFound
	}
	delete(d.rooms, roomID)
	return []Action{{Kind: ActionRoomRemoved, RoomID: roomID, Reason: "left by local request"}}, nil
}

func (d *Driver) handlePublishKeyPackage() ([]Action, error) {
	kp := d.KeyPackage()
	frame, err := wire.New(wire.FrameHeader{Opcode: wire.OpcodeKeyPackagePublish, SenderID: d.memberID}, kp.Encode())
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building key package frame: %w", err)
	}
	return []Action{
		{Kind: ActionSend, Frame: frame},
		{Kind: ActionKeyPackagePublished},
	}, nil
}

// handleExternalJoin sends a bare GroupInfoRequest to the server, which
// answers directly from its stored GroupInfo snapshot (see
// serverdriver.handleGroupInfoRequest); the reply is picked up by
// handleGroupInfoFrame.
func (d *Driver) handleExternalJoin(roomID mls.RoomID) ([]Action, error) {
	if _, exists := d.rooms[roomID]; exists {
		return nil, ErrRoomAlreadyExists
	}

	d.pendingExternalJoins[roomID] = struct{}{}

	requestFrame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeGroupInfoRequest,
		RoomID:   roomID,
		SenderID: d.memberID,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building group info request frame: %w", err)
	}
	if err := d.sign(requestFrame); err != nil {
		return nil, err
	}

	return []Action{{Kind: ActionSend, Frame: requestFrame}}, nil
}

// handleFetchAndAddMember asks the server for userID's key package so
// it can subsequently be supplied to EventAddMembers. The fetched
// KeyPackage frame arrives asynchronously as any other received frame;
// wiring its automatic consumption into an AddMembers call is left to
// the caller, since doing it here would require threading a current
// time into frame-received handling that this driver's deterministic
// event model otherwise keeps out of it.
func (d *Driver) handleFetchAndAddMember(roomID mls.RoomID, userID uint64) ([]Action, error) {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, userID)

	frame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeKeyPackageFetch,
		RoomID:   roomID,
		SenderID: d.memberID,
	}, payload)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building key package fetch frame: %w", err)
	}
	if err := d.sign(frame); err != nil {
		return nil, err
	}

	return []Action{
		{Kind: ActionSend, Frame: frame},
		{Kind: ActionKeyPackageNeeded, UserID: userID},
	}, nil
}

// handleTick reports each pending commit that has exceeded ClientGroup's
// commit timeout with a Log action and clears the membership list the
// driver kept for it. The ClientGroup's own pending-commit record is not
// cleared: HasPendingCommit stays true and the Log action repeats on
// every later Tick until a commit merges. AddMembers and RemoveMembers
// accept a new commit once the pending one has timed out.
func (d *Driver) handleTick(now time.Time) ([]Action, error) {
	var actions []Action
	for roomID, entry := range d.rooms {
		if entry.group.HasPendingCommit() && entry.group.IsCommitTimeout(now, commitTimeout) {
			entry.pendingMembers = nil
			actions = append(actions, logAction(fmt.Sprintf("pending commit for room %x timed out", roomID)))
		}
	}
	return actions, nil
}

// freshStore (re)initializes the sender-key store for group's current
// epoch and membership.
func (d *Driver) freshStore(group *mls.ClientGroup) *senderkey.Store {
	secret := group.EpochSecret()
	return senderkey.InitializeEpoch(secret[:], group.Epoch(), memberIndices(group.Members()))
}

func (d *Driver) sign(frame *wire.Frame) error {
	signature, err := crypto.Sign(frame.SignedPrefix(), d.signSeed)
	if err != nil {
		return fmt.Errorf("clientdriver: signing frame: %w", err)
	}
	copy(frame.Header.Signature[:], signature[:])
	return nil
}

// memberIndices folds the group's uint64 member ids into the uint32
// sender-index space senderkey.Store ratchets are keyed by. This
// implementation doesn't model a separate MLS ratchet-tree leaf index;
// a member's own id truncated to 32 bits doubles as its sender index.
func memberIndices(members []uint64) []uint32 {
	out := make([]uint32, len(members))
	for i, m := range members {
		out[i] = uint32(m)
	}
	return out
}

// translateMlsActions converts ClientGroup actions into driver actions,
// filling in the room id ClientGroup's Action type doesn't carry. It is
// a method (not a free function) because ActionPublishGroupInfo must
// be signed before it can be sent, which needs our signing key.
func (d *Driver) translateMlsActions(roomID mls.RoomID, mlsActions []mls.Action) ([]Action, error) {
	actions := make([]Action, 0, len(mlsActions))
	for _, a := range mlsActions {
		switch a.Kind {
		case mls.ActionSendCommit, mls.ActionSendWelcome, mls.ActionSendMessage:
			actions = append(actions, Action{Kind: ActionSend, Frame: a.Frame})
		case mls.ActionDeliverMessage:
			actions = append(actions, Action{Kind: ActionDeliverMessage, RoomID: roomID, SenderID: a.Sender, Plaintext: a.Plaintext})
		case mls.ActionRemoveGroup:
			actions = append(actions, Action{Kind: ActionRoomRemoved, RoomID: roomID, Reason: a.Reason})
		case mls.ActionPublishGroupInfo:
			frame, err := wire.New(wire.FrameHeader{
				Opcode:   wire.OpcodeGroupInfo,
				RoomID:   roomID,
				SenderID: d.memberID,
				Epoch:    a.Epoch,
			}, a.Bytes)
			if err != nil {
				return nil, fmt.Errorf("clientdriver: building group info frame: %w", err)
			}
			if err := d.sign(frame); err != nil {
				return nil, err
			}
			actions = append(actions, Action{Kind: ActionSend, Frame: frame})
		case mls.ActionLog:
			actions = append(actions, logAction(a.Message))
		}
	}
	return actions, nil
}

// buildSyncRequest builds a SyncRequest frame resuming from the log
// index immediately after the last one entry has observed.
func (d *Driver) buildSyncRequest(roomID mls.RoomID, entry *roomEntry) (*wire.Frame, error) {
	from := uint64(0)
	if entry.haveLogIndex {
		from = entry.lastLogIndex + 1
	}
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, from)

	frame, err := wire.New(wire.FrameHeader{
		Opcode:   wire.OpcodeSyncRequest,
		RoomID:   roomID,
		SenderID: d.memberID,
	}, payload)
	if err != nil {
		return nil, fmt.Errorf("clientdriver: building sync request frame: %w", err)
	}
	if err := d.sign(frame); err != nil {
		return nil, err
	}
	return frame, nil
}

const commitTimeout = 30 * time.Second

// encodeEncryptedMessage lays out epoch_be(8) || sender_index_be(4) ||
// generation_be(4) || nonce(24) || ciphertext, the AppMessage frame
// payload format.
func encodeEncryptedMessage(m *senderkey.EncryptedMessage) []byte {
	out := make([]byte, 0, 8+4+4+24+len(m.Ciphertext))
	out = binary.BigEndian.AppendUint64(out, m.Epoch)
	out = binary.BigEndian.AppendUint32(out, m.SenderIndex)
	out = binary.BigEndian.AppendUint32(out, m.Generation)
	out = append(out, m.Nonce[:]...)
	out = append(out, m.Ciphertext...)
	return out
}

func decodeEncryptedMessage(b []byte) (*senderkey.EncryptedMessage, error) {
	const fixedSize = 8 + 4 + 4 + 24
	if len(b) < fixedSize {
		return nil, fmt.Errorf("clientdriver: app message payload truncated: have %d bytes, need at least %d", len(b), fixedSize)
	}

	m := &senderkey.EncryptedMessage{
		Epoch:       binary.BigEndian.Uint64(b[0:8]),
		SenderIndex: binary.BigEndian.Uint32(b[8:12]),
		Generation:  binary.BigEndian.Uint32(b[12:16]),
	}
	copy(m.Nonce[:], b[16:40])
	m.Ciphertext = append([]byte(nil), b[40:]...)
	return m, nil
}
