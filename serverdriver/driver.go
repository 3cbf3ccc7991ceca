package serverdriver

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/opd-ai/kalandra/config"
	"github.com/opd-ai/kalandra/registry"
	"github.com/opd-ai/kalandra/room"
	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
	"github.com/sirupsen/logrus"
)

// Driver is the server's single-threaded event/action core. One Driver
// serves every session and room on a listener; it holds no network
// connections itself.
type Driver struct {
	sessions    *registry.ConnectionRegistry
	rooms       *room.Manager
	keyPackages *KeyPackageRegistry
	store       storage.Storage
	syncLimit   int
}

// New creates a Driver backed by store, using default limits.
func New(store storage.Storage) *Driver {
	return NewWithConfig(store, config.Default())
}

// NewWithConfig creates a Driver backed by store, sizing its
// KeyPackage registry and sync response page length from cfg.
func NewWithConfig(store storage.Storage, cfg *config.Config) *Driver {
	return &Driver{
		sessions:    registry.New(),
		rooms:       room.New(),
		keyPackages: NewKeyPackageRegistryWithCapacity(cfg.KeyPackage.Capacity),
		store:       store,
		syncLimit:   cfg.Sync.MaxFramesPerResponse,
	}
}

// RegisterSession registers a newly connected, unauthenticated session.
func (d *Driver) RegisterSession(sessionID uint64) []Action {
	if !d.sessions.RegisterSession(sessionID, registry.NewSessionInfo()) {
		return []Action{logAction(fmt.Sprintf("session %d already registered", sessionID))}
	}
	return nil
}

// UnregisterSession removes a disconnected session and its room
// subscriptions.
func (d *Driver) UnregisterSession(sessionID uint64) []Action {
	_, _, ok := d.sessions.UnregisterSession(sessionID)
	if !ok {
		return nil
	}
	return nil
}

// SubscribeToRoom adds sessionID to roomID's broadcast set, so a
// future room frame reaches it via ActionSend. Transport shells call
// this once a client has been routed a Welcome or otherwise confirmed
// as a room member; it performs no membership validation itself.
func (d *Driver) SubscribeToRoom(sessionID uint64, roomID [16]byte) bool {
	return d.sessions.Subscribe(sessionID, roomID)
}

// UnsubscribeFromRoom removes sessionID from roomID's broadcast set.
func (d *Driver) UnsubscribeFromRoom(sessionID uint64, roomID [16]byte) bool {
	return d.sessions.Unsubscribe(sessionID, roomID)
}

// HasRoom reports whether roomID has been created on this server.
func (d *Driver) HasRoom(roomID [16]byte) bool {
	return d.rooms.HasRoom(roomID)
}

// RoomEpoch returns roomID's current MLS epoch as the server's room
// manager sees it. ok is false if the room has no MLS state yet (only
// a bare room with no Commit observed) or doesn't exist.
func (d *Driver) RoomEpoch(roomID [16]byte) (epoch uint64, ok bool, err error) {
	state, err := d.rooms.GroupState(roomID, d.store)
	if err != nil {
		return 0, false, err
	}
	if state == nil {
		return 0, false, nil
	}
	return state.Epoch, true, nil
}

// ConnectionCount returns the number of currently registered sessions.
func (d *Driver) ConnectionCount() int {
	return d.sessions.SessionCount()
}

// HandleFrame processes a frame received from sessionID and returns
// the actions the caller must execute, in order.
func (d *Driver) HandleFrame(sessionID uint64, frame *wire.Frame, now time.Time) ([]Action, error) {
	if !d.sessions.HasSession(sessionID) {
		return nil, ErrSessionNotRegistered
	}

	logrus.WithFields(logrus.Fields{
		"function":   "HandleFrame",
		"session_id": sessionID,
		"opcode":     frame.Header.Opcode.String(),
	}).Debug("handling frame")

	switch frame.Header.Opcode {
	case wire.OpcodeHello:
		return d.handleHello(sessionID, frame)
	case wire.OpcodeKeyPackagePublish:
		return d.handleKeyPackagePublish(sessionID, frame)
	case wire.OpcodeKeyPackageFetch:
		return d.handleKeyPackageFetch(sessionID, frame)
	case wire.OpcodeWelcome:
		return d.handleWelcome(frame)
	case wire.OpcodeSyncRequest:
		return d.handleSyncRequest(sessionID, frame)
	case wire.OpcodeGroupInfoRequest:
		return d.handleGroupInfoRequest(sessionID, frame)
	default:
		return d.handleRoomFrame(frame, now)
	}
}

func (d *Driver) handleHello(sessionID uint64, frame *wire.Frame) ([]Action, error) {
	userID := frame.Header.SenderID
	d.sessions.UpdateSession(sessionID, registry.AuthenticatedSessionInfo(userID))

	reply, err := wire.New(wire.FrameHeader{Opcode: wire.OpcodeHelloReply}, nil)
	if err != nil {
		return nil, fmt.Errorf("serverdriver: building hello reply: %w", err)
	}

	return []Action{{Kind: ActionSend, SessionID: sessionID, Frame: reply}}, nil
}

func (d *Driver) handleKeyPackagePublish(sessionID uint64, frame *wire.Frame) ([]Action, error) {
	info, ok := d.sessions.Session(sessionID)
	if !ok || !info.Authenticated {
		return nil, ErrUnauthenticated
	}

	result := d.keyPackages.Store(info.UserID, KeyPackageEntry{Bytes: frame.Payload})

	message := "key package stored"
	if result == KeyPackageEvicted {
		message = "key package stored, oldest entry evicted"
	}
	return []Action{logAction(message)}, nil
}

func (d *Driver) handleKeyPackageFetch(sessionID uint64, frame *wire.Frame) ([]Action, error) {
	if len(frame.Payload) < 8 {
		return nil, fmt.Errorf("serverdriver: key package fetch payload too short")
	}
	targetUserID := binary.BigEndian.Uint64(frame.Payload[:8])

	entry, ok := d.keyPackages.Take(targetUserID)
	if !ok {
		return []Action{logAction(fmt.Sprintf("no key package available for user %d", targetUserID))}, nil
	}

	reply, err := wire.New(wire.FrameHeader{Opcode: wire.OpcodeKeyPackage, SenderID: targetUserID}, entry.Bytes)
	if err != nil {
		return nil, fmt.Errorf("serverdriver: building key package response: %w", err)
	}

	return []Action{{Kind: ActionSend, SessionID: sessionID, Frame: reply}}, nil
}

// handleWelcome routes a Welcome frame to the session whose
// authenticated user id matches the frame's recipient id (LogIndex
// doubles as recipient id for this opcode, per the wire format).
func (d *Driver) handleWelcome(frame *wire.Frame) ([]Action, error) {
	recipient := frame.Header.RecipientID()

	sessionID, ok := d.sessions.SessionForUser(recipient)
	if !ok {
		return []Action{logAction(fmt.Sprintf("welcome recipient %d not currently connected", recipient))}, nil
	}

	return []Action{{Kind: ActionSend, SessionID: sessionID, Frame: frame}}, nil
}

func (d *Driver) handleSyncRequest(sessionID uint64, frame *wire.Frame) ([]Action, error) {
	if len(frame.Payload) < 8 {
		return nil, fmt.Errorf("serverdriver: sync request payload too short")
	}
	from := binary.BigEndian.Uint64(frame.Payload[:8])

	frames, err := d.store.LoadFrames(frame.Header.RoomID, from, d.syncLimit)
	if err != nil {
		if storErr, ok := err.(*storage.StorageError); ok && storErr.Kind == storage.ErrNotFound {
			return []Action{logAction("sync requested for unknown room")}, nil
		}
		return nil, fmt.Errorf("serverdriver: loading frames for sync: %w", err)
	}

	actions := make([]Action, 0, len(frames))
	for _, f := range frames {
		actions = append(actions, Action{Kind: ActionSend, SessionID: sessionID, Frame: f})
	}
	return actions, nil
}

// handleGroupInfoRequest answers a bare GroupInfoRequest directly from
// the room's latest stored GroupInfo snapshot, without routing through
// the room manager: an external joiner is by definition not yet a
// member, so this never touches sequencing or membership validation.
func (d *Driver) handleGroupInfoRequest(sessionID uint64, frame *wire.Frame) ([]Action, error) {
	epoch, bytes, ok, err := d.store.LoadGroupInfo(frame.Header.RoomID)
	if err != nil {
		return nil, fmt.Errorf("serverdriver: loading group info: %w", err)
	}
	if !ok {
		return []Action{logAction(fmt.Sprintf("group info requested for room %x with none stored", frame.Header.RoomID))}, nil
	}

	reply, err := wire.New(wire.FrameHeader{
		Opcode: wire.OpcodeGroupInfo,
		RoomID: frame.Header.RoomID,
		Epoch:  epoch,
	}, bytes)
	if err != nil {
		return nil, fmt.Errorf("serverdriver: building group info reply: %w", err)
	}

	return []Action{{Kind: ActionSend, SessionID: sessionID, Frame: reply}}, nil
}

// handleRoomFrame dispatches a frame to the room manager, implicitly
// creating the room on its first frame (of any opcode and epoch, since
// ValidateFrameNoState accepts every frame) so that no separate wire
// opcode for room creation is needed.
func (d *Driver) handleRoomFrame(frame *wire.Frame, now time.Time) ([]Action, error) {
	roomID := frame.Header.RoomID
	if !d.rooms.HasRoom(roomID) {
		if err := d.rooms.CreateRoom(roomID, frame.Header.SenderID, now, d.store); err != nil {
			return nil, fmt.Errorf("serverdriver: creating room: %w", err)
		}
	}

	roomActions, err := d.rooms.ProcessFrame(frame, d.store)
	if err != nil {
		return nil, fmt.Errorf("serverdriver: processing room frame: %w", err)
	}

	var actions []Action
	for _, ra := range roomActions {
		switch ra.Kind {
		case room.ActionPersistFrame:
			actions = append(actions, Action{
				Kind:     ActionPersistFrame,
				RoomID:   ra.RoomID,
				LogIndex: ra.LogIndex,
				Frame:    ra.Frame,
			})
		case room.ActionPersistMlsState:
			actions = append(actions, Action{Kind: ActionPersistMlsState, RoomID: ra.RoomID, State: ra.State})
		case room.ActionPersistGroupInfo:
			actions = append(actions, Action{Kind: ActionPersistGroupInfo, RoomID: ra.RoomID, Epoch: ra.Epoch, Bytes: ra.Bytes})
		case room.ActionBroadcast:
			senderSessionID, senderConnected := d.sessions.SessionForUser(ra.Frame.Header.SenderID)
			for _, sessionID := range d.sessions.SessionsInRoom(ra.RoomID) {
				if ra.ExcludeSender && senderConnected && sessionID == senderSessionID {
					continue
				}
				actions = append(actions, Action{Kind: ActionSend, SessionID: sessionID, Frame: ra.Frame})
			}
		case room.ActionReject:
			actions = append(actions, logAction(fmt.Sprintf("frame rejected for sender %d: %s", ra.SenderID, ra.Reason)))
		}
	}
	return actions, nil
}
