package clientdriver

import (
	"time"

	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/wire"
)

// EventKind discriminates the Event sum type fed into Driver.HandleEvent.
type EventKind int

const (
	// EventFrameReceived delivers a frame received from the server.
	EventFrameReceived EventKind = iota
	// EventTick drives timeout processing forward.
	EventTick
	// EventSendMessage requests an application message be encrypted
	// and sent to a room.
	EventSendMessage
	// EventCreateRoom requests a brand new room be created locally.
	EventCreateRoom
	// EventJoinRoom requests joining a room via a Welcome message
	// received out of band.
	EventJoinRoom
	// EventLeaveRoom requests leaving a room, discarding local state.
	EventLeaveRoom
	// EventAddMembers requests adding members to a room we own state for.
	EventAddMembers
	// EventRemoveMembers requests removing members from a room.
	EventRemoveMembers
	// EventPublishKeyPackage requests publishing a fresh key package
	// to the server so other members can invite us.
	EventPublishKeyPackage
	// EventExternalJoin requests joining a room via its public
	// GroupInfo rather than a personal Welcome.
	EventExternalJoin
	// EventFetchAndAddMember requests a user's key package be fetched
	// from the server so they can subsequently be added to a room.
	EventFetchAndAddMember
)

// Event is a single input to Driver.HandleEvent.
type Event struct {
	Kind EventKind

	// FrameReceived
	Frame *wire.Frame

	// Tick
	Now time.Time

	// SendMessage, CreateRoom, JoinRoom, LeaveRoom, AddMembers,
	// RemoveMembers, ExternalJoin, FetchAndAddMember
	RoomID mls.RoomID

	// SendMessage
	Plaintext []byte

	// JoinRoom
	Welcome *wire.Frame

	// AddMembers
	KeyPackages [][]byte

	// RemoveMembers
	MemberIDs []uint64

	// FetchAndAddMember
	UserID uint64
}
