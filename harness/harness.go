// Package harness runs a server driver and any number of client
// drivers in a single process over a shared SimulatedEnv, so a
// multi-member scenario runs from a seed without a real network. The
// clock, group secrets, signing keys and message nonces come from the
// seeded source; X25519 keys and Noise handshake randomness come from
// crypto/rand, so Welcome frames differ between runs. Every driver
// remains sans-I/O; the Cluster is the
// transport shell that ferries each returned Action to whichever peer
// it targets and calls back into that peer's HandleEvent/HandleFrame.
package harness

import (
	"fmt"
	"sort"
	"time"

	"github.com/opd-ai/kalandra/clientdriver"
	"github.com/opd-ai/kalandra/env"
	"github.com/opd-ai/kalandra/mls"
	"github.com/opd-ai/kalandra/serverdriver"
	"github.com/opd-ai/kalandra/storage"
	"github.com/opd-ai/kalandra/wire"
)

// DeliveredMessage records one plaintext a client driver handed back
// via ActionDeliverMessage, for scenario assertions.
type DeliveredMessage struct {
	MemberID  uint64
	RoomID    mls.RoomID
	SenderID  uint64
	LogIndex  uint64
	Plaintext []byte
}

// Cluster wires one serverdriver.Driver to N clientdriver.Drivers
// sharing a single virtual clock and seeded RNG. Call AddClient to
// bootstrap a member's session, then Drive to feed it events; Cluster
// takes care of routing every Action either driver returns to the
// right peer.
type Cluster struct {
	clock *env.SimulatedEnv
	store storage.Storage

	server  *serverdriver.Driver
	clients map[uint64]*clientdriver.Driver

	sessionOf map[uint64]uint64 // memberID -> sessionID
	memberOf  map[uint64]uint64 // sessionID -> memberID

	nextSession uint64

	delivered []DeliveredMessage
	logLines  []string
}

// NewCluster creates a Cluster whose virtual clock starts at start and
// is seeded for reproducibility. store backs the server driver
// directly; pass a chaosstorage.Storage to exercise fault-handling
// scenarios.
func NewCluster(seed int64, start time.Time, store storage.Storage) *Cluster {
	return &Cluster{
		clock:       env.NewSimulatedEnv(seed, start),
		store:       store,
		server:      serverdriver.New(store),
		clients:     make(map[uint64]*clientdriver.Driver),
		sessionOf:   make(map[uint64]uint64),
		memberOf:    make(map[uint64]uint64),
		nextSession: 1,
	}
}

// Clock returns the cluster's shared virtual clock.
func (c *Cluster) Clock() *env.SimulatedEnv { return c.clock }

// Server returns the underlying server driver, for assertions against
// its accessor methods (HasRoom, RoomEpoch, ConnectionCount, ...).
func (c *Cluster) Server() *serverdriver.Driver { return c.server }

// Client returns memberID's driver, if it has joined the cluster.
func (c *Cluster) Client(memberID uint64) (*clientdriver.Driver, bool) {
	d, ok := c.clients[memberID]
	return d, ok
}

// SessionID returns the server-side session id bound to memberID.
func (c *Cluster) SessionID(memberID uint64) (uint64, bool) {
	id, ok := c.sessionOf[memberID]
	return id, ok
}

// DeliveredMessages returns every plaintext any client driver has
// delivered so far, in delivery order.
func (c *Cluster) DeliveredMessages() []DeliveredMessage { return c.delivered }

// Log returns every diagnostic line emitted by either driver or the
// cluster itself, in emission order.
func (c *Cluster) Log() []string { return c.logLines }

// AddClient creates a new client driver for memberID, registers its
// session with the server, and completes the Hello handshake. The
// returned driver is ready to receive Drive calls.
//
// Hello/session authentication is connection-level bootstrapping, not
// part of the room/MLS domain a clientdriver.Driver models, so the
// cluster synthesizes the Hello frame itself rather than asking the
// client driver to build one.
func (c *Cluster) AddClient(memberID uint64) (*clientdriver.Driver, error) {
	if _, exists := c.clients[memberID]; exists {
		return nil, fmt.Errorf("harness: member %d already joined", memberID)
	}

	driver, err := clientdriver.New(memberID, env.Reader(c.clock))
	if err != nil {
		return nil, fmt.Errorf("harness: creating client driver: %w", err)
	}
	c.clients[memberID] = driver

	sessionID := c.nextSession
	c.nextSession++
	c.sessionOf[memberID] = sessionID
	c.memberOf[sessionID] = memberID

	if err := c.executeServerActions(c.server.RegisterSession(sessionID)); err != nil {
		return nil, err
	}

	hello, err := wire.New(wire.FrameHeader{Opcode: wire.OpcodeHello, SenderID: memberID}, nil)
	if err != nil {
		return nil, fmt.Errorf("harness: building hello frame: %w", err)
	}
	actions, err := c.server.HandleFrame(sessionID, hello, c.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("harness: hello handshake for member %d: %w", memberID, err)
	}
	if err := c.executeServerActions(actions); err != nil {
		return nil, err
	}

	return driver, nil
}

// Drive feeds event into memberID's client driver and executes every
// resulting action, routing sends to the server and app messages into
// DeliveredMessages. It returns the actions the driver itself produced,
// for scenario assertions (e.g. checking for ActionRoomJoined).
func (c *Cluster) Drive(memberID uint64, event clientdriver.Event) ([]clientdriver.Action, error) {
	driver, ok := c.clients[memberID]
	if !ok {
		return nil, fmt.Errorf("harness: unknown client %d", memberID)
	}

	actions, err := driver.HandleEvent(event)
	if err != nil {
		return nil, fmt.Errorf("harness: member %d handling event: %w", memberID, err)
	}
	if err := c.executeClientActions(memberID, actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// Advance moves the virtual clock forward by d and delivers EventTick
// to every client driver in member-id order, so pending-commit
// timeouts and other time-driven behavior fire deterministically.
func (c *Cluster) Advance(d time.Duration) error {
	c.clock.Advance(d)
	now := c.clock.Now()

	memberIDs := make([]uint64, 0, len(c.clients))
	for memberID := range c.clients {
		memberIDs = append(memberIDs, memberID)
	}
	sort.Slice(memberIDs, func(i, j int) bool { return memberIDs[i] < memberIDs[j] })

	for _, memberID := range memberIDs {
		driver := c.clients[memberID]
		actions, err := driver.HandleEvent(clientdriver.Event{Kind: clientdriver.EventTick, Now: now})
		if err != nil {
			return fmt.Errorf("harness: member %d tick: %w", memberID, err)
		}
		if err := c.executeClientActions(memberID, actions); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cluster) executeClientActions(memberID uint64, actions []clientdriver.Action) error {
	for _, a := range actions {
		switch a.Kind {
		case clientdriver.ActionSend:
			sessionID, ok := c.sessionOf[memberID]
			if !ok {
				continue
			}
			serverActions, err := c.server.HandleFrame(sessionID, a.Frame, c.clock.Now())
			if err != nil {
				return fmt.Errorf("harness: server handling frame from member %d: %w", memberID, err)
			}
			if err := c.executeServerActions(serverActions); err != nil {
				return err
			}

		case clientdriver.ActionDeliverMessage:
			c.delivered = append(c.delivered, DeliveredMessage{
				MemberID:  memberID,
				RoomID:    a.RoomID,
				SenderID:  a.SenderID,
				LogIndex:  a.LogIndex,
				Plaintext: a.Plaintext,
			})

		case clientdriver.ActionRoomJoined:
			if sessionID, ok := c.sessionOf[memberID]; ok {
				c.server.SubscribeToRoom(sessionID, [16]byte(a.RoomID))
			}

		case clientdriver.ActionRequestSync:
			c.logLines = append(c.logLines, fmt.Sprintf(
				"member %d requested sync for room %x (epoch %d -> %d)", memberID, a.RoomID, a.FromEpoch, a.ToEpoch))

		case clientdriver.ActionLog:
			c.logLines = append(c.logLines, a.Message)
		}
	}
	return nil
}

func (c *Cluster) executeServerActions(actions []serverdriver.Action) error {
	for _, a := range actions {
		switch a.Kind {
		case serverdriver.ActionSend:
			memberID, ok := c.memberOf[a.SessionID]
			if !ok {
				c.logLines = append(c.logLines, fmt.Sprintf("harness: send to unknown session %d dropped", a.SessionID))
				continue
			}
			if err := c.deliverFrameToClient(memberID, a.Frame); err != nil {
				return err
			}

		case serverdriver.ActionPersistFrame:
			if err := c.store.StoreFrame(a.RoomID, a.LogIndex, a.Frame); err != nil {
				return fmt.Errorf("harness: persisting frame: %w", err)
			}

		case serverdriver.ActionPersistMlsState:
			if err := c.store.StoreMlsState(a.RoomID, a.State); err != nil {
				return fmt.Errorf("harness: persisting mls state: %w", err)
			}

		case serverdriver.ActionPersistGroupInfo:
			if err := c.store.StoreGroupInfo(a.RoomID, a.Epoch, a.Bytes); err != nil {
				return fmt.Errorf("harness: persisting group info: %w", err)
			}

		case serverdriver.ActionCloseSession:
			if memberID, ok := c.memberOf[a.SessionID]; ok {
				delete(c.sessionOf, memberID)
			}
			delete(c.memberOf, a.SessionID)

		case serverdriver.ActionLog:
			c.logLines = append(c.logLines, a.Message)
		}
	}
	return nil
}

func (c *Cluster) deliverFrameToClient(memberID uint64, frame *wire.Frame) error {
	driver, ok := c.clients[memberID]
	if !ok {
		c.logLines = append(c.logLines, fmt.Sprintf("harness: frame for unjoined member %d dropped", memberID))
		return nil
	}

	actions, err := driver.HandleEvent(clientdriver.Event{Kind: clientdriver.EventFrameReceived, Frame: frame})
	if err != nil {
		return fmt.Errorf("harness: member %d handling received frame: %w", memberID, err)
	}
	return c.executeClientActions(memberID, actions)
}
