package registry

// SessionInfo describes a registered session.
type SessionInfo struct {
	// UserID is set once the session has authenticated.
	UserID uint64
	// Authenticated reports whether UserID is meaningful.
	Authenticated bool
}

// NewSessionInfo returns an unauthenticated SessionInfo.
func NewSessionInfo() SessionInfo {
	return SessionInfo{}
}

// AuthenticatedSessionInfo returns a SessionInfo for an authenticated
// session bound to userID.
func AuthenticatedSessionInfo(userID uint64) SessionInfo {
	return SessionInfo{UserID: userID, Authenticated: true}
}

// ConnectionRegistry tracks sessions and their room subscriptions with
// bidirectional maps for O(1) lookups in either direction.
type ConnectionRegistry struct {
	sessions          map[uint64]SessionInfo
	roomSubscriptions map[[16]byte]map[uint64]struct{}
	sessionRooms      map[uint64]map[[16]byte]struct{}
}

// New creates an empty ConnectionRegistry.
func New() *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions:          make(map[uint64]SessionInfo),
		roomSubscriptions: make(map[[16]byte]map[uint64]struct{}),
		sessionRooms:      make(map[uint64]map[[16]byte]struct{}),
	}
}

// RegisterSession adds a new session. Returns false if sessionID is
// already registered.
func (r *ConnectionRegistry) RegisterSession(sessionID uint64, info SessionInfo) bool {
	if _, exists := r.sessions[sessionID]; exists {
		return false
	}
	r.sessions[sessionID] = info
	r.sessionRooms[sessionID] = make(map[[16]byte]struct{})
	return true
}

// UnregisterSession removes a session and all of its room
// subscriptions. Returns the session's info and the set of rooms it
// was subscribed to; ok is false if the session wasn't registered.
func (r *ConnectionRegistry) UnregisterSession(sessionID uint64) (info SessionInfo, rooms []([16]byte), ok bool) {
	info, ok = r.sessions[sessionID]
	if !ok {
		return SessionInfo{}, nil, false
	}
	delete(r.sessions, sessionID)

	roomSet := r.sessionRooms[sessionID]
	delete(r.sessionRooms, sessionID)

	rooms = make([][16]byte, 0, len(roomSet))
	for roomID := range roomSet {
		rooms = append(rooms, roomID)
		if subscribers, exists := r.roomSubscriptions[roomID]; exists {
			delete(subscribers, sessionID)
			if len(subscribers) == 0 {
				delete(r.roomSubscriptions, roomID)
			}
		}
	}

	return info, rooms, true
}

// Session returns the info for sessionID.
func (r *ConnectionRegistry) Session(sessionID uint64) (SessionInfo, bool) {
	info, ok := r.sessions[sessionID]
	return info, ok
}

// UpdateSession replaces the stored info for an already-registered
// session. Returns false if the session isn't registered.
func (r *ConnectionRegistry) UpdateSession(sessionID uint64, info SessionInfo) bool {
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}
	r.sessions[sessionID] = info
	return true
}

// SessionForUser returns the session id of the authenticated session
// bound to userID, if any. If more than one session has authenticated
// as the same user, an arbitrary one of them is returned.
func (r *ConnectionRegistry) SessionForUser(userID uint64) (sessionID uint64, ok bool) {
	for id, info := range r.sessions {
		if info.Authenticated && info.UserID == userID {
			return id, true
		}
	}
	return 0, false
}

// HasSession reports whether sessionID is registered.
func (r *ConnectionRegistry) HasSession(sessionID uint64) bool {
	_, ok := r.sessions[sessionID]
	return ok
}

// Subscribe subscribes sessionID to roomID. Returns false if the
// session is not registered.
func (r *ConnectionRegistry) Subscribe(sessionID uint64, roomID [16]byte) bool {
	if _, ok := r.sessions[sessionID]; !ok {
		return false
	}

	if r.roomSubscriptions[roomID] == nil {
		r.roomSubscriptions[roomID] = make(map[uint64]struct{})
	}
	r.roomSubscriptions[roomID][sessionID] = struct{}{}

	if r.sessionRooms[sessionID] == nil {
		r.sessionRooms[sessionID] = make(map[[16]byte]struct{})
	}
	r.sessionRooms[sessionID][roomID] = struct{}{}

	return true
}

// Unsubscribe removes sessionID's subscription to roomID. Returns true
// if the session was subscribed and is now unsubscribed from both maps.
func (r *ConnectionRegistry) Unsubscribe(sessionID uint64, roomID [16]byte) bool {
	removedFromRoom := false
	if subscribers, ok := r.roomSubscriptions[roomID]; ok {
		if _, present := subscribers[sessionID]; present {
			delete(subscribers, sessionID)
			removedFromRoom = true
		}
		if len(subscribers) == 0 {
			delete(r.roomSubscriptions, roomID)
		}
	}

	removedFromSession := false
	if rooms, ok := r.sessionRooms[sessionID]; ok {
		if _, present := rooms[roomID]; present {
			delete(rooms, roomID)
			removedFromSession = true
		}
	}

	return removedFromRoom && removedFromSession
}

// IsSubscribed reports whether sessionID is subscribed to roomID.
func (r *ConnectionRegistry) IsSubscribed(sessionID uint64, roomID [16]byte) bool {
	subscribers, ok := r.roomSubscriptions[roomID]
	if !ok {
		return false
	}
	_, present := subscribers[sessionID]
	return present
}

// SessionsInRoom returns every session subscribed to roomID.
func (r *ConnectionRegistry) SessionsInRoom(roomID [16]byte) []uint64 {
	subscribers, ok := r.roomSubscriptions[roomID]
	if !ok {
		return nil
	}
	out := make([]uint64, 0, len(subscribers))
	for sessionID := range subscribers {
		out = append(out, sessionID)
	}
	return out
}

// RoomsForSession returns every room sessionID is subscribed to.
func (r *ConnectionRegistry) RoomsForSession(sessionID uint64) [][16]byte {
	rooms, ok := r.sessionRooms[sessionID]
	if !ok {
		return nil
	}
	out := make([][16]byte, 0, len(rooms))
	for roomID := range rooms {
		out = append(out, roomID)
	}
	return out
}

// SessionCount returns the total number of registered sessions.
func (r *ConnectionRegistry) SessionCount() int {
	return len(r.sessions)
}

// RoomSessionCount returns the number of sessions subscribed to roomID.
func (r *ConnectionRegistry) RoomSessionCount(roomID [16]byte) int {
	return len(r.roomSubscriptions[roomID])
}
