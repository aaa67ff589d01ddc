package presence

// Directory maps each user id to its single active session and each connection
// to the session it carries. It is not safe for concurrent use; the Coordinator
// serializes access.
type Directory struct {
	byUser map[string]*Session
	byConn map[string]*Session
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		byUser: make(map[string]*Session),
		byConn: make(map[string]*Session),
	}
}

// Register binds userID to conn and returns the resulting session. Any previous
// binding of userID or of conn is dropped; callers evict the previous session's room
// membership before calling Register.
func (d *Directory) Register(userID, username string, conn Conn) *Session {
	if prev, ok := d.byUser[userID]; ok && prev.Conn.ID() != conn.ID() {
		delete(d.byConn, prev.Conn.ID())
	}
	if prev, ok := d.byConn[conn.ID()]; ok && prev.UserID != userID {
		delete(d.byUser, prev.UserID)
	}

	s, ok := d.byConn[conn.ID()]
	if !ok || s.UserID != userID {
		s = &Session{Conn: conn, UserID: userID}
	}
	s.Username = username

	d.byUser[userID] = s
	d.byConn[conn.ID()] = s

	return s
}

// Lookup returns the live connection for userID, or nil.
func (d *Directory) Lookup(userID string) Conn {
	if s, ok := d.byUser[userID]; ok {
		return s.Conn
	}
	return nil
}

// SessionOf returns the session bound to userID, or nil.
func (d *Directory) SessionOf(userID string) *Session {
	return d.byUser[userID]
}

// SessionByConn returns the session carried by the connection with id connID, or nil.
func (d *Directory) SessionByConn(connID string) *Session {
	return d.byConn[connID]
}

// Unregister removes the binding for userID. It is a no-op for unknown users.
func (d *Directory) Unregister(userID string) {
	s, ok := d.byUser[userID]
	if !ok {
		return
	}

	delete(d.byUser, userID)
	if cur, ok := d.byConn[s.Conn.ID()]; ok && cur == s {
		delete(d.byConn, s.Conn.ID())
	}
}

// CurrentRoomOf returns the room the user on conn is in, or "".
func (d *Directory) CurrentRoomOf(conn Conn) string {
	if s, ok := d.byConn[conn.ID()]; ok {
		return s.RoomID
	}
	return ""
}

// Len returns the number of registered users.
func (d *Directory) Len() int {
	return len(d.byUser)
}

// reset drops every binding.
func (d *Directory) reset() {
	clear(d.byUser)
	clear(d.byConn)
}
