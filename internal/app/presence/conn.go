package presence

// Conn is the coordinator's view of one client transport. The coordinator never
// owns the connection; it only sends to it and, on session takeover or shutdown,
// asks it to close.
type Conn interface {
	// ID is unique per connection for the lifetime of the process.
	ID() string

	// Send queues a named event for delivery. It must not block: the coordinator
	// calls it while holding its lock.
	Send(event string, data any) error

	// Kick tells the client why it is being dropped and closes the connection.
	Kick(reason string)
}

// Session is the state the coordinator keeps for a joined connection.
type Session struct {
	Conn     Conn
	UserID   string
	Username string

	// RoomID is empty while the session is between rooms.
	RoomID string
}
