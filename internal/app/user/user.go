/*
Package user defines how a call participant is identified on the wire.
*/
package user

// User is a participant as announced to the other members of a room.
// ID is client-supplied and stable only as long as the client keeps reusing it;
// Username is a display name and need not be unique.
type User struct {
	ID       string `json:"userId"`
	Username string `json:"username"`
}
