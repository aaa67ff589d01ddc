/*
Package errs defines the relay's business error codes and the CustomError type.

Codes are shared by the WebSocket `error` event and the JSON HTTP responses, so a
client can branch on the number regardless of which surface reported it.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that a required field was missing or malformed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound frame or body was not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrUnsupportedEvent indicates an inbound event name the relay does not handle.
	ErrUnsupportedEvent = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room Membership Errors
const (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = 2103

	// ErrRoomIsFull indicates that the room being joined has reached its capacity.
	ErrRoomIsFull = 2104

	// ErrAlreadyInRoom indicates a join for the room the connection is already in.
	ErrAlreadyInRoom = 2105

	// ErrNotInRoom indicates an action that requires room membership from a roomless connection.
	ErrNotInRoom = 2106
)

// 3xxx: Identity and Authority Errors
const (
	// ErrInvalidUserID indicates that the supplied user id is not a UUID.
	ErrInvalidUserID = 3001

	// ErrMuteNotAllowed indicates a mute toggle from a user without mute authority over the target.
	ErrMuteNotAllowed = 3002

	// ErrSessionKicked indicates that the connection was replaced by a newer one for the same user.
	ErrSessionKicked = 3004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000
)
