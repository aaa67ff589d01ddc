package errs

import "net/http"

// errorMap holds the message template and HTTP status for every known code.
// A zero Status means the error is reported with HTTP 200 and a non-zero body code.
var errorMap = map[int]CustomError{
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Malformed message."},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event: %s."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	ErrRoomNotFound:  {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomIsFull:    {Code: ErrRoomIsFull, Message: "Room is full."},
	ErrAlreadyInRoom: {Code: ErrAlreadyInRoom, Message: "You are already in this room."},
	ErrNotInRoom:     {Code: ErrNotInRoom, Message: "You must join a room first."},

	ErrInvalidUserID:  {Code: ErrInvalidUserID, Message: "Invalid user id."},
	ErrMuteNotAllowed: {Code: ErrMuteNotAllowed, Message: "You are not allowed to mute this participant."},
	ErrSessionKicked:  {Code: ErrSessionKicked, Message: "You joined from another connection."},

	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
