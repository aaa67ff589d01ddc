/*
Package randx generates and validates the identifiers the relay deals with.

User ids are supplied by clients and must be canonical UUID strings; connection ids are
minted by the server for every accepted socket. Room ids are free-form but bounded.
*/
package randx

import (
	"unicode"

	"github.com/google/uuid"
)

const (
	// canonicalUUIDLength is the length of the hyphenated 8-4-4-4-12 form.
	canonicalUUIDLength = 36

	// MaxRoomIDLength caps client-supplied room identifiers.
	MaxRoomIDLength = 128
)

// ConnectionID returns a fresh random UUID v4 string identifying one transport connection.
func ConnectionID() string {
	return uuid.NewString()
}

// IsValidUserID reports whether id is a UUID in canonical hyphenated form.
// Braced, URN and unhyphenated spellings are rejected so one user cannot appear under two ids.
func IsValidUserID(id string) bool {
	if len(id) != canonicalUUIDLength {
		return false
	}
	return uuid.Validate(id) == nil
}

// IsValidRoomID reports whether id is a non-empty, printable identifier of bounded length.
func IsValidRoomID(id string) bool {
	if id == "" || len(id) > MaxRoomIDLength {
		return false
	}

	for _, r := range id {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}
