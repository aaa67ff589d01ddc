/*
Package presence is the in-memory heart of the relay: it tracks which user is in which
room, keeps exactly one live connection per user, forwards negotiation messages between
members of the same room, and owns mute and speaking state.

This file defines the event names and payloads exchanged with clients.
*/
package presence

import (
	"encoding/json"

	"callrelay/internal/app/user"
)

// Inbound events.
const (
	EventJoin            = "join"
	EventLeave           = "leave"
	EventToggleMute      = "toggle-participant-mute"
	EventSpeakingStatus  = "speaking-status"
	EventCheckConnection = "check-connection"
	EventCheckMuteStatus = "check-mute-status"
	EventPing            = "ping"
)

// Outbound events.
const (
	EventUserConnected          = "user-connected"
	EventUserLeft               = "user-left"
	EventUserDisconnected       = "user-disconnected"
	EventParticipants           = "participants"
	EventParticipantMuteChanged = "participant-mute-changed"
	EventForceMute              = "force-mute"
	EventSpeakingStatusUpdate   = "speaking-status-update"
	EventConnectionStatus       = "connection-status"
	EventMuteStatus             = "mute-status"
	EventPong                   = "pong"
	EventError                  = "error"
)

// RelayKind names a negotiation message that is forwarded between two peers.
// The same name is used inbound and outbound.
type RelayKind string

const (
	RelayOffer        RelayKind = "offer"
	RelayAnswer       RelayKind = "answer"
	RelayICECandidate RelayKind = "ice-candidate"
)

// field is the JSON key that carries the opaque payload for this kind.
func (k RelayKind) field() string {
	if k == RelayICECandidate {
		return "candidate"
	}
	return string(k)
}

// JoinRequest is the payload of a join event. GameID is accepted as an older
// spelling of RoomID.
type JoinRequest struct {
	RoomID   string `json:"roomId"`
	GameID   string `json:"gameId,omitempty"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func (r JoinRequest) room() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.GameID
}

// LeaveRequest is the payload of a leave event. Both fields are optional;
// when present they must match the sender's session.
type LeaveRequest struct {
	RoomID string `json:"roomId,omitempty"`
	GameID string `json:"gameId,omitempty"`
	UserID string `json:"userId,omitempty"`
}

func (r LeaveRequest) room() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.GameID
}

// relayRequest carries one of the three negotiation payloads and its target.
type relayRequest struct {
	TargetUserID string          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

func (r relayRequest) payload(kind RelayKind) json.RawMessage {
	switch kind {
	case RelayOffer:
		return r.Offer
	case RelayAnswer:
		return r.Answer
	default:
		return r.Candidate
	}
}

// MuteRequest is the payload of toggle-participant-mute.
type MuteRequest struct {
	TargetUserID string `json:"targetUserId"`
	IsMuted      bool   `json:"isMuted"`
}

// SpeakingRequest is the payload of speaking-status.
type SpeakingRequest struct {
	UserID     string `json:"userId,omitempty"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// MuteStatusRequest is the payload of check-mute-status. An empty target means the sender.
type MuteStatusRequest struct {
	TargetUserID string `json:"targetUserId,omitempty"`
}

// ParticipantsPayload is the full member list of a room.
type ParticipantsPayload []user.User

// MuteChangedPayload announces a target's effective mute state to the room.
type MuteChangedPayload struct {
	UserID    string   `json:"userId"`
	IsMuted   bool     `json:"isMuted"`
	MutedBy   []string `json:"mutedBy"`
	ChangedBy string   `json:"changedBy"`
}

// ForceMutePayload tells a user that others have (un)muted them.
type ForceMutePayload struct {
	IsMuted bool     `json:"isMuted"`
	MutedBy []string `json:"mutedBy"`
}

// SpeakingUpdatePayload announces a speaking indicator change.
type SpeakingUpdatePayload struct {
	UserID     string `json:"userId"`
	IsSpeaking bool   `json:"isSpeaking"`
}

// ConnectionStatusPayload answers check-connection.
type ConnectionStatusPayload struct {
	Connected        bool   `json:"connected"`
	ConnectionID     string `json:"connectionId"`
	UserID           string `json:"userId,omitempty"`
	RoomID           string `json:"roomId,omitempty"`
	ParticipantCount int    `json:"participantCount"`
	IsMuted          bool   `json:"isMuted"`
}

// MuteStatusPayload answers check-mute-status.
type MuteStatusPayload struct {
	UserID  string   `json:"userId"`
	IsMuted bool     `json:"isMuted"`
	MutedBy []string `json:"mutedBy"`
}

// ErrorPayload carries a rejected request's code and reason.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
