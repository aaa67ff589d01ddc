package presence

import "callrelay/internal/configs"

// MutePolicy decides whether actorID may change the mute state of targetID.
// The coordinator has already checked that both users are members of room.
type MutePolicy interface {
	CanMute(room *Room, actorID, targetID string) bool
}

// MemberMutePolicy lets any room member mute any other member, themselves included.
type MemberMutePolicy struct{}

// CanMute always allows.
func (MemberMutePolicy) CanMute(*Room, string, string) bool {
	return true
}

// CreatorMutePolicy gives mute authority only to the user who created the room.
type CreatorMutePolicy struct{}

// CanMute allows only the room creator.
func (CreatorMutePolicy) CanMute(room *Room, actorID, _ string) bool {
	return room != nil && room.CreatorID == actorID
}

// PolicyFromConfig maps a configs.MutePolicy* name to a policy. Unknown names fall
// back to MemberMutePolicy.
func PolicyFromConfig(name string) MutePolicy {
	if name == configs.MutePolicyCreator {
		return CreatorMutePolicy{}
	}
	return MemberMutePolicy{}
}
