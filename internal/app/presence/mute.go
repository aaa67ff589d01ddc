package presence

import (
	"slices"
)

// MuteAuthority records, per target user, which users have muted them. A target is
// muted while at least one muter remains, so one participant unmuting does not undo
// another participant's mute.
type MuteAuthority struct {
	muters map[string]map[string]struct{}
}

// NewMuteAuthority returns an empty MuteAuthority.
func NewMuteAuthority() *MuteAuthority {
	return &MuteAuthority{muters: make(map[string]map[string]struct{})}
}

// SetMute records (muted) or withdraws (!muted) actorID's mute on targetID and
// reports whether the muter set changed.
func (m *MuteAuthority) SetMute(actorID, targetID string, muted bool) bool {
	set, ok := m.muters[targetID]

	if muted {
		if !ok {
			set = make(map[string]struct{})
			m.muters[targetID] = set
		}
		if _, exists := set[actorID]; exists {
			return false
		}
		set[actorID] = struct{}{}
		return true
	}

	if !ok {
		return false
	}
	if _, exists := set[actorID]; !exists {
		return false
	}

	delete(set, actorID)
	if len(set) == 0 {
		delete(m.muters, targetID)
	}
	return true
}

// IsMuted returns the effective mute state of targetID and the sorted list of muters.
// The list is never nil.
func (m *MuteAuthority) IsMuted(targetID string) (bool, []string) {
	set := m.muters[targetID]

	mutedBy := make([]string, 0, len(set))
	for id := range set {
		mutedBy = append(mutedBy, id)
	}
	slices.Sort(mutedBy)

	return len(mutedBy) > 0, mutedBy
}

// ClearTarget forgets every mute asserted on targetID. Mutes that targetID asserted
// on others are kept.
func (m *MuteAuthority) ClearTarget(targetID string) {
	delete(m.muters, targetID)
}

// Len returns the number of muted targets.
func (m *MuteAuthority) Len() int {
	return len(m.muters)
}

func (m *MuteAuthority) reset() {
	clear(m.muters)
}
