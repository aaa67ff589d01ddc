package presence

import "slices"

// SpeakingTracker keeps the set of users currently flagged as speaking, per room.
type SpeakingTracker struct {
	rooms map[string]map[string]struct{}
}

// NewSpeakingTracker returns an empty SpeakingTracker.
func NewSpeakingTracker() *SpeakingTracker {
	return &SpeakingTracker{rooms: make(map[string]map[string]struct{})}
}

// Set flags or clears userID as speaking in roomID. Repeated calls with the same
// state are no-ops.
func (s *SpeakingTracker) Set(roomID, userID string, speaking bool) {
	set, ok := s.rooms[roomID]

	if speaking {
		if !ok {
			set = make(map[string]struct{})
			s.rooms[roomID] = set
		}
		set[userID] = struct{}{}
		return
	}

	s.ClearUser(roomID, userID)
}

// IsSpeaking reports whether userID is flagged in roomID.
func (s *SpeakingTracker) IsSpeaking(roomID, userID string) bool {
	_, ok := s.rooms[roomID][userID]
	return ok
}

// Speakers returns the sorted speaking users of roomID.
func (s *SpeakingTracker) Speakers(roomID string) []string {
	set := s.rooms[roomID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClearUser removes userID's flag in roomID.
func (s *SpeakingTracker) ClearUser(roomID, userID string) {
	set, ok := s.rooms[roomID]
	if !ok {
		return
	}

	delete(set, userID)
	if len(set) == 0 {
		delete(s.rooms, roomID)
	}
}

// PurgeRoom drops every flag in roomID.
func (s *SpeakingTracker) PurgeRoom(roomID string) {
	delete(s.rooms, roomID)
}

func (s *SpeakingTracker) reset() {
	clear(s.rooms)
}
