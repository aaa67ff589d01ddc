package presence

import (
	"slices"
	"strings"
	"time"

	"callrelay/internal/app/user"
)

// RoomStats describes one room in a Stats snapshot.
type RoomStats struct {
	ID          string `json:"id"`
	Members     int    `json:"members"`
	Speaking    int    `json:"speaking"`
	IdlePending bool   `json:"idlePending"`
}

// Stats is a point-in-time summary of coordinator state.
type Stats struct {
	ActiveRooms int `json:"activeRooms"`
	TotalUsers  int `json:"totalUsers"`
	Connections int `json:"connections"`

	// Sessions counts users bound to a connection; MutedUsers counts users muted by anyone.
	Sessions   int `json:"sessions"`
	MutedUsers int `json:"mutedUsers"`

	Uptime time.Duration `json:"-"`
	Rooms  []RoomStats   `json:"rooms"`
}

// Stats returns a snapshot of rooms, users and connections, rooms sorted by id.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		ActiveRooms: c.rooms.Len(),
		Connections: len(c.conns),
		Sessions:    c.directory.Len(),
		MutedUsers:  c.mutes.Len(),
		Uptime:      time.Since(c.startedAt),
		Rooms:       make([]RoomStats, 0, c.rooms.Len()),
	}

	for id, room := range c.rooms.rooms {
		stats.TotalUsers += room.Len()
		stats.Rooms = append(stats.Rooms, RoomStats{
			ID:          id,
			Members:     room.Len(),
			Speaking:    len(c.speaking.Speakers(id)),
			IdlePending: c.rooms.IdlePending(id),
		})
	}

	slices.SortFunc(stats.Rooms, func(a, b RoomStats) int {
		return strings.Compare(a.ID, b.ID)
	})

	return stats
}

// RoomMembers returns the members of roomID in join order, and whether the room exists.
func (c *Coordinator) RoomMembers(roomID string) ([]user.User, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	room, ok := c.rooms.Get(roomID)
	if !ok {
		return nil, false
	}
	return room.Members(), true
}

// ReclaimIfIdle deletes roomID now if it exists and is empty, and reports whether it did.
func (c *Coordinator) ReclaimIfIdle(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.rooms.ReclaimIfIdle(roomID) {
		return false
	}

	c.speaking.PurgeRoom(roomID)
	c.logger.Info().Str("room_id", roomID).Msg("Removed empty room.")
	return true
}

// LogStats writes the current snapshot to the log.
func (c *Coordinator) LogStats() {
	stats := c.Stats()

	event := c.logger.Info().
		Int("active_rooms", stats.ActiveRooms).
		Int("total_users", stats.TotalUsers).
		Int("connections", stats.Connections).
		Int("sessions", stats.Sessions).
		Int("muted_users", stats.MutedUsers).
		Dur("uptime", stats.Uptime)

	rooms := make(map[string]int, len(stats.Rooms))
	for _, r := range stats.Rooms {
		rooms[r.ID] = r.Members
	}

	event.Interface("rooms", rooms).Msg("Statistics")
}
