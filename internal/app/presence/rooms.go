package presence

import (
	"cmp"
	"slices"
	"time"

	"callrelay/internal/app/user"
	"callrelay/internal/pkg/errs"
)

const (
	// DefaultMaxUsersPerRoom is the room capacity used when none is configured.
	DefaultMaxUsersPerRoom = 10

	// DefaultRoomTimeout is how long an empty room survives before it is reclaimed.
	DefaultRoomTimeout = 30 * time.Minute
)

type member struct {
	username string
	seq      uint64
}

// Room is one named signaling context.
type Room struct {
	ID string

	// CreatorID is the user whose join created the room. It is kept after that
	// user leaves, so a returning creator regains mute authority.
	CreatorID string

	CreatedAt time.Time

	members map[string]member
}

// Has reports whether userID is a member.
func (r *Room) Has(userID string) bool {
	_, ok := r.members[userID]
	return ok
}

// Len returns the member count.
func (r *Room) Len() int {
	return len(r.members)
}

// Members returns the member list in join order.
func (r *Room) Members() []user.User {
	ids := r.memberIDs()
	list := make([]user.User, 0, len(ids))
	for _, id := range ids {
		list = append(list, user.User{ID: id, Username: r.members[id].username})
	}
	return list
}

func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(r.members[a].seq, r.members[b].seq)
	})
	return ids
}

type idleTimer struct {
	timer      *time.Timer
	generation uint64
}

// RoomRegistry maps room ids to rooms and owns their idle-reclamation timers.
// Timers hold only the room id and the generation they were armed with, so a
// timer that lost a race with a later join or re-arm cannot delete a room.
// It is not safe for concurrent use; the Coordinator serializes access, including
// from timer callbacks.
type RoomRegistry struct {
	rooms  map[string]*Room
	timers map[string]idleTimer

	capacity    int
	idleTimeout time.Duration

	seq        uint64
	generation uint64

	// onIdle runs on the timer goroutine when an idle timer fires.
	onIdle func(roomID string, generation uint64)

	// afterFunc schedules timers; replaced in tests.
	afterFunc func(d time.Duration, f func()) *time.Timer

	now func() time.Time
}

// NewRoomRegistry creates a registry. onIdle is invoked from the timer goroutine and
// is expected to take the caller's lock and then call FireIdle.
func NewRoomRegistry(capacity int, idleTimeout time.Duration, onIdle func(roomID string, generation uint64)) *RoomRegistry {
	if capacity <= 0 {
		capacity = DefaultMaxUsersPerRoom
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultRoomTimeout
	}

	return &RoomRegistry{
		rooms:       make(map[string]*Room),
		timers:      make(map[string]idleTimer),
		capacity:    capacity,
		idleTimeout: idleTimeout,
		onIdle:      onIdle,
		afterFunc:   time.AfterFunc,
		now:         time.Now,
	}
}

// Capacity returns the configured maximum members per room.
func (r *RoomRegistry) Capacity() int {
	return r.capacity
}

// Get returns the room with the given id.
func (r *RoomRegistry) Get(roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// Len returns the number of rooms, empty ones awaiting reclamation included.
func (r *RoomRegistry) Len() int {
	return len(r.rooms)
}

// CanAdmit reports whether userID may join roomID. Members listed in leaving are
// about to be removed from the room and do not count against its capacity; neither
// does userID itself if it is already a member.
func (r *RoomRegistry) CanAdmit(roomID, userID string, leaving ...string) error {
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}

	count := room.Len()
	if room.Has(userID) {
		count--
	}
	for _, id := range leaving {
		if id != userID && room.Has(id) {
			count--
		}
	}

	if count >= r.capacity {
		return errs.NewError(errs.ErrRoomIsFull)
	}
	return nil
}

// Join adds userID to roomID, creating the room if needed, and returns the
// resulting member list. It fails with ErrRoomIsFull when the room is at capacity.
// A pending idle timer for the room is cancelled.
func (r *RoomRegistry) Join(roomID, userID, username string) ([]user.User, error) {
	if err := r.CanAdmit(roomID, userID); err != nil {
		return nil, err
	}

	r.cancelIdle(roomID)

	room, ok := r.rooms[roomID]
	if !ok {
		room = &Room{
			ID:        roomID,
			CreatorID: userID,
			CreatedAt: r.now(),
			members:   make(map[string]member),
		}
		r.rooms[roomID] = room
	}

	if m, ok := room.members[userID]; ok {
		m.username = username
		room.members[userID] = m
	} else {
		r.seq++
		room.members[userID] = member{username: username, seq: r.seq}
	}

	return room.Members(), nil
}

// Leave removes userID from roomID and arms the idle timer when the room becomes
// empty. It reports whether the user was a member.
func (r *RoomRegistry) Leave(roomID, userID string) bool {
	room, ok := r.rooms[roomID]
	if !ok || !room.Has(userID) {
		return false
	}

	delete(room.members, userID)

	if room.Len() == 0 {
		r.armIdle(roomID)
	}
	return true
}

// ReclaimIfIdle deletes roomID if it still exists and is still empty, and reports
// whether it did.
func (r *RoomRegistry) ReclaimIfIdle(roomID string) bool {
	room, ok := r.rooms[roomID]
	if !ok || room.Len() > 0 {
		return false
	}

	r.cancelIdle(roomID)
	delete(r.rooms, roomID)
	return true
}

// FireIdle handles an idle timer firing. Timers that were cancelled or re-armed
// after they were scheduled are ignored.
func (r *RoomRegistry) FireIdle(roomID string, generation uint64) bool {
	t, ok := r.timers[roomID]
	if !ok || t.generation != generation {
		return false
	}

	delete(r.timers, roomID)
	return r.ReclaimIfIdle(roomID)
}

// IdlePending reports whether roomID has an armed idle timer.
func (r *RoomRegistry) IdlePending(roomID string) bool {
	_, ok := r.timers[roomID]
	return ok
}

// StopTimers cancels every idle timer.
func (r *RoomRegistry) StopTimers() {
	for roomID := range r.timers {
		r.cancelIdle(roomID)
	}
}

// reset stops all timers and drops all rooms.
func (r *RoomRegistry) reset() {
	r.StopTimers()
	clear(r.rooms)
}

func (r *RoomRegistry) armIdle(roomID string) {
	r.cancelIdle(roomID)

	r.generation++
	generation := r.generation

	timer := r.afterFunc(r.idleTimeout, func() {
		if r.onIdle != nil {
			r.onIdle(roomID, generation)
		}
	})

	r.timers[roomID] = idleTimer{timer: timer, generation: generation}
}

func (r *RoomRegistry) cancelIdle(roomID string) {
	if t, ok := r.timers[roomID]; ok {
		t.timer.Stop()
		delete(r.timers, roomID)
	}
}
