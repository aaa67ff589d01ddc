package presence

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"callrelay/internal/app/user"
	"callrelay/internal/pkg/errs"
)

type sentEvent struct {
	event string
	data  any
}

// fakeConn records everything the coordinator sends to it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	events   []sentEvent
	kicks    []string
	failSend bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSend {
		return errors.New("send queue full")
	}
	f.events = append(f.events, sentEvent{event: event, data: data})
	return nil
}

func (f *fakeConn) Kick(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks = append(f.kicks, reason)
}

// named returns the payloads of every event with the given name, in order.
func (f *fakeConn) named(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []any
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e.data)
		}
	}
	return out
}

func (f *fakeConn) last(t *testing.T, event string) any {
	t.Helper()
	all := f.named(event)
	if len(all) == 0 {
		t.Fatalf("conn %s received no %q event", f.id, event)
	}
	return all[len(all)-1]
}

func (f *fakeConn) kicked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.kicks...)
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

// fakeTimers captures idle-timer callbacks instead of scheduling them.
type fakeTimers struct {
	mu        sync.Mutex
	callbacks []func()
}

func (f *fakeTimers) afterFunc(_ time.Duration, fn func()) *time.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, fn)
	return time.NewTimer(time.Hour)
}

func (f *fakeTimers) fire(t *testing.T, i int) {
	t.Helper()
	f.mu.Lock()
	if i >= len(f.callbacks) {
		f.mu.Unlock()
		t.Fatalf("timer %d was never scheduled (have %d)", i, len(f.callbacks))
	}
	fn := f.callbacks[i]
	f.mu.Unlock()
	fn()
}

func (f *fakeTimers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}

// userID returns a deterministic canonical UUID for test user n.
func userID(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}

func newTestCoordinator(t *testing.T, opts Options) (*Coordinator, *fakeTimers) {
	t.Helper()

	c := NewCoordinator(opts)
	timers := &fakeTimers{}
	c.rooms.afterFunc = timers.afterFunc
	t.Cleanup(c.Shutdown)

	return c, timers
}

func mustJoin(t *testing.T, c *Coordinator, conn *fakeConn, roomID string, n int, name string) {
	t.Helper()
	if err := c.Join(conn, JoinRequest{RoomID: roomID, UserID: userID(n), Username: name}); err != nil {
		t.Fatalf("join %s as %s: %v", roomID, name, err)
	}
}

func memberCount(t *testing.T, c *Coordinator, roomID string) int {
	t.Helper()
	members, ok := c.RoomMembers(roomID)
	if !ok {
		return -1
	}
	return len(members)
}

func assertCode(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %d, got nil", code)
	}
	if got := errs.CodeOf(err); got != code {
		t.Fatalf("expected error code %d, got %d (%v)", code, got, err)
	}
}

// checkInvariants verifies membership bookkeeping: every user is in at most one room,
// and directory sessions agree with room member sets.
func checkInvariants(t *testing.T, c *Coordinator) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]string)
	for roomID, room := range c.rooms.rooms {
		for id := range room.members {
			if other, dup := seen[id]; dup {
				t.Fatalf("user %s is in both %s and %s", id, other, roomID)
			}
			seen[id] = roomID

			s := c.directory.SessionOf(id)
			if s == nil {
				t.Fatalf("member %s of %s has no session", id, roomID)
			}
			if s.RoomID != roomID {
				t.Fatalf("session of %s says room %q, member of %q", id, s.RoomID, roomID)
			}
		}
		if room.Len() == 0 && !c.rooms.IdlePending(roomID) {
			t.Fatalf("empty room %s has no idle timer armed", roomID)
		}
		if room.Len() > c.rooms.Capacity() {
			t.Fatalf("room %s over capacity: %d", roomID, room.Len())
		}
	}

	for id, s := range c.directory.byUser {
		if s.RoomID == "" {
			t.Fatalf("registered session %s is roomless", id)
		}
		if seen[id] != s.RoomID {
			t.Fatalf("session %s claims room %s but is not a member", id, s.RoomID)
		}
		if c.directory.SessionByConn(s.Conn.ID()) != s {
			t.Fatalf("session %s not reachable by its connection", id)
		}
	}
}

func usersOf(v any) []user.User {
	p, _ := v.(ParticipantsPayload)
	return []user.User(p)
}
