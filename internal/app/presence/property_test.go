package presence

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

// TestRandomOperationsKeepBookkeepingConsistent drives the coordinator with a seeded
// random mix of operations and checks membership bookkeeping after each one.
func TestRandomOperationsKeepBookkeepingConsistent(t *testing.T) {
	t.Parallel()

	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			t.Parallel()

			rng := rand.New(rand.NewPCG(seed, seed*7919))
			c, timers := newTestCoordinator(t, Options{MaxUsersPerRoom: 3})

			rooms := []string{"A", "B", "C"}
			conns := make([]*fakeConn, 6)
			next := 0
			fresh := func() *fakeConn {
				next++
				conn := newFakeConn(fmt.Sprintf("conn-%d", next))
				c.Attach(conn)
				return conn
			}
			for i := range conns {
				conns[i] = fresh()
			}

			for step := 0; step < 500; step++ {
				i := rng.IntN(len(conns))
				conn := conns[i]
				uid := userID(1 + rng.IntN(8))
				room := rooms[rng.IntN(len(rooms))]

				switch op := rng.IntN(8); op {
				case 0, 1:
					c.Join(conn, JoinRequest{RoomID: room, UserID: uid, Username: "u"})
				case 2:
					c.Leave(conn, LeaveRequest{})
				case 3:
					c.Disconnect(conn)
					conns[i] = fresh()
				case 4:
					c.Relay(conn, RelayOffer, uid, json.RawMessage(`{}`))
				case 5:
					c.SetMute(conn, MuteRequest{TargetUserID: uid, IsMuted: rng.IntN(2) == 0})
				case 6:
					c.SetSpeaking(conn, SpeakingRequest{IsSpeaking: rng.IntN(2) == 0})
				case 7:
					if n := timers.count(); n > 0 {
						timers.fire(t, rng.IntN(n))
					}
				}

				checkInvariants(t, c)
			}
		})
	}
}

func TestConcurrentClients(t *testing.T) {
	t.Parallel()

	c := NewCoordinator(Options{MaxUsersPerRoom: 4, RoomTimeout: time.Millisecond})
	t.Cleanup(c.Shutdown)

	rooms := []string{"A", "B", "C"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()

			rng := rand.New(rand.NewPCG(uint64(w), 42))
			conn := newFakeConn(fmt.Sprintf("worker-%d", w))
			c.Attach(conn)

			for i := 0; i < 200; i++ {
				c.Dispatch(conn, EventJoin, json.RawMessage(fmt.Sprintf(
					`{"roomId":%q,"userId":%q,"username":"w"}`, rooms[rng.IntN(len(rooms))], userID(1+rng.IntN(10)))))
				c.Relay(conn, RelayAnswer, userID(1+rng.IntN(10)), json.RawMessage(`{}`))
				c.SetSpeaking(conn, SpeakingRequest{IsSpeaking: true})
				c.SetMute(conn, MuteRequest{TargetUserID: userID(1 + rng.IntN(10)), IsMuted: true})
				c.Stats()
				if rng.IntN(3) == 0 {
					c.Leave(conn, LeaveRequest{})
				}
			}
			c.Disconnect(conn)
		}(w)
	}
	wg.Wait()

	checkInvariants(t, c)
	if stats := c.Stats(); stats.TotalUsers != 0 || stats.Connections != 0 {
		t.Errorf("expected everyone gone, got %+v", stats)
	}
}
