package presence

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"callrelay/internal/app/user"
	"callrelay/internal/pkg/errs"
	"callrelay/internal/pkg/logx"
	"callrelay/internal/pkg/randx"
)

// maxUsernameRunes caps display names; longer names are truncated.
const maxUsernameRunes = 64

// Options configures a Coordinator. Zero values select the defaults.
type Options struct {
	MaxUsersPerRoom int
	RoomTimeout     time.Duration
	MutePolicy      MutePolicy
}

// Coordinator owns all presence state: connections, rooms, mutes and speaking flags.
// Every event is handled to completion under a single mutex, and idle-room timers take
// the same mutex before touching a room.
type Coordinator struct {
	mu sync.Mutex

	// conns holds every attached connection, joined or not, keyed by connection id.
	conns map[string]Conn

	directory *Directory
	rooms     *RoomRegistry
	mutes     *MuteAuthority
	speaking  *SpeakingTracker
	policy    MutePolicy

	startedAt time.Time
	closed    bool

	logger zerolog.Logger
}

// NewCoordinator constructs a Coordinator with empty state.
func NewCoordinator(opts Options) *Coordinator {
	if opts.MutePolicy == nil {
		opts.MutePolicy = MemberMutePolicy{}
	}

	c := &Coordinator{
		conns:     make(map[string]Conn),
		directory: NewDirectory(),
		mutes:     NewMuteAuthority(),
		speaking:  NewSpeakingTracker(),
		policy:    opts.MutePolicy,
		startedAt: time.Now(),
		logger:    logx.Component("Coordinator"),
	}
	c.rooms = NewRoomRegistry(opts.MaxUsersPerRoom, opts.RoomTimeout, c.onRoomIdle)

	c.logger.Info().
		Int("max_users_per_room", c.rooms.Capacity()).
		Dur("room_timeout", c.rooms.idleTimeout).
		Msg("Coordinator started.")

	return c
}

// Attach makes conn known to the coordinator. It fails once Shutdown has run.
func (c *Coordinator) Attach(conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errs.NewError(errs.ErrUnknown)
	}

	c.conns[conn.ID()] = conn
	c.logger.Debug().Str("conn_id", conn.ID()).Msg("Connection attached.")
	return nil
}

// Join moves the connection's user into req's room.
//
// A connection already in another room leaves it first. If the user id is bound to a
// different connection, that connection is evicted and kicked (session takeover).
// Rejected joins change nothing.
func (c *Coordinator) Join(conn Conn, req JoinRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomID := req.room()
	username := normalizeUsername(req.Username)

	logger := c.logger.With().
		Str("conn_id", conn.ID()).
		Str("room_id", roomID).
		Str("user_id", req.UserID).
		Logger()

	if !randx.IsValidRoomID(roomID) || username == "" {
		logger.Warn().Msg("Join rejected: invalid parameters.")
		return errs.NewError(errs.ErrInvalidParams)
	}
	if !randx.IsValidUserID(req.UserID) {
		logger.Warn().Msg("Join rejected: invalid user id.")
		return errs.NewError(errs.ErrInvalidUserID)
	}

	current := c.directory.SessionByConn(conn.ID())
	if current != nil && current.UserID == req.UserID && current.RoomID == roomID {
		logger.Warn().Msg("Join rejected: already in room.")
		return errs.NewError(errs.ErrAlreadyInRoom)
	}

	var leaving []string
	if current != nil {
		leaving = append(leaving, current.UserID)
	}
	if err := c.rooms.CanAdmit(roomID, req.UserID, leaving...); err != nil {
		logger.Warn().Int("capacity", c.rooms.Capacity()).Msg("Join rejected: room is full.")
		return err
	}

	if current != nil {
		if current.UserID != req.UserID {
			logger.Info().Str("previous_user_id", current.UserID).Msg("Connection switching identity.")
			c.removeSession(current, EventUserLeft)
		} else {
			logger.Info().Str("previous_room_id", current.RoomID).Msg("User switching rooms.")
			c.leaveRoom(current, EventUserLeft)
		}
	}

	if prev := c.directory.SessionOf(req.UserID); prev != nil && prev.Conn.ID() != conn.ID() {
		logger.Warn().Str("evicted_conn_id", prev.Conn.ID()).Msg("User already connected. Evicting previous connection.")
		c.removeSession(prev, EventUserDisconnected)
		prev.Conn.Kick(errs.NewError(errs.ErrSessionKicked).Message)
	}

	session := c.directory.Register(req.UserID, username, conn)

	members, err := c.rooms.Join(roomID, req.UserID, username)
	if err != nil {
		c.directory.Unregister(req.UserID)
		return err
	}
	session.RoomID = roomID

	joined := user.User{ID: req.UserID, Username: username}
	c.broadcast(roomID, EventUserConnected, joined, req.UserID)
	c.broadcast(roomID, EventParticipants, ParticipantsPayload(members), "")

	logger.Info().Int("total_users", len(members)).Msg("User joined room.")
	return nil
}

// Leave removes the connection's user from its room. The optional room and user ids
// in req must match the session; a mismatched or roomless leave is a no-op.
func (c *Coordinator) Leave(conn Conn, req LeaveRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.directory.SessionByConn(conn.ID())
	if s == nil {
		c.logger.Debug().Str("conn_id", conn.ID()).Msg("Leave ignored: connection has no session.")
		return nil
	}

	if (req.UserID != "" && req.UserID != s.UserID) || (req.room() != "" && req.room() != s.RoomID) {
		c.logger.Warn().
			Str("conn_id", conn.ID()).
			Str("user_id", s.UserID).
			Str("room_id", s.RoomID).
			Str("requested_user_id", req.UserID).
			Str("requested_room_id", req.room()).
			Msg("Leave ignored: request does not match session.")
		return nil
	}

	c.logger.Info().Str("user_id", s.UserID).Str("room_id", s.RoomID).Msg("User leaving room.")
	c.removeSession(s, EventUserLeft)
	return nil
}

// Disconnect cleans up after the transport reports conn closed. It is idempotent and
// safe to race with Leave or with a takeover that already evicted the session.
func (c *Coordinator) Disconnect(conn Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.conns, conn.ID())

	s := c.directory.SessionByConn(conn.ID())
	if s == nil {
		c.logger.Debug().Str("conn_id", conn.ID()).Msg("Disconnect: no session to clean up.")
		return
	}

	c.logger.Info().Str("user_id", s.UserID).Str("room_id", s.RoomID).Msg("User disconnected.")
	c.removeSession(s, EventUserDisconnected)
}

// Relay forwards payload from the connection's user to targetUserID when both are in
// the same room, and reports whether it did. Unknown targets and cross-room targets
// are dropped silently.
func (c *Coordinator) Relay(conn Conn, kind RelayKind, targetUserID string, payload json.RawMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	logger := c.logger.With().
		Str("kind", string(kind)).
		Str("conn_id", conn.ID()).
		Str("target_user_id", targetUserID).
		Logger()

	fromRoom := c.directory.CurrentRoomOf(conn)
	if fromRoom == "" {
		logger.Debug().Msg("Relay dropped: sender is not in a room.")
		return false
	}
	fromUserID := c.directory.SessionByConn(conn.ID()).UserID

	to := c.directory.Lookup(targetUserID)
	if to == nil {
		logger.Debug().Msg("Relay dropped: target has no live connection.")
		return false
	}

	if toRoom := c.directory.CurrentRoomOf(to); toRoom != fromRoom {
		logger.Debug().
			Str("from_room_id", fromRoom).
			Str("to_room_id", toRoom).
			Msg("Relay dropped: target is in a different room.")
		return false
	}

	data := map[string]any{
		kind.field(): rawOrNull(payload),
		"fromUserId": fromUserID,
	}
	if err := to.Send(string(kind), data); err != nil {
		logger.Warn().Err(err).Msg("Relay send failed.")
		return false
	}

	logger.Debug().Str("from_user_id", fromUserID).Msg("Relayed.")
	return true
}

// SetMute applies the connection's user's mute toggle on req.TargetUserID.
// Both users must share a room and the mute policy must allow it.
func (c *Coordinator) SetMute(conn Conn, req MuteRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	actor := c.directory.SessionByConn(conn.ID())
	if actor == nil || actor.RoomID == "" {
		return errs.NewError(errs.ErrNotInRoom)
	}

	logger := c.logger.With().
		Str("room_id", actor.RoomID).
		Str("actor_user_id", actor.UserID).
		Str("target_user_id", req.TargetUserID).
		Bool("muted", req.IsMuted).
		Logger()

	target := c.directory.SessionOf(req.TargetUserID)
	room, _ := c.rooms.Get(actor.RoomID)
	if target == nil || target.RoomID != actor.RoomID || !c.policy.CanMute(room, actor.UserID, target.UserID) {
		logger.Warn().Msg("Mute rejected.")
		return errs.NewError(errs.ErrMuteNotAllowed)
	}

	c.mutes.SetMute(actor.UserID, target.UserID, req.IsMuted)
	isMuted, mutedBy := c.mutes.IsMuted(target.UserID)

	c.broadcast(actor.RoomID, EventParticipantMuteChanged, MuteChangedPayload{
		UserID:    target.UserID,
		IsMuted:   isMuted,
		MutedBy:   mutedBy,
		ChangedBy: actor.UserID,
	}, "")

	if err := target.Conn.Send(EventForceMute, ForceMutePayload{IsMuted: isMuted, MutedBy: mutedBy}); err != nil {
		logger.Warn().Err(err).Msg("Failed to send force-mute.")
	}

	logger.Info().Bool("effective_muted", isMuted).Int("muter_count", len(mutedBy)).Msg("Mute updated.")
	return nil
}

// SetSpeaking updates the speaking flag of the connection's user and announces it to
// the whole room, sender included. Roomless connections are ignored.
func (c *Coordinator) SetSpeaking(conn Conn, req SpeakingRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.directory.SessionByConn(conn.ID())
	if s == nil || s.RoomID == "" {
		return nil
	}

	if req.UserID != "" && req.UserID != s.UserID {
		c.logger.Warn().
			Str("user_id", s.UserID).
			Str("requested_user_id", req.UserID).
			Msg("Speaking update ignored: user id does not match session.")
		return nil
	}

	c.speaking.Set(s.RoomID, s.UserID, req.IsSpeaking)
	c.broadcast(s.RoomID, EventSpeakingStatusUpdate, SpeakingUpdatePayload{
		UserID:     s.UserID,
		IsSpeaking: req.IsSpeaking,
	}, "")
	return nil
}

// CheckConnection answers the requester with a snapshot of its own session.
func (c *Coordinator) CheckConnection(conn Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := ConnectionStatusPayload{
		Connected:    true,
		ConnectionID: conn.ID(),
	}

	if s := c.directory.SessionByConn(conn.ID()); s != nil {
		status.UserID = s.UserID
		status.RoomID = s.RoomID
		if room, ok := c.rooms.Get(s.RoomID); ok {
			status.ParticipantCount = room.Len()
		}
		status.IsMuted, _ = c.mutes.IsMuted(s.UserID)
	}

	return conn.Send(EventConnectionStatus, status)
}

// CheckMuteStatus answers the requester with the mute state of req.TargetUserID, or
// of the requester itself when no target is given.
func (c *Coordinator) CheckMuteStatus(conn Conn, req MuteStatusRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := req.TargetUserID
	if target == "" {
		if s := c.directory.SessionByConn(conn.ID()); s != nil {
			target = s.UserID
		}
	}
	if target == "" {
		return errs.NewError(errs.ErrInvalidParams)
	}

	isMuted, mutedBy := c.mutes.IsMuted(target)
	return conn.Send(EventMuteStatus, MuteStatusPayload{
		UserID:  target,
		IsMuted: isMuted,
		MutedBy: mutedBy,
	})
}

// Shutdown stops all idle timers, kicks every attached connection and clears all
// state. Later Attach calls fail.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.logger.Info().Int("connections", len(c.conns)).Int("rooms", c.rooms.Len()).Msg("Shutting down coordinator...")

	for _, conn := range c.conns {
		conn.Kick("server shutting down")
	}

	clear(c.conns)
	c.directory.reset()
	c.rooms.reset()
	c.mutes.reset()
	c.speaking.reset()

	c.logger.Info().Msg("Coordinator shutdown complete.")
}

// Reset drops all state and cancels idle timers without touching connections.
// The coordinator stays usable.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.conns)
	c.directory.reset()
	c.rooms.reset()
	c.mutes.reset()
	c.speaking.reset()
}

// removeSession takes s out of its room and out of the directory.
func (c *Coordinator) removeSession(s *Session, event string) {
	c.leaveRoom(s, event)

	if c.directory.SessionOf(s.UserID) == s {
		c.directory.Unregister(s.UserID)
	}
}

// leaveRoom takes s out of its current room, purges its mute and speaking state and
// tells the remaining members with event.
func (c *Coordinator) leaveRoom(s *Session, event string) {
	roomID := s.RoomID
	if roomID == "" {
		return
	}
	s.RoomID = ""

	c.rooms.Leave(roomID, s.UserID)
	c.mutes.ClearTarget(s.UserID)
	c.speaking.ClearUser(roomID, s.UserID)

	c.broadcast(roomID, event, user.User{ID: s.UserID, Username: s.Username}, s.UserID)

	if room, ok := c.rooms.Get(roomID); ok && room.Len() == 0 {
		c.logger.Info().Str("room_id", roomID).Dur("timeout", c.rooms.idleTimeout).Msg("Room is empty. Scheduled for removal.")
	}
}

// broadcast sends event to every current member of roomID except exceptUserID.
// A failed send is logged and does not stop delivery to the others.
func (c *Coordinator) broadcast(roomID, event string, data any, exceptUserID string) {
	room, ok := c.rooms.Get(roomID)
	if !ok {
		return
	}

	for _, id := range room.memberIDs() {
		if id == exceptUserID {
			continue
		}

		s := c.directory.SessionOf(id)
		if s == nil {
			continue
		}

		if err := s.Conn.Send(event, data); err != nil {
			c.logger.Warn().
				Err(err).
				Str("room_id", roomID).
				Str("user_id", id).
				Str("event", event).
				Msg("Broadcast send failed.")
		}
	}
}

// onRoomIdle runs on a timer goroutine.
func (c *Coordinator) onRoomIdle(roomID string, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	if c.rooms.FireIdle(roomID, generation) {
		c.speaking.PurgeRoom(roomID)
		c.logger.Info().Str("room_id", roomID).Msg("Removed empty room.")
	}
}

func normalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxUsernameRunes {
		name = string(runes[:maxUsernameRunes])
	}
	return name
}

func rawOrNull(payload json.RawMessage) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("null")
	}
	return payload
}
