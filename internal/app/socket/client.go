/*
Package socket carries presence events over WebSocket connections.

A Client wraps one upgraded connection. Inbound frames are decoded from the
{"event", "data"} envelope and handed to a Hub; outbound events are queued on a
buffered channel and written by a single writer goroutine, so Send and Kick never
block the caller.
*/
package socket

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"callrelay/internal/app/presence"
	"callrelay/internal/pkg/errs"
	"callrelay/internal/pkg/logx"
	"callrelay/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client. Session
	// descriptions with many candidates run to tens of kilobytes.
	maxMessageSize = 64 * 1024

	// sendQueueSize is the number of outbound events buffered per connection.
	sendQueueSize = 256

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// telling the client the server dropped the session on purpose.
	WsCloseCodeSessionKicked = 4001

	// DefaultEventRate and DefaultEventBurst bound inbound events per connection.
	DefaultEventRate  = 50
	DefaultEventBurst = 100
)

// ErrSendQueueFull is returned by Send when the client is not draining its queue.
var ErrSendQueueFull = errors.New("client send queue full")

// ErrClientClosed is returned by Send after the connection has gone away.
var ErrClientClosed = errors.New("client connection closed")

// Hub receives the events of a Client. *presence.Coordinator implements it.
type Hub interface {
	Attach(conn presence.Conn) error
	Dispatch(conn presence.Conn, event string, data json.RawMessage)
	Disconnect(conn presence.Conn)
}

// Envelope is the frame format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one WebSocket connection. It implements presence.Conn.
type Client struct {
	id   string
	conn *websocket.Conn
	hub  Hub

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// kick holds at most one pending close reason.
	kick chan string

	// done is closed once the read side has finished.
	done      chan struct{}
	closeOnce sync.Once

	// limiter throttles inbound events.
	limiter *rate.Limiter

	logger zerolog.Logger
}

// NewClient wraps an upgraded connection. Inbound events are limited to eventRate
// per second with the given burst.
func NewClient(hub Hub, wsConn *websocket.Conn, eventRate rate.Limit, burst int) *Client {
	id := randx.ConnectionID()

	return &Client{
		id:      id,
		conn:    wsConn,
		hub:     hub,
		send:    make(chan []byte, sendQueueSize),
		kick:    make(chan string, 1),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(eventRate, burst),
		logger: logx.Logger().With().
			Str("component", "Socket").
			Str("conn_id", id).
			Str("remote_ip", logx.AnonymizeIP(wsConn.RemoteAddr().String())).
			Logger(),
	}
}

// ID implements presence.Conn.
func (c *Client) ID() string {
	return c.id
}

// Run attaches the client to its hub and serves it until the connection closes.
// It blocks for the lifetime of the connection.
func (c *Client) Run() {
	if err := c.hub.Attach(c); err != nil {
		c.logger.Warn().Err(err).Msg("Hub refused connection.")
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}

	go c.WritePump()

	c.logger.Info().Msg("WebSocket connection established.")
	c.ReadPump()
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), envelope parsing, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundFrame(frame)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the ReadPump terminates.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.closeOnce.Do(func() { close(c.done) })
	c.hub.Disconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

func (c *Client) processInboundFrame(frame []byte) {
	if !c.limiter.Allow() {
		c.logger.Warn().Msg("Client exceeded event rate. Event dropped.")
		c.sendError(errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		c.logger.Warn().Err(err).Int("frame_bytes", len(frame)).Msg("Client sent invalid envelope")
		c.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	c.hub.Dispatch(c, env.Event, env.Data)
}

func (c *Client) sendError(customErr *errs.CustomError) {
	payload := presence.ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	if err := c.Send(presence.EventError, payload); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to queue error event")
	}
}

// Send implements presence.Conn. It marshals the event and queues it without blocking.
func (c *Client) Send(event string, data any) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	frame, err := json.Marshal(outbound{Event: event, Data: data})
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for client")
		return err
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", event).Msg("Client send channel full, dropping event")
		return ErrSendQueueFull
	}
}

// Kick implements presence.Conn. The close frame (code 4001) carrying reason is
// written by the WritePump, after any events already queued.
func (c *Client) Kick(reason string) {
	select {
	case c.kick <- reason:
		c.logger.Warn().Str("reason", reason).Msg("Kick requested.")
	default:
	}
}

// WritePump handles writing frames from the send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(frame) {
				return
			}

		case reason := <-c.kick:
			c.drainQueue()
			c.logger.Warn().
				Int("close_code", WsCloseCodeSessionKicked).
				Str("reason", reason).
				Msg("Sending WS Kick message and closing connection.")
			c.closeWith(WsCloseCodeSessionKicked, reason)
			return

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}

		case <-c.done:
			return
		}
	}
}

// drainQueue flushes frames queued before a kick so the client sees them first.
func (c *Client) drainQueue() {
	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(frame) {
				return
			}
		default:
			return
		}
	}
}

// writeFrame returns false if the WritePump loop should terminate.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Info().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Info().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

func (c *Client) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to send close frame.")
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}
