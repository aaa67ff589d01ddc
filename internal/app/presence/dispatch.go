package presence

import (
	"encoding/json"
	"errors"
	"fmt"

	"callrelay/internal/pkg/errs"
)

// Dispatch decodes one inbound event and routes it. Rejections are reported to conn as
// an error event. A panic while handling the event is logged and the event dropped, so
// one bad message cannot take the process down.
func (c *Coordinator) Dispatch(conn Conn, event string, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Str("conn_id", conn.ID()).
				Str("event", event).
				Msg("Recovered from panic while handling event. Event dropped.")
		}
	}()

	if err := c.route(conn, event, data); err != nil {
		c.replyError(conn, err)
	}
}

func (c *Coordinator) route(conn Conn, event string, data json.RawMessage) error {
	switch event {
	case EventJoin:
		var req JoinRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return c.Join(conn, req)

	case EventLeave:
		var req LeaveRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return c.Leave(conn, req)

	case string(RelayOffer), string(RelayAnswer), string(RelayICECandidate):
		var req relayRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		kind := RelayKind(event)
		c.Relay(conn, kind, req.TargetUserID, req.payload(kind))
		return nil

	case EventToggleMute:
		var req MuteRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return c.SetMute(conn, req)

	case EventSpeakingStatus:
		var req SpeakingRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return c.SetSpeaking(conn, req)

	case EventCheckConnection:
		return c.CheckConnection(conn)

	case EventCheckMuteStatus:
		var req MuteStatusRequest
		if err := decode(data, &req); err != nil {
			return err
		}
		return c.CheckMuteStatus(conn, req)

	case EventPing:
		return conn.Send(EventPong, nil)

	default:
		c.logger.Warn().Str("conn_id", conn.ID()).Str("event", event).Msg("Unsupported event.")
		return errs.NewError(errs.ErrUnsupportedEvent, event)
	}
}

// decode unmarshals data into dst. Missing data decodes as an empty object.
func decode(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}
	return nil
}

func (c *Coordinator) replyError(conn Conn, err error) {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		c.logger.Error().Err(err).Str("conn_id", conn.ID()).Msg("Event failed.")
		customErr = errs.NewError(errs.ErrUnknown)
	}

	payload := ErrorPayload{Code: customErr.Code, Message: customErr.Message}
	if sendErr := conn.Send(EventError, payload); sendErr != nil {
		c.logger.Warn().Err(sendErr).Str("conn_id", conn.ID()).Msg("Failed to send error event.")
	}
}
