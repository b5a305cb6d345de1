package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	var tick <-chan time.Time
	if ctl.opts.PingPeriod > 0 {
		ticker := time.NewTicker(ctl.opts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(ctl.opts.WriteWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-tick:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.disconnect(sid)
		cancel()
		c.Close()
	}()

	if ctl.opts.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleSignal(ctx, sid, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, data []byte) {
	sess, ok := ctl.Orch.Registry.GetSession(sid)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("frame for unknown session")
		return
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad json")
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("event", string(env.Event)).Msg("rate limited")
		ctl.sendError(sess, env.Event, "Too many events, slow down")
		return
	}

	switch env.Event {
	case EventJoinRoom:
		ctl.handleJoin(sess, env)
	case EventLeaveRoom:
		ctl.handleLeave(sess, env)
	case EventSendMessage:
		ctl.handleSendMessage(ctx, sess, env)
	case EventTyping:
		ctl.handleTyping(sess, env)
	case EventOffer:
		ctl.handleOffer(sess, env)
	case EventAnswer:
		ctl.handleAnswer(sess, env)
	case EventICECandidate:
		ctl.handleCandidate(sess, env)
	case EventJoinedVideo, EventLeftVideo:
		ctl.handleVideoPresence(sess, env)
	case EventFileContentChange, EventCursorPosition, EventUserSelection,
		EventCodeTyping, EventJoinFileEdit, EventLeaveFileEdit:
		ctl.handleEdit(sess, env)
	case EventPing:
		ctl.handlePing(sess)
	default:
		log.Warn().Str("module", "signal").Str("event", string(env.Event)).Msg("unknown signal")
	}
}

// --- emit helpers ---

func (ctl *SignalWSController) sendJSON(sess core.MemberSession, name EventName, v any) {
	f, err := encodeEvent(name, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	ctl.deliver(sess, f)
}

// deliver unicasts a frame; a full buffer goes through the backpressure policy.
func (ctl *SignalWSController) deliver(sess core.MemberSession, f core.Frame) {
	err := sess.Signal().TrySend(f)
	if err == nil {
		return
	}
	log.Debug().Err(err).Str("module", "signal").Str("sid", string(sess.SID())).Msg("deliver failed")
	if ctl.Orch.ShouldKick(sess) {
		ctl.kick(sess.SID())
	}
}

func (ctl *SignalWSController) sendError(sess core.MemberSession, event EventName, msg string) {
	ctl.sendJSON(sess, EventError, errorPayload{Message: msg, Event: event})
}

// broadcast encodes v once and fans it out to room, skipping except.
func (ctl *SignalWSController) broadcast(room core.RoomService, except core.SessionID, name EventName, v any) {
	f, err := encodeEvent(name, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	ctl.publish(room, except, f)
}

func (ctl *SignalWSController) publish(room core.RoomService, except core.SessionID, f core.Frame) {
	for _, sid := range ctl.Orch.Publish(room, except, f) {
		ctl.kick(sid)
	}
}
