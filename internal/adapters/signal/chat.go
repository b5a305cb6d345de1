package signal

import (
	"context"
	"errors"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/dkeye/roomrelay/internal/store"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSendMessage(ctx context.Context, sess core.MemberSession, env envelope) {
	var p sendMessagePayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send-message payload")
		ctl.sendError(sess, env.Event, "Invalid message")
		return
	}

	roomName := domain.RoomName(p.RoomID)
	ctx, cancel := context.WithTimeout(ctx, ctl.opts.StoreTimeout)
	defer cancel()
	msg, err := ctl.Orch.SendMessage(ctx, roomName, domain.Message{
		User:     p.User,
		Text:     p.Text,
		Code:     p.Code,
		Language: p.Language,
		Output:   p.Output,
	})
	if errors.Is(err, store.ErrRoomNotFound) {
		log.Warn().Str("module", "signal").Str("sid", string(sess.SID())).Str("room", p.RoomID).Msg("message for unknown room")
		ctl.sendError(sess, env.Event, "Room not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sess.SID())).Str("room", p.RoomID).Msg("store message")
		ctl.sendError(sess, env.Event, "Failed to send message")
		return
	}

	room, ok := ctl.Orch.Rooms.Get(roomName)
	if !ok {
		log.Debug().Str("module", "signal").Str("room", p.RoomID).Msg("message stored, room has no live members")
		return
	}
	// The sender is included so every client renders the stored copy.
	ctl.broadcast(room, "", EventNewMessage, newMessagePayload{Message: *msg, Room: roomName})
}

func (ctl *SignalWSController) handleTyping(sess core.MemberSession, env envelope) {
	var p typingPayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("bad typing payload")
		ctl.sendError(sess, env.Event, "Invalid typing payload")
		return
	}
	room, ok := ctl.Orch.Rooms.Get(domain.RoomName(p.RoomID))
	if !ok {
		return
	}
	ctl.publish(room, sess.SID(), rawFrame(EventUserTyping, env.Data))
}
