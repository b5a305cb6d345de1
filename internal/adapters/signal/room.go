package signal

import (
	"github.com/dkeye/roomrelay/internal/app/orch"
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleJoin(sess core.MemberSession, env envelope) {
	var p joinRoomPayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(sess, env.Event, "Invalid join-room payload")
		return
	}
	user, err := domain.NewUser(p.User.ID, p.User.Username)
	if err != nil {
		ctl.sendError(sess, env.Event, err.Error())
		return
	}

	sid := sess.SID()
	roomName := domain.RoomName(p.RoomID)
	res, ok := ctl.Orch.Join(sid, roomName, *user)
	if !ok {
		return
	}
	if left := res.Left; left != nil {
		if left.RoomName == roomName {
			// Same room under a new identity; the count follows below.
			ctl.announceUserLeft(sid, *left)
		} else {
			ctl.announceLeave(sid, *left)
		}
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.RoomID).Str("user", string(user.ID)).Msg("join")

	room := res.Room
	ctl.sendJSON(sess, EventRoomUsers, roomUsersPayload{
		RoomID: roomName,
		Users:  room.MembersSnapshot(),
	})
	ctl.broadcast(room, "", EventUsersCount, usersCountPayload{RoomID: roomName, Count: room.MemberCount()})
	ctl.broadcast(room, sid, EventUserJoined, userPresencePayload{RoomID: roomName, User: *user})
}

// handleLeave leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleLeave(sess core.MemberSession, env envelope) {
	var p leaveRoomPayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		ctl.sendError(sess, env.Event, "Invalid leave-room payload")
		return
	}
	res, ok := ctl.Orch.Leave(sess.SID(), domain.RoomName(p.RoomID))
	if !ok {
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.SID())).Str("room", p.RoomID).Msg("leave")
	ctl.announceLeave(sess.SID(), res)
}

// announceLeave tells the remaining room about a departure. Nothing is sent
// when the room was deleted.
func (ctl *SignalWSController) announceLeave(sid core.SessionID, res orch.LeaveResult) {
	room := res.Room
	if room == nil {
		return
	}
	ctl.broadcast(room, sid, EventUsersCount, usersCountPayload{RoomID: res.RoomName, Count: room.MemberCount()})
	ctl.announceUserLeft(sid, res)
}

// announceUserLeft sends user-left unless another connection of the same
// user is still in the room.
func (ctl *SignalWSController) announceUserLeft(sid core.SessionID, res orch.LeaveResult) {
	if res.Room == nil {
		return
	}
	if _, still := res.Room.SessionOf(res.User.ID); still {
		return
	}
	ctl.broadcast(res.Room, sid, EventUserLeft, userPresencePayload{RoomID: res.RoomName, User: res.User})
}
