package orch

import (
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// LeaveResult describes a completed leave. Room is nil when the leave emptied
// and deleted it.
type LeaveResult struct {
	RoomName domain.RoomName
	User     domain.User
	Room     core.RoomService
}

type JoinResult struct {
	Room core.RoomService
	// Left is set when joining moved the session out of another room, or
	// replaced its identity in the same room. In the latter case
	// Left.RoomName equals the joined room and Left.User is the old identity.
	Left *LeaveResult
}

// Join puts sid into roomName as user. A session already in a different room
// leaves it first; one re-joining the same room under another user id drops
// the old identity.
func (o *Orchestrator) Join(sid core.SessionID, roomName domain.RoomName, user domain.User) (JoinResult, bool) {
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return JoinResult{}, false
	}
	var res JoinResult
	var replaced *domain.User
	if current, _, in := o.Registry.RoomOf(sid); in && current != roomName {
		if left, ok := o.leave(sid, current); ok {
			res.Left = &left
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(current)).Msg("moved out of room")
		}
	} else if in {
		if prev := session.User(); prev.ID != user.ID {
			replaced = &prev
		}
	}
	session.SetUser(user)
	res.Room = o.Rooms.Join(roomName, session)
	o.Registry.UpdateRoom(sid, roomName)
	if replaced != nil {
		res.Left = &LeaveResult{RoomName: roomName, User: *replaced, Room: res.Room}
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomName)).Str("old_user", string(replaced.ID)).Msg("identity replaced")
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomName)).Str("user", string(user.ID)).Msg("added to room")
	return res, true
}

// Leave removes sid from roomName. It is a no-op when sid is not in that room.
func (o *Orchestrator) Leave(sid core.SessionID, roomName domain.RoomName) (LeaveResult, bool) {
	current, _, ok := o.Registry.RoomOf(sid)
	if !ok || current != roomName {
		return LeaveResult{}, false
	}
	return o.leave(sid, current)
}

func (o *Orchestrator) leave(sid core.SessionID, roomName domain.RoomName) (LeaveResult, bool) {
	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return LeaveResult{}, false
	}
	room, removed := o.Rooms.Leave(roomName, sid)
	o.Registry.RemoveRoom(sid)
	if !removed {
		return LeaveResult{}, false
	}
	return LeaveResult{RoomName: roomName, User: session.User(), Room: room}, true
}

// OnDisconnect drops every association of sid. The result is valid only when
// the session was in a room.
func (o *Orchestrator) OnDisconnect(sid core.SessionID) (LeaveResult, bool) {
	defer o.Registry.Unbind(sid)
	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return LeaveResult{}, false
	}
	return o.leave(sid, roomName)
}
