package orch

import (
	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/dkeye/roomrelay/internal/store"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Store    store.Store
	// HistoryLimit bounds message history reads.
	HistoryLimit int
}

// Target resolves the session currently holding uid in roomName.
func (o *Orchestrator) Target(roomName domain.RoomName, uid domain.UserID) (core.MemberSession, bool) {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return nil, false
	}
	return room.SessionOf(uid)
}

// Publish fans data out to a room and applies the backpressure policy to
// sessions whose buffers were full. It returns the sessions to disconnect.
func (o *Orchestrator) Publish(room core.RoomService, except core.SessionID, data core.Frame) []core.SessionID {
	res := room.Broadcast(except, data)
	if o.Policy == nil {
		return nil
	}
	var kick []core.SessionID
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			log.Warn().Str("module", "orch").Str("sid", string(slow.SID())).Str("room", string(room.Name())).Msg("slow consumer, kicking")
			kick = append(kick, slow.SID())
		case app.DropFrame, app.NoAction:
			log.Debug().Str("module", "orch").Str("sid", string(slow.SID())).Msg("slow consumer, frame dropped")
		}
	}
	return kick
}

// CloseSession cancels the connection context of sid and closes its
// transport. The connection's read pump then runs the disconnect path.
func (o *Orchestrator) CloseSession(sid core.SessionID) bool {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return false
	}
	o.Registry.Cancel(sid)
	sess.Signal().Close()
	return true
}

// Kick closes every connection uid holds in roomName and returns how many
// were closed.
func (o *Orchestrator) Kick(roomName domain.RoomName, uid domain.UserID) int {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return 0
	}
	n := 0
	for _, sess := range room.SessionsOf(uid) {
		if o.CloseSession(sess.SID()) {
			n++
		}
	}
	if n > 0 {
		log.Info().Str("module", "orch").Str("room", string(roomName)).Str("user", string(uid)).Int("sessions", n).Msg("member kicked")
	}
	return n
}

// Evict kicks every member of roomName. The stored room record is kept.
func (o *Orchestrator) Evict(roomName domain.RoomName) int {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return 0
	}
	n := 0
	for _, m := range room.MembersSnapshot() {
		n += o.Kick(roomName, m.ID)
	}
	return n
}

// ShouldKick applies the policy to a session whose unicast send failed.
func (o *Orchestrator) ShouldKick(sess core.MemberSession) bool {
	if o.Policy == nil {
		return false
	}
	var room core.RoomService
	if name, _, ok := o.Registry.RoomOf(sess.SID()); ok {
		room, _ = o.Rooms.Get(name)
	}
	return o.Policy.OnBackPressure(room, sess) == app.KickMember
}
