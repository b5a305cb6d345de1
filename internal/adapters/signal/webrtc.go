package signal

import (
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleOffer(sess core.MemberSession, env envelope) {
	var p offerPayload
	err := decodePayload(env.Data, &p)
	if err == nil {
		err = checkSDPType(p.Offer, webrtc.SDPTypeOffer)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendError(sess, env.Event, "Invalid offer")
		return
	}
	ctl.relayToPeer(sess, p.PeerRoute, env)
}

func (ctl *SignalWSController) handleAnswer(sess core.MemberSession, env envelope) {
	var p answerPayload
	err := decodePayload(env.Data, &p)
	if err == nil {
		err = checkSDPType(p.Answer, webrtc.SDPTypeAnswer)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad answer payload")
		ctl.sendError(sess, env.Event, "Invalid answer")
		return
	}
	ctl.relayToPeer(sess, p.PeerRoute, env)
}

func (ctl *SignalWSController) handleCandidate(sess core.MemberSession, env envelope) {
	var p iceCandidatePayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		ctl.sendError(sess, env.Event, "Invalid ICE candidate")
		return
	}
	ctl.relayToPeer(sess, p.PeerRoute, env)
}

// relayToPeer forwards the event untouched to the session holding route.To.
// An absent target drops the event without telling the sender.
func (ctl *SignalWSController) relayToPeer(sess core.MemberSession, route PeerRoute, env envelope) {
	target, ok := ctl.Orch.Target(domain.RoomName(route.RoomID), domain.UserID(route.To))
	if !ok {
		log.Debug().
			Str("module", "signal").
			Str("sid", string(sess.SID())).
			Str("room", route.RoomID).
			Str("to", route.To).
			Str("event", string(env.Event)).
			Msg("signal target not connected, dropped")
		return
	}
	ctl.deliver(target, rawFrame(env.Event, env.Data))
}

func (ctl *SignalWSController) handleVideoPresence(sess core.MemberSession, env envelope) {
	var p videoPresencePayload
	if err := decodePayload(env.Data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", string(env.Event)).Msg("bad video presence payload")
		ctl.sendError(sess, env.Event, "Invalid video presence payload")
		return
	}
	room, ok := ctl.Orch.Rooms.Get(domain.RoomName(p.RoomID))
	if !ok {
		return
	}
	ctl.publish(room, sess.SID(), rawFrame(env.Event, env.Data))
}
