package signal

import (
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

type scoped interface {
	Scope() EditScope
}

func (s EditScope) Scope() EditScope { return s }

// editRelay pairs the broadcast name of a collaborative-edit event with the
// payload it must decode as.
type editRelay struct {
	out     EventName
	payload func() scoped
}

var editRelays = map[EventName]editRelay{
	EventFileContentChange: {EventFileContentUpdated, func() scoped { return &fileContentPayload{} }},
	EventCursorPosition:    {EventCursorPositionUpdated, func() scoped { return &cursorPayload{} }},
	EventUserSelection:     {EventUserSelectionUpdated, func() scoped { return &selectionPayload{} }},
	EventCodeTyping:        {EventCodeTypingUpdated, func() scoped { return &codeTypingPayload{} }},
	EventJoinFileEdit:      {EventUserJoinedFileEdit, func() scoped { return &fileEditPresencePayload{} }},
	EventLeaveFileEdit:     {EventUserLeftFileEdit, func() scoped { return &fileEditPresencePayload{} }},
}

// handleEdit broadcasts a collaborative-edit event to the rest of the room.
// Receivers filter by project and file themselves.
func (ctl *SignalWSController) handleEdit(sess core.MemberSession, env envelope) {
	relay, ok := editRelays[env.Event]
	if !ok {
		return
	}
	p := relay.payload()
	if err := decodePayload(env.Data, p); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("event", string(env.Event)).Msg("bad edit payload")
		ctl.sendError(sess, env.Event, "Invalid "+string(env.Event)+" payload")
		return
	}
	room, ok := ctl.Orch.Rooms.Get(domain.RoomName(p.Scope().RoomID))
	if !ok {
		return
	}
	ctl.publish(room, sess.SID(), rawFrame(relay.out, env.Data))
}
