package core

import (
	"sync"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// member is a session as it joined: the user is captured at join time so a
// later SetUser on the session cannot desync the byUser index.
type member struct {
	session MemberSession
	user    domain.User
}

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name   domain.RoomName
	mu     sync.RWMutex
	bySID  map[SessionID]member
	byUser map[domain.UserID]SessionID
	// order keeps join order so snapshots and fan-out are stable.
	order []SessionID
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name:   name,
		bySID:  make(map[SessionID]member),
		byUser: make(map[domain.UserID]SessionID),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

func (r *roomImpl) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(ms MemberSession) {
	sid := ms.SID()
	u := ms.User()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.bySID[sid]; ok {
		// Same session re-joining, possibly under another identity.
		r.unlinkUser(sid, prev.user.ID)
	} else {
		r.order = append(r.order, sid)
	}
	r.bySID[sid] = member{session: ms, user: u}
	r.byUser[u.ID] = sid
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(sid)).Str("user", string(u.ID)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.bySID[sid]
	if !ok {
		return false
	}
	delete(r.bySID, sid)
	for i, s := range r.order {
		if s == sid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.unlinkUser(sid, m.user.ID)
	log.Info().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(sid)).Msg("member removed")
	return true
}

// unlinkUser drops uid from the set unless another session of the same user
// is still present, in which case the most recent one takes over unicast.
// Caller holds r.mu.
func (r *roomImpl) unlinkUser(sid SessionID, uid domain.UserID) {
	if r.byUser[uid] != sid {
		return
	}
	delete(r.byUser, uid)
	for i := len(r.order) - 1; i >= 0; i-- {
		other := r.order[i]
		if other == sid {
			continue
		}
		if m, ok := r.bySID[other]; ok && m.user.ID == uid {
			r.byUser[uid] = other
			return
		}
	}
}

func (r *roomImpl) SessionOf(uid domain.UserID) (MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[uid]
	if !ok {
		return nil, false
	}
	m, ok := r.bySID[sid]
	return m.session, ok
}

func (r *roomImpl) SessionsOf(uid domain.UserID) []MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []MemberSession
	for _, sid := range r.order {
		if m := r.bySID[sid]; m.user.ID == uid {
			out = append(out, m.session)
		}
	}
	return out
}

func (r *roomImpl) Broadcast(except SessionID, data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, sid := range r.order {
		if sid == except {
			continue
		}
		m := r.bySID[sid]
		if err := m.session.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m.session)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("except", string(except)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byUser))
	seen := make(map[domain.UserID]struct{}, len(r.byUser))
	for _, sid := range r.order {
		u := r.bySID[sid].user
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, MemberDTO{ID: u.ID, Username: u.Username})
	}
	return out
}
