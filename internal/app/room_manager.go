package app

import (
	"sort"
	"sync"

	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManager owns the live rooms. Joins and leaves go through it so that an
// emptied room is deleted under the same lock a concurrent join would take.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomName]core.RoomService)}
}

func (m *RoomManager) Get(name domain.RoomName) (core.RoomService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	return room, ok
}

// Join adds ms to the room, creating the room on first join.
func (m *RoomManager) Join(name domain.RoomName, ms core.MemberSession) core.RoomService {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[name]
	if !ok {
		room = core.NewRoomService(name)
		m.rooms[name] = room
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	}
	room.AddMember(ms)
	return room
}

// Leave removes sid from the room. The returned room is nil when it was
// deleted because nobody is left; removed is false if sid was not a member.
func (m *RoomManager) Leave(name domain.RoomName, sid core.SessionID) (room core.RoomService, removed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[name]
	if !ok {
		return nil, false
	}
	removed = room.RemoveMember(sid)
	if room.SessionCount() == 0 {
		delete(m.rooms, name)
		log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room deleted")
		return nil, removed
	}
	return room, removed
}

func (m *RoomManager) List() []core.RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(m.rooms))
	for name, r := range m.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
