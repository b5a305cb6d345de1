package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/google/uuid"
)

type Memory struct {
	mu       sync.RWMutex
	rooms    map[domain.RoomName]domain.Room
	messages map[domain.RoomID][]domain.Message
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[domain.RoomName]domain.Room),
		messages: make(map[domain.RoomID][]domain.Message),
		now:      time.Now,
	}
}

func (m *Memory) CreateRoom(_ context.Context, name domain.RoomName) (*domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[name]; ok {
		return nil, ErrRoomExists
	}
	room := domain.Room{ID: domain.RoomID(uuid.NewString()), Name: name, CreatedAt: m.now().UTC()}
	m.rooms[name] = room
	return &room, nil
}

func (m *Memory) FindRoomByName(_ context.Context, name domain.RoomName) (*domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[name]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

func (m *Memory) ListRooms(context.Context) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) CreateMessage(_ context.Context, msg domain.Message) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = domain.MessageID(uuid.NewString())
	msg.CreatedAt = m.now().UTC()
	m.messages[msg.RoomID] = append(m.messages[msg.RoomID], msg)
	return &msg, nil
}

func (m *Memory) ListMessages(_ context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[roomID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.Message, len(all))
	copy(out, all)
	return out, nil
}

func (m *Memory) Close() error { return nil }
