package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "roomrelay:"

// Redis keeps room records as JSON strings, the set of room names, and one
// list of JSON messages per room.
type Redis struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRedis(opts *redis.Options) *Redis {
	return &Redis{rdb: redis.NewClient(opts), now: time.Now}
}

func roomKey(name domain.RoomName) string { return keyPrefix + "room:" + string(name) }
func messagesKey(id domain.RoomID) string { return keyPrefix + "messages:" + string(id) }
func roomsKey() string { return keyPrefix + "rooms" }

func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Redis) CreateRoom(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	room := domain.Room{ID: domain.RoomID(uuid.NewString()), Name: name, CreatedAt: s.now().UTC()}
	b, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encode room: %w", err)
	}
	created, err := s.rdb.SetNX(ctx, roomKey(name), b, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("create room %q: %w", name, err)
	}
	if !created {
		return nil, ErrRoomExists
	}
	if err := s.rdb.SAdd(ctx, roomsKey(), string(name)).Err(); err != nil {
		return nil, fmt.Errorf("index room %q: %w", name, err)
	}
	return &room, nil
}

func (s *Redis) FindRoomByName(ctx context.Context, name domain.RoomName) (*domain.Room, error) {
	b, err := s.rdb.Get(ctx, roomKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room %q: %w", name, err)
	}
	var room domain.Room
	if err := json.Unmarshal(b, &room); err != nil {
		return nil, fmt.Errorf("decode room %q: %w", name, err)
	}
	return &room, nil
}

func (s *Redis) ListRooms(ctx context.Context) ([]domain.Room, error) {
	names, err := s.rdb.SMembers(ctx, roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(names))
	for _, n := range names {
		room, err := s.FindRoomByName(ctx, domain.RoomName(n))
		if errors.Is(err, ErrRoomNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Redis) CreateMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	msg.ID = domain.MessageID(uuid.NewString())
	msg.CreatedAt = s.now().UTC()
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if err := s.rdb.RPush(ctx, messagesKey(msg.RoomID), b).Err(); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return &msg, nil
}

func (s *Redis) ListMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, messagesKey(roomID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]domain.Message, 0, len(raw))
	for _, r := range raw {
		var m domain.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}
