// Package store persists the room records and chat history the relay needs:
// resolving a room name to its record and appending messages to it.
package store

import (
	"context"
	"errors"

	"github.com/dkeye/roomrelay/internal/domain"
)

//go:generate mockgen -source=store.go -destination=mock_store.go -package=store

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
)

type Store interface {
	CreateRoom(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	FindRoomByName(ctx context.Context, name domain.RoomName) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	// CreateMessage assigns ID and CreatedAt and returns the stored message.
	CreateMessage(ctx context.Context, msg domain.Message) (*domain.Message, error)
	// ListMessages returns the last limit messages of a room, oldest first.
	ListMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)
	Close() error
}

// SeedRooms creates every named room, ignoring ones that already exist.
func SeedRooms(ctx context.Context, s Store, names []string) error {
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, err := s.CreateRoom(ctx, domain.RoomName(n)); err != nil && !errors.Is(err, ErrRoomExists) {
			return err
		}
	}
	return nil
}
