package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/roomrelay/internal/domain"
)

// SendMessage resolves the room name through the store and persists msg into
// it. Errors wrap store.ErrRoomNotFound when the name is unknown.
func (o *Orchestrator) SendMessage(ctx context.Context, roomName domain.RoomName, msg domain.Message) (*domain.Message, error) {
	room, err := o.Store.FindRoomByName(ctx, roomName)
	if err != nil {
		return nil, fmt.Errorf("resolve room %q: %w", roomName, err)
	}
	msg.RoomID = room.ID
	stored, err := o.Store.CreateMessage(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("store message in %q: %w", roomName, err)
	}
	return stored, nil
}

// History returns the most recent messages of a room by name.
func (o *Orchestrator) History(ctx context.Context, roomName domain.RoomName, limit int) (*domain.Room, []domain.Message, error) {
	room, err := o.Store.FindRoomByName(ctx, roomName)
	if err != nil {
		return nil, nil, err
	}
	if limit <= 0 || (o.HistoryLimit > 0 && limit > o.HistoryLimit) {
		limit = o.HistoryLimit
	}
	msgs, err := o.Store.ListMessages(ctx, room.ID, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("history of %q: %w", roomName, err)
	}
	return room, msgs, nil
}
