package domain

import "time"

type (
	RoomName string
	RoomID   string
)

const MaxRoomNameLen = 64

// Room is the persisted record behind a human-chosen room name (or PIN).
type Room struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
