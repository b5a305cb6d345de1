package domain

import "time"

type MessageID string

// Message is a chat line as stored; ID and CreatedAt are assigned by the store.
type Message struct {
	ID        MessageID `json:"id"`
	RoomID    RoomID    `json:"roomId"`
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Code      string    `json:"code,omitempty"`
	Language  string    `json:"language,omitempty"`
	Output    string    `json:"output,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
