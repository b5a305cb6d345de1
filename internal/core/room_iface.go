package core

import (
	"github.com/dkeye/roomrelay/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomService is the core-facing API of a live room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	// MemberCount is the number of distinct users, not sessions.
	MemberCount() int
	SessionCount() int
	MembersSnapshot() []MemberDTO
	// SessionOf returns the session most recently joined by uid.
	SessionOf(uid domain.UserID) (MemberSession, bool)
	// SessionsOf returns every session uid holds in the room, in join order.
	SessionsOf(uid domain.UserID) []MemberSession

	AddMember(ms MemberSession)
	RemoveMember(sid SessionID) bool
	// Broadcast sends to every session except `except`; pass "" to include everyone.
	Broadcast(except SessionID, data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
}
