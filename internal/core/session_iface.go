package core

import "github.com/dkeye/roomrelay/internal/domain"

type SessionID string

// MemberSession binds a connection's identity and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	SID() SessionID
	User() domain.User
	SetUser(domain.User)
	Signal() SignalConnection
}
