package core

import (
	"sync"

	"github.com/dkeye/roomrelay/internal/domain"
)

// memberSession implements MemberSession by pairing identity + transport.
type memberSession struct {
	sid    SessionID
	signal SignalConnection

	mu   sync.RWMutex
	user domain.User
}

func NewMemberSession(sid SessionID, signal SignalConnection) MemberSession {
	return &memberSession{sid: sid, signal: signal}
}

func (m *memberSession) SID() SessionID           { return m.sid }
func (m *memberSession) Signal() SignalConnection { return m.signal }

func (m *memberSession) User() domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

func (m *memberSession) SetUser(u domain.User) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
}
