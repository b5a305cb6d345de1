package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
}

func (c *recordConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recordConn) Close() {}

func (c *recordConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newSession(sid, uid, name string) (MemberSession, *recordConn) {
	conn := &recordConn{}
	ms := NewMemberSession(SessionID(sid), conn)
	ms.SetUser(domain.User{ID: domain.UserID(uid), Username: name})
	return ms, conn
}

func TestRoom_CountsDistinctUsers(t *testing.T) {
	room := NewRoomService("4821")
	a1, _ := newSession("s1", "a", "A")
	a2, _ := newSession("s2", "a", "A")
	b, _ := newSession("s3", "b", "B")

	room.AddMember(a1)
	room.AddMember(a2)
	room.AddMember(b)

	assert.Equal(t, 2, room.MemberCount())
	assert.Equal(t, 3, room.SessionCount())
	assert.Equal(t, []MemberDTO{{ID: "a", Username: "A"}, {ID: "b", Username: "B"}}, room.MembersSnapshot())

	// Latest session of a user receives unicast; removing it falls back to the older one.
	got, ok := room.SessionOf("a")
	require.True(t, ok)
	assert.Equal(t, SessionID("s2"), got.SID())

	require.True(t, room.RemoveMember("s2"))
	got, ok = room.SessionOf("a")
	require.True(t, ok)
	assert.Equal(t, SessionID("s1"), got.SID())
	assert.Equal(t, 2, room.MemberCount())

	require.True(t, room.RemoveMember("s1"))
	_, ok = room.SessionOf("a")
	assert.False(t, ok)
	assert.Equal(t, 1, room.MemberCount())

	assert.False(t, room.RemoveMember("s1"))
}

func TestRoom_SessionsOf(t *testing.T) {
	room := NewRoomService("r")
	a1, _ := newSession("s1", "a", "A")
	b, _ := newSession("s2", "b", "B")
	a2, _ := newSession("s3", "a", "A")
	room.AddMember(a1)
	room.AddMember(b)
	room.AddMember(a2)

	got := room.SessionsOf("a")
	require.Len(t, got, 2)
	assert.Equal(t, SessionID("s1"), got[0].SID())
	assert.Equal(t, SessionID("s3"), got[1].SID())
	assert.Empty(t, room.SessionsOf("z"))
}

func TestRoom_RejoinUnderNewIdentity(t *testing.T) {
	room := NewRoomService("r")
	ms, _ := newSession("s1", "old", "Old")
	room.AddMember(ms)

	ms.SetUser(domain.User{ID: "new", Username: "New"})
	room.AddMember(ms)

	assert.Equal(t, 1, room.MemberCount())
	_, ok := room.SessionOf("old")
	assert.False(t, ok)
	_, ok = room.SessionOf("new")
	assert.True(t, ok)
}

func TestRoom_BroadcastExcludesSenderAndReportsDrops(t *testing.T) {
	room := NewRoomService("r")
	a, ca := newSession("s1", "a", "A")
	b, cb := newSession("s2", "b", "B")
	c, cc := newSession("s3", "c", "C")
	cc.full = true
	room.AddMember(a)
	room.AddMember(b)
	room.AddMember(c)

	res := room.Broadcast("s1", Frame("x"))
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, SessionID("s3"), res.Dropped[0].SID())
	assert.Equal(t, 0, ca.count())
	assert.Equal(t, 1, cb.count())

	res = room.Broadcast("", Frame("y"))
	assert.Equal(t, 2, res.SendTo)
	assert.Equal(t, 1, ca.count())
}
