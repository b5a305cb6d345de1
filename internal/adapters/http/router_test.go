package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/app/orch"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/dkeye/roomrelay/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func testConfig() *config.Config {
	return &config.Config{
		Mode:       "test",
		Secret:     "test-secret",
		ReadLimit:  config.MinReadLimit,
		SendBuffer: 16,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  time.Second,
		RateLimit:  config.RateLimit{EventsPerSecond: 100, Burst: 100},
		Store:      config.Store{Driver: "memory", HistoryLimit: 10, Timeout: time.Second},
		ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.example.org:3478"}},
			{URLs: []string{"turn:turn.example.org:3478"}, Username: "u", Credential: "p"},
		},
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *orch.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	o := &orch.Orchestrator{
		Registry:     app.NewRegistry(),
		Rooms:        app.NewRoomManager(),
		Policy:       app.PolicyFromConfig("kick"),
		Store:        store.NewMemory(),
		HistoryLimit: 10,
	}
	return SetupRouter(ctx, testConfig(), o), o
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz_SetsClientCookie(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, nethttp.MethodGet, "/healthz", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Set-Cookie"), "RoomRelaySessions=")
}

func TestCreateRoom(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, nethttp.MethodPost, "/api/rooms", `{"name":"4821"}`)
	require.Equal(t, nethttp.StatusCreated, w.Code)
	var room roomView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, domain.RoomName("4821"), room.Name)
	assert.NotEmpty(t, room.ID)

	w = do(r, nethttp.MethodPost, "/api/rooms", `{"name":"4821"}`)
	assert.Equal(t, nethttp.StatusConflict, w.Code)

	for _, body := range []string{`{}`, `{"name":"   "}`, `{"name":"` + strings.Repeat("x", 65) + `"}`, `nope`} {
		w = do(r, nethttp.MethodPost, "/api/rooms", body)
		assert.Equal(t, nethttp.StatusBadRequest, w.Code, body)
	}
}

func TestListRooms_MergesLiveCounts(t *testing.T) {
	r, o := newTestRouter(t)
	require.Equal(t, nethttp.StatusCreated, do(r, nethttp.MethodPost, "/api/rooms", `{"name":"lobby"}`).Code)

	sess := core.NewMemberSession("s1", nopConn{})
	sess.SetUser(domain.User{ID: "ann", Username: "ann"})
	o.Rooms.Join("lobby", sess)
	other := core.NewMemberSession("s2", nopConn{})
	other.SetUser(domain.User{ID: "bob", Username: "bob"})
	o.Rooms.Join("adhoc", other)

	w := do(r, nethttp.MethodGet, "/api/rooms", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	var resp struct {
		Rooms []roomView `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, domain.RoomName("lobby"), resp.Rooms[0].Name)
	assert.Equal(t, 1, resp.Rooms[0].MemberCount)
	assert.NotEmpty(t, resp.Rooms[0].ID)
	assert.Equal(t, domain.RoomName("adhoc"), resp.Rooms[1].Name)
	assert.Empty(t, resp.Rooms[1].ID)
}

func TestGetRoom(t *testing.T) {
	r, o := newTestRouter(t)

	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodGet, "/api/rooms/nowhere", "").Code)

	sess := core.NewMemberSession("s1", nopConn{})
	sess.SetUser(domain.User{ID: "ann", Username: "Ann"})
	o.Rooms.Join("live", sess)

	w := do(r, nethttp.MethodGet, "/api/rooms/live", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	var room roomView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &room))
	assert.Equal(t, 1, room.MemberCount)
	assert.Equal(t, []core.MemberDTO{{ID: "ann", Username: "Ann"}}, room.Members)
}

func TestRoomMessages(t *testing.T) {
	r, o := newTestRouter(t)
	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodGet, "/api/rooms/4821/messages", "").Code)

	require.Equal(t, nethttp.StatusCreated, do(r, nethttp.MethodPost, "/api/rooms", `{"name":"4821"}`).Code)
	for _, text := range []string{"one", "two", "three"} {
		_, err := o.SendMessage(context.Background(), "4821", domain.Message{User: "A", Text: text})
		require.NoError(t, err)
	}

	w := do(r, nethttp.MethodGet, "/api/rooms/4821/messages?limit=2", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	var resp struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "two", resp.Messages[0].Text)
	assert.Equal(t, "three", resp.Messages[1].Text)

	assert.Equal(t, nethttp.StatusBadRequest, do(r, nethttp.MethodGet, "/api/rooms/4821/messages?limit=x", "").Code)
}

func TestICEServers(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, nethttp.MethodGet, "/api/ice-servers", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	var resp struct {
		ICEServers []struct {
			URLs     []string `json:"urls"`
			Username string   `json:"username"`
		} `json:"iceServers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, resp.ICEServers[0].URLs)
	assert.Equal(t, "u", resp.ICEServers[1].Username)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *nethttp.Request {
		r := httptest.NewRequest(nethttp.MethodGet, "/api/ws/signal", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("https://evil.example")))

	check := originChecker([]string{"https://app.example.org/"})
	assert.True(t, check(req("")))
	assert.True(t, check(req("https://APP.example.org")))
	assert.False(t, check(req("https://evil.example")))
	assert.False(t, check(req("http://app.example.org")))
	assert.False(t, check(req("::bad")))

	star := originChecker([]string{"https://app.example.org", "*"})
	assert.True(t, star(req("https://evil.example")))
}

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// expectEvent reads frames until one named name arrives.
func expectEvent(t *testing.T, conn *websocket.Conn, name string) wsFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == name {
			return f
		}
	}
	t.Fatalf("no %s frame", name)
	return wsFrame{}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/signal"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func joinWS(t *testing.T, conn *websocket.Conn, room, uid string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "join-room",
		"data":  map[string]any{"roomId": room, "user": map[string]string{"id": uid, "username": uid}},
	}))
	expectEvent(t, conn, "room-users")
}

// expectClosed reads until the server drops the connection.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	for i := 0; i < 20; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		if _, _, err := conn.ReadMessage(); err != nil {
			var ne net.Error
			require.False(t, errors.As(err, &ne) && ne.Timeout(), "connection still open")
			return
		}
	}
	t.Fatal("connection still open")
}

func TestSignal_EndToEnd(t *testing.T) {
	r, o := newTestRouter(t)
	require.NoError(t, store.SeedRooms(context.Background(), o.Store, []string{"4821"}))
	srv := httptest.NewServer(r)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)

	join := func(conn *websocket.Conn, uid string) {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"event": "join-room",
			"data":  map[string]any{"roomId": "4821", "user": map[string]string{"id": uid, "username": uid}},
		}))
	}

	join(a, "A")
	expectEvent(t, a, "room-users")
	join(b, "B")
	users := expectEvent(t, b, "room-users")
	assert.Contains(t, string(users.Data), `"A"`)
	expectEvent(t, a, "user-joined")

	require.NoError(t, a.WriteJSON(map[string]any{
		"event": "send-message",
		"data":  map[string]any{"roomId": "4821", "user": "A", "text": "hi"},
	}))
	msg := expectEvent(t, b, "new-message")
	var m domain.Message
	require.NoError(t, json.Unmarshal(msg.Data, &m))
	assert.Equal(t, "hi", m.Text)
	assert.Equal(t, "A", m.User)

	require.NoError(t, a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	left := expectEvent(t, b, "user-left")
	assert.Contains(t, string(left.Data), `"A"`)
}

func TestSignal_LargePayloadsKeepConnection(t *testing.T) {
	r, o := newTestRouter(t)
	require.NoError(t, store.SeedRooms(context.Background(), o.Store, []string{"4821"}))
	srv := httptest.NewServer(r)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	joinWS(t, a, "4821", "A")
	joinWS(t, b, "4821", "B")

	content := strings.Repeat("x", 120000)
	require.NoError(t, a.WriteJSON(map[string]any{
		"event": "file-content-change",
		"data": map[string]any{
			"roomId": "4821", "projectId": "p1", "fileId": "main.go", "userId": "A",
			"content": content, "timestamp": 1,
		},
	}))
	updated := expectEvent(t, b, "file-content-updated")
	var edit struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(updated.Data, &edit))
	assert.Equal(t, content, edit.Content)

	code := strings.Repeat("x", 60000)
	require.NoError(t, a.WriteJSON(map[string]any{
		"event": "send-message",
		"data":  map[string]any{"roomId": "4821", "user": "A", "code": code, "language": "go"},
	}))
	msg := expectEvent(t, b, "new-message")
	var m domain.Message
	require.NoError(t, json.Unmarshal(msg.Data, &m))
	assert.Equal(t, code, m.Code)

	require.NoError(t, a.WriteJSON(map[string]any{
		"event": "send-message",
		"data":  map[string]any{"roomId": "4821", "user": "A", "code": strings.Repeat("x", 65537)},
	}))
	expectEvent(t, a, "error")
	require.NoError(t, a.WriteJSON(map[string]any{"event": "ping", "data": map[string]any{}}))
	expectEvent(t, a, "pong")
	assert.Equal(t, 2, o.Registry.Count())
}

func TestRoomMembers(t *testing.T) {
	r, o := newTestRouter(t)
	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodGet, "/api/rooms/live/members", "").Code)

	sess := core.NewMemberSession("s1", nopConn{})
	sess.SetUser(domain.User{ID: "ann", Username: "Ann"})
	o.Rooms.Join("live", sess)

	w := do(r, nethttp.MethodGet, "/api/rooms/live/members", "")
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"members":[{"id":"ann","username":"Ann"}]}`, w.Body.String())
}

func TestKickMember(t *testing.T) {
	r, o := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	joinWS(t, a, "4821", "A")
	joinWS(t, b, "4821", "B")
	expectEvent(t, a, "user-joined")

	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodDelete, "/api/rooms/4821/members/nobody", "").Code)
	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodDelete, "/api/rooms/other/members/A", "").Code)

	require.Equal(t, nethttp.StatusNoContent, do(r, nethttp.MethodDelete, "/api/rooms/4821/members/A", "").Code)
	expectClosed(t, a)
	left := expectEvent(t, b, "user-left")
	assert.Contains(t, string(left.Data), `"A"`)
	assert.Equal(t, 1, o.Registry.Count())

	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodDelete, "/api/rooms/4821/members/A", "").Code)
	room, ok := o.Rooms.Get("4821")
	require.True(t, ok)
	assert.Equal(t, 1, room.MemberCount())
}

func TestEvictRoom(t *testing.T) {
	r, o := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	assert.Equal(t, nethttp.StatusNotFound, do(r, nethttp.MethodDelete, "/api/rooms/4821", "").Code)

	a := dial(t, srv)
	b := dial(t, srv)
	c := dial(t, srv)
	joinWS(t, a, "4821", "A")
	joinWS(t, b, "4821", "B")
	joinWS(t, c, "lobby", "C")

	require.Equal(t, nethttp.StatusNoContent, do(r, nethttp.MethodDelete, "/api/rooms/4821", "").Code)
	expectClosed(t, a)
	expectClosed(t, b)
	assert.Eventually(t, func() bool {
		_, live := o.Rooms.Get("4821")
		return !live
	}, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return o.Registry.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	_, ok := o.Rooms.Get("lobby")
	assert.True(t, ok)
}
