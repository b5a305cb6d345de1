package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/roomrelay/internal/app/orch"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/core"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/dkeye/roomrelay/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch *orch.Orchestrator
	cfg  *config.Config
}

// roomView is a room as the REST API reports it. Rooms that only exist in
// memory have no ID.
type roomView struct {
	ID          domain.RoomID    `json:"id,omitempty"`
	Name        domain.RoomName  `json:"name"`
	CreatedAt   *time.Time       `json:"createdAt,omitempty"`
	MemberCount int              `json:"memberCount"`
	Members     []core.MemberDTO `json:"members,omitempty"`
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

func (h *handlers) storeCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := h.cfg.Store.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(nethttp.StatusOK, gin.H{"status": "ok", "sessions": h.orch.Registry.Count()})
}

// listRooms merges stored rooms with live ones and their member counts.
func (h *handlers) listRooms(c *gin.Context) {
	ctx, cancel := h.storeCtx(c)
	defer cancel()
	stored, err := h.orch.Store.ListRooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}

	liveRooms := h.orch.Rooms.List()
	live := make(map[domain.RoomName]int, len(liveRooms))
	for _, info := range liveRooms {
		live[info.Name] = info.MemberCount
	}

	out := make([]roomView, 0, len(stored)+len(live))
	for _, r := range stored {
		v := storedView(r)
		v.MemberCount = live[r.Name]
		delete(live, r.Name)
		out = append(out, v)
	}
	for _, info := range liveRooms {
		if _, ok := live[info.Name]; ok {
			out = append(out, roomView{Name: info.Name, MemberCount: info.MemberCount})
		}
	}
	c.JSON(nethttp.StatusOK, gin.H{"rooms": out})
}

func (h *handlers) createRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid name"})
		return
	}
	ctx, cancel := h.storeCtx(c)
	defer cancel()
	room, err := h.orch.Store.CreateRoom(ctx, domain.RoomName(strings.TrimSpace(req.Name)))
	if errors.Is(err, store.ErrRoomExists) {
		c.JSON(nethttp.StatusConflict, gin.H{"error": "room already exists"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", req.Name).Msg("create room")
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to create room"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room.Name)).Msg("room created")
	c.JSON(nethttp.StatusCreated, storedView(*room))
}

func (h *handlers) getRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	ctx, cancel := h.storeCtx(c)
	defer cancel()

	var view roomView
	found := false
	stored, err := h.orch.Store.FindRoomByName(ctx, name)
	switch {
	case err == nil:
		view, found = storedView(*stored), true
	case !errors.Is(err, store.ErrRoomNotFound):
		log.Error().Err(err).Str("module", "adapters.http").Str("room", string(name)).Msg("find room")
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	if live, ok := h.orch.Rooms.Get(name); ok {
		view.Name, found = name, true
		view.MemberCount = live.MemberCount()
		view.Members = live.MembersSnapshot()
	}
	if !found {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(nethttp.StatusOK, view)
}

func (h *handlers) roomMembers(c *gin.Context) {
	room, ok := h.orch.Rooms.Get(domain.RoomName(c.Param("name")))
	if !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room not live"})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"members": room.MembersSnapshot()})
}

// kickMember closes the member's connections; their disconnects announce the
// departure to the room.
func (h *handlers) kickMember(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	uid := domain.UserID(c.Param("id"))
	if h.orch.Kick(name, uid) == 0 {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.Status(nethttp.StatusNoContent)
}

// evictRoom disconnects everyone in a live room. The stored record stays.
func (h *handlers) evictRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	if _, ok := h.orch.Rooms.Get(name); !ok {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room not live"})
		return
	}
	n := h.orch.Evict(name)
	log.Info().Str("module", "adapters.http").Str("room", string(name)).Int("sessions", n).Msg("room evicted")
	c.Status(nethttp.StatusNoContent)
}

func (h *handlers) roomMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(nethttp.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	ctx, cancel := h.storeCtx(c)
	defer cancel()
	room, msgs, err := h.orch.History(ctx, domain.RoomName(c.Param("name")), limit)
	if errors.Is(err, store.ErrRoomNotFound) {
		c.JSON(nethttp.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("room", c.Param("name")).Msg("room history")
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"room": storedView(*room), "messages": msgs})
}

func (h *handlers) iceServers(c *gin.Context) {
	out := make([]webrtc.ICEServer, 0, len(h.cfg.ICEServers))
	for _, s := range h.cfg.ICEServers {
		srv := webrtc.ICEServer{URLs: s.URLs, Username: s.Username}
		if s.Credential != "" {
			srv.Credential = s.Credential
		}
		out = append(out, srv)
	}
	c.JSON(nethttp.StatusOK, gin.H{"iceServers": out})
}

func storedView(r domain.Room) roomView {
	created := r.CreatedAt
	return roomView{ID: r.ID, Name: r.Name, CreatedAt: &created}
}
