package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/powerup"
)

// Rooms is the coordinator surface behind the REST API.
type Rooms interface {
	CreateRoom(ctx context.Context, name string, maxPlayers int, randomEvents bool) (*domain.Room, error)
	ListRooms() []*domain.Room
	GetRoom(roomID string) (*domain.Room, error)
	Snapshot(ctx context.Context, roomID string) (*domain.Snapshot, error)
	JoinRoom(ctx context.Context, roomID, name, color string) (*domain.Player, error)
	StartGame(ctx context.Context, roomID string) (*domain.Room, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	Teardown(ctx context.Context, roomID string) error
	PowerUps(roomID, playerID string) ([]powerup.Entry, error)
}

type RoomHandler struct {
	rooms Rooms
}

func NewRoomHandler(rooms Rooms) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/rooms", h.ListRooms)
	r.POST("/rooms", h.CreateRoom)
	r.GET("/rooms/:id", h.GetRoom)
	r.DELETE("/rooms/:id", h.DeleteRoom)
	r.POST("/rooms/:id/join", h.JoinRoom)
	r.POST("/rooms/:id/start", h.StartGame)
	r.POST("/rooms/:id/leave", h.LeaveRoom)
	r.GET("/power-ups/player/:room_id/:player_id", h.PowerUps)
}

type createRoomRequest struct {
	Name                string `json:"name"`
	MaxPlayers          *int   `json:"max_players"`
	RandomEventsEnabled bool   `json:"random_events_enabled"`
}

type joinRoomRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type leaveRoomRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
}

func (h *RoomHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
}

func (h *RoomHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.rooms.ListRooms()})
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	maxPlayers := domain.MaxPlayers
	if req.MaxPlayers != nil {
		maxPlayers = *req.MaxPlayers
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req.Name, maxPlayers, req.RandomEventsEnabled)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// GetRoom answers with a live snapshot so HTTP clients see the same board
// a reconnecting socket would.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	snap, err := h.rooms.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req joinRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	roomID := c.Param("id")
	player, err := h.rooms.JoinRoom(c.Request.Context(), roomID, req.Name, req.Color)
	if err != nil {
		writeError(c, err)
		return
	}
	room, err := h.rooms.GetRoom(roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player": player, "room": room})
}

func (h *RoomHandler) StartGame(c *gin.Context) {
	room, err := h.rooms.StartGame(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req leaveRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required"})
		return
	}
	if err := h.rooms.LeaveRoom(c.Request.Context(), c.Param("id"), req.PlayerID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	if err := h.rooms.Teardown(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) PowerUps(c *gin.Context) {
	playerID := c.Param("player_id")
	inv, err := h.rooms.PowerUps(c.Param("room_id"), playerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"player_id": playerID, "power_ups": inv})
}
