package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Watcher streams the deltas broadcast for a room.
type Watcher interface {
	Subscribe(ctx context.Context, roomID string) (<-chan domain.ServerMessage, error)
}

// WatchHandler lets spectators follow a room over server-sent events. The
// stream opens with a snapshot and then relays every broadcast delta.
type WatchHandler struct {
	rooms   Rooms
	watcher Watcher
}

func NewWatchHandler(rooms Rooms, watcher Watcher) *WatchHandler {
	return &WatchHandler{rooms: rooms, watcher: watcher}
}

func (h *WatchHandler) Register(r gin.IRouter) {
	r.GET("/rooms/:id/watch", h.Watch)
}

func (h *WatchHandler) Watch(c *gin.Context) {
	roomID := c.Param("id")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe first so nothing between the snapshot and the stream is lost
	deltas, err := h.watcher.Subscribe(ctx, roomID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "room stream unavailable"})
		return
	}
	snap, err := h.rooms.Snapshot(ctx, roomID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.SSEvent("snapshot", snap)
	c.Writer.Flush()
	if snap.Archived {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-deltas:
			if !ok {
				return
			}
			c.SSEvent(msg.Type, msg)
			c.Writer.Flush()
			if msg.Type == domain.MsgGameOver {
				return
			}
		}
	}
}
