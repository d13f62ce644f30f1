package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

type chanWatcher struct {
	deltas chan domain.ServerMessage
	err    error
	rooms  []string
}

func (w *chanWatcher) Subscribe(_ context.Context, roomID string) (<-chan domain.ServerMessage, error) {
	w.rooms = append(w.rooms, roomID)
	if w.err != nil {
		return nil, w.err
	}
	return w.deltas, nil
}

func newWatchRouter(rooms Rooms, watcher Watcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewWatchHandler(rooms, watcher).Register(r)
	return r
}

func TestWatch_StreamsSnapshotThenDeltas(t *testing.T) {
	rooms := new(MockRooms)
	rooms.On("Snapshot", mock.Anything, "R1").Return(&domain.Snapshot{Room: &domain.Room{ID: "R1"}}, nil)
	watcher := &chanWatcher{deltas: make(chan domain.ServerMessage, 3)}
	watcher.deltas <- domain.ServerMessage{Type: domain.MsgMoveMade, RoomID: "R1", Column: domain.IntPtr(2)}
	watcher.deltas <- domain.ServerMessage{Type: domain.MsgGameOver, RoomID: "R1", Winner: "p1"}

	w := do(t, newWatchRouter(rooms, watcher), http.MethodGet, "/rooms/R1/watch", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"R1"}, watcher.rooms)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	body := w.Body.String()
	snapAt := strings.Index(body, "event:snapshot")
	moveAt := strings.Index(body, "event:"+domain.MsgMoveMade)
	overAt := strings.Index(body, "event:"+domain.MsgGameOver)
	require.GreaterOrEqual(t, snapAt, 0, body)
	assert.Greater(t, moveAt, snapAt)
	assert.Greater(t, overAt, moveAt)
	assert.Contains(t, body, `"winner":"p1"`)
	rooms.AssertExpectations(t)
}

func TestWatch_ArchivedRoomSendsSnapshotOnly(t *testing.T) {
	rooms := new(MockRooms)
	rooms.On("Snapshot", mock.Anything, "R1").Return(&domain.Snapshot{Room: &domain.Room{ID: "R1"}, Archived: true}, nil)
	watcher := &chanWatcher{deltas: make(chan domain.ServerMessage)}

	w := do(t, newWatchRouter(rooms, watcher), http.MethodGet, "/rooms/R1/watch", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"archived":true`)
}

func TestWatch_Errors(t *testing.T) {
	rooms := new(MockRooms)
	rooms.On("Snapshot", mock.Anything, "gone").Return(nil, domain.ErrRoomNotFound)

	w := do(t, newWatchRouter(rooms, &chanWatcher{deltas: make(chan domain.ServerMessage)}), http.MethodGet, "/rooms/gone/watch", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, newWatchRouter(rooms, &chanWatcher{err: errors.New("redis: connection refused")}), http.MethodGet, "/rooms/R1/watch", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "room stream unavailable", decode[map[string]string](t, w)["error"])
}
