package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/iamasit07/4-in-a-row-steroids/internal/coordinator"
	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// Game is the part of the coordinator the gateway drives.
type Game interface {
	RoomOfPlayer(playerID string) (string, bool)
	Snapshot(ctx context.Context, roomID string) (*domain.Snapshot, error)
	SubmitMove(ctx context.Context, roomID, playerID string, column int) (*coordinator.MoveResult, error)
	SubmitPowerUp(ctx context.Context, roomID, playerID string, kind domain.PowerUpKind, targetData json.RawMessage) (*coordinator.PowerUpResult, error)
	Chat(ctx context.Context, roomID, playerID, message string) error
	TimeUpdate(roomID string) (domain.ServerMessage, error)
	LeaveRoom(ctx context.Context, roomID, playerID string) error
}

type Config struct {
	// ReconnectGrace is how long a dropped player keeps their seat.
	ReconnectGrace time.Duration
	AllowedOrigins []string
	MessageRate    rate.Limit
	MessageBurst   int
}

func DefaultConfig() Config {
	return Config{
		ReconnectGrace: 30 * time.Second,
		MessageRate:    10,
		MessageBurst:   20,
	}
}

var errRateLimited = errors.New("too many messages, slow down")

type Handler struct {
	conns    *ConnectionManager
	game     Game
	cfg      Config
	upgrader websocket.Upgrader
	log      zerolog.Logger

	pending map[string]*time.Timer // playerID → seat release
	mu      sync.Mutex
}

func NewHandler(conns *ConnectionManager, game Game, cfg Config, log zerolog.Logger) *Handler {
	if cfg.MessageRate <= 0 {
		cfg.MessageRate = DefaultConfig().MessageRate
	}
	if cfg.MessageBurst <= 0 {
		cfg.MessageBurst = DefaultConfig().MessageBurst
	}
	h := &Handler{
		conns:   conns,
		game:    game,
		cfg:     cfg,
		log:     log.With().Str("component", "gateway").Logger(),
		pending: make(map[string]*time.Timer),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/ws/:player_id", h.ServeWS)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(h.cfg.AllowedOrigins, origin)
}

// ServeWS upgrades a seated player's request and runs its read loop.
func (h *Handler) ServeWS(c *gin.Context) {
	playerID := c.Param("player_id")
	roomID, ok := h.game.RoomOfPlayer(playerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrPlayerNotFound.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("player", playerID).Msg("upgrade failed")
		return
	}
	h.serve(conn, playerID, roomID)
}

func (h *Handler) serve(conn *websocket.Conn, playerID, roomID string) {
	h.mu.Lock()
	if t, ok := h.pending[playerID]; ok {
		t.Stop()
		delete(h.pending, playerID)
		h.log.Info().Str("player", playerID).Msg("reconnected within grace period")
	}
	cl := h.conns.add(playerID, conn)
	h.mu.Unlock()
	defer h.disconnect(cl)

	h.log.Info().Str("player", playerID).Str("room", roomID).Msg("connected")
	ctx := context.Background()
	h.sendSnapshot(ctx, playerID, roomID)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limiter := rate.NewLimiter(h.cfg.MessageRate, h.cfg.MessageBurst)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("player", playerID).Msg("disconnected unexpectedly")
			}
			return
		}
		h.conns.observer.MessageReceived()

		if !limiter.Allow() {
			h.conns.Send(playerID, domain.NewErrorMessage(errRateLimited))
			continue
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.conns.Send(playerID, domain.NewErrorMessage(domain.ErrInvalidMessage))
			continue
		}
		h.dispatch(ctx, playerID, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, playerID string, msg domain.ClientMessage) {
	roomID, ok := h.game.RoomOfPlayer(playerID)
	if !ok {
		h.conns.Send(playerID, domain.NewErrorMessage(domain.ErrPlayerNotFound))
		return
	}

	var err error
	switch msg.Type {
	case domain.MsgMove:
		if msg.Column == nil {
			err = domain.ErrInvalidColumn
			break
		}
		_, err = h.game.SubmitMove(ctx, roomID, playerID, *msg.Column)
	case domain.MsgPowerUp:
		_, err = h.game.SubmitPowerUp(ctx, roomID, playerID, domain.PowerUpKind(msg.PowerUpID), msg.TargetData)
	case domain.MsgChat:
		err = h.game.Chat(ctx, roomID, playerID, msg.Message)
	case domain.MsgRequestTimeUpdate:
		var update domain.ServerMessage
		if update, err = h.game.TimeUpdate(roomID); err == nil {
			h.conns.Send(playerID, update)
		}
	case domain.MsgRequestSnapshot:
		h.sendSnapshot(ctx, playerID, roomID)
	default:
		err = domain.ErrInvalidMessage
	}

	if err != nil {
		h.reject(playerID, msg.Type, err)
	}
}

func (h *Handler) sendSnapshot(ctx context.Context, playerID, roomID string) {
	snap, err := h.game.Snapshot(ctx, roomID)
	if err != nil {
		h.reject(playerID, domain.MsgRequestSnapshot, err)
		return
	}
	h.conns.Send(playerID, domain.NewSnapshotMessage(snap))
}

// reject reports err to the player. Errors outside the game vocabulary are
// logged and replaced with a generic message.
func (h *Handler) reject(playerID, msgType string, err error) {
	if !domain.IsDomainError(err) {
		h.log.Error().Err(err).Str("player", playerID).Str("type", msgType).Msg("request failed")
		err = errors.New("internal error")
	}
	h.conns.Send(playerID, domain.NewErrorMessage(err))
}

// disconnect starts the grace period for a dropped player. A socket that
// was replaced by a newer one leaves the seat alone.
func (h *Handler) disconnect(cl *client) {
	if !h.conns.remove(cl) {
		return
	}
	playerID := cl.playerID
	roomID, ok := h.game.RoomOfPlayer(playerID)
	if !ok {
		return
	}
	h.log.Info().Str("player", playerID).Dur("grace", h.cfg.ReconnectGrace).Msg("disconnected")

	if h.cfg.ReconnectGrace <= 0 {
		h.release(playerID, roomID)
		return
	}
	h.scheduleRelease(playerID, roomID)
}

// scheduleRelease frees the seat once the grace period passes without a
// reconnect. A reconnect can land before the timer is registered, so the
// timer checks the connection again when it fires.
func (h *Handler) scheduleRelease(playerID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var t *time.Timer
	t = time.AfterFunc(h.cfg.ReconnectGrace, func() {
		h.mu.Lock()
		if h.pending[playerID] != t {
			h.mu.Unlock()
			return
		}
		delete(h.pending, playerID)
		reconnected := h.conns.IsConnected(playerID)
		h.mu.Unlock()
		if !reconnected {
			h.release(playerID, roomID)
		}
	})
	h.pending[playerID] = t
}

func (h *Handler) release(playerID, roomID string) {
	err := h.game.LeaveRoom(context.Background(), roomID, playerID)
	if err != nil && !errors.Is(err, domain.ErrRoomNotFound) && !errors.Is(err, domain.ErrPlayerNotFound) {
		h.log.Warn().Err(err).Str("player", playerID).Str("room", roomID).Msg("leave after disconnect failed")
		return
	}
	h.log.Info().Str("player", playerID).Str("room", roomID).Msg("seat released")
}

// Close cancels pending seat releases and closes every socket.
func (h *Handler) Close() {
	h.mu.Lock()
	for id, t := range h.pending {
		t.Stop()
		delete(h.pending, id)
	}
	h.mu.Unlock()
	h.conns.CloseAll()
}
