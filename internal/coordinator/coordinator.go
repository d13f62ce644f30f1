// Package coordinator owns room, player, turn, event and win state. It fans
// client commands out to the column shards, folds their answers back into
// the cached board and broadcasts the resulting deltas.
package coordinator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
	"github.com/iamasit07/4-in-a-row-steroids/internal/events"
	"github.com/iamasit07/4-in-a-row-steroids/internal/powerup"
	"github.com/iamasit07/4-in-a-row-steroids/internal/shard"
	"github.com/iamasit07/4-in-a-row-steroids/pkg/uid"
)

// Broadcaster delivers a message to one player's live connection, if any.
type Broadcaster interface {
	Send(playerID string, msg domain.ServerMessage)
}

// Store mirrors room state outside the process.
type Store interface {
	SaveRoom(ctx context.Context, room *domain.Room, board domain.Board) error
	// LoadRoom returns domain.ErrRoomNotFound when nothing is mirrored.
	LoadRoom(ctx context.Context, roomID string) (*domain.Room, domain.Board, error)
	DeleteRoom(ctx context.Context, roomID string) error
	Publish(ctx context.Context, roomID string, msg domain.ServerMessage) error
}

type Metrics interface {
	RoomOpened()
	RoomClosed()
	GameStarted()
	GameFinished(winType domain.WinType)
	MoveApplied()
	PowerUpUsed(kind domain.PowerUpKind)
	EventStarted(kind domain.EventKind)
	TurnTimedOut()
	ShardFailed(column int)
}

type Config struct {
	TurnTimeLimit        time.Duration
	MinTurnsBeforeEvents int
	EventInterval        time.Duration
	EventProbability     float64
	ShardTimeout         time.Duration
	RetryAttempts        int
	RetryBase            time.Duration
	RoomTTL              time.Duration
	FinishedRoomTTL      time.Duration
	// Rand seeds event selection; nil uses a random seed.
	Rand *rand.Rand
}

func DefaultConfig() Config {
	return Config{
		TurnTimeLimit:        30 * time.Second,
		MinTurnsBeforeEvents: 3,
		EventInterval:        15 * time.Second,
		EventProbability:     0.3,
		ShardTimeout:         2 * time.Second,
		RetryAttempts:        3,
		RetryBase:            50 * time.Millisecond,
		RoomTTL:              24 * time.Hour,
		FinishedRoomTTL:      time.Hour,
	}
}

// roomSession is a room plus everything the coordinator keeps beside it.
// All fields are guarded by mu.
type roomSession struct {
	mu     sync.Mutex
	room   *domain.Room
	board  domain.Board
	shards []shard.ColumnShard
	// blocked mirrors the shards' block counters so moves into a blocked
	// column are rejected without a round trip.
	blocked [domain.Columns]int
	// freshBlocks are columns blocked during the current turn; they are not
	// decremented by the advance that ends it.
	freshBlocks map[int]bool
	lastColumn  map[string]int
	timer       *time.Timer
	closed      bool
}

type Coordinator struct {
	cfg       Config
	provider  shard.Provider
	notifier  Broadcaster
	store     Store
	metrics   Metrics
	scheduler *events.Scheduler
	log       zerolog.Logger
	now       func() time.Time

	rooms      map[string]*roomSession // roomID → session
	playerRoom map[string]string       // playerID → roomID
	mu         sync.RWMutex
}

func New(cfg Config, provider shard.Provider, notifier Broadcaster, log zerolog.Logger) *Coordinator {
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	if cfg.ShardTimeout <= 0 {
		cfg.ShardTimeout = 2 * time.Second
	}
	c := &Coordinator{
		cfg:        cfg,
		provider:   provider,
		notifier:   notifier,
		metrics:    noopMetrics{},
		log:        log.With().Str("component", "coordinator").Logger(),
		now:        time.Now,
		rooms:      make(map[string]*roomSession),
		playerRoom: make(map[string]string),
	}
	c.scheduler = events.NewScheduler(events.Config{
		Interval:    cfg.EventInterval,
		Probability: cfg.EventProbability,
		Rand:        cfg.Rand,
	}, c, log)
	return c
}

// SetStore enables mirroring rooms to an external store.
func (c *Coordinator) SetStore(store Store) {
	c.store = store
}

func (c *Coordinator) SetMetrics(m Metrics) {
	if m == nil {
		m = noopMetrics{}
	}
	c.metrics = m
}

// Shutdown stops every background task. Rooms stay in memory.
func (c *Coordinator) Shutdown() {
	c.scheduler.StopAll()

	c.mu.RLock()
	sessions := make([]*roomSession, 0, len(c.rooms))
	for _, rs := range c.rooms {
		sessions = append(sessions, rs)
	}
	c.mu.RUnlock()

	for _, rs := range sessions {
		rs.mu.Lock()
		rs.stopTimer()
		rs.mu.Unlock()
	}
}

// lock returns the locked session for roomID. Callers must unlock.
func (c *Coordinator) lock(roomID string) (*roomSession, error) {
	c.mu.RLock()
	rs, ok := c.rooms[roomID]
	c.mu.RUnlock()
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	rs.mu.Lock()
	if rs.closed {
		rs.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	return rs, nil
}

func (c *Coordinator) CreateRoom(ctx context.Context, name string, maxPlayers int, randomEvents bool) (*domain.Room, error) {
	if maxPlayers < domain.MinPlayers || maxPlayers > domain.MaxPlayers {
		return nil, domain.ErrInvalidMaxPlayers
	}
	name = strings.TrimSpace(name)

	c.mu.Lock()
	roomID := uid.GenerateRoomID()
	for c.rooms[roomID] != nil {
		roomID = uid.GenerateRoomID()
	}
	shards, err := c.provider.Open(roomID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if name == "" {
		name = "Room " + roomID
	}

	now := c.now()
	rs := &roomSession{
		room: &domain.Room{
			ID:                  roomID,
			Name:                name,
			Players:             []*domain.Player{},
			MaxPlayers:          maxPlayers,
			Status:              domain.StatusWaiting,
			RandomEventsEnabled: randomEvents,
			TurnTimeLimit:       c.cfg.TurnTimeLimit,
			ActiveEvents:        []domain.ActiveEvent{},
			CreatedAt:           now,
			LastActivity:        now,
		},
		board:       domain.NewBoard(),
		shards:      shards,
		freshBlocks: make(map[int]bool),
		lastColumn:  make(map[string]int),
	}
	out := &outbox{roomID: roomID}
	out.persist(rs)
	room := rs.room.Clone()
	c.rooms[roomID] = rs
	c.mu.Unlock()

	c.metrics.RoomOpened()
	c.log.Info().Str("room", roomID).Str("name", name).Int("max_players", maxPlayers).
		Bool("random_events", randomEvents).Msg("room created")
	c.flush(ctx, out)
	return room, nil
}

func (c *Coordinator) JoinRoom(ctx context.Context, roomID, name, color string) (*domain.Player, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}
	room := rs.room

	if len(room.Players) >= room.MaxPlayers {
		rs.mu.Unlock()
		return nil, domain.ErrRoomFull
	}
	if room.Status != domain.StatusWaiting {
		rs.mu.Unlock()
		return nil, domain.ErrGameAlreadyStarted
	}
	if color != "" {
		if !domain.ValidColor(color) || room.ColorTaken(color) {
			rs.mu.Unlock()
			return nil, domain.ErrColorUnavailable
		}
	} else {
		free, ok := room.FirstFreeColor()
		if !ok {
			rs.mu.Unlock()
			return nil, domain.ErrColorUnavailable
		}
		color = free
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Player %d", len(room.Players)+1)
	}
	player := &domain.Player{
		ID:       uid.GeneratePlayerID(),
		Name:     name,
		Color:    color,
		PowerUps: domain.NewInventory(),
	}
	room.Players = append(room.Players, player)
	room.LastActivity = c.now()

	c.mu.Lock()
	c.playerRoom[player.ID] = roomID
	c.mu.Unlock()

	out := &outbox{roomID: roomID}
	out.add(room.PlayerIDs(), domain.ServerMessage{
		Type:     domain.MsgPlayerJoined,
		RoomID:   roomID,
		PlayerID: player.ID,
		Player:   player.Clone(),
		Room:     room.Clone(),
	})
	out.persist(rs)
	result := player.Clone()
	rs.mu.Unlock()

	c.log.Info().Str("room", roomID).Str("player", player.ID).Str("color", color).Msg("player joined")
	c.flush(ctx, out)
	return result, nil
}

func (c *Coordinator) StartGame(ctx context.Context, roomID string) (*domain.Room, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}
	room := rs.room

	if len(room.Players) < domain.MinPlayers {
		rs.mu.Unlock()
		return nil, domain.ErrNotEnoughPlayers
	}
	if room.Status != domain.StatusWaiting {
		rs.mu.Unlock()
		return nil, domain.ErrAlreadyStarted
	}

	if err := c.resetShards(ctx, rs); err != nil {
		rs.mu.Unlock()
		return nil, err
	}

	now := c.now()
	rs.board = domain.NewBoard()
	rs.blocked = [domain.Columns]int{}
	rs.freshBlocks = make(map[int]bool)
	room.Active = true
	room.Status = domain.StatusInProgress
	room.CurrentTurn = room.Players[0].ID
	room.TurnIndex = 0
	room.TurnSeq++
	room.TurnStartTime = now
	room.LastActivity = now
	c.armTimer(rs)

	if room.RandomEventsEnabled {
		c.scheduler.Start(roomID)
	}

	out := &outbox{roomID: roomID}
	board := rs.board.Copy()
	out.add(room.PlayerIDs(), domain.ServerMessage{
		Type:            domain.MsgGameStarted,
		RoomID:          roomID,
		Room:            room.Clone(),
		Board:           &board,
		CurrentTurn:     room.CurrentTurn,
		TurnSeq:         room.TurnSeq,
		TurnTimeLimitMs: room.EffectiveTurnLimit().Milliseconds(),
	})
	out.persist(rs)
	result := room.Clone()
	rs.mu.Unlock()

	c.metrics.GameStarted()
	c.log.Info().Str("room", roomID).Int("players", len(result.Players)).Msg("game started")
	c.flush(ctx, out)
	return result, nil
}

// LeaveRoom takes a player out of the room. Mid-game the remaining players
// continue; the last one standing wins by forfeit. An empty room is torn
// down.
func (c *Coordinator) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	rs, err := c.lock(roomID)
	if err != nil {
		return err
	}
	room := rs.room

	heldTurn := room.CurrentTurn == playerID
	if !room.RemovePlayer(playerID) {
		rs.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	delete(rs.lastColumn, playerID)
	room.LastActivity = c.now()

	c.mu.Lock()
	delete(c.playerRoom, playerID)
	c.mu.Unlock()

	out := &outbox{roomID: roomID}
	out.add(room.PlayerIDs(), domain.ServerMessage{
		Type:        domain.MsgPlayerLeft,
		RoomID:      roomID,
		PlayerID:    playerID,
		Room:        room.Clone(),
		CurrentTurn: room.CurrentTurn,
	})

	empty := len(room.Players) == 0
	if room.Status == domain.StatusInProgress {
		switch {
		case len(room.Players) == 1:
			c.finish(rs, &domain.WinRecord{Winner: room.Players[0].ID, WinType: domain.WinForfeit}, out)
		case heldTurn && !empty:
			// RemovePlayer already seated the next player
			c.endTurn(ctx, rs, out)
		}
	}
	out.persist(rs)
	remaining := len(room.Players)
	rs.mu.Unlock()

	c.log.Info().Str("room", roomID).Str("player", playerID).Int("remaining", remaining).Msg("player left")
	c.flush(ctx, out)

	if empty {
		return c.Teardown(ctx, roomID)
	}
	return nil
}

// Teardown removes the room, releases its shards and drops its mirror.
func (c *Coordinator) Teardown(ctx context.Context, roomID string) error {
	return c.teardown(ctx, roomID, false)
}

// teardown with keepMirror leaves the store record to expire on its own TTL.
func (c *Coordinator) teardown(ctx context.Context, roomID string, keepMirror bool) error {
	c.mu.Lock()
	rs, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	delete(c.rooms, roomID)
	for pid, rid := range c.playerRoom {
		if rid == roomID {
			delete(c.playerRoom, pid)
		}
	}
	c.mu.Unlock()

	rs.mu.Lock()
	rs.closed = true
	rs.stopTimer()
	rs.mu.Unlock()
	c.scheduler.Stop(roomID)

	if err := c.provider.Close(ctx, roomID); err != nil {
		c.log.Warn().Err(err).Str("room", roomID).Msg("releasing shards failed")
	}
	if c.store != nil && !keepMirror {
		if err := c.store.DeleteRoom(ctx, roomID); err != nil {
			c.log.Warn().Err(err).Str("room", roomID).Msg("deleting mirrored room failed")
		}
	}
	c.metrics.RoomClosed()
	c.log.Info().Str("room", roomID).Msg("room torn down")
	return nil
}

// ListRooms returns every room, oldest first.
func (c *Coordinator) ListRooms() []*domain.Room {
	c.mu.RLock()
	sessions := make([]*roomSession, 0, len(c.rooms))
	for _, rs := range c.rooms {
		sessions = append(sessions, rs)
	}
	c.mu.RUnlock()

	rooms := make([]*domain.Room, 0, len(sessions))
	for _, rs := range sessions {
		rs.mu.Lock()
		if !rs.closed {
			rooms = append(rooms, rs.room.Clone())
		}
		rs.mu.Unlock()
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms
}

func (c *Coordinator) GetRoom(roomID string) (*domain.Room, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()
	return rs.room.Clone(), nil
}

// RoomOfPlayer returns the room a player is seated in.
func (c *Coordinator) RoomOfPlayer(playerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roomID, ok := c.playerRoom[playerID]
	return roomID, ok
}

// PowerUps lists a player's inventory.
func (c *Coordinator) PowerUps(roomID, playerID string) ([]powerup.Entry, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return nil, err
	}
	defer rs.mu.Unlock()

	p, ok := rs.room.Player(playerID)
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return powerup.Inventory(p), nil
}

const maxChatLength = 500

func (c *Coordinator) Chat(ctx context.Context, roomID, playerID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxChatLength {
		return domain.ErrInvalidMessage
	}

	rs, err := c.lock(roomID)
	if err != nil {
		return err
	}
	p, ok := rs.room.Player(playerID)
	if !ok {
		rs.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	out := &outbox{roomID: roomID}
	out.add(rs.room.PlayerIDs(), domain.ServerMessage{
		Type:     domain.MsgChat,
		RoomID:   roomID,
		PlayerID: playerID,
		Player:   &domain.Player{ID: p.ID, Name: p.Name, Color: p.Color},
		Message:  message,
	})
	rs.mu.Unlock()

	c.flush(ctx, out)
	return nil
}

// TimeUpdate builds the time_update reply for a room.
func (c *Coordinator) TimeUpdate(roomID string) (domain.ServerMessage, error) {
	rs, err := c.lock(roomID)
	if err != nil {
		return domain.ServerMessage{}, err
	}
	defer rs.mu.Unlock()

	room := rs.room
	return domain.ServerMessage{
		Type:            domain.MsgTimeUpdate,
		RoomID:          roomID,
		CurrentTurn:     room.CurrentTurn,
		TurnSeq:         room.TurnSeq,
		TimeRemainingMs: room.TimeRemaining(c.now()).Milliseconds(),
		TurnTimeLimitMs: room.EffectiveTurnLimit().Milliseconds(),
	}, nil
}

// CleanupStale tears down idle rooms and finished rooms past their grace
// period. It returns how many rooms were removed.
func (c *Coordinator) CleanupStale(ctx context.Context) int {
	now := c.now()

	c.mu.RLock()
	sessions := make(map[string]*roomSession, len(c.rooms))
	for id, rs := range c.rooms {
		sessions[id] = rs
	}
	c.mu.RUnlock()

	// roomID → whether the room finished; finished games stay readable from
	// the mirror after they leave memory.
	stale := make(map[string]bool)
	for id, rs := range sessions {
		rs.mu.Lock()
		room := rs.room
		switch {
		case room.IsFinished() && c.cfg.FinishedRoomTTL > 0 && now.Sub(room.FinishedAt) > c.cfg.FinishedRoomTTL:
			stale[id] = true
		case c.cfg.RoomTTL > 0 && now.Sub(room.LastActivity) > c.cfg.RoomTTL:
			stale[id] = room.IsFinished()
		}
		rs.mu.Unlock()
	}

	removed := 0
	for id, finished := range stale {
		if c.teardown(ctx, id, finished) == nil {
			removed++
		}
	}
	if removed > 0 {
		c.log.Info().Int("count", removed).Msg("removed stale rooms")
	}
	return removed
}

func (rs *roomSession) stopTimer() {
	if rs.timer != nil {
		rs.timer.Stop()
		rs.timer = nil
	}
}

type noopMetrics struct{}

func (noopMetrics) RoomOpened()                    {}
func (noopMetrics) RoomClosed()                    {}
func (noopMetrics) GameStarted()                   {}
func (noopMetrics) GameFinished(domain.WinType)    {}
func (noopMetrics) MoveApplied()                   {}
func (noopMetrics) PowerUpUsed(domain.PowerUpKind) {}
func (noopMetrics) EventStarted(domain.EventKind)  {}
func (noopMetrics) TurnTimedOut()                  {}
func (noopMetrics) ShardFailed(int)                {}
