package domain

import "encoding/json"

// Inbound message kinds.
const (
	MsgMove              = "move"
	MsgPowerUp           = "power_up"
	MsgChat              = "chat"
	MsgRequestTimeUpdate = "request_time_update"
	MsgRequestSnapshot   = "request_snapshot"
)

// Outbound message kinds.
const (
	MsgPlayerJoined = "player_joined"
	MsgPlayerLeft   = "player_left"
	MsgGameStarted  = "game_started"
	MsgMoveMade     = "move_made"
	MsgTurnTimeout  = "turn_timeout"
	MsgTimeUpdate   = "time_update"
	MsgPowerUpUsed  = "power_up_used"
	MsgRandomEvent  = "random_event"
	MsgGameOver     = "game_over"
	MsgError        = "error"
	MsgSnapshot     = "snapshot"
)

// Event phases carried by random_event messages.
const (
	EventStarted = "started"
	EventExpired = "expired"
)

type ClientMessage struct {
	Type       string          `json:"type"`
	Column     *int            `json:"column,omitempty"`
	PowerUpID  string          `json:"power_up_id,omitempty"`
	TargetData json.RawMessage `json:"target_data,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// Effect summarises what a power-up or event did, for client display.
type Effect struct {
	Kind           string     `json:"kind"`
	Description    string     `json:"description,omitempty"`
	Columns        []int      `json:"columns,omitempty"`
	Placements     []Position `json:"placements,omitempty"`
	Cleared        int        `json:"cleared,omitempty"`
	Removed        bool       `json:"removed,omitempty"`
	BlockedTurns   int        `json:"blocked_turns,omitempty"`
	GravityFlipped bool       `json:"gravity_flipped,omitempty"`
	Grants         []string   `json:"grants,omitempty"`
}

type ServerMessage struct {
	Type            string       `json:"type"`
	Message         string       `json:"message,omitempty"`
	RoomID          string       `json:"room_id,omitempty"`
	PlayerID        string       `json:"player_id,omitempty"`
	Player          *Player      `json:"player,omitempty"`
	Room            *Room        `json:"room,omitempty"`
	Board           *Board       `json:"board,omitempty"`
	Column          *int         `json:"column,omitempty"`
	Row             *int         `json:"row,omitempty"`
	CurrentTurn     string       `json:"current_turn,omitempty"`
	NextTurn        string       `json:"next_turn,omitempty"`
	TurnSeq         uint64       `json:"turn_seq,omitempty"`
	PowerUpID       PowerUpKind  `json:"power_up_id,omitempty"`
	Effect          *Effect      `json:"effect,omitempty"`
	RemainingUses   *int         `json:"remaining_uses,omitempty"`
	Event           *ActiveEvent `json:"event,omitempty"`
	EventStatus     string       `json:"event_status,omitempty"`
	Winner          string       `json:"winner,omitempty"`
	WinType         WinType      `json:"win_type,omitempty"`
	Positions       []Position   `json:"positions,omitempty"`
	TimeRemainingMs int64        `json:"time_remaining_ms,omitempty"`
	TurnTimeLimitMs int64        `json:"turn_time_limit_ms,omitempty"`
	GravityFlipped  bool         `json:"gravity_flipped,omitempty"`
	Stale           bool         `json:"stale,omitempty"`
	Snapshot        *Snapshot    `json:"snapshot,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Snapshot is everything a (re)connecting client needs to render the game.
type Snapshot struct {
	Room            *Room      `json:"room"`
	Board           Board      `json:"board"`
	Grid            [][]string `json:"grid"`
	TimeRemainingMs int64      `json:"time_remaining_ms"`
	// Stale lists columns whose shard could not be queried; their stacks
	// come from the coordinator cache.
	Stale []int `json:"stale_columns,omitempty"`
	// Archived is set when the room is no longer live and the snapshot
	// comes from the mirror.
	Archived bool `json:"archived,omitempty"`
}

// NewSnapshotMessage wraps a snapshot for delivery to one client.
func NewSnapshotMessage(s *Snapshot) ServerMessage {
	return ServerMessage{
		Type:            MsgSnapshot,
		RoomID:          s.Room.ID,
		Snapshot:        s,
		TimeRemainingMs: s.TimeRemainingMs,
		Stale:           len(s.Stale) > 0,
	}
}

// NewErrorMessage reports a rejected request back to its sender.
func NewErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: MsgError, Message: err.Error()}
}

// IntPtr is a helper for the optional numeric message fields.
func IntPtr(v int) *int {
	return &v
}
