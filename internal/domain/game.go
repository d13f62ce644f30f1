package domain

import "time"

type PowerUpKind string

const (
	PowerUpDoubleDrop  PowerUpKind = "double_drop"
	PowerUpColumnBomb  PowerUpKind = "column_bomb"
	PowerUpColumnBlock PowerUpKind = "column_block"
	PowerUpUndoMove    PowerUpKind = "undo_move"
	PowerUpGravityFlip PowerUpKind = "gravity_flip"
)

// PowerUpKinds lists every kind in display order.
var PowerUpKinds = []PowerUpKind{
	PowerUpDoubleDrop,
	PowerUpUndoMove,
	PowerUpColumnBomb,
	PowerUpColumnBlock,
	PowerUpGravityFlip,
}

type EventKind string

const (
	EventEarthquake     EventKind = "earthquake"
	EventBlackout       EventKind = "blackout"
	EventSpeedRound     EventKind = "speed_round"
	EventPowerSurge     EventKind = "power_surge"
	EventColumnSwap     EventKind = "column_swap"
	EventReverseGravity EventKind = "reverse_gravity"
)

type Player struct {
	ID       string              `json:"id"`
	Name     string              `json:"name"`
	Color    string              `json:"color"`
	PowerUps map[PowerUpKind]int `json:"power_ups"`
}

// Clone copies the player including its inventory.
func (p *Player) Clone() *Player {
	cp := *p
	cp.PowerUps = make(map[PowerUpKind]int, len(p.PowerUps))
	for k, v := range p.PowerUps {
		cp.PowerUps[k] = v
	}
	return &cp
}

// NewInventory gives one use of every power-up kind.
func NewInventory() map[PowerUpKind]int {
	inv := make(map[PowerUpKind]int, len(PowerUpKinds))
	for _, k := range PowerUpKinds {
		inv[k] = 1
	}
	return inv
}

// ActiveEvent is a random global modifier currently in effect.
type ActiveEvent struct {
	Kind            EventKind     `json:"kind"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Duration        int           `json:"duration"`
	ExpiresAtTurn   int           `json:"expires_at_turn"`
	AffectedColumns []int         `json:"affected_columns,omitempty"`
	TurnLimit       time.Duration `json:"turn_limit,omitempty"`
}

// Remaining returns how many turn advances the event still lasts.
func (e ActiveEvent) Remaining(turnIndex int) int {
	if r := e.ExpiresAtTurn - turnIndex; r > 0 {
		return r
	}
	return 0
}

// Room is the aggregate the coordinator owns. Players are kept in seating
// order, which is also turn order.
type Room struct {
	ID                  string        `json:"id"`
	Name                string        `json:"name"`
	Players             []*Player     `json:"players"`
	MaxPlayers          int           `json:"max_players"`
	Active              bool          `json:"is_active"`
	Status              GameStatus    `json:"status"`
	RandomEventsEnabled bool          `json:"random_events_enabled"`
	CurrentTurn         string        `json:"current_turn,omitempty"`
	TurnIndex           int           `json:"turn_index"`
	TurnSeq             uint64        `json:"turn_seq"`
	TurnTimeLimit       time.Duration `json:"turn_time_limit"`
	TurnStartTime       time.Time     `json:"turn_start_time"`
	GravityFlipped      bool          `json:"gravity_flipped"`
	ActiveEvents        []ActiveEvent `json:"active_events"`
	Win                 *WinRecord    `json:"win,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	LastActivity        time.Time     `json:"last_activity"`
	FinishedAt          time.Time     `json:"finished_at,omitempty"`
}

func (r *Room) IsFinished() bool {
	return r.Status == StatusGameOver
}

// Player looks a seated player up by id.
func (r *Room) Player(playerID string) (*Player, bool) {
	for _, p := range r.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) seatOf(playerID string) int {
	for i, p := range r.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// NextSeated returns the player seated after playerID, wrapping around.
func (r *Room) NextSeated(playerID string) string {
	if len(r.Players) == 0 {
		return ""
	}
	i := r.seatOf(playerID)
	return r.Players[(i+1)%len(r.Players)].ID
}

// ColorTaken reports whether a seated player already uses color.
func (r *Room) ColorTaken(color string) bool {
	for _, p := range r.Players {
		if p.Color == color {
			return true
		}
	}
	return false
}

// FirstFreeColor returns the first palette color nobody uses yet.
func (r *Room) FirstFreeColor() (string, bool) {
	for _, c := range Palette {
		if !r.ColorTaken(c) {
			return c, true
		}
	}
	return "", false
}

// RemovePlayer takes playerID out of the seating order. If that player held
// the turn, the turn passes to whoever was seated after them.
func (r *Room) RemovePlayer(playerID string) bool {
	i := r.seatOf(playerID)
	if i < 0 {
		return false
	}
	heldTurn := r.CurrentTurn == playerID
	r.Players = append(r.Players[:i], r.Players[i+1:]...)

	if !heldTurn {
		return true
	}
	if len(r.Players) == 0 {
		r.CurrentTurn = ""
		return true
	}
	r.CurrentTurn = r.Players[i%len(r.Players)].ID
	return true
}

// EffectiveTurnLimit is the base limit unless an active event overrides it.
func (r *Room) EffectiveTurnLimit() time.Duration {
	limit := r.TurnTimeLimit
	for _, e := range r.ActiveEvents {
		if e.TurnLimit > 0 && (limit == 0 || e.TurnLimit < limit) {
			limit = e.TurnLimit
		}
	}
	return limit
}

// TimeRemaining on the current turn as of now.
func (r *Room) TimeRemaining(now time.Time) time.Duration {
	limit := r.EffectiveTurnLimit()
	if limit <= 0 || r.Status != StatusInProgress {
		return 0
	}
	left := limit - now.Sub(r.TurnStartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Clone returns a deep copy safe to hand outside the room lock.
func (r *Room) Clone() *Room {
	out := *r
	out.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		out.Players[i] = p.Clone()
	}
	out.ActiveEvents = make([]ActiveEvent, len(r.ActiveEvents))
	copy(out.ActiveEvents, r.ActiveEvents)
	if r.Win != nil {
		w := *r.Win
		w.Positions = append([]Position(nil), r.Win.Positions...)
		out.Win = &w
	}
	return &out
}

// PlayerIDs returns the seated player ids in order.
func (r *Room) PlayerIDs() []string {
	ids := make([]string, len(r.Players))
	for i, p := range r.Players {
		ids[i] = p.ID
	}
	return ids
}
