package powerup

import "github.com/iamasit07/4-in-a-row-steroids/internal/domain"

// Info describes a power-up kind for display.
type Info struct {
	ID          domain.PowerUpKind `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
}

// Entry is one line of a player's inventory.
type Entry struct {
	Info
	RemainingUses int `json:"remaining_uses"`
}

var catalog = map[domain.PowerUpKind]Info{
	domain.PowerUpDoubleDrop:  {domain.PowerUpDoubleDrop, "Double Drop", "Place two discs in one turn"},
	domain.PowerUpUndoMove:    {domain.PowerUpUndoMove, "Undo Move", "Undo your last move"},
	domain.PowerUpColumnBomb:  {domain.PowerUpColumnBomb, "Column Bomb", "Remove all discs from a column"},
	domain.PowerUpColumnBlock: {domain.PowerUpColumnBlock, "Column Block", "Block a column for 1 turn"},
	domain.PowerUpGravityFlip: {domain.PowerUpGravityFlip, "Gravity Flip", "Flip gravity for the whole board"},
}

// Lookup returns the display info of kind.
func Lookup(kind domain.PowerUpKind) (Info, bool) {
	info, ok := catalog[kind]
	return info, ok
}

// Inventory lists the player's power-ups in display order.
func Inventory(p *domain.Player) []Entry {
	out := make([]Entry, 0, len(domain.PowerUpKinds))
	for _, kind := range domain.PowerUpKinds {
		out = append(out, Entry{Info: catalog[kind], RemainingUses: p.PowerUps[kind]})
	}
	return out
}
