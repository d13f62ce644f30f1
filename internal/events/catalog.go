// Package events picks random global events for running rooms. It decides
// what happens and when; the coordinator applies the effect under the room
// lock.
package events

import (
	"math/rand/v2"
	"time"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// SpeedRoundLimit is the turn limit while a speed round is active.
const SpeedRoundLimit = 5 * time.Second

// Definition is one entry of the event catalog.
type Definition struct {
	Kind        domain.EventKind
	Name        string
	Description string
	Duration    int
	Weight      int
}

var Catalog = []Definition{
	{domain.EventEarthquake, "Earthquake", "Shuffles the discs in random columns", 1, 15},
	{domain.EventBlackout, "Blackout", "Hides the board for a limited time", 2, 10},
	{domain.EventSpeedRound, "Speed Round", "Players have only 5 seconds to make a move", 3, 20},
	{domain.EventPowerSurge, "Power Surge", "All players get a random power-up", 1, 10},
	{domain.EventColumnSwap, "Column Swap", "Two random columns swap positions", 1, 15},
	{domain.EventReverseGravity, "Reverse Gravity", "All columns have reversed gravity", 2, 10},
}

func Lookup(kind domain.EventKind) (Definition, bool) {
	for _, d := range Catalog {
		if d.Kind == kind {
			return d, true
		}
	}
	return Definition{}, false
}

// Selection is a chosen event together with its randomised targets. Seed
// drives any further randomness the coordinator needs (earthquake shuffle,
// power surge grant) so applying a selection is reproducible.
type Selection struct {
	Kind    domain.EventKind
	Columns []int
	Seed    uint64
}

// Select draws a weighted event from the catalog and computes its targets.
func Select(rng *rand.Rand) Selection {
	total := 0
	for _, d := range Catalog {
		total += d.Weight
	}
	pick := rng.IntN(total)
	def := Catalog[len(Catalog)-1]
	for _, d := range Catalog {
		if pick < d.Weight {
			def = d
			break
		}
		pick -= d.Weight
	}

	sel := Selection{Kind: def.Kind, Seed: rng.Uint64()}
	switch def.Kind {
	case domain.EventEarthquake:
		sel.Columns = pickColumns(rng, 1+rng.IntN(3))
	case domain.EventColumnSwap:
		sel.Columns = pickColumns(rng, 2)
	}
	return sel
}

// Activate turns a selection into the active event record starting at
// turnIndex.
func Activate(sel Selection, turnIndex int) (domain.ActiveEvent, bool) {
	def, ok := Lookup(sel.Kind)
	if !ok {
		return domain.ActiveEvent{}, false
	}
	ev := domain.ActiveEvent{
		Kind:            def.Kind,
		Name:            def.Name,
		Description:     def.Description,
		Duration:        def.Duration,
		ExpiresAtTurn:   turnIndex + def.Duration,
		AffectedColumns: append([]int(nil), sel.Columns...),
	}
	if def.Kind == domain.EventSpeedRound {
		ev.TurnLimit = SpeedRoundLimit
	}
	return ev, true
}

// pickColumns returns n distinct columns in ascending order.
func pickColumns(rng *rand.Rand, n int) []int {
	perm := rng.Perm(domain.Columns)[:n]
	out := make([]int, 0, n)
	for c := range domain.Columns {
		for _, p := range perm {
			if p == c {
				out = append(out, c)
			}
		}
	}
	return out
}
