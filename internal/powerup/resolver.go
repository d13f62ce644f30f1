package powerup

import (
	"fmt"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

// BlockTurns is how long column_block keeps a column closed.
const BlockTurns = 1

type OpKind string

const (
	OpDrop        OpKind = "drop"
	OpBomb        OpKind = "bomb"
	OpBlock       OpKind = "block"
	OpUndo        OpKind = "undo"
	OpFlipGravity OpKind = "flip_gravity"
)

// Op is a single shard (or room-level) operation. PlayerID is set for drops,
// Turns for blocks; OpFlipGravity has no column.
type Op struct {
	Kind     OpKind
	Column   int
	PlayerID string
	Turns    int
}

// Plan is the resolver's answer: ops in execution order plus the summary
// shown to clients.
type Plan struct {
	Kind     domain.PowerUpKind
	Ops      []Op
	Effect   domain.Effect
	EndsTurn bool
}

// View is the slice of room state the resolver may read.
type View struct {
	Board   *domain.Board
	Blocked [domain.Columns]int
	// LastColumn is the column the actor last placed in, -1 if none.
	LastColumn int
}

// Resolve validates req against view and returns the plan for actor. For a
// double drop both halves are checked before anything is planned, so the
// plan is either fully applicable or rejected.
func Resolve(req Request, actor string, view View) (Plan, error) {
	plan := Plan{Kind: req.Kind(), EndsTurn: true}
	plan.Effect.Kind = string(req.Kind())

	switch r := req.(type) {
	case DoubleDrop:
		if view.Blocked[r.Column1] > 0 || view.Blocked[r.Column2] > 0 {
			return Plan{}, domain.ErrColumnBlocked
		}
		need := map[int]int{r.Column1: 1}
		need[r.Column2]++
		for col, n := range need {
			if view.Board.Height(col)+n > domain.Rows {
				return Plan{}, domain.ErrInvalidTarget
			}
		}
		plan.Ops = []Op{
			{Kind: OpDrop, Column: r.Column1, PlayerID: actor},
			{Kind: OpDrop, Column: r.Column2, PlayerID: actor},
		}
		plan.Effect.Columns = []int{r.Column1, r.Column2}
		plan.Effect.Description = fmt.Sprintf("dropped discs in columns %d and %d", r.Column1, r.Column2)

	case ColumnBomb:
		plan.Ops = []Op{{Kind: OpBomb, Column: r.Column}}
		plan.Effect.Columns = []int{r.Column}
		plan.Effect.Description = fmt.Sprintf("cleared column %d", r.Column)

	case ColumnBlock:
		plan.Ops = []Op{{Kind: OpBlock, Column: r.Column, Turns: BlockTurns}}
		plan.Effect.Columns = []int{r.Column}
		plan.Effect.BlockedTurns = BlockTurns
		plan.Effect.Description = fmt.Sprintf("blocked column %d for %d turn", r.Column, BlockTurns)

	case UndoMove:
		if !domain.ValidColumn(view.LastColumn) || view.Board.Height(view.LastColumn) == 0 {
			return Plan{}, domain.ErrInvalidTarget
		}
		plan.Ops = []Op{{Kind: OpUndo, Column: view.LastColumn}}
		plan.Effect.Columns = []int{view.LastColumn}
		plan.Effect.Description = fmt.Sprintf("removed the top disc of column %d", view.LastColumn)

	case GravityFlip:
		plan.Ops = []Op{{Kind: OpFlipGravity}}
		plan.Effect.Description = "flipped gravity"

	default:
		return Plan{}, domain.ErrUnknownPowerUp
	}
	return plan, nil
}
