package powerup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/4-in-a-row-steroids/internal/domain"
)

func boardWithHeights(heights map[int]int) *domain.Board {
	b := domain.NewBoard()
	for col, h := range heights {
		for row := range h {
			b[col] = append(b[col], domain.Disc{PlayerID: "X", Row: row})
		}
	}
	return &b
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.PowerUpKind
		target  string
		want    Request
		wantErr error
	}{
		{name: "double drop", kind: domain.PowerUpDoubleDrop, target: `{"column1":2,"column2":5}`, want: DoubleDrop{2, 5}},
		{name: "double drop missing half", kind: domain.PowerUpDoubleDrop, target: `{"column1":2}`, wantErr: domain.ErrInvalidTarget},
		{name: "bomb", kind: domain.PowerUpColumnBomb, target: `{"column":0}`, want: ColumnBomb{0}},
		{name: "bomb out of range", kind: domain.PowerUpColumnBomb, target: `{"column":7}`, wantErr: domain.ErrInvalidTarget},
		{name: "block negative", kind: domain.PowerUpColumnBlock, target: `{"column":-1}`, wantErr: domain.ErrInvalidTarget},
		{name: "block", kind: domain.PowerUpColumnBlock, target: `{"column":6}`, want: ColumnBlock{6}},
		{name: "undo without target", kind: domain.PowerUpUndoMove, want: UndoMove{}},
		{name: "gravity flip with null", kind: domain.PowerUpGravityFlip, target: `null`, want: GravityFlip{}},
		{name: "malformed", kind: domain.PowerUpColumnBomb, target: `[1]`, wantErr: domain.ErrInvalidTarget},
		{name: "unknown kind", kind: "steal_column", wantErr: domain.ErrUnknownPowerUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Parse(tt.kind, json.RawMessage(tt.target))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req)
			assert.Equal(t, tt.kind, req.Kind())
		})
	}
}

func TestResolve_DoubleDrop(t *testing.T) {
	view := View{Board: boardWithHeights(map[int]int{1: 2}), LastColumn: -1}

	plan, err := Resolve(DoubleDrop{Column1: 1, Column2: 4}, "A", view)
	require.NoError(t, err)
	assert.True(t, plan.EndsTurn)
	assert.Equal(t, []Op{
		{Kind: OpDrop, Column: 1, PlayerID: "A"},
		{Kind: OpDrop, Column: 4, PlayerID: "A"},
	}, plan.Ops)
	assert.Equal(t, []int{1, 4}, plan.Effect.Columns)
}

func TestResolve_DoubleDropCapacity(t *testing.T) {
	tests := []struct {
		name    string
		heights map[int]int
		req     DoubleDrop
		wantErr error
	}{
		{name: "first column full", heights: map[int]int{0: 6}, req: DoubleDrop{0, 3}, wantErr: domain.ErrInvalidTarget},
		{name: "second column full", heights: map[int]int{3: 6}, req: DoubleDrop{0, 3}, wantErr: domain.ErrInvalidTarget},
		{name: "same column one slot", heights: map[int]int{2: 5}, req: DoubleDrop{2, 2}, wantErr: domain.ErrInvalidTarget},
		{name: "same column two slots", heights: map[int]int{2: 4}, req: DoubleDrop{2, 2}},
		{name: "last slot each", heights: map[int]int{0: 5, 6: 5}, req: DoubleDrop{0, 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.req, "A", View{Board: boardWithHeights(tt.heights), LastColumn: -1})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolve_DoubleDropIntoBlockedColumn(t *testing.T) {
	view := View{Board: boardWithHeights(nil), LastColumn: -1}
	view.Blocked[5] = 1

	_, err := Resolve(DoubleDrop{Column1: 0, Column2: 5}, "A", view)
	assert.ErrorIs(t, err, domain.ErrColumnBlocked)
}

func TestResolve_SingleColumnKinds(t *testing.T) {
	view := View{Board: boardWithHeights(nil), LastColumn: -1}

	plan, err := Resolve(ColumnBomb{Column: 3}, "A", view)
	require.NoError(t, err)
	assert.Equal(t, []Op{{Kind: OpBomb, Column: 3}}, plan.Ops)

	plan, err = Resolve(ColumnBlock{Column: 2}, "A", view)
	require.NoError(t, err)
	assert.Equal(t, []Op{{Kind: OpBlock, Column: 2, Turns: BlockTurns}}, plan.Ops)
	assert.Equal(t, BlockTurns, plan.Effect.BlockedTurns)

	plan, err = Resolve(GravityFlip{}, "A", view)
	require.NoError(t, err)
	assert.Equal(t, []Op{{Kind: OpFlipGravity}}, plan.Ops)
}

func TestResolve_Undo(t *testing.T) {
	board := boardWithHeights(map[int]int{4: 3})

	plan, err := Resolve(UndoMove{}, "A", View{Board: board, LastColumn: 4})
	require.NoError(t, err)
	assert.Equal(t, []Op{{Kind: OpUndo, Column: 4}}, plan.Ops)

	_, err = Resolve(UndoMove{}, "A", View{Board: board, LastColumn: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = Resolve(UndoMove{}, "A", View{Board: board, LastColumn: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)
}

func TestInventory(t *testing.T) {
	p := &domain.Player{ID: "A", PowerUps: domain.NewInventory()}
	p.PowerUps[domain.PowerUpColumnBomb] = 0

	inv := Inventory(p)
	require.Len(t, inv, len(domain.PowerUpKinds))
	assert.Equal(t, domain.PowerUpDoubleDrop, inv[0].ID)
	assert.Equal(t, "Double Drop", inv[0].Name)
	for _, e := range inv {
		if e.ID == domain.PowerUpColumnBomb {
			assert.Zero(t, e.RemainingUses)
		} else {
			assert.Equal(t, 1, e.RemainingUses)
		}
	}

	_, ok := Lookup("steal_column")
	assert.False(t, ok)
}
