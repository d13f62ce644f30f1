package domain

// Disc is one placed piece. Row is the stack position at insertion time.
type Disc struct {
	PlayerID string `json:"player_id"`
	Row      int    `json:"row"`
}

// Board is the coordinator's view of the 7 column stacks, bottom to top.
type Board [Columns][]Disc

func NewBoard() Board {
	var b Board
	for c := range b {
		b[c] = []Disc{}
	}
	return b
}

// OwnerAt returns the player owning (column,row), or "" for an empty or
// off-board cell.
func (b *Board) OwnerAt(column, row int) string {
	if column < 0 || column >= Columns || row < 0 || row >= Rows {
		return ""
	}
	stack := b[column]
	if row >= len(stack) {
		return ""
	}
	return stack[row].PlayerID
}

// Height returns the number of discs in column.
func (b *Board) Height(column int) int {
	if column < 0 || column >= Columns {
		return 0
	}
	return len(b[column])
}

// DiscCount returns the total number of discs on the board.
func (b *Board) DiscCount() int {
	n := 0
	for c := range b {
		n += len(b[c])
	}
	return n
}

// IsFull reports whether every cell is occupied.
func (b *Board) IsFull() bool {
	return b.DiscCount() >= MaxDiscs
}

// SetColumn replaces the cached stack of column with a copy of discs.
func (b *Board) SetColumn(column int, discs []Disc) {
	stack := make([]Disc, len(discs))
	copy(stack, discs)
	b[column] = stack
}

// this creates a deep copy of the board
func (b *Board) Copy() Board {
	var out Board
	for c := range b {
		out.SetColumn(c, b[c])
	}
	return out
}

// Grid renders the board as rows (top row first) of player ids, the shape
// the client draws. Flipped mirrors it vertically.
func (b *Board) Grid(flipped bool) [][]string {
	grid := make([][]string, Rows)
	for i := range grid {
		grid[i] = make([]string, Columns)
		row := Rows - 1 - i
		if flipped {
			row = i
		}
		for c := 0; c < Columns; c++ {
			grid[i][c] = b.OwnerAt(c, row)
		}
	}
	return grid
}
