package domain

type direction struct {
	deltaCol int
	deltaRow int
	winType  WinType
}

var directions = []direction{
	{1, 0, WinHorizontal},
	{0, 1, WinVertical},
	{1, 1, WinDiagonalRising},
	{1, -1, WinDiagonalFalling},
}

// CheckWin only looks at lines passing through (column,row), the cell that
// was just filled, so it is O(1) per placement instead of a full board scan.
// It returns nil when the disc does not complete a line.
func CheckWin(b *Board, column, row int) *WinRecord {
	player := b.OwnerAt(column, row)
	if player == "" {
		return nil
	}

	for _, d := range directions {
		back := CountDiskInDirection(b, column, row, -d.deltaCol, -d.deltaRow, player)
		forward := CountDiskInDirection(b, column, row, d.deltaCol, d.deltaRow, player)
		if back+forward+1 < ToWin {
			continue
		}

		start := nearestWindow(back, forward)
		positions := make([]Position, 0, ToWin)
		for i := 0; i < ToWin; i++ {
			offset := start + i
			positions = append(positions, Position{
				Column: column + offset*d.deltaCol,
				Row:    row + offset*d.deltaRow,
			})
		}
		return &WinRecord{Winner: player, WinType: d.winType, Positions: positions}
	}
	return nil
}

// nearestWindow picks the offset of the first cell of the 4-long window that
// contains the placed disc (offset 0) and stays closest to it.
func nearestWindow(back, forward int) int {
	lo := -back
	if lo < -(ToWin - 1) {
		lo = -(ToWin - 1)
	}
	hi := forward - (ToWin - 1)
	if hi > 0 {
		hi = 0
	}

	start := -1
	if start < lo {
		start = lo
	}
	if start > hi {
		start = hi
	}
	return start
}

// this counts the number of disks in a specific direction
func CountDiskInDirection(b *Board, column, row int, deltaCol, deltaRow int, player string) int {
	count := 0
	c, r := column+deltaCol, row+deltaRow
	for c >= 0 && c < Columns && r >= 0 && r < Rows && b.OwnerAt(c, r) == player {
		count++
		c += deltaCol
		r += deltaRow
	}
	return count
}

// Evaluate checks the placed cells in order and falls back to a draw when the
// board is full.
func Evaluate(b *Board, placed []Position) *WinRecord {
	for _, p := range placed {
		if win := CheckWin(b, p.Column, p.Row); win != nil {
			return win
		}
	}
	if b.IsFull() {
		return &WinRecord{Winner: DrawWinner, WinType: WinDraw}
	}
	return nil
}

// ColumnPositions lists every occupied cell of the given columns, used after
// events that rearrange whole stacks.
func ColumnPositions(b *Board, columns []int) []Position {
	var out []Position
	for _, c := range columns {
		for r := range b.Height(c) {
			out = append(out, Position{Column: c, Row: r})
		}
	}
	return out
}
