package domain

const (
	Rows    = 6
	Columns = 7
	ToWin   = 4

	// MaxDiscs is the number of cells on a full board.
	MaxDiscs = Rows * Columns

	MinPlayers = 2
	MaxPlayers = 4
)

// Palette is the fixed set of player colors, in assignment order.
var Palette = []string{"red", "yellow", "green", "blue"}

// to represent the turn state machine
type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting_for_players"
	StatusInProgress GameStatus = "in_progress"
	StatusGameOver   GameStatus = "game_over"
)

type WinType string

const (
	WinHorizontal      WinType = "horizontal"
	WinVertical        WinType = "vertical"
	WinDiagonalRising  WinType = "diagonal_rising"
	WinDiagonalFalling WinType = "diagonal_falling"
	WinDraw            WinType = "draw"
	// WinForfeit ends a game whose opponents all left.
	WinForfeit WinType = "forfeit"
)

// DrawWinner is the winner sentinel of a drawn game.
const DrawWinner = "draw"

// Position is a (column,row) cell, row 0 being the bottom.
type Position struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// WinRecord describes how a game ended.
type WinRecord struct {
	Winner    string     `json:"winner"`
	WinType   WinType    `json:"win_type"`
	Positions []Position `json:"positions,omitempty"`
}

// IsDraw reports whether the record is the draw sentinel.
func (w *WinRecord) IsDraw() bool {
	return w != nil && w.Winner == DrawWinner
}

// ValidColumn reports whether column addresses one of the 7 shards.
func ValidColumn(column int) bool {
	return column >= 0 && column < Columns
}

// ValidColor reports whether color belongs to the palette.
func ValidColor(color string) bool {
	for _, c := range Palette {
		if c == color {
			return true
		}
	}
	return false
}
