package rules

import "github.com/cbodonnell/noughts/pkg/game/types"

// lines lists every winning triple, evaluated in this order.
var lines = [][3]int{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// CheckWinner returns the symbol of the first complete line, or SymbolNone.
func CheckWinner(board types.Board) types.Symbol {
	if line, ok := WinningLine(board); ok {
		return board[line[0]]
	}
	return types.SymbolNone
}

// WinningLine returns the first complete line on the board.
func WinningLine(board types.Board) ([3]int, bool) {
	for _, line := range lines {
		a, b, c := line[0], line[1], line[2]
		if board[a] != types.SymbolNone && board[a] == board[b] && board[b] == board[c] {
			return line, true
		}
	}
	return [3]int{}, false
}

// IsDraw reports whether the board is full with no winner.
func IsDraw(board types.Board) bool {
	return board.Full() && CheckWinner(board) == types.SymbolNone
}

// IsTerminal reports whether the game on this board is over.
func IsTerminal(board types.Board) bool {
	return CheckWinner(board) != types.SymbolNone || board.Full()
}
