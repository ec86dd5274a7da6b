package rules

import (
	"testing"

	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/stretchr/testify/assert"
)

const (
	X = types.SymbolX
	O = types.SymbolO
)

func TestCheckWinner(t *testing.T) {
	var e types.Symbol
	tests := []struct {
		name  string
		board types.Board
		want  types.Symbol
		line  [3]int
	}{
		{name: "empty board", board: types.Board{}, want: types.SymbolNone},
		{name: "top row", board: types.Board{X, X, X, O, O, e, e, e, e}, want: X, line: [3]int{0, 1, 2}},
		{name: "middle row", board: types.Board{X, e, X, O, O, O, X, e, e}, want: O, line: [3]int{3, 4, 5}},
		{name: "bottom row", board: types.Board{O, O, e, e, e, e, X, X, X}, want: X, line: [3]int{6, 7, 8}},
		{name: "left column", board: types.Board{O, X, e, O, X, e, O, e, X}, want: O, line: [3]int{0, 3, 6}},
		{name: "middle column", board: types.Board{O, X, e, e, X, O, e, X, e}, want: X, line: [3]int{1, 4, 7}},
		{name: "right column", board: types.Board{X, e, O, X, e, O, e, e, O}, want: O, line: [3]int{2, 5, 8}},
		{name: "diagonal", board: types.Board{X, O, e, O, X, e, e, e, X}, want: X, line: [3]int{0, 4, 8}},
		{name: "anti-diagonal", board: types.Board{X, X, O, e, O, e, O, e, X}, want: O, line: [3]int{2, 4, 6}},
		{name: "full board without a line", board: types.Board{X, O, X, X, O, O, O, X, X}, want: types.SymbolNone},
		{name: "two in a row", board: types.Board{X, X, e, O, O, e, e, e, e}, want: types.SymbolNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckWinner(tt.board))

			line, ok := WinningLine(tt.board)
			assert.Equal(t, tt.want != types.SymbolNone, ok)
			if ok {
				assert.Equal(t, tt.line, line)
			}
		})
	}
}

func TestCheckWinner_rowsBeforeColumns(t *testing.T) {
	// X completes both the top row and the left column with its last move.
	board := types.Board{X, X, X, X, O, O, X, O, O}
	line, ok := WinningLine(board)
	assert.True(t, ok)
	assert.Equal(t, [3]int{0, 1, 2}, line)
}

func TestIsDraw(t *testing.T) {
	var e types.Symbol
	tests := []struct {
		name  string
		board types.Board
		want  bool
	}{
		{name: "empty board", board: types.Board{}, want: false},
		{name: "one empty cell", board: types.Board{X, O, X, X, O, O, O, X, e}, want: false},
		{name: "full without winner", board: types.Board{X, O, X, X, O, O, O, X, X}, want: true},
		{name: "full with winner", board: types.Board{X, X, X, O, O, X, X, O, O}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDraw(tt.board))
			assert.Equal(t, tt.want || CheckWinner(tt.board) != types.SymbolNone, IsTerminal(tt.board))
		})
	}
}
