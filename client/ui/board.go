package ui

import (
	"fmt"
	"strings"

	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/game/types"
)

const (
	highlight = "\033[1;32m"
	reset     = "\033[0m"
)

// RenderBoard draws the board of a view as text. Empty cells show their
// index so players know what to type; cells of a winning line are
// highlighted when color is set.
func RenderBoard(view *game.View, color bool) string {
	winning := map[int]bool{}
	for _, cell := range view.WinningLine {
		winning[cell] = true
	}

	b := &strings.Builder{}
	for row := 0; row < 3; row++ {
		if row > 0 {
			b.WriteString("---+---+---\n")
		}
		for col := 0; col < 3; col++ {
			cell := row*3 + col
			if col > 0 {
				b.WriteString("|")
			}
			mark := string(view.Board[cell])
			if view.Board[cell] == types.SymbolNone {
				mark = fmt.Sprint(cell)
			}
			if color && winning[cell] {
				mark = highlight + mark + reset
			}
			fmt.Fprintf(b, " %s ", mark)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Status describes the state of a view in one line
func Status(view *game.View) string {
	switch {
	case view.Winner != types.SymbolNone && view.Winner == view.MySymbol:
		return "You won!"
	case view.Winner != types.SymbolNone:
		return fmt.Sprintf("%s won.", view.Winner)
	case view.Draw:
		return "Draw."
	case view.Room.Status == types.RoomStatusWaiting:
		return fmt.Sprintf("Waiting for an opponent. Room code: %s", view.Room.Code)
	case view.MyTurn:
		return fmt.Sprintf("Your turn (%s).", view.MySymbol)
	case view.MySymbol == types.SymbolNone:
		return fmt.Sprintf("%s to move.", view.Game.NextTurnSymbol)
	default:
		return "Waiting for the opponent to move."
	}
}
