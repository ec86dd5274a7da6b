package game

import (
	"github.com/cbodonnell/noughts/pkg/game/moves"
	"github.com/cbodonnell/noughts/pkg/game/rules"
	"github.com/cbodonnell/noughts/pkg/game/types"
)

// View is what a player's screen shows for one snapshot of a room.
type View struct {
	Room  *types.Room      `json:"room"`
	Game  *types.GameState `json:"game"`
	Board types.Board      `json:"board"`
	// WinningLine holds the cells of the completed line, if any
	WinningLine []int        `json:"winningLine,omitempty"`
	Winner      types.Symbol `json:"winner,omitempty"`
	Draw        bool         `json:"draw"`
	Finished    bool         `json:"finished"`
	// MySymbol is empty when the viewer is not a participant
	MySymbol types.Symbol `json:"mySymbol,omitempty"`
	MyTurn   bool         `json:"myTurn"`
}

// NewView derives the board and per-viewer state from a room and its game.
func NewView(room *types.Room, game *types.GameState, userID string) *View {
	board := moves.DeriveBoard(game.MovesString)
	view := &View{
		Room:     room,
		Game:     game,
		Board:    board,
		Winner:   rules.CheckWinner(board),
		Draw:     rules.IsDraw(board),
		Finished: room.Status == types.RoomStatusFinished,
	}
	if line, ok := rules.WinningLine(board); ok {
		view.WinningLine = line[:]
	}
	if room.HasParticipant(userID) {
		view.MySymbol = types.SymbolFor(userID, room.HostUserID)
		view.MyTurn = room.Status == types.RoomStatusActive && view.MySymbol == game.NextTurnSymbol
	}
	return view
}
