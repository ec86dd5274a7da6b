package types

// GameState is the mutable move history of a room.
// The board is never stored; it is derived from MovesString.
type GameState struct {
	RoomID string `json:"roomId"`
	// MovesString is the canonical history, e.g. "X+0,O+4,X+8"
	MovesString    string `json:"movesString"`
	NextTurnSymbol Symbol `json:"nextTurnSymbol"`
	// WinnerSymbol is SymbolNone until a line is completed
	WinnerSymbol Symbol `json:"winnerSymbol,omitempty"`
	// UpdatedAt is a Unix millisecond timestamp
	UpdatedAt int64 `json:"updatedAt"`
}

// NewGameState returns the initial state of a fresh game.
func NewGameState(roomID string, timestamp int64) *GameState {
	return &GameState{
		RoomID:         roomID,
		MovesString:    "",
		NextTurnSymbol: SymbolX,
		WinnerSymbol:   SymbolNone,
		UpdatedAt:      timestamp,
	}
}

func (g *GameState) Copy() *GameState {
	c := *g
	return &c
}

// Move is one token of the history.
type Move struct {
	Symbol Symbol `json:"symbol"`
	Cell   int    `json:"cell"`
}
