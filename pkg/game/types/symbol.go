package types

// Symbol is the mark a participant places on the board.
type Symbol string

const (
	SymbolNone Symbol = ""
	SymbolX    Symbol = "X"
	SymbolO    Symbol = "O"
)

// Valid reports whether s is one of the two playable symbols.
func (s Symbol) Valid() bool {
	return s == SymbolX || s == SymbolO
}

// Opponent returns the other playable symbol.
// SymbolNone has no opponent and is returned unchanged.
func (s Symbol) Opponent() Symbol {
	switch s {
	case SymbolX:
		return SymbolO
	case SymbolO:
		return SymbolX
	default:
		return SymbolNone
	}
}

// SymbolFor derives the symbol a user plays in a room: the host is always X
// and every other participant plays O.
func SymbolFor(userID string, hostUserID string) Symbol {
	if userID == hostUserID {
		return SymbolX
	}
	return SymbolO
}

const (
	BoardSize  = 3
	BoardCells = BoardSize * BoardSize
)

// Board is a row-major 3x3 grid, index = row*3+col.
type Board [BoardCells]Symbol

// Occupied returns the number of non-empty cells.
func (b Board) Occupied() int {
	n := 0
	for _, cell := range b {
		if cell != SymbolNone {
			n++
		}
	}
	return n
}

// Full reports whether every cell holds a symbol.
func (b Board) Full() bool {
	return b.Occupied() == BoardCells
}
