// Package moves encodes and decodes the append-only move history of a game.
//
// A history is a comma-separated list of "<symbol>+<cell>" tokens in
// submission order, e.g. "X+0,O+4,X+8".
package moves

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cbodonnell/noughts/pkg/game/types"
)

const (
	tokenSeparator = ","
	fieldSeparator = "+"
)

var (
	ErrCellOccupied  = errors.New("cell already taken")
	ErrInvalidCell   = errors.New("invalid cell")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Parse decodes a history into its ordered moves.
//
// Malformed tokens (wrong arity, unknown symbol, non-numeric cell, or a cell
// outside [0,8]) are dropped instead of failing the whole parse. Append never
// writes such a token, so they only appear when a stored history was corrupted
// outside this package.
func Parse(movesString string) []types.Move {
	if movesString == "" {
		return nil
	}

	tokens := strings.Split(movesString, tokenSeparator)
	moves := make([]types.Move, 0, len(tokens))
	for _, token := range tokens {
		move, ok := parseToken(token)
		if !ok {
			continue
		}
		moves = append(moves, move)
	}
	return moves
}

func parseToken(token string) (types.Move, bool) {
	parts := strings.Split(token, fieldSeparator)
	if len(parts) != 2 {
		return types.Move{}, false
	}
	symbol := types.Symbol(parts[0])
	if !symbol.Valid() {
		return types.Move{}, false
	}
	cell, err := strconv.Atoi(parts[1])
	if err != nil || !ValidCell(cell) {
		return types.Move{}, false
	}
	return types.Move{Symbol: symbol, Cell: cell}, true
}

// Format encodes moves into the canonical history form.
func Format(moves []types.Move) string {
	tokens := make([]string, len(moves))
	for i, m := range moves {
		tokens[i] = formatToken(m.Symbol, m.Cell)
	}
	return strings.Join(tokens, tokenSeparator)
}

func formatToken(symbol types.Symbol, cell int) string {
	return string(symbol) + fieldSeparator + strconv.Itoa(cell)
}

// Append returns the history with a new move added at the end.
// It is the only write path into a history and fails with ErrCellOccupied
// if cell already appears in it.
func Append(movesString string, symbol types.Symbol, cell int) (string, error) {
	if !symbol.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	if !ValidCell(cell) {
		return "", ErrInvalidCell
	}
	for _, m := range Parse(movesString) {
		if m.Cell == cell {
			return "", ErrCellOccupied
		}
	}

	token := formatToken(symbol, cell)
	if movesString == "" {
		return token, nil
	}
	return movesString + tokenSeparator + token, nil
}

// DeriveBoard replays a history onto an empty board.
func DeriveBoard(movesString string) types.Board {
	var board types.Board
	for _, m := range Parse(movesString) {
		board[m.Cell] = m.Symbol
	}
	return board
}

// NextSymbol returns the symbol expected to move next: X after an even
// number of moves, O after an odd number.
func NextSymbol(movesString string) types.Symbol {
	if len(Parse(movesString))%2 == 0 {
		return types.SymbolX
	}
	return types.SymbolO
}

// ValidCell reports whether cell is a board index.
func ValidCell(cell int) bool {
	return cell >= 0 && cell < types.BoardCells
}
