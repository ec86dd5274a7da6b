package messages

import (
	"encoding/json"
	"fmt"

	"github.com/cbodonnell/noughts/pkg/game/types"
)

// Message types
const (
	MessageTypeGame  = "game"
	MessageTypeError = "error"
)

// Message is the JSON envelope of every text frame on a watch stream.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ErrorPayload is the payload of an error message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage wraps payload in an envelope of the given type.
func NewMessage(msgType string, payload any) (*Message, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", msgType, err)
	}
	return &Message{
		Type:    msgType,
		Payload: b,
	}, nil
}

// GameSnapshot is the compact form of a game sent in binary frames.
type GameSnapshot struct {
	RoomID         string
	RoomStatus     types.RoomStatus
	MovesString    string
	NextTurnSymbol types.Symbol
	WinnerSymbol   types.Symbol
	UpdatedAt      int64
}

func NewGameSnapshot(room *types.Room, game *types.GameState) *GameSnapshot {
	return &GameSnapshot{
		RoomID:         game.RoomID,
		RoomStatus:     room.Status,
		MovesString:    game.MovesString,
		NextTurnSymbol: game.NextTurnSymbol,
		WinnerSymbol:   game.WinnerSymbol,
		UpdatedAt:      game.UpdatedAt,
	}
}

// GameState returns the game part of the snapshot.
func (s *GameSnapshot) GameState() *types.GameState {
	return &types.GameState{
		RoomID:         s.RoomID,
		MovesString:    s.MovesString,
		NextTurnSymbol: s.NextTurnSymbol,
		WinnerSymbol:   s.WinnerSymbol,
		UpdatedAt:      s.UpdatedAt,
	}
}
