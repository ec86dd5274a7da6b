package game

import (
	"errors"

	"github.com/cbodonnell/noughts/pkg/game/moves"
)

// Each message is short enough to show to a player as is.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	ErrRoomFull        = errors.New("room is full")
	ErrAlreadyJoined   = errors.New("already joined this room")
	ErrNotParticipant  = errors.New("not a player in this room")
	ErrGameFinished    = errors.New("game is over")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrInvalidCell     = moves.ErrInvalidCell
	ErrCellOccupied    = moves.ErrCellOccupied
	ErrNotFinished     = errors.New("game is not over")
	ErrCodeExhausted   = errors.New("no free room code, try again")
	ErrInvalidUser     = errors.New("invalid user")
)

// errCodeTaken marks a generated code that is already held by a room.
var errCodeTaken = errors.New("room code taken")
