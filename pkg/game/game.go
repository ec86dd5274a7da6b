package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/noughts/pkg/game/moves"
	"github.com/cbodonnell/noughts/pkg/game/roomcode"
	"github.com/cbodonnell/noughts/pkg/game/rules"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/repositories"
	"github.com/google/uuid"
)

// MaxCodeAttempts bounds how many codes CreateRoom tries before giving up.
const MaxCodeAttempts = 5

// SessionManager runs the lifecycle of rooms and their games.
// Every mutation is a single repository transaction, so concurrent calls on
// the same room behave as if they ran one after another.
type SessionManager struct {
	repository    repositories.Repository
	codeGenerator func() string
	idGenerator   func() string
	clock         func() time.Time
}

// NewSessionManagerOptions contains options for creating a new SessionManager.
type NewSessionManagerOptions struct {
	Repository repositories.Repository
	// CodeGenerator defaults to roomcode.Generate
	CodeGenerator func() string
	// IDGenerator defaults to random UUIDs
	IDGenerator func() string
	// Clock defaults to time.Now
	Clock func() time.Time
}

func NewSessionManager(opts NewSessionManagerOptions) *SessionManager {
	sm := &SessionManager{
		repository:    opts.Repository,
		codeGenerator: opts.CodeGenerator,
		idGenerator:   opts.IDGenerator,
		clock:         opts.Clock,
	}
	if sm.codeGenerator == nil {
		sm.codeGenerator = roomcode.Generate
	}
	if sm.idGenerator == nil {
		sm.idGenerator = uuid.NewString
	}
	if sm.clock == nil {
		sm.clock = time.Now
	}
	return sm
}

func (sm *SessionManager) now() int64 {
	return sm.clock().UnixMilli()
}

// nextUpdatedAt keeps UpdatedAt strictly increasing even if the clock is not.
func (sm *SessionManager) nextUpdatedAt(game *types.GameState) int64 {
	return max(sm.now(), game.UpdatedAt+1)
}

// CreateRoom opens a waiting room hosted by hostUserID, together with an
// empty game where X moves first.
func (sm *SessionManager) CreateRoom(ctx context.Context, hostUserID string) (*types.Room, error) {
	if hostUserID == "" {
		return nil, ErrInvalidUser
	}

	for attempt := 1; attempt <= MaxCodeAttempts; attempt++ {
		code := sm.codeGenerator()
		room, err := sm.createRoom(ctx, hostUserID, code)
		if err == nil {
			log.Info("User %s created room %s with code %s", hostUserID, room.ID, room.Code)
			return room, nil
		}
		if !errors.Is(err, errCodeTaken) && !repositories.IsDuplicateCode(err) {
			return nil, fmt.Errorf("failed to create room: %w", err)
		}
		log.Debug("Room code %s is taken (attempt %d/%d)", code, attempt, MaxCodeAttempts)
	}
	return nil, ErrCodeExhausted
}

func (sm *SessionManager) createRoom(ctx context.Context, hostUserID string, code string) (*types.Room, error) {
	now := sm.now()
	room := &types.Room{
		ID:                 sm.idGenerator(),
		Code:               code,
		HostUserID:         hostUserID,
		ParticipantUserIDs: []string{hostUserID},
		Status:             types.RoomStatusWaiting,
		CreatedAt:          now,
	}
	game := types.NewGameState(room.ID, now)

	err := sm.repository.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		_, err := tx.GetRoomByCode(ctx, code)
		if err == nil {
			return errCodeTaken
		}
		if !repositories.IsNotFound(err) {
			return err
		}
		if err := tx.PutRoom(ctx, room); err != nil {
			return err
		}
		return tx.PutGame(ctx, game)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom adds userID to the waiting room holding code, which starts the game.
func (sm *SessionManager) JoinRoom(ctx context.Context, code string, userID string) (*types.Room, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	if !roomcode.Valid(code) {
		return nil, ErrRoomNotFound
	}

	found, err := sm.repository.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, sm.mapError(err, "failed to find room")
	}

	var joined *types.Room
	err = sm.repository.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		room, err := tx.GetRoom(ctx, found.ID)
		if err != nil {
			return err
		}
		if room.Status == types.RoomStatusFinished {
			return ErrRoomNotJoinable
		}
		// the loser of a join race sees an active room that is full
		if room.Full() {
			return ErrRoomFull
		}
		if room.Status != types.RoomStatusWaiting {
			return ErrRoomNotJoinable
		}
		if room.HasParticipant(userID) {
			return ErrAlreadyJoined
		}

		room.ParticipantUserIDs = append(room.ParticipantUserIDs, userID)
		if room.Full() {
			room.Status = types.RoomStatusActive
		}
		if err := tx.PutRoom(ctx, room); err != nil {
			return err
		}

		// touch the game so observers learn the room changed
		game, err := tx.GetGame(ctx, room.ID)
		if err != nil {
			return err
		}
		game.UpdatedAt = sm.nextUpdatedAt(game)
		if err := tx.PutGame(ctx, game); err != nil {
			return err
		}

		joined = room
		return nil
	})
	if err != nil {
		log.Debug("User %s failed to join room %s: %v", userID, found.ID, err)
		return nil, sm.mapError(err, "failed to join room")
	}

	log.Info("User %s joined room %s", userID, joined.ID)
	return joined, nil
}

// SubmitMove places the caller's symbol on cell and returns the new game state.
// Validation runs in a fixed order: participant, game not over, turn, cell
// range, cell free.
func (sm *SessionManager) SubmitMove(ctx context.Context, roomID string, userID string, cell int) (*types.GameState, error) {
	_, game, err := sm.submitMove(ctx, roomID, userID, cell)
	return game, err
}

// SubmitMoveView is SubmitMove returning the caller's view of the room and
// game as committed by the move.
func (sm *SessionManager) SubmitMoveView(ctx context.Context, roomID string, userID string, cell int) (*View, error) {
	room, game, err := sm.submitMove(ctx, roomID, userID, cell)
	if err != nil {
		return nil, err
	}
	return NewView(room, game, userID), nil
}

func (sm *SessionManager) submitMove(ctx context.Context, roomID string, userID string, cell int) (*types.Room, *types.GameState, error) {
	if userID == "" {
		return nil, nil, ErrInvalidUser
	}

	var result *types.GameState
	var resultRoom *types.Room
	finished := false
	err := sm.repository.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		finished = false
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		game, err := tx.GetGame(ctx, roomID)
		if err != nil {
			return err
		}

		if !room.HasParticipant(userID) {
			return ErrNotParticipant
		}
		if room.Status == types.RoomStatusFinished {
			return ErrGameFinished
		}
		// the stored turn must agree with the history it was derived from
		if expected := moves.NextSymbol(game.MovesString); game.NextTurnSymbol != expected {
			return fmt.Errorf("corrupt game in room %s: %s to move after %q, expected %s",
				roomID, game.NextTurnSymbol, game.MovesString, expected)
		}
		symbol := types.SymbolFor(userID, room.HostUserID)
		if symbol != game.NextTurnSymbol {
			return ErrNotYourTurn
		}
		if !moves.ValidCell(cell) {
			return ErrInvalidCell
		}
		movesString, err := moves.Append(game.MovesString, symbol, cell)
		if err != nil {
			return err
		}

		game.MovesString = movesString
		game.UpdatedAt = sm.nextUpdatedAt(game)
		board := moves.DeriveBoard(movesString)
		if rules.IsTerminal(board) {
			game.WinnerSymbol = rules.CheckWinner(board)
			room.Status = types.RoomStatusFinished
			room.FinishedAt = game.UpdatedAt
			if err := tx.PutRoom(ctx, room); err != nil {
				return err
			}
			finished = true
		} else {
			game.NextTurnSymbol = symbol.Opponent()
		}
		if err := tx.PutGame(ctx, game); err != nil {
			return err
		}

		result = game
		resultRoom = room
		return nil
	})
	if err != nil {
		log.Debug("Move of user %s on cell %d in room %s rejected: %v", userID, cell, roomID, err)
		return nil, nil, sm.mapError(err, "failed to submit move")
	}

	if finished {
		if result.WinnerSymbol != types.SymbolNone {
			log.Info("Game in room %s won by %s", roomID, result.WinnerSymbol)
		} else {
			log.Info("Game in room %s ended in a draw", roomID)
		}
	}
	return resultRoom, result, nil
}

// ResetGame clears the board of a finished room so the same players can play
// again. X moves first.
func (sm *SessionManager) ResetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	_, game, err := sm.resetGame(ctx, roomID, "")
	return game, err
}

// ResetGameView resets the game on behalf of one of its players and returns
// their view of the fresh game.
func (sm *SessionManager) ResetGameView(ctx context.Context, roomID string, userID string) (*View, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	room, game, err := sm.resetGame(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	return NewView(room, game, userID), nil
}

// resetGame requires userID to be a participant unless it is empty.
func (sm *SessionManager) resetGame(ctx context.Context, roomID string, userID string) (*types.Room, *types.GameState, error) {
	var result *types.GameState
	var resultRoom *types.Room
	err := sm.repository.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		if userID != "" && !room.HasParticipant(userID) {
			return ErrNotParticipant
		}
		if room.Status != types.RoomStatusFinished {
			return ErrNotFinished
		}
		game, err := tx.GetGame(ctx, roomID)
		if err != nil {
			return err
		}

		room.Status = types.RoomStatusActive
		if !room.Full() {
			room.Status = types.RoomStatusWaiting
		}
		room.FinishedAt = 0
		if err := tx.PutRoom(ctx, room); err != nil {
			return err
		}

		reset := types.NewGameState(roomID, sm.nextUpdatedAt(game))
		if err := tx.PutGame(ctx, reset); err != nil {
			return err
		}
		result = reset
		resultRoom = room
		return nil
	})
	if err != nil {
		log.Debug("Reset of room %s rejected: %v", roomID, err)
		return nil, nil, sm.mapError(err, "failed to reset game")
	}

	log.Info("Game in room %s was reset", roomID)
	return resultRoom, result, nil
}

// ObserveGame streams the game of a room, starting with its current state.
// Rapid changes may be coalesced into the latest one. The channel is closed
// once ctx is done.
func (sm *SessionManager) ObserveGame(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	if _, err := sm.repository.GetRoom(ctx, roomID); err != nil {
		return nil, sm.mapError(err, "failed to get room")
	}
	updates, err := sm.repository.Subscribe(ctx, roomID)
	if err != nil {
		return nil, sm.mapError(err, "failed to observe game")
	}
	return updates, nil
}

func (sm *SessionManager) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	room, err := sm.repository.GetRoom(ctx, roomID)
	if err != nil {
		return nil, sm.mapError(err, "failed to get room")
	}
	return room, nil
}

func (sm *SessionManager) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	if !roomcode.Valid(code) {
		return nil, ErrRoomNotFound
	}
	room, err := sm.repository.GetRoomByCode(ctx, code)
	if err != nil {
		return nil, sm.mapError(err, "failed to find room")
	}
	return room, nil
}

// GetView returns the view of a room for userID, with the room and its game
// read in the same transaction.
func (sm *SessionManager) GetView(ctx context.Context, roomID string, userID string) (*View, error) {
	var view *View
	err := sm.repository.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		room, err := tx.GetRoom(ctx, roomID)
		if err != nil {
			return err
		}
		game, err := tx.GetGame(ctx, roomID)
		if err != nil {
			return err
		}
		view = NewView(room, game, userID)
		return nil
	})
	if err != nil {
		return nil, sm.mapError(err, "failed to get view")
	}
	return view, nil
}

func (sm *SessionManager) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	game, err := sm.repository.GetGame(ctx, roomID)
	if err != nil {
		return nil, sm.mapError(err, "failed to get game")
	}
	return game, nil
}

// mapError turns missing records into ErrRoomNotFound and wraps store
// failures. Semantic errors pass through unchanged.
func (sm *SessionManager) mapError(err error, msg string) error {
	switch {
	case repositories.IsNotFound(err):
		return ErrRoomNotFound
	case isSemanticError(err):
		return err
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func isSemanticError(err error) bool {
	for _, target := range []error{
		ErrRoomNotFound, ErrRoomNotJoinable, ErrRoomFull, ErrAlreadyJoined,
		ErrNotParticipant, ErrGameFinished, ErrNotYourTurn, ErrInvalidCell,
		ErrCellOccupied, ErrNotFinished, ErrCodeExhausted, ErrInvalidUser,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
