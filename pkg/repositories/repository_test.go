package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/noughts/pkg/game/moves"
	"github.com/cbodonnell/noughts/pkg/game/roomcode"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository runs the behaviour every backend must share.
func testRepository(t *testing.T, newRepository func(t *testing.T) Repository) {
	tests := []struct {
		name string
		test func(t *testing.T, repo Repository)
	}{
		{name: "create and read", test: testCreateAndRead},
		{name: "missing records", test: testNotFound},
		{name: "duplicate code", test: testDuplicateCode},
		{name: "aborted transaction writes nothing", test: testAbortWritesNothing},
		{name: "transaction reads its own writes", test: testReadOwnWrites},
		{name: "concurrent transactions serialize", test: testConcurrentTransactions},
		{name: "subscribe", test: testSubscribe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepository(t)
			t.Cleanup(func() {
				repo.Close(context.Background())
			})
			tt.test(t, repo)
		})
	}
}

func newTestRoom(code string) (*types.Room, *types.GameState) {
	now := time.Now().UnixMilli()
	room := &types.Room{
		ID:                 uuid.NewString(),
		Code:               code,
		HostUserID:         "u1",
		ParticipantUserIDs: []string{"u1"},
		Status:             types.RoomStatusWaiting,
		CreatedAt:          now,
	}
	return room, types.NewGameState(room.ID, now)
}

func putRoomAndGame(ctx context.Context, repo Repository, room *types.Room, game *types.GameState) error {
	return repo.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.PutRoom(ctx, room); err != nil {
			return err
		}
		return tx.PutGame(ctx, game)
	})
}

// createTestRoom stores a new room under a random free code.
// Backends that outlive a test run may already hold some codes.
func createTestRoom(t *testing.T, repo Repository) (*types.Room, *types.GameState) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		room, game := newTestRoom(roomcode.Generate())
		err := putRoomAndGame(ctx, repo, room, game)
		if IsDuplicateCode(err) {
			continue
		}
		require.NoError(t, err)
		return room, game
	}
	t.Fatal("failed to find a free room code")
	return nil, nil
}

func testCreateAndRead(t *testing.T, repo Repository) {
	ctx := context.Background()
	room, game := createTestRoom(t, repo)

	gotRoom, err := repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, gotRoom)

	gotGame, err := repo.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, game, gotGame)

	byCode, err := repo.GetRoomByCode(ctx, room.Code)
	require.NoError(t, err)
	assert.Equal(t, room.ID, byCode.ID)

	// updates keep the code and reach plain reads
	room.ParticipantUserIDs = append(room.ParticipantUserIDs, "u2")
	room.Status = types.RoomStatusFinished
	room.FinishedAt = room.CreatedAt + 1
	game.MovesString = "X+0"
	game.NextTurnSymbol = types.SymbolO
	game.WinnerSymbol = types.SymbolX
	require.NoError(t, putRoomAndGame(ctx, repo, room, game))

	gotRoom, err = repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room, gotRoom)
	gotGame, err = repo.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, game, gotGame)
}

func testNotFound(t *testing.T, repo Repository) {
	ctx := context.Background()
	missing := uuid.NewString()

	_, err := repo.GetRoom(ctx, missing)
	assert.True(t, IsNotFound(err), "GetRoom error = %v", err)

	_, err = repo.GetGame(ctx, missing)
	assert.True(t, IsNotFound(err), "GetGame error = %v", err)

	_, err = repo.Subscribe(ctx, missing)
	assert.True(t, IsNotFound(err), "Subscribe error = %v", err)

	err = repo.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_, err := tx.GetRoom(ctx, missing)
		return err
	})
	assert.True(t, IsNotFound(err), "tx.GetRoom error = %v", err)
}

func testDuplicateCode(t *testing.T, repo Repository) {
	ctx := context.Background()
	first, _ := createTestRoom(t, repo)

	second, secondGame := newTestRoom(first.Code)
	err := putRoomAndGame(ctx, repo, second, secondGame)
	assert.True(t, IsDuplicateCode(err), "error = %v", err)

	_, err = repo.GetRoom(ctx, second.ID)
	assert.True(t, IsNotFound(err))

	byCode, err := repo.GetRoomByCode(ctx, first.Code)
	require.NoError(t, err)
	assert.Equal(t, first.ID, byCode.ID)
}

func testAbortWritesNothing(t *testing.T, repo Repository) {
	ctx := context.Background()
	room, game := createTestRoom(t, repo)
	errAbort := errors.New("abort")

	fresh, freshGame := newTestRoom(roomcode.Generate())
	err := repo.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		updated := game.Copy()
		updated.MovesString = "X+4"
		if err := tx.PutGame(ctx, updated); err != nil {
			return err
		}
		if err := tx.PutRoom(ctx, fresh); err != nil {
			return err
		}
		if err := tx.PutGame(ctx, freshGame); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	got, err := repo.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.MovesString)

	_, err = repo.GetRoom(ctx, fresh.ID)
	assert.True(t, IsNotFound(err))
}

func testReadOwnWrites(t *testing.T, repo Repository) {
	ctx := context.Background()
	room, game := createTestRoom(t, repo)

	err := repo.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		current, err := tx.GetRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		current.Status = types.RoomStatusActive
		if err := tx.PutRoom(ctx, current); err != nil {
			return err
		}
		updated := game.Copy()
		updated.MovesString = "X+0"
		if err := tx.PutGame(ctx, updated); err != nil {
			return err
		}

		gotRoom, err := tx.GetRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		gotGame, err := tx.GetGame(ctx, room.ID)
		if err != nil {
			return err
		}
		if gotRoom.Status != types.RoomStatusActive || gotGame.MovesString != "X+0" {
			return fmt.Errorf("transaction did not see its writes: %v %v", gotRoom, gotGame)
		}
		return nil
	})
	require.NoError(t, err)
}

func testConcurrentTransactions(t *testing.T, repo Repository) {
	ctx := context.Background()
	room, _ := createTestRoom(t, repo)

	// every writer appends to the same history; a lost update drops a move
	writers := types.BoardCells
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			errs <- repo.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
				game, err := tx.GetGame(ctx, room.ID)
				if err != nil {
					return err
				}
				symbol := moves.NextSymbol(game.MovesString)
				game.MovesString, err = moves.Append(game.MovesString, symbol, cell)
				if err != nil {
					return err
				}
				game.NextTurnSymbol = symbol.Opponent()
				game.UpdatedAt++
				return tx.PutGame(ctx, game)
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	committed := 0
	for err := range errs {
		if err == nil {
			committed++
			continue
		}
		// optimistic backends may give up under heavy contention
		assert.True(t, IsTransient(err), "error = %v", err)
	}

	game, err := repo.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, moves.Parse(game.MovesString), committed)
	assert.Equal(t, committed, moves.DeriveBoard(game.MovesString).Occupied())
}

func testSubscribe(t *testing.T, repo Repository) {
	room, game := createTestRoom(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := repo.Subscribe(ctx, room.ID)
	require.NoError(t, err)

	first := receive(t, updates)
	assert.Equal(t, game.MovesString, first.MovesString)

	history := []string{"X+0", "X+0,O+4", "X+0,O+4,X+8"}
	for i, movesString := range history {
		updated := game.Copy()
		updated.MovesString = movesString
		updated.UpdatedAt = game.UpdatedAt + int64(i) + 1
		require.NoError(t, repo.RunTransaction(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.PutGame(ctx, updated)
		}))
	}

	// coalescing may skip intermediate states, never the latest
	var last *types.GameState
	for last == nil || last.MovesString != history[len(history)-1] {
		last = receive(t, updates)
		assert.Contains(t, history, last.MovesString)
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription was not closed after cancel")
		}
	}
}

func receive(t *testing.T, updates <-chan *types.GameState) *types.GameState {
	t.Helper()
	select {
	case game, ok := <-updates:
		require.True(t, ok, "subscription closed")
		return game
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a game update")
		return nil
	}
}
