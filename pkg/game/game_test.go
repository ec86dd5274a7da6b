package game

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/noughts/pkg/game/moves"
	"github.com/cbodonnell/noughts/pkg/game/rules"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends lists the repositories the session tests run against.
var backends = []struct {
	name string
	new  func(t *testing.T) repositories.Repository
}{
	{
		name: "memory",
		new: func(t *testing.T) repositories.Repository {
			return repositories.NewInMemoryRepository()
		},
	},
	{
		name: "sqlite",
		new: func(t *testing.T) repositories.Repository {
			repo, err := repositories.NewSQLiteRepository(context.Background(), repositories.NewSQLiteRepositoryOptions{
				Path:          filepath.Join(t.TempDir(), "noughts.db"),
				MigrationsDir: "../../migrations/sqlite",
			})
			require.NoError(t, err)
			t.Cleanup(func() { repo.Close(context.Background()) })
			return repo
		},
	},
}

// codes returns a generator that hands out the given codes in order and then
// repeats the last one.
func codes(values ...string) func() string {
	var lock sync.Mutex
	i := 0
	return func() string {
		lock.Lock()
		defer lock.Unlock()
		code := values[min(i, len(values)-1)]
		i++
		return code
	}
}

func newTestSessionManager(repo repositories.Repository, codeValues ...string) *SessionManager {
	opts := NewSessionManagerOptions{Repository: repo}
	if len(codeValues) > 0 {
		opts.CodeGenerator = codes(codeValues...)
	}
	return NewSessionManager(opts)
}

// startGame creates a room hosted by u1 and joined by u2.
func startGame(t *testing.T, sm *SessionManager) *types.Room {
	ctx := context.Background()
	room, err := sm.CreateRoom(ctx, "u1")
	require.NoError(t, err)
	room, err = sm.JoinRoom(ctx, room.Code, "u2")
	require.NoError(t, err)
	return room
}

// play submits cells alternately for u1 (X) and u2 (O).
func play(t *testing.T, sm *SessionManager, roomID string, cells ...int) *types.GameState {
	var game *types.GameState
	var err error
	for i, cell := range cells {
		user := "u1"
		if i%2 == 1 {
			user = "u2"
		}
		game, err = sm.SubmitMove(context.Background(), roomID, user, cell)
		require.NoError(t, err, "move %d on cell %d", i, cell)
	}
	return game
}

func TestSessionManager_win(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			sm := newTestSessionManager(backend.new(t), "4821")

			room, err := sm.CreateRoom(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "4821", room.Code)
			assert.Equal(t, types.RoomStatusWaiting, room.Status)
			assert.Equal(t, []string{"u1"}, room.ParticipantUserIDs)

			room, err = sm.JoinRoom(ctx, "4821", "u2")
			require.NoError(t, err)
			assert.Equal(t, types.RoomStatusActive, room.Status)
			assert.Equal(t, []string{"u1", "u2"}, room.ParticipantUserIDs)

			game, err := sm.SubmitMove(ctx, room.ID, "u1", 0)
			require.NoError(t, err)
			assert.Equal(t, "X+0", game.MovesString)
			assert.Equal(t, types.SymbolO, game.NextTurnSymbol)

			game, err = sm.SubmitMove(ctx, room.ID, "u2", 4)
			require.NoError(t, err)
			assert.Equal(t, "X+0,O+4", game.MovesString)
			assert.Equal(t, types.SymbolX, game.NextTurnSymbol)

			game = play(t, sm, room.ID, 1, 3, 2)
			assert.Equal(t, "X+0,O+4,X+1,O+3,X+2", game.MovesString)
			assert.Equal(t, types.SymbolX, game.WinnerSymbol)
			// the turn does not flip once the game is over
			assert.Equal(t, types.SymbolX, game.NextTurnSymbol)

			room, err = sm.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, types.RoomStatusFinished, room.Status)
			assert.NotZero(t, room.FinishedAt)

			stored, err := sm.GetGame(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, game, stored)
		})
	}
}

func TestSessionManager_draw(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			sm := newTestSessionManager(backend.new(t))
			room := startGame(t, sm)

			game := play(t, sm, room.ID, 0, 1, 2, 4, 3, 5, 7, 6, 8)
			assert.Equal(t, types.SymbolNone, game.WinnerSymbol)

			room, err := sm.GetRoom(context.Background(), room.ID)
			require.NoError(t, err)
			assert.Equal(t, types.RoomStatusFinished, room.Status)

			view := NewView(room, game, "u1")
			assert.True(t, view.Draw)
			assert.True(t, view.Finished)
			assert.False(t, view.MyTurn)
			assert.Empty(t, view.WinningLine)
		})
	}
}

func TestSessionManager_ResetGame(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			sm := newTestSessionManager(backend.new(t))
			room := startGame(t, sm)

			_, err := sm.ResetGame(ctx, room.ID)
			assert.ErrorIs(t, err, ErrNotFinished)

			before := play(t, sm, room.ID, 0, 4, 1, 3, 2)
			game, err := sm.ResetGame(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, "", game.MovesString)
			assert.Equal(t, types.SymbolNone, game.WinnerSymbol)
			assert.Equal(t, types.SymbolX, game.NextTurnSymbol)
			assert.Greater(t, game.UpdatedAt, before.UpdatedAt)

			reset, err := sm.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, types.RoomStatusActive, reset.Status)
			assert.Zero(t, reset.FinishedAt)
			assert.Equal(t, room.Code, reset.Code)
			assert.Equal(t, room.ParticipantUserIDs, reset.ParticipantUserIDs)

			// the same players can play again
			game = play(t, sm, room.ID, 4)
			assert.Equal(t, "X+4", game.MovesString)

			_, err = sm.ResetGame(ctx, "missing")
			assert.ErrorIs(t, err, ErrRoomNotFound)
		})
	}
}

func TestSessionManager_SubmitMove_errors(t *testing.T) {
	ctx := context.Background()
	sm := newTestSessionManager(repositories.NewInMemoryRepository())
	room := startGame(t, sm)
	play(t, sm, room.ID, 0)

	finished := startGame(t, sm)
	play(t, sm, finished.ID, 0, 4, 1, 3, 2)

	tests := []struct {
		name    string
		roomID  string
		userID  string
		cell    int
		wantErr error
	}{
		{
			name:    "unknown room",
			roomID:  "missing",
			userID:  "u1",
			cell:    1,
			wantErr: ErrRoomNotFound,
		},
		{
			name:    "empty user",
			roomID:  room.ID,
			userID:  "",
			cell:    1,
			wantErr: ErrInvalidUser,
		},
		{
			name:    "not a participant",
			roomID:  room.ID,
			userID:  "u3",
			cell:    1,
			wantErr: ErrNotParticipant,
		},
		{
			name:    "game finished",
			roomID:  finished.ID,
			userID:  "u2",
			cell:    8,
			wantErr: ErrGameFinished,
		},
		{
			name:    "not your turn",
			roomID:  room.ID,
			userID:  "u1",
			cell:    1,
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "turn is checked before the cell",
			roomID:  room.ID,
			userID:  "u1",
			cell:    9,
			wantErr: ErrNotYourTurn,
		},
		{
			name:    "cell out of range",
			roomID:  room.ID,
			userID:  "u2",
			cell:    9,
			wantErr: ErrInvalidCell,
		},
		{
			name:    "negative cell",
			roomID:  room.ID,
			userID:  "u2",
			cell:    -1,
			wantErr: ErrInvalidCell,
		},
		{
			name:    "cell occupied",
			roomID:  room.ID,
			userID:  "u2",
			cell:    0,
			wantErr: ErrCellOccupied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sm.SubmitMove(ctx, tt.roomID, tt.userID, tt.cell)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// rejected moves leave the game unchanged
	game, err := sm.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "X+0", game.MovesString)
	assert.Equal(t, types.SymbolO, game.NextTurnSymbol)
}

func TestSessionManager_SubmitMove_corruptTurn(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewInMemoryRepository()
	sm := newTestSessionManager(repo)
	room := startGame(t, sm)
	play(t, sm, room.ID, 0)

	// O is due after one move, but the stored turn says X
	require.NoError(t, repo.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		game, err := tx.GetGame(ctx, room.ID)
		if err != nil {
			return err
		}
		game.NextTurnSymbol = types.SymbolX
		return tx.PutGame(ctx, game)
	}))

	for _, user := range []string{"u1", "u2"} {
		_, err := sm.SubmitMove(ctx, room.ID, user, 8)
		require.Error(t, err, user)
		assert.False(t, isSemanticError(err), "user %s got %v", user, err)
	}

	game, err := sm.GetGame(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "X+0", game.MovesString)
}

func TestSessionManager_JoinRoom_errors(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewInMemoryRepository()
	sm := newTestSessionManager(repo, "1000", "2000", "3000", "4000")

	waiting, err := sm.CreateRoom(ctx, "u1")
	require.NoError(t, err)
	full := startGame(t, sm)
	finished := startGame(t, sm)
	play(t, sm, finished.ID, 0, 4, 1, 3, 2)

	// a finished room that still has a free seat
	stuck, err := sm.CreateRoom(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, repo.RunTransaction(ctx, func(ctx context.Context, tx repositories.Tx) error {
		room, err := tx.GetRoom(ctx, stuck.ID)
		if err != nil {
			return err
		}
		room.Status = types.RoomStatusFinished
		return tx.PutRoom(ctx, room)
	}))

	tests := []struct {
		name    string
		code    string
		userID  string
		wantErr error
	}{
		{
			name:    "unknown code",
			code:    "9999",
			userID:  "u2",
			wantErr: ErrRoomNotFound,
		},
		{
			name:    "malformed code",
			code:    "12a4",
			userID:  "u2",
			wantErr: ErrRoomNotFound,
		},
		{
			name:    "empty user",
			code:    waiting.Code,
			userID:  "",
			wantErr: ErrInvalidUser,
		},
		{
			name:    "host joins own room",
			code:    waiting.Code,
			userID:  "u1",
			wantErr: ErrAlreadyJoined,
		},
		{
			name:    "room full",
			code:    full.Code,
			userID:  "u3",
			wantErr: ErrRoomFull,
		},
		{
			name:    "room full for a participant too",
			code:    full.Code,
			userID:  "u2",
			wantErr: ErrRoomFull,
		},
		{
			name:    "join a finished room",
			code:    finished.Code,
			userID:  "u3",
			wantErr: ErrRoomNotJoinable,
		},
		{
			name:    "join a finished room as a participant",
			code:    finished.Code,
			userID:  "u2",
			wantErr: ErrRoomNotJoinable,
		},
		{
			name:    "finished room with a free seat",
			code:    stuck.Code,
			userID:  "u2",
			wantErr: ErrRoomNotJoinable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sm.JoinRoom(ctx, tt.code, tt.userID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSessionManager_CreateRoom_codes(t *testing.T) {
	ctx := context.Background()

	t.Run("collision is retried", func(t *testing.T) {
		sm := newTestSessionManager(repositories.NewInMemoryRepository(), "1111", "1111", "1111", "2222")
		first, err := sm.CreateRoom(ctx, "u1")
		require.NoError(t, err)
		second, err := sm.CreateRoom(ctx, "u2")
		require.NoError(t, err)
		assert.Equal(t, "1111", first.Code)
		assert.Equal(t, "2222", second.Code)
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		calls := 0
		sm := NewSessionManager(NewSessionManagerOptions{
			Repository: repositories.NewInMemoryRepository(),
			CodeGenerator: func() string {
				calls++
				return "1111"
			},
		})
		_, err := sm.CreateRoom(ctx, "u1")
		require.NoError(t, err)
		calls = 0

		_, err = sm.CreateRoom(ctx, "u2")
		assert.ErrorIs(t, err, ErrCodeExhausted)
		assert.Equal(t, MaxCodeAttempts, calls)
	})

	t.Run("codes stay reserved after the game ends", func(t *testing.T) {
		sm := newTestSessionManager(repositories.NewInMemoryRepository(), "1111", "1111", "1111", "1111", "1111", "1111", "3333")
		room := startGame(t, sm)
		play(t, sm, room.ID, 0, 4, 1, 3, 2)

		_, err := sm.CreateRoom(ctx, "u3")
		assert.ErrorIs(t, err, ErrCodeExhausted)
	})

	t.Run("empty host", func(t *testing.T) {
		sm := newTestSessionManager(repositories.NewInMemoryRepository())
		_, err := sm.CreateRoom(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidUser)
	})
}

func TestSessionManager_concurrentMoves(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			sm := newTestSessionManager(backend.new(t))

			for i := 0; i < 20; i++ {
				room := startGame(t, sm)

				// X submits two different cells on the same turn
				var wg sync.WaitGroup
				errs := make([]error, 2)
				for j, cell := range []int{0, 1} {
					wg.Add(1)
					go func(j, cell int) {
						defer wg.Done()
						_, errs[j] = sm.SubmitMove(context.Background(), room.ID, "u1", cell)
					}(j, cell)
				}
				wg.Wait()

				succeeded := 0
				for _, err := range errs {
					if err == nil {
						succeeded++
						continue
					}
					assert.ErrorIs(t, err, ErrNotYourTurn)
				}
				assert.Equal(t, 1, succeeded)

				game, err := sm.GetGame(context.Background(), room.ID)
				require.NoError(t, err)
				assert.Len(t, moves.Parse(game.MovesString), 1)
				assert.Equal(t, types.SymbolO, game.NextTurnSymbol)
			}
		})
	}
}

func TestSessionManager_concurrentCellClaims(t *testing.T) {
	sm := newTestSessionManager(repositories.NewInMemoryRepository())
	room := startGame(t, sm)
	play(t, sm, room.ID, 0)

	// O submits cell 4 twice at once; the second sees X to move
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for j, user := range []string{"u2", "u2"} {
		wg.Add(1)
		go func(j int, user string) {
			defer wg.Done()
			_, errs[j] = sm.SubmitMove(context.Background(), room.ID, user, 4)
		}(j, user)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, ErrNotYourTurn)
		}
	}
	assert.Equal(t, 1, failures)

	game, err := sm.GetGame(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, "X+0,O+4", game.MovesString)
}

func TestSessionManager_concurrentJoins(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			sm := newTestSessionManager(backend.new(t))

			for i := 0; i < 20; i++ {
				room, err := sm.CreateRoom(ctx, "host")
				require.NoError(t, err)

				var wg sync.WaitGroup
				errs := make([]error, 2)
				for j, user := range []string{"a", "b"} {
					wg.Add(1)
					go func(j int, user string) {
						defer wg.Done()
						_, errs[j] = sm.JoinRoom(ctx, room.Code, user)
					}(j, user)
				}
				wg.Wait()

				succeeded := 0
				for _, err := range errs {
					if err == nil {
						succeeded++
						continue
					}
					assert.ErrorIs(t, err, ErrRoomFull)
				}
				assert.Equal(t, 1, succeeded)

				room, err = sm.GetRoom(ctx, room.ID)
				require.NoError(t, err)
				assert.Equal(t, types.RoomStatusActive, room.Status)
				assert.Len(t, room.ParticipantUserIDs, 2)
			}
		})
	}
}

func TestSessionManager_concurrentResets(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()
			sm := newTestSessionManager(backend.new(t))

			for i := 0; i < 20; i++ {
				room := startGame(t, sm)
				play(t, sm, room.ID, 0, 4, 1, 3, 2)

				var wg sync.WaitGroup
				errs := make([]error, 2)
				for j := range errs {
					wg.Add(1)
					go func(j int) {
						defer wg.Done()
						_, errs[j] = sm.ResetGame(ctx, room.ID)
					}(j)
				}
				wg.Wait()

				succeeded := 0
				for _, err := range errs {
					if err == nil {
						succeeded++
						continue
					}
					assert.ErrorIs(t, err, ErrNotFinished)
				}
				assert.Equal(t, 1, succeeded)

				game, err := sm.GetGame(ctx, room.ID)
				require.NoError(t, err)
				assert.Equal(t, "", game.MovesString)
				assertConsistent(t, sm, room.ID)
			}
		})
	}
}

func TestSessionManager_resetRacesMoves(t *testing.T) {
	tests := []struct {
		name string
		// played before the race starts
		cells []int
		// the move of u1 racing the reset
		cell int
	}{
		{
			name:  "winning move",
			cells: []int{0, 4, 1, 3},
			cell:  2,
		},
		{
			name:  "move after the end",
			cells: []int{0, 4, 1, 3, 2},
			cell:  8,
		},
	}
	for _, backend := range backends {
		for _, tt := range tests {
			t.Run(backend.name+"/"+tt.name, func(t *testing.T) {
				ctx := context.Background()
				sm := newTestSessionManager(backend.new(t))

				for i := 0; i < 20; i++ {
					room := startGame(t, sm)
					play(t, sm, room.ID, tt.cells...)

					var wg sync.WaitGroup
					var moveErr, resetErr error
					wg.Add(2)
					go func() {
						defer wg.Done()
						_, moveErr = sm.SubmitMove(ctx, room.ID, "u1", tt.cell)
					}()
					go func() {
						defer wg.Done()
						_, resetErr = sm.ResetGame(ctx, room.ID)
					}()
					wg.Wait()

					if moveErr != nil {
						assert.ErrorIs(t, moveErr, ErrGameFinished)
					}
					if resetErr != nil {
						assert.ErrorIs(t, resetErr, ErrNotFinished)
					}
					assert.False(t, moveErr != nil && resetErr != nil, "move: %v, reset: %v", moveErr, resetErr)
					assertConsistent(t, sm, room.ID)
				}
			})
		}
	}
}

// assertConsistent checks that the stored room and game of roomID agree with
// the move history.
func assertConsistent(t *testing.T, sm *SessionManager, roomID string) {
	t.Helper()
	view, err := sm.GetView(context.Background(), roomID, "u1")
	require.NoError(t, err)

	for i, m := range moves.Parse(view.Game.MovesString) {
		want := types.SymbolX
		if i%2 == 1 {
			want = types.SymbolO
		}
		assert.Equal(t, want, m.Symbol, "move %d of %q", i, view.Game.MovesString)
	}
	board := moves.DeriveBoard(view.Game.MovesString)
	assert.Equal(t, rules.CheckWinner(board), view.Game.WinnerSymbol)
	if rules.IsTerminal(board) {
		assert.Equal(t, types.RoomStatusFinished, view.Room.Status)
		assert.Equal(t, view.Game.UpdatedAt, view.Room.FinishedAt)
	} else {
		assert.Equal(t, types.RoomStatusActive, view.Room.Status)
		assert.Zero(t, view.Room.FinishedAt)
		assert.Equal(t, moves.NextSymbol(view.Game.MovesString), view.Game.NextTurnSymbol)
	}
}

// interleavingRepository runs before ahead of every read made outside a
// transaction.
type interleavingRepository struct {
	repositories.Repository
	before func()
}

func (r *interleavingRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	r.before()
	return r.Repository.GetRoom(ctx, roomID)
}

func (r *interleavingRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	r.before()
	return r.Repository.GetGame(ctx, roomID)
}

func TestSessionManager_viewsMatchCommit(t *testing.T) {
	ctx := context.Background()
	repo := &interleavingRepository{
		Repository: repositories.NewInMemoryRepository(),
		before:     func() {},
	}
	sm := newTestSessionManager(repo)
	room := startGame(t, sm)
	play(t, sm, room.ID, 0, 4, 1, 3)

	// any later read of the room sees it already reset
	var resetErr error
	repo.before = func() {
		repo.before = func() {}
		_, resetErr = sm.ResetGame(ctx, room.ID)
	}

	view, err := sm.SubmitMoveView(ctx, room.ID, "u1", 2)
	require.NoError(t, err)
	assert.True(t, view.Finished)
	assert.Equal(t, types.SymbolX, view.Winner)
	assert.Equal(t, "X+0,O+4,X+1,O+3,X+2", view.Game.MovesString)
	assert.Equal(t, view.Game.UpdatedAt, view.Room.FinishedAt)
	assert.False(t, view.MyTurn)

	view, err = sm.GetView(ctx, room.ID, "u2")
	require.NoError(t, err)
	assert.True(t, view.Finished)
	assert.Equal(t, types.SymbolO, view.MySymbol)

	// the reset view pairs the fresh game with the reopened room
	view, err = sm.ResetGameView(ctx, room.ID, "u2")
	require.NoError(t, err)
	require.NoError(t, resetErr)
	assert.Equal(t, "", view.Game.MovesString)
	assert.Equal(t, types.RoomStatusActive, view.Room.Status)
	assert.False(t, view.MyTurn)

	_, err = sm.ResetGameView(ctx, room.ID, "u3")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = sm.GetView(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSessionManager_ObserveGame(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			sm := newTestSessionManager(backend.new(t))
			room := startGame(t, sm)

			_, err := sm.ObserveGame(context.Background(), "missing")
			assert.ErrorIs(t, err, ErrRoomNotFound)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			updates, err := sm.ObserveGame(ctx, room.ID)
			require.NoError(t, err)

			first := receiveGame(t, updates)
			assert.Equal(t, "", first.MovesString)

			play(t, sm, room.ID, 0, 4, 1, 3, 2)
			var last *types.GameState
			for last == nil || last.WinnerSymbol == types.SymbolNone {
				last = receiveGame(t, updates)
			}
			assert.Equal(t, "X+0,O+4,X+1,O+3,X+2", last.MovesString)

			cancel()
			deadline := time.After(5 * time.Second)
			for {
				select {
				case _, ok := <-updates:
					if !ok {
						return
					}
				case <-deadline:
					t.Fatal("observation was not closed after cancel")
				}
			}
		})
	}
}

func receiveGame(t *testing.T, updates <-chan *types.GameState) *types.GameState {
	t.Helper()
	select {
	case game, ok := <-updates:
		require.True(t, ok, "observation closed")
		return game
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a game update")
		return nil
	}
}

func TestSessionManager_timestamps(t *testing.T) {
	// a clock that never advances still yields increasing UpdatedAt
	frozen := time.UnixMilli(1_700_000_000_000)
	sm := NewSessionManager(NewSessionManagerOptions{
		Repository:  repositories.NewInMemoryRepository(),
		IDGenerator: func() string { return "room-1" },
		Clock:       func() time.Time { return frozen },
	})
	room := startGame(t, sm)
	assert.Equal(t, "room-1", room.ID)
	assert.Equal(t, frozen.UnixMilli(), room.CreatedAt)

	first := play(t, sm, room.ID, 0)
	second, err := sm.SubmitMove(context.Background(), room.ID, "u2", 4)
	require.NoError(t, err)
	assert.Greater(t, second.UpdatedAt, first.UpdatedAt)
}
