package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cbodonnell/noughts/pkg/broadcast"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/mattn/go-sqlite3"
)

var _ Repository = &SQLiteRepository{}

// SQLiteRepository stores rooms in a SQLite database file.
//
// SQLite allows a single writer at a time, so every transaction is opened as
// BEGIN IMMEDIATE and waits for the write lock up front. Change notifications
// are delivered in-process, which makes this backend suitable for a single
// server instance.
type SQLiteRepository struct {
	db          *sql.DB
	hub         *broadcast.Hub
	maxAttempts int
	// commitLock keeps commit and publish in the same order
	commitLock sync.Mutex
}

type NewSQLiteRepositoryOptions struct {
	Path          string
	MigrationsDir string
	MaxAttempts   int
}

func NewSQLiteRepository(ctx context.Context, opts NewSQLiteRepositoryOptions) (*SQLiteRepository, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", opts.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = applyMigrations(ctx, opts.MigrationsDir, func(ctx context.Context, migration string) error {
		_, err := db.ExecContext(ctx, migration)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db:          db,
		hub:         broadcast.NewHub(),
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// applyMigrations executes every file in dir in lexical order.
func applyMigrations(ctx context.Context, dir string, exec func(ctx context.Context, migration string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		migrationPath := filepath.Join(dir, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sqliteRoomColumns = `id, code, host_user_id, participant_user_ids, status, created_at, finished_at`

func sqliteGetRoom(ctx context.Context, q sqlQuerier, where string, arg string) (*types.Room, error) {
	row := q.QueryRowContext(ctx, `SELECT `+sqliteRoomColumns+` FROM rooms WHERE `+where+` = ?`, arg)

	room := &types.Room{}
	var participants string
	var status string
	var finishedAt sql.NullInt64
	err := row.Scan(&room.ID, &room.Code, &room.HostUserID, &participants, &status, &room.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(participants), &room.ParticipantUserIDs); err != nil {
		return nil, fmt.Errorf("failed to decode participants of room %s: %v", room.ID, err)
	}
	if room.Status, err = types.ParseRoomStatus(status); err != nil {
		return nil, err
	}
	room.FinishedAt = finishedAt.Int64
	return room, nil
}

func sqliteGetGame(ctx context.Context, q sqlQuerier, roomID string) (*types.GameState, error) {
	q1 := `SELECT room_id, moves, next_turn_symbol, winner_symbol, updated_at FROM games WHERE room_id = ?`

	game := &types.GameState{}
	var nextTurn string
	var winner sql.NullString
	err := q.QueryRowContext(ctx, q1, roomID).Scan(&game.RoomID, &game.MovesString, &nextTurn, &winner, &game.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, gameNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}
	game.NextTurnSymbol = types.Symbol(nextTurn)
	game.WinnerSymbol = types.Symbol(winner.String)
	return game, nil
}

func (r *SQLiteRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	room, err := sqliteGetRoom(ctx, r.db, "id", roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	return room, nil
}

func (r *SQLiteRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	return sqliteGetGame(ctx, r.db, roomID)
}

func (r *SQLiteRepository) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	room, err := sqliteGetRoom(ctx, r.db, "code", code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	return room, nil
}

func (r *SQLiteRepository) RunTransaction(ctx context.Context, fn TxFunc) error {
	return retryTransaction(ctx, r.maxAttempts, isRetryableSQLiteError, func() error {
		return r.runTransaction(ctx, fn)
	})
}

func (r *SQLiteRepository) runTransaction(ctx context.Context, fn TxFunc) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	tx := &sqliteTx{tx: sqlTx}
	committed := false
	defer func() {
		if !committed {
			sqlTx.Rollback()
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.commitLock.Lock()
	defer r.commitLock.Unlock()
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	for _, game := range tx.written {
		r.hub.Publish(game)
	}
	return nil
}

func isRetryableSQLiteError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

func isSQLiteCodeConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique && strings.Contains(sqliteErr.Error(), "rooms.code")
}

func (r *SQLiteRepository) Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	// Holding the commit lock orders the initial read before later publishes.
	r.commitLock.Lock()
	defer r.commitLock.Unlock()

	game, err := sqliteGetGame(ctx, r.db, roomID)
	if err != nil {
		return nil, err
	}
	sub := r.hub.Subscribe(roomID)
	sub.Offer(game)

	go func() {
		<-ctx.Done()
		r.hub.Unsubscribe(roomID, sub)
	}()

	return sub.C(), nil
}

type sqliteTx struct {
	tx *sql.Tx
	// written holds the games to publish after commit
	written []*types.GameState
}

func (t *sqliteTx) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	room, err := sqliteGetRoom(ctx, t.tx, "id", roomID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func (t *sqliteTx) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	return sqliteGetGame(ctx, t.tx, roomID)
}

func (t *sqliteTx) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	room, err := sqliteGetRoom(ctx, t.tx, "code", code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func (t *sqliteTx) PutRoom(ctx context.Context, room *types.Room) error {
	participants, err := json.Marshal(room.ParticipantUserIDs)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %v", err)
	}
	var finishedAt sql.NullInt64
	if room.FinishedAt != 0 {
		finishedAt = sql.NullInt64{Int64: room.FinishedAt, Valid: true}
	}

	q := `
	INSERT INTO rooms (id, code, host_user_id, participant_user_ids, status, created_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		participant_user_ids = excluded.participant_user_ids,
		status = excluded.status,
		finished_at = excluded.finished_at;
	`
	_, err = t.tx.ExecContext(ctx, q, room.ID, room.Code, room.HostUserID, string(participants), string(room.Status), room.CreatedAt, finishedAt)
	if err != nil {
		if isSQLiteCodeConflict(err) {
			return &ErrDuplicateCode{Code: room.Code}
		}
		return fmt.Errorf("failed to upsert room: %w", err)
	}
	return nil
}

func (t *sqliteTx) PutGame(ctx context.Context, game *types.GameState) error {
	var winner sql.NullString
	if game.WinnerSymbol != types.SymbolNone {
		winner = sql.NullString{String: string(game.WinnerSymbol), Valid: true}
	}

	q := `
	INSERT OR REPLACE INTO games (room_id, moves, next_turn_symbol, winner_symbol, updated_at)
	VALUES (?, ?, ?, ?, ?);
	`
	_, err := t.tx.ExecContext(ctx, q, game.RoomID, game.MovesString, string(game.NextTurnSymbol), winner, game.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}
	t.written = append(t.written, game.Copy())
	return nil
}
