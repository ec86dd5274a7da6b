package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/noughts/pkg/broadcast"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Repository = &PostgresRepository{}

const (
	// gameUpdatesChannel carries every committed game state as JSON
	gameUpdatesChannel = "game_updates"

	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgRoomsCodeKey         = "rooms_code_key"
)

// PostgresRepository stores rooms in PostgreSQL.
// Transactions lock the rows they read with SELECT ... FOR UPDATE, and
// committed games are announced with NOTIFY so every server instance can
// stream them.
type PostgresRepository struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

type NewPostgresRepositoryOptions struct {
	ConnString    string
	MigrationsDir string
	MaxAttempts   int
}

// NewPostgresRepository connects to the database and applies migrations.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, opts NewPostgresRepositoryOptions) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %v", err)
	}

	var username string
	var database string
	err = pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	if opts.MigrationsDir != "" {
		err = applyMigrations(ctx, opts.MigrationsDir, func(ctx context.Context, migration string) error {
			_, err := pool.Exec(ctx, migration)
			return err
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresRepository{
		pool:        pool,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

const pgRoomColumns = `id, code, host_user_id, participant_user_ids, status, created_at, finished_at`

func pgScanRoom(row pgx.Row) (*types.Room, error) {
	room := &types.Room{}
	var status string
	var finishedAt *int64
	if err := row.Scan(&room.ID, &room.Code, &room.HostUserID, &room.ParticipantUserIDs, &status, &room.CreatedAt, &finishedAt); err != nil {
		return nil, err
	}
	var err error
	if room.Status, err = types.ParseRoomStatus(status); err != nil {
		return nil, err
	}
	if finishedAt != nil {
		room.FinishedAt = *finishedAt
	}
	return room, nil
}

func pgScanGame(row pgx.Row) (*types.GameState, error) {
	game := &types.GameState{}
	var nextTurn string
	var winner *string
	if err := row.Scan(&game.RoomID, &game.MovesString, &nextTurn, &winner, &game.UpdatedAt); err != nil {
		return nil, err
	}
	game.NextTurnSymbol = types.Symbol(nextTurn)
	if winner != nil {
		game.WinnerSymbol = types.Symbol(*winner)
	}
	return game, nil
}

func (r *PostgresRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	q := `SELECT ` + pgRoomColumns + ` FROM rooms WHERE id = $1`
	room, err := pgScanRoom(r.pool.QueryRow(ctx, q, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	return room, nil
}

func (r *PostgresRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	q := `SELECT room_id, moves, next_turn_symbol, winner_symbol, updated_at FROM games WHERE room_id = $1`
	game, err := pgScanGame(r.pool.QueryRow(ctx, q, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan game: %v", err)
	}
	return game, nil
}

func (r *PostgresRepository) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	q := `SELECT ` + pgRoomColumns + ` FROM rooms WHERE code = $1`
	room, err := pgScanRoom(r.pool.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to scan room: %v", err)
	}
	return room, nil
}

func (r *PostgresRepository) RunTransaction(ctx context.Context, fn TxFunc) error {
	return retryTransaction(ctx, r.maxAttempts, isRetryablePostgresError, func() error {
		return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			return fn(ctx, &postgresTx{tx: tx})
		})
	})
}

func isRetryablePostgresError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

func isPostgresCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == pgRoomsCodeKey
}

// Subscribe listens on a dedicated pool connection until ctx is done.
func (r *PostgresRepository) Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %v", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+gameUpdatesChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen for game updates: %v", err)
	}

	// read after LISTEN so no commit falls between the two
	game, err := r.GetGame(ctx, roomID)
	if err != nil {
		r.releaseListener(conn)
		return nil, err
	}

	sub := broadcast.NewSubscriber()
	sub.Offer(game)

	go func() {
		defer sub.Close()
		defer r.releaseListener(conn)

		last := game.UpdatedAt
		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error("Failed to wait for game updates of room %s: %v", roomID, err)
				}
				return
			}

			update := &types.GameState{}
			if err := json.Unmarshal([]byte(notification.Payload), update); err != nil {
				log.Error("Failed to decode game update: %v", err)
				continue
			}
			if update.RoomID != roomID || skipStale(last, update.UpdatedAt) {
				continue
			}
			last = update.UpdatedAt
			sub.Offer(update)
		}
	}()

	return sub.C(), nil
}

func (r *PostgresRepository) releaseListener(conn *pgxpool.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, "UNLISTEN "+gameUpdatesChannel); err != nil {
		// the connection is no longer usable; keep it out of the pool
		conn.Hijack().Close(ctx)
		return
	}
	conn.Release()
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	q := `SELECT ` + pgRoomColumns + ` FROM rooms WHERE id = $1 FOR UPDATE`
	room, err := pgScanRoom(t.tx.QueryRow(ctx, q, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func (t *postgresTx) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	q := `SELECT room_id, moves, next_turn_symbol, winner_symbol, updated_at FROM games WHERE room_id = $1 FOR UPDATE`
	game, err := pgScanGame(t.tx.QueryRow(ctx, q, roomID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, gameNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to scan game: %w", err)
	}
	return game, nil
}

func (t *postgresTx) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	q := `SELECT ` + pgRoomColumns + ` FROM rooms WHERE code = $1 FOR UPDATE`
	room, err := pgScanRoom(t.tx.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to scan room: %w", err)
	}
	return room, nil
}

func (t *postgresTx) PutRoom(ctx context.Context, room *types.Room) error {
	var finishedAt *int64
	if room.FinishedAt != 0 {
		finishedAt = &room.FinishedAt
	}

	q := `
	INSERT INTO rooms (id, code, host_user_id, participant_user_ids, status, created_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		participant_user_ids = EXCLUDED.participant_user_ids,
		status = EXCLUDED.status,
		finished_at = EXCLUDED.finished_at;
	`
	_, err := t.tx.Exec(ctx, q, room.ID, room.Code, room.HostUserID, room.ParticipantUserIDs, string(room.Status), room.CreatedAt, finishedAt)
	if err != nil {
		if isPostgresCodeConflict(err) {
			return &ErrDuplicateCode{Code: room.Code}
		}
		return fmt.Errorf("failed to upsert room: %w", err)
	}
	return nil
}

func (t *postgresTx) PutGame(ctx context.Context, game *types.GameState) error {
	var winner *string
	if game.WinnerSymbol != types.SymbolNone {
		w := string(game.WinnerSymbol)
		winner = &w
	}

	q := `
	INSERT INTO games (room_id, moves, next_turn_symbol, winner_symbol, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (room_id) DO UPDATE SET
		moves = EXCLUDED.moves,
		next_turn_symbol = EXCLUDED.next_turn_symbol,
		winner_symbol = EXCLUDED.winner_symbol,
		updated_at = EXCLUDED.updated_at;
	`
	if _, err := t.tx.Exec(ctx, q, game.RoomID, game.MovesString, string(game.NextTurnSymbol), winner, game.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert game: %w", err)
	}

	payload, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to encode game update: %v", err)
	}
	// delivered to listeners only once the transaction commits
	if _, err := t.tx.Exec(ctx, "SELECT pg_notify($1, $2)", gameUpdatesChannel, string(payload)); err != nil {
		return fmt.Errorf("failed to notify game update: %w", err)
	}
	return nil
}
