package repositories

import (
	"context"

	"github.com/cbodonnell/noughts/pkg/game/types"
)

// Repository is the persistence boundary of game sessions.
// Implementations must be safe for concurrent use.
type Repository interface {
	Close(ctx context.Context) error
	// GetRoom returns the room with the given ID or ErrNotFound.
	GetRoom(ctx context.Context, roomID string) (*types.Room, error)
	// GetGame returns the game state of a room or ErrNotFound.
	GetGame(ctx context.Context, roomID string) (*types.GameState, error)
	// GetRoomByCode returns the room holding a join code or ErrNotFound.
	GetRoomByCode(ctx context.Context, code string) (*types.Room, error)
	// RunTransaction runs fn with read-then-write isolation over every room and
	// game it touches. Writes are applied only if fn returns nil, and then all
	// together. Contention is retried internally; when retries run out the
	// error is an ErrTransient. Errors returned by fn are passed through.
	RunTransaction(ctx context.Context, fn TxFunc) error
	// Subscribe streams the game state of a room: the current state first,
	// then every committed change in commit order. A slow reader may miss
	// intermediate states but always receives the latest one. The channel is
	// closed once ctx is done.
	Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error)
}

type TxFunc func(ctx context.Context, tx Tx) error

// Tx is the view of the store inside a transaction.
// Writes are buffered and become visible to others only on commit.
type Tx interface {
	GetRoom(ctx context.Context, roomID string) (*types.Room, error)
	GetGame(ctx context.Context, roomID string) (*types.GameState, error)
	GetRoomByCode(ctx context.Context, code string) (*types.Room, error)
	// PutRoom creates or replaces a room. Creating a room whose code is held
	// by another room fails with ErrDuplicateCode, either here or on commit.
	PutRoom(ctx context.Context, room *types.Room) error
	PutGame(ctx context.Context, game *types.GameState) error
}
