package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/noughts/pkg/broadcast"
	"github.com/cbodonnell/noughts/pkg/game/types"
)

var _ Repository = &InMemoryRepository{}

// InMemoryRepository keeps rooms in process memory.
//
// Each room carries its own transaction lock, taken the first time a
// transaction reads the room and held until it commits or aborts, so
// transactions on the same room run one after another while transactions on
// different rooms never wait for each other.
type InMemoryRepository struct {
	lock  sync.RWMutex
	rooms map[string]*roomRecord
	// codes maps join codes to room IDs
	codes map[string]string
	hub   *broadcast.Hub
}

type roomRecord struct {
	// txLock is a one-slot semaphore so acquisition can honor a context
	txLock chan struct{}
	// dataLock guards room and game for readers outside transactions
	dataLock sync.RWMutex
	room     *types.Room
	game     *types.GameState
}

func newRoomRecord() *roomRecord {
	return &roomRecord{
		txLock: make(chan struct{}, 1),
	}
}

func (rec *roomRecord) acquire(ctx context.Context) error {
	select {
	case rec.txLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rec *roomRecord) release() {
	<-rec.txLock
}

func (rec *roomRecord) snapshot() (*types.Room, *types.GameState) {
	rec.dataLock.RLock()
	defer rec.dataLock.RUnlock()
	var room *types.Room
	var game *types.GameState
	if rec.room != nil {
		room = rec.room.Copy()
	}
	if rec.game != nil {
		game = rec.game.Copy()
	}
	return room, game
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rooms: make(map[string]*roomRecord),
		codes: make(map[string]string),
		hub:   broadcast.NewHub(),
	}
}

func (r *InMemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *InMemoryRepository) record(roomID string) *roomRecord {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.rooms[roomID]
}

func (r *InMemoryRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	rec := r.record(roomID)
	if rec == nil {
		return nil, roomNotFound(roomID)
	}
	room, _ := rec.snapshot()
	if room == nil {
		// inserted by a transaction that has not finished committing
		return nil, roomNotFound(roomID)
	}
	return room, nil
}

func (r *InMemoryRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	rec := r.record(roomID)
	if rec == nil {
		return nil, gameNotFound(roomID)
	}
	_, game := rec.snapshot()
	if game == nil {
		return nil, gameNotFound(roomID)
	}
	return game, nil
}

func (r *InMemoryRepository) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	r.lock.RLock()
	roomID, ok := r.codes[code]
	r.lock.RUnlock()
	if !ok {
		return nil, codeNotFound(code)
	}
	return r.GetRoom(ctx, roomID)
}

func (r *InMemoryRepository) RunTransaction(ctx context.Context, fn TxFunc) error {
	tx := &inMemoryTx{
		repo:   r,
		locked: make(map[string]*roomRecord),
		rooms:  make(map[string]*types.Room),
		games:  make(map[string]*types.GameState),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	// a transaction cancelled before commit writes nothing
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (r *InMemoryRepository) Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	rec := r.record(roomID)
	if rec == nil {
		return nil, gameNotFound(roomID)
	}

	// Commits publish while holding the transaction lock, so registering under
	// it orders the initial snapshot before every later change.
	if err := rec.acquire(ctx); err != nil {
		return nil, err
	}
	_, game := rec.snapshot()
	if game == nil {
		rec.release()
		return nil, gameNotFound(roomID)
	}
	sub := r.hub.Subscribe(roomID)
	sub.Offer(game)
	rec.release()

	go func() {
		<-ctx.Done()
		r.hub.Unsubscribe(roomID, sub)
	}()

	return sub.C(), nil
}

type inMemoryTx struct {
	repo *InMemoryRepository
	// locked holds the records whose transaction lock this tx owns
	locked map[string]*roomRecord
	// rooms and games hold buffered writes
	rooms map[string]*types.Room
	games map[string]*types.GameState
	// created lists rooms that do not exist until commit, in write order
	created []string
}

func (tx *inMemoryTx) acquire(ctx context.Context, roomID string) (*roomRecord, error) {
	if rec, ok := tx.locked[roomID]; ok {
		return rec, nil
	}
	rec := tx.repo.record(roomID)
	if rec == nil {
		return nil, nil
	}
	if err := rec.acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed to lock room %s: %w", roomID, err)
	}
	tx.locked[roomID] = rec
	return rec, nil
}

func (tx *inMemoryTx) release() {
	for _, rec := range tx.locked {
		rec.release()
	}
	tx.locked = nil
}

func (tx *inMemoryTx) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	if room, ok := tx.rooms[roomID]; ok {
		return room.Copy(), nil
	}
	rec, err := tx.acquire(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, roomNotFound(roomID)
	}
	room, _ := rec.snapshot()
	return room, nil
}

func (tx *inMemoryTx) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	if game, ok := tx.games[roomID]; ok {
		return game.Copy(), nil
	}
	rec, err := tx.acquire(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, gameNotFound(roomID)
	}
	_, game := rec.snapshot()
	if game == nil {
		return nil, gameNotFound(roomID)
	}
	return game, nil
}

func (tx *inMemoryTx) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	for _, room := range tx.rooms {
		if room.Code == code {
			return room.Copy(), nil
		}
	}
	tx.repo.lock.RLock()
	roomID, ok := tx.repo.codes[code]
	tx.repo.lock.RUnlock()
	if !ok {
		return nil, codeNotFound(code)
	}
	return tx.GetRoom(ctx, roomID)
}

func (tx *inMemoryTx) PutRoom(ctx context.Context, room *types.Room) error {
	if _, buffered := tx.rooms[room.ID]; !buffered {
		rec, err := tx.acquire(ctx, room.ID)
		if err != nil {
			return err
		}
		if rec == nil {
			tx.created = append(tx.created, room.ID)
		} else if current, _ := rec.snapshot(); current != nil && current.Code != room.Code {
			return fmt.Errorf("room %s code cannot change", room.ID)
		}
	}
	tx.rooms[room.ID] = room.Copy()
	return nil
}

func (tx *inMemoryTx) PutGame(ctx context.Context, game *types.GameState) error {
	if _, ok := tx.rooms[game.RoomID]; !ok {
		rec, err := tx.acquire(ctx, game.RoomID)
		if err != nil {
			return err
		}
		if rec == nil {
			return roomNotFound(game.RoomID)
		}
	}
	tx.games[game.RoomID] = game.Copy()
	return nil
}

func (tx *inMemoryTx) commit() error {
	if len(tx.created) > 0 {
		if err := tx.insertCreated(); err != nil {
			return err
		}
	}

	for roomID, rec := range tx.locked {
		room, hasRoom := tx.rooms[roomID]
		game, hasGame := tx.games[roomID]
		if !hasRoom && !hasGame {
			continue
		}
		rec.dataLock.Lock()
		if hasRoom {
			rec.room = room
		}
		if hasGame {
			rec.game = game
		}
		rec.dataLock.Unlock()
		if hasGame {
			tx.repo.hub.Publish(game)
		}
	}
	return nil
}

// insertCreated makes new rooms visible with their transaction lock already
// held by this tx, so no other transaction can observe them half written.
func (tx *inMemoryTx) insertCreated() error {
	repo := tx.repo
	repo.lock.Lock()
	defer repo.lock.Unlock()

	for _, roomID := range tx.created {
		room := tx.rooms[roomID]
		if _, ok := repo.rooms[roomID]; ok {
			return fmt.Errorf("room %s already exists", roomID)
		}
		if owner, ok := repo.codes[room.Code]; ok && owner != roomID {
			return &ErrDuplicateCode{Code: room.Code}
		}
		if _, ok := tx.games[roomID]; !ok {
			return fmt.Errorf("room %s created without a game", roomID)
		}
	}

	for _, roomID := range tx.created {
		rec := newRoomRecord()
		rec.txLock <- struct{}{}
		repo.rooms[roomID] = rec
		repo.codes[tx.rooms[roomID].Code] = roomID
		tx.locked[roomID] = rec
	}
	return nil
}
