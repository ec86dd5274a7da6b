package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cbodonnell/noughts/pkg/broadcast"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/redis/go-redis/v9"
)

var _ Repository = &RedisRepository{}

// RedisRepository stores rooms as JSON values and runs transactions
// optimistically: every key a transaction reads is WATCHed, writes are queued
// in MULTI/EXEC, and a transaction that lost a race is retried.
type RedisRepository struct {
	client      *redis.Client
	maxAttempts int
}

type NewRedisRepositoryOptions struct {
	URL         string
	MaxAttempts int
}

func NewRedisRepository(ctx context.Context, opts NewRedisRepositoryOptions) (*RedisRepository, error) {
	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}
	log.Info("Connected to redis at %s", redisOpts.Addr)

	return &RedisRepository{
		client:      client,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

func roomKey(roomID string) string {
	return "room:" + roomID
}

func gameKey(roomID string) string {
	return "game:" + roomID
}

func roomCodeKey(code string) string {
	return "roomcode:" + code
}

func gameChannel(roomID string) string {
	return "game:" + roomID + ":updates"
}

func (r *RedisRepository) Close(ctx context.Context) error {
	return r.client.Close()
}

// redisGetter is satisfied by both *redis.Client and *redis.Tx.
type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisGetJSON(ctx context.Context, c redisGetter, key string, v any) (bool, error) {
	b, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %v", key, err)
	}
	return true, nil
}

func (r *RedisRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	room := &types.Room{}
	found, err := redisGetJSON(ctx, r.client, roomKey(roomID), room)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, roomNotFound(roomID)
	}
	return room, nil
}

func (r *RedisRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	game := &types.GameState{}
	found, err := redisGetJSON(ctx, r.client, gameKey(roomID), game)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gameNotFound(roomID)
	}
	return game, nil
}

func (r *RedisRepository) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	roomID, err := r.client.Get(ctx, roomCodeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to get room code: %v", err)
	}
	return r.GetRoom(ctx, roomID)
}

func (r *RedisRepository) RunTransaction(ctx context.Context, fn TxFunc) error {
	return retryTransaction(ctx, r.maxAttempts, isRetryableRedisError, func() error {
		return r.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{
				tx:      rtx,
				known:   make(map[string]bool),
				rooms:   make(map[string]*types.Room),
				games:   make(map[string]*types.GameState),
				created: make(map[string]bool),
			}
			if err := fn(ctx, tx); err != nil {
				return err
			}
			return tx.commit(ctx)
		})
	})
}

func isRetryableRedisError(err error) bool {
	return errors.Is(err, redis.TxFailedErr)
}

func (r *RedisRepository) Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	pubsub := r.client.Subscribe(ctx, gameChannel(roomID))
	// wait for the subscription to be confirmed before the initial read
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to game updates: %v", err)
	}

	game, err := r.GetGame(ctx, roomID)
	if err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := broadcast.NewSubscriber()
	sub.Offer(game)

	go func() {
		defer sub.Close()
		defer pubsub.Close()

		last := game.UpdatedAt
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				update := &types.GameState{}
				if err := json.Unmarshal([]byte(msg.Payload), update); err != nil {
					log.Error("Failed to decode game update: %v", err)
					continue
				}
				if skipStale(last, update.UpdatedAt) {
					continue
				}
				last = update.UpdatedAt
				sub.Offer(update)
			}
		}
	}()

	return sub.C(), nil
}

type redisTx struct {
	tx *redis.Tx
	// known records whether each room read so far exists
	known   map[string]bool
	rooms   map[string]*types.Room
	games   map[string]*types.GameState
	created map[string]bool
}

func (t *redisTx) watch(ctx context.Context, key string) error {
	if err := t.tx.Watch(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to watch %s: %w", key, err)
	}
	return nil
}

func (t *redisTx) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	if room, ok := t.rooms[roomID]; ok {
		return room.Copy(), nil
	}
	if err := t.watch(ctx, roomKey(roomID)); err != nil {
		return nil, err
	}
	room := &types.Room{}
	found, err := redisGetJSON(ctx, t.tx, roomKey(roomID), room)
	if err != nil {
		return nil, err
	}
	t.known[roomID] = found
	if !found {
		return nil, roomNotFound(roomID)
	}
	return room, nil
}

func (t *redisTx) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	if game, ok := t.games[roomID]; ok {
		return game.Copy(), nil
	}
	if err := t.watch(ctx, gameKey(roomID)); err != nil {
		return nil, err
	}
	game := &types.GameState{}
	found, err := redisGetJSON(ctx, t.tx, gameKey(roomID), game)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, gameNotFound(roomID)
	}
	return game, nil
}

func (t *redisTx) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	for _, room := range t.rooms {
		if room.Code == code {
			return room.Copy(), nil
		}
	}
	if err := t.watch(ctx, roomCodeKey(code)); err != nil {
		return nil, err
	}
	roomID, err := t.tx.Get(ctx, roomCodeKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to get room code: %w", err)
	}
	return t.GetRoom(ctx, roomID)
}

func (t *redisTx) PutRoom(ctx context.Context, room *types.Room) error {
	exists, read := t.known[room.ID]
	if !read {
		if _, err := t.GetRoom(ctx, room.ID); err != nil && !IsNotFound(err) {
			return err
		}
		exists = t.known[room.ID]
	}

	if !exists && !t.created[room.ID] {
		// the code key is watched, so a concurrent claim aborts this tx
		if err := t.watch(ctx, roomCodeKey(room.Code)); err != nil {
			return err
		}
		owner, err := t.tx.Get(ctx, roomCodeKey(room.Code)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to get room code: %w", err)
		}
		if err == nil && owner != room.ID {
			return &ErrDuplicateCode{Code: room.Code}
		}
		t.created[room.ID] = true
	}

	t.rooms[room.ID] = room.Copy()
	return nil
}

func (t *redisTx) PutGame(ctx context.Context, game *types.GameState) error {
	if _, ok := t.rooms[game.RoomID]; !ok {
		if _, err := t.GetRoom(ctx, game.RoomID); err != nil {
			return err
		}
	}
	t.games[game.RoomID] = game.Copy()
	return nil
}

func (t *redisTx) commit(ctx context.Context) error {
	if len(t.rooms) == 0 && len(t.games) == 0 {
		return nil
	}

	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for roomID, room := range t.rooms {
			b, err := json.Marshal(room)
			if err != nil {
				return fmt.Errorf("failed to encode room: %v", err)
			}
			pipe.Set(ctx, roomKey(roomID), b, 0)
			if t.created[roomID] {
				pipe.Set(ctx, roomCodeKey(room.Code), roomID, 0)
			}
		}
		for roomID, game := range t.games {
			b, err := json.Marshal(game)
			if err != nil {
				return fmt.Errorf("failed to encode game: %v", err)
			}
			pipe.Set(ctx, gameKey(roomID), b, 0)
			pipe.Publish(ctx, gameChannel(roomID), b)
		}
		return nil
	})
	return err
}
