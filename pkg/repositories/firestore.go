package repositories

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/cbodonnell/noughts/pkg/broadcast"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ Repository = &FirestoreRepository{}

const (
	roomsCollection     = "rooms"
	gamesCollection     = "games"
	roomCodesCollection = "roomCodes"
)

// FirestoreRepository stores rooms in Cloud Firestore.
// Join codes are claimed by a roomCodes/{code} document created in the same
// transaction as the room, so two rooms can never hold the same code.
type FirestoreRepository struct {
	client      *firestore.Client
	maxAttempts int
}

type NewFirestoreRepositoryOptions struct {
	ProjectID string
	// CredentialsFile is a service account key; when empty the application
	// default credentials (or FIRESTORE_EMULATOR_HOST) are used
	CredentialsFile string
	MaxAttempts     int
}

func NewFirestoreRepository(ctx context.Context, opts NewFirestoreRepositoryOptions) (*FirestoreRepository, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Firestore client: %v", err)
	}
	log.Info("Connected to Firestore project %s", opts.ProjectID)

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &FirestoreRepository{
		client:      client,
		maxAttempts: maxAttempts,
	}, nil
}

func (r *FirestoreRepository) Close(ctx context.Context) error {
	return r.client.Close()
}

type firestoreRoom struct {
	Code               string   `firestore:"code"`
	HostUserID         string   `firestore:"hostUserId"`
	ParticipantUserIDs []string `firestore:"participantUserIds"`
	Status             string   `firestore:"status"`
	CreatedAt          int64    `firestore:"createdAt"`
	FinishedAt         int64    `firestore:"finishedAt,omitempty"`
}

type firestoreGame struct {
	MovesString    string `firestore:"movesString"`
	NextTurnSymbol string `firestore:"nextTurnSymbol"`
	WinnerSymbol   string `firestore:"winnerSymbol,omitempty"`
	UpdatedAt      int64  `firestore:"updatedAt"`
}

type firestoreRoomCode struct {
	RoomID string `firestore:"roomId"`
}

func toFirestoreRoom(room *types.Room) *firestoreRoom {
	return &firestoreRoom{
		Code:               room.Code,
		HostUserID:         room.HostUserID,
		ParticipantUserIDs: append([]string(nil), room.ParticipantUserIDs...),
		Status:             string(room.Status),
		CreatedAt:          room.CreatedAt,
		FinishedAt:         room.FinishedAt,
	}
}

func fromRoomSnapshot(doc *firestore.DocumentSnapshot) (*types.Room, error) {
	data := &firestoreRoom{}
	if err := doc.DataTo(data); err != nil {
		return nil, fmt.Errorf("failed to decode room %s: %v", doc.Ref.ID, err)
	}
	status, err := types.ParseRoomStatus(data.Status)
	if err != nil {
		return nil, err
	}
	return &types.Room{
		ID:                 doc.Ref.ID,
		Code:               data.Code,
		HostUserID:         data.HostUserID,
		ParticipantUserIDs: data.ParticipantUserIDs,
		Status:             status,
		CreatedAt:          data.CreatedAt,
		FinishedAt:         data.FinishedAt,
	}, nil
}

func toFirestoreGame(game *types.GameState) *firestoreGame {
	return &firestoreGame{
		MovesString:    game.MovesString,
		NextTurnSymbol: string(game.NextTurnSymbol),
		WinnerSymbol:   string(game.WinnerSymbol),
		UpdatedAt:      game.UpdatedAt,
	}
}

func fromGameSnapshot(doc *firestore.DocumentSnapshot) (*types.GameState, error) {
	data := &firestoreGame{}
	if err := doc.DataTo(data); err != nil {
		return nil, fmt.Errorf("failed to decode game %s: %v", doc.Ref.ID, err)
	}
	return &types.GameState{
		RoomID:         doc.Ref.ID,
		MovesString:    data.MovesString,
		NextTurnSymbol: types.Symbol(data.NextTurnSymbol),
		WinnerSymbol:   types.Symbol(data.WinnerSymbol),
		UpdatedAt:      data.UpdatedAt,
	}, nil
}

func (r *FirestoreRepository) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	doc, err := r.client.Collection(roomsCollection).Doc(roomID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to get room: %v", err)
	}
	return fromRoomSnapshot(doc)
}

func (r *FirestoreRepository) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	doc, err := r.client.Collection(gamesCollection).Doc(roomID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, gameNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to get game: %v", err)
	}
	return fromGameSnapshot(doc)
}

func (r *FirestoreRepository) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	iter := r.client.Collection(roomsCollection).Where("code", "==", code).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to query room by code: %v", err)
	}
	return fromRoomSnapshot(doc)
}

// RunTransaction relies on the client's own retry of aborted transactions.
func (r *FirestoreRepository) RunTransaction(ctx context.Context, fn TxFunc) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, ftx *firestore.Transaction) error {
		tx := &firestoreTx{
			client: r.client,
			tx:     ftx,
			exists: make(map[string]bool),
			rooms:  make(map[string]*types.Room),
			games:  make(map[string]*types.GameState),
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.flush()
	}, firestore.MaxAttempts(r.maxAttempts))
	if err != nil && status.Code(err) == codes.Aborted {
		return &ErrTransient{Attempts: r.maxAttempts, Err: err}
	}
	return err
}

func (r *FirestoreRepository) Subscribe(ctx context.Context, roomID string) (<-chan *types.GameState, error) {
	snapshots := r.client.Collection(gamesCollection).Doc(roomID).Snapshots(ctx)

	// the first snapshot is the current state
	doc, err := snapshots.Next()
	if err != nil {
		snapshots.Stop()
		return nil, fmt.Errorf("failed to watch game: %v", err)
	}
	if !doc.Exists() {
		snapshots.Stop()
		return nil, gameNotFound(roomID)
	}
	game, err := fromGameSnapshot(doc)
	if err != nil {
		snapshots.Stop()
		return nil, err
	}

	sub := broadcast.NewSubscriber()
	sub.Offer(game)

	go func() {
		defer sub.Close()
		defer snapshots.Stop()

		last := game.UpdatedAt
		for {
			doc, err := snapshots.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					log.Error("Failed to watch game of room %s: %v", roomID, err)
				}
				return
			}
			if !doc.Exists() {
				continue
			}
			update, err := fromGameSnapshot(doc)
			if err != nil {
				log.Error("Failed to decode game update: %v", err)
				continue
			}
			if skipStale(last, update.UpdatedAt) {
				continue
			}
			last = update.UpdatedAt
			sub.Offer(update)
		}
	}()

	return sub.C(), nil
}

// firestoreTx stages writes until fn returns, since Firestore requires every
// read in a transaction to happen before the first write.
type firestoreTx struct {
	client *firestore.Client
	tx     *firestore.Transaction
	// exists records whether each room read so far is stored
	exists map[string]bool
	rooms  map[string]*types.Room
	games  map[string]*types.GameState
	// created lists new rooms in write order
	created []string
}

func (t *firestoreTx) GetRoom(ctx context.Context, roomID string) (*types.Room, error) {
	if room, ok := t.rooms[roomID]; ok {
		return room.Copy(), nil
	}
	doc, err := t.tx.Get(t.client.Collection(roomsCollection).Doc(roomID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			t.exists[roomID] = false
			return nil, roomNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	t.exists[roomID] = true
	return fromRoomSnapshot(doc)
}

func (t *firestoreTx) GetGame(ctx context.Context, roomID string) (*types.GameState, error) {
	if game, ok := t.games[roomID]; ok {
		return game.Copy(), nil
	}
	doc, err := t.tx.Get(t.client.Collection(gamesCollection).Doc(roomID))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, gameNotFound(roomID)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return fromGameSnapshot(doc)
}

func (t *firestoreTx) GetRoomByCode(ctx context.Context, code string) (*types.Room, error) {
	for _, room := range t.rooms {
		if room.Code == code {
			return room.Copy(), nil
		}
	}
	doc, err := t.tx.Get(t.client.Collection(roomCodesCollection).Doc(code))
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, codeNotFound(code)
		}
		return nil, fmt.Errorf("failed to get room code: %w", err)
	}
	claim := &firestoreRoomCode{}
	if err := doc.DataTo(claim); err != nil {
		return nil, fmt.Errorf("failed to decode room code %s: %v", code, err)
	}
	return t.GetRoom(ctx, claim.RoomID)
}

func (t *firestoreTx) PutRoom(ctx context.Context, room *types.Room) error {
	if _, buffered := t.rooms[room.ID]; !buffered {
		exists, read := t.exists[room.ID]
		if !read {
			if _, err := t.GetRoom(ctx, room.ID); err != nil && !IsNotFound(err) {
				return err
			}
			exists = t.exists[room.ID]
		}
		if !exists {
			doc, err := t.tx.Get(t.client.Collection(roomCodesCollection).Doc(room.Code))
			if err == nil && doc.Exists() {
				return &ErrDuplicateCode{Code: room.Code}
			}
			if err != nil && status.Code(err) != codes.NotFound {
				return fmt.Errorf("failed to get room code: %w", err)
			}
			t.created = append(t.created, room.ID)
		}
	}
	t.rooms[room.ID] = room.Copy()
	return nil
}

func (t *firestoreTx) PutGame(ctx context.Context, game *types.GameState) error {
	if _, ok := t.rooms[game.RoomID]; !ok {
		if _, err := t.GetRoom(ctx, game.RoomID); err != nil {
			return err
		}
	}
	t.games[game.RoomID] = game.Copy()
	return nil
}

func (t *firestoreTx) flush() error {
	for _, roomID := range t.created {
		room := t.rooms[roomID]
		// Create fails if another transaction claimed the code first
		ref := t.client.Collection(roomCodesCollection).Doc(room.Code)
		if err := t.tx.Create(ref, &firestoreRoomCode{RoomID: roomID}); err != nil {
			return fmt.Errorf("failed to claim room code: %w", err)
		}
	}
	for roomID, room := range t.rooms {
		ref := t.client.Collection(roomsCollection).Doc(roomID)
		if err := t.tx.Set(ref, toFirestoreRoom(room)); err != nil {
			return fmt.Errorf("failed to set room: %w", err)
		}
	}
	for roomID, game := range t.games {
		ref := t.client.Collection(gamesCollection).Doc(roomID)
		if err := t.tx.Set(ref, toFirestoreGame(game)); err != nil {
			return fmt.Errorf("failed to set game: %w", err)
		}
	}
	return nil
}
