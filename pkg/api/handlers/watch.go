package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/game/types"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/messages"
	"github.com/gorilla/mux"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

// HandleWatchGame upgrades to a WebSocket that receives the game of a room
// every time it changes, starting with its current state. Text frames carry
// JSON envelopes; with ?format=binary each frame is a compressed snapshot.
func HandleWatchGame(sm *game.SessionManager, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		roomID := mux.Vars(r)["roomID"]
		binary := r.URL.Query().Get("format") == "binary"

		// unknown rooms are rejected before the upgrade
		if _, err := sm.GetRoom(r.Context(), roomID); err != nil {
			writeError(w, err, "Failed to get room")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		defer conn.CloseNow()

		// the watcher never sends; reading only detects the close
		ctx := conn.CloseRead(r.Context())
		updates, err := sm.ObserveGame(ctx, roomID)
		if err != nil {
			log.Error("Failed to observe room %s: %v", roomID, err)
			writeErrorMessage(ctx, conn, "failed to observe game")
			conn.Close(websocket.StatusInternalError, "failed to observe game")
			return
		}
		log.Debug("User %s is watching room %s", uid, roomID)

		// each update only signals a change; the room and game sent are read
		// together so they always belong to the same commit
		var sentAt int64
		for range updates {
			view, err := sm.GetView(ctx, roomID, uid)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("Failed to get view of room %s: %v", roomID, err)
				writeErrorMessage(ctx, conn, "failed to get game")
				conn.Close(websocket.StatusInternalError, "failed to get game")
				return
			}
			if view.Game.UpdatedAt <= sentAt {
				continue
			}
			sentAt = view.Game.UpdatedAt
			if binary {
				err = writeSnapshot(ctx, conn, view.Room, view.Game)
			} else {
				err = writeViewMessage(ctx, conn, view)
			}
			if err != nil {
				log.Debug("Stopped watching room %s: %v", roomID, err)
				return
			}
		}
		log.Debug("User %s stopped watching room %s", uid, roomID)
		conn.Close(websocket.StatusNormalClosure, "")
	}
}

func writeViewMessage(ctx context.Context, conn *websocket.Conn, view *game.View) error {
	msg, err := messages.NewMessage(messages.MessageTypeGame, view)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func writeErrorMessage(ctx context.Context, conn *websocket.Conn, text string) {
	msg, err := messages.NewMessage(messages.MessageTypeError, &messages.ErrorPayload{Error: text})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		log.Debug("Failed to send error message: %v", err)
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, room *types.Room, g *types.GameState) error {
	b, err := messages.SerializeGameSnapshot(messages.NewGameSnapshot(room, g))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageBinary, b)
}
