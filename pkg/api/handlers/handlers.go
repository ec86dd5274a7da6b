package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cbodonnell/noughts/pkg/api/middleware"
	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/repositories"
	"github.com/gorilla/mux"
)

// errorStatuses maps session errors to HTTP statuses. The error text is the
// response body.
var errorStatuses = []struct {
	err    error
	status int
}{
	{game.ErrRoomNotFound, http.StatusNotFound},
	{game.ErrNotParticipant, http.StatusForbidden},
	{game.ErrRoomNotJoinable, http.StatusConflict},
	{game.ErrRoomFull, http.StatusConflict},
	{game.ErrAlreadyJoined, http.StatusConflict},
	{game.ErrGameFinished, http.StatusConflict},
	{game.ErrNotYourTurn, http.StatusConflict},
	{game.ErrCellOccupied, http.StatusConflict},
	{game.ErrNotFinished, http.StatusConflict},
	{game.ErrInvalidCell, http.StatusUnprocessableEntity},
	{game.ErrInvalidUser, http.StatusBadRequest},
	{game.ErrCodeExhausted, http.StatusServiceUnavailable},
}

// ErrorStatus returns the HTTP status for an error of the session manager
func ErrorStatus(err error) int {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	if repositories.IsTransient(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error, msg string) {
	status := ErrorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		log.Error("%s: %v", msg, err)
		http.Error(w, msg, status)
	case http.StatusServiceUnavailable:
		log.Warn("%s: %v", msg, err)
		http.Error(w, "Service busy, try again", status)
	default:
		http.Error(w, err.Error(), status)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

// userID returns the verified caller, writing an error if there is none
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		log.Error("failed to get user from context")
		http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
		return "", false
	}
	return claims.UID, true
}

func HandleCreateRoom(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		room, err := sm.CreateRoom(r.Context(), uid)
		if err != nil {
			writeError(w, err, "Failed to create room")
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

func HandleJoinRoom(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "Missing room code", http.StatusBadRequest)
			return
		}
		room, err := sm.JoinRoom(r.Context(), code, uid)
		if err != nil {
			writeError(w, err, "Failed to join room")
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func HandleFindRoom(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "Missing room code", http.StatusBadRequest)
			return
		}
		room, err := sm.GetRoomByCode(r.Context(), code)
		if err != nil {
			writeError(w, err, "Failed to find room")
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func HandleGetRoom(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := sm.GetRoom(r.Context(), mux.Vars(r)["roomID"])
		if err != nil {
			writeError(w, err, "Failed to get room")
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func HandleGetGame(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		view, err := sm.GetView(r.Context(), mux.Vars(r)["roomID"], uid)
		if err != nil {
			writeError(w, err, "Failed to get game")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleSubmitMove answers with the view of the game the move committed
func HandleSubmitMove(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		cell, err := strconv.Atoi(r.FormValue("cell"))
		if err != nil {
			http.Error(w, "Cell must be a number", http.StatusBadRequest)
			return
		}
		view, err := sm.SubmitMoveView(r.Context(), mux.Vars(r)["roomID"], uid, cell)
		if err != nil {
			writeError(w, err, "Failed to submit move")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleResetGame lets either player start a rematch
func HandleResetGame(sm *game.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(w, r)
		if !ok {
			return
		}
		view, err := sm.ResetGameView(r.Context(), mux.Vars(r)["roomID"], uid)
		if err != nil {
			writeError(w, err, "Failed to reset game")
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
