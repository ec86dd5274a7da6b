package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/noughts/pkg/log"
)

// AuthHandler is an interface for handling authentication requests
type AuthHandler interface {
	// HandleLogin signs a user in. Without credentials the user is signed in
	// anonymously, optionally with a display name from the "name" form value.
	HandleLogin() func(w http.ResponseWriter, r *http.Request)
	// HandleRefresh exchanges the "refreshToken" form value for a new ID token.
	HandleRefresh() func(w http.ResponseWriter, r *http.Request)
}

// TokenResponseBody is the response body of every successful sign-in
type TokenResponseBody struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresIn is the ID token lifetime in seconds
	ExpiresIn string `json:"expiresIn"`
	LocalID   string `json:"localId"`
}

// maxNameLength bounds display names
const maxNameLength = 64

func writeTokenResponse(w http.ResponseWriter, body *TokenResponseBody) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("error encoding response: %v", err)
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}
