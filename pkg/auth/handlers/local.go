package handlers

import (
	"net/http"
	"strconv"

	"github.com/cbodonnell/noughts/pkg/auth/providers"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/google/uuid"
)

var _ AuthHandler = &LocalAuthHandler{}

// LocalAuthHandler signs users in anonymously with locally issued tokens.
type LocalAuthHandler struct {
	provider *providers.JWTAuthProvider
}

func NewLocalAuthHandler(provider *providers.JWTAuthProvider) *LocalAuthHandler {
	return &LocalAuthHandler{
		provider: provider,
	}
}

// HandleLogin creates a new anonymous user.
func (h *LocalAuthHandler) HandleLogin() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := r.FormValue("name")
		if len(name) > maxNameLength {
			http.Error(w, "Name is too long", http.StatusBadRequest)
			return
		}

		uid := uuid.NewString()
		h.issue(w, uid, name)
		log.Debug("Signed in anonymous user %s", uid)
	}
}

// HandleRefresh issues a new ID token for the owner of a refresh token.
func (h *LocalAuthHandler) HandleRefresh() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		refreshToken := r.FormValue("refreshToken")
		if refreshToken == "" {
			http.Error(w, "Missing refresh token", http.StatusBadRequest)
			return
		}

		claims, err := h.provider.RefreshToken(refreshToken)
		if err != nil {
			log.Debug("Rejected refresh token: %v", err)
			http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
			return
		}
		h.issue(w, claims.UID, claims.Name)
	}
}

func (h *LocalAuthHandler) issue(w http.ResponseWriter, uid string, name string) {
	idToken, err := h.provider.IssueToken(uid, name)
	if err != nil {
		log.Error("error issuing token: %v", err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.provider.IssueRefreshToken(uid, name)
	if err != nil {
		log.Error("error issuing refresh token: %v", err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	writeTokenResponse(w, &TokenResponseBody{
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    strconv.Itoa(int(h.provider.TTL().Seconds())),
		LocalID:      uid,
	})
}
