package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cbodonnell/noughts/pkg/api/handlers"
	"github.com/cbodonnell/noughts/pkg/api/middleware"
	authproviders "github.com/cbodonnell/noughts/pkg/auth/providers"
	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/gorilla/mux"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port           int
	TLS            *TLSConfig
	AuthProvider   authproviders.AuthProvider
	SessionManager *game.SessionManager
	// AllowOrigin is the CORS origin, "*" when empty
	AllowOrigin string
}

// NewAPIServer creates a new http.Server for handling API requests
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	allowOrigin := opts.AllowOrigin
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	sm := opts.SessionManager

	r := mux.NewRouter()
	r.HandleFunc("/rooms", handlers.HandleCreateRoom(sm)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms", handlers.HandleFindRoom(sm)).Methods(http.MethodGet)
	r.HandleFunc("/rooms/join", handlers.HandleJoinRoom(sm)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomID}", handlers.HandleGetRoom(sm)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{roomID}/game", handlers.HandleGetGame(sm)).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/rooms/{roomID}/moves", handlers.HandleSubmitMove(sm)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomID}/reset", handlers.HandleResetGame(sm)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/rooms/{roomID}/watch", handlers.HandleWatchGame(sm, originPatterns(allowOrigin))).Methods(http.MethodGet)

	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(middleware.NewCORSMiddleware(allowOrigin))
	r.Use(middleware.NewAuthMiddleware(opts.AuthProvider))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// originPatterns turns the CORS origin into the host patterns accepted for
// WebSocket upgrades
func originPatterns(allowOrigin string) []string {
	if allowOrigin == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(allowOrigin)
	if err != nil || u.Host == "" {
		return []string{allowOrigin}
	}
	return []string{u.Host}
}

// Handler returns the routes of the APIServer
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
