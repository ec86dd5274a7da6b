package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/noughts/pkg/auth/handlers"
	"github.com/cbodonnell/noughts/pkg/log"
)

// AuthServer serves sign-in and token refresh for players
type AuthServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAuthServerOptions struct {
	Port    int
	Handler handlers.AuthHandler
	TLS     *TLSConfig
}

// NewAuthServer creates a new http.Server for handling authentication requests
func NewAuthServer(opts NewAuthServerOptions) *AuthServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", opts.Handler.HandleLogin())
	mux.HandleFunc("/refresh", opts.Handler.HandleRefresh())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &AuthServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Start starts the AuthServer
func (s *AuthServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("Auth server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("Auth server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Auth server closed")
			return
		}
		log.Error("Auth server error: %v", err)
	}
}

// Handler returns the routes of the AuthServer
func (s *AuthServer) Handler() http.Handler {
	return s.server.Handler
}

// Stop stops the AuthServer
func (s *AuthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
