package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/noughts/pkg/auth"
	authhandlers "github.com/cbodonnell/noughts/pkg/auth/handlers"
	authproviders "github.com/cbodonnell/noughts/pkg/auth/providers"
	"github.com/cbodonnell/noughts/pkg/config"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/version"
)

func main() {
	port := flag.Int("port", 8080, "port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting auth server version %s", version.Get())
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	handler, err := newAuthHandler(cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth handler: %v", err))
	}
	authServerOpts := auth.NewAuthServerOptions{
		Port:    *port,
		Handler: handler,
	}
	if cfg.TLSEnabled() {
		authServerOpts.TLS = &auth.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := auth.NewAuthServer(authServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

func newAuthHandler(cfg *config.Config) (authhandlers.AuthHandler, error) {
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		if cfg.FirebaseAPIKey == "" {
			return nil, fmt.Errorf("TTT_FIREBASE_API_KEY must be set in %s auth mode", cfg.AuthMode)
		}
		return authhandlers.NewFirebaseAuthHandler(authhandlers.NewFirebaseAuthHandlerOptions{
			APIKey: cfg.FirebaseAPIKey,
		}), nil
	default:
		provider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
			Secret:     []byte(cfg.JWTSecret),
			TTL:        cfg.JWTTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		})
		if err != nil {
			return nil, err
		}
		return authhandlers.NewLocalAuthHandler(provider), nil
	}
}
