package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/noughts/pkg/api"
	authproviders "github.com/cbodonnell/noughts/pkg/auth/providers"
	"github.com/cbodonnell/noughts/pkg/config"
	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/repositories"
	"github.com/cbodonnell/noughts/pkg/version"
)

func main() {
	port := flag.Int("port", 9090, "port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	log.Info("Starting server version %s", version.Get())
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	repository, err := repositories.NewRepository(ctx, repositories.NewRepositoryOptions{
		URL:                     cfg.DatabaseURL,
		SQLiteMigrationsDir:     cfg.SQLiteMigrationsDir,
		PostgresMigrationsDir:   cfg.PostgresMigrationsDir,
		FirebaseCredentialsFile: cfg.FirebaseCredentials,
		MaxAttempts:             cfg.TxMaxAttempts,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to create repository: %v", err))
	}
	defer repository.Close(ctx)

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		panic(fmt.Sprintf("Failed to create auth provider: %v", err))
	}

	apiServerOpts := api.NewAPIServerOptions{
		Port:         *port,
		AuthProvider: authProvider,
		SessionManager: game.NewSessionManager(game.NewSessionManagerOptions{
			Repository: repository,
		}),
		AllowOrigin: cfg.AllowOrigin,
	}
	if cfg.TLSEnabled() {
		apiServerOpts.TLS = &api.TLSConfig{
			CertFile: cfg.TLSCertFile,
			KeyFile:  cfg.TLSKeyFile,
		}
	}
	server := api.NewAPIServer(apiServerOpts)
	go server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	log.Info("Shutting down")

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil {
		log.Error("Failed to stop server: %v", err)
	}
}

func newAuthProvider(ctx context.Context, cfg *config.Config) (authproviders.AuthProvider, error) {
	switch cfg.AuthMode {
	case config.AuthModeFirebase:
		return authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentials,
		})
	default:
		return authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{
			Secret:     []byte(cfg.JWTSecret),
			TTL:        cfg.JWTTTL,
			RefreshTTL: cfg.JWTRefreshTTL,
		})
	}
}
