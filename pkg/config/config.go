package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// AuthMode selects who issues player tokens
type AuthMode string

const (
	// AuthModeLocal issues HS256 tokens for anonymous players
	AuthModeLocal AuthMode = "local"
	// AuthModeFirebase delegates sign-in to Firebase Auth
	AuthModeFirebase AuthMode = "firebase"
)

// Config holds the settings read from TTT_* environment variables.
type Config struct {
	DatabaseURL           string        `env:"TTT_DATABASE_URL"            envDefault:"memory://"`
	SQLiteMigrationsDir   string        `env:"TTT_SQLITE_MIGRATIONS"       envDefault:"migrations/sqlite"`
	PostgresMigrationsDir string        `env:"TTT_POSTGRES_MIGRATIONS"     envDefault:"migrations/postgres"`
	TxMaxAttempts         int           `env:"TTT_TX_MAX_ATTEMPTS"         envDefault:"10"`
	AuthMode              AuthMode      `env:"TTT_AUTH_MODE"               envDefault:"local"`
	JWTSecret             string        `env:"TTT_JWT_SECRET"`
	JWTTTL                time.Duration `env:"TTT_JWT_TTL"                 envDefault:"1h"`
	JWTRefreshTTL         time.Duration `env:"TTT_JWT_REFRESH_TTL"         envDefault:"720h"`
	FirebaseProjectID     string        `env:"TTT_FIREBASE_PROJECT_ID"`
	FirebaseCredentials   string        `env:"TTT_FIREBASE_CREDENTIALS_FILE"`
	FirebaseAPIKey        string        `env:"TTT_FIREBASE_API_KEY"`
	TLSCertFile           string        `env:"TTT_TLS_CERT_FILE"`
	TLSKeyFile            string        `env:"TTT_TLS_KEY_FILE"`
	AllowOrigin           string        `env:"TTT_ALLOW_ORIGIN"            envDefault:"*"`
}

// Load parses the environment and checks the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeLocal:
		if c.JWTSecret == "" {
			return fmt.Errorf("TTT_JWT_SECRET is required in %s auth mode", c.AuthMode)
		}
		if c.JWTTTL <= 0 {
			return fmt.Errorf("TTT_JWT_TTL must be positive")
		}
	case AuthModeFirebase:
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	if c.TxMaxAttempts < 1 {
		return fmt.Errorf("TTT_TX_MAX_ATTEMPTS must be at least 1")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TTT_TLS_CERT_FILE and TTT_TLS_KEY_FILE must be set together")
	}
	return nil
}

// TLSEnabled reports whether servers should listen with TLS
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != ""
}
