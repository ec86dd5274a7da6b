package repositories

import (
	"context"
	"fmt"
	"net/url"
)

type NewRepositoryOptions struct {
	// URL selects the backend by scheme: memory://, sqlite://<path>,
	// postgres://..., postgresql://..., redis://... or firestore://<project>
	URL                     string
	SQLiteMigrationsDir     string
	PostgresMigrationsDir   string
	FirebaseCredentialsFile string
	MaxAttempts             int
}

// NewRepository creates the backend named by the URL scheme.
// The caller is responsible for calling Close() on the repository.
func NewRepository(ctx context.Context, opts NewRepositoryOptions) (Repository, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %v", err)
	}

	switch u.Scheme {
	case "memory":
		return NewInMemoryRepository(), nil
	case "sqlite":
		path := u.Host + u.Path
		if path == "" {
			return nil, fmt.Errorf("sqlite url %q has no path", opts.URL)
		}
		return NewSQLiteRepository(ctx, NewSQLiteRepositoryOptions{
			Path:          path,
			MigrationsDir: opts.SQLiteMigrationsDir,
			MaxAttempts:   opts.MaxAttempts,
		})
	case "postgres", "postgresql":
		return NewPostgresRepository(ctx, NewPostgresRepositoryOptions{
			ConnString:    opts.URL,
			MigrationsDir: opts.PostgresMigrationsDir,
			MaxAttempts:   opts.MaxAttempts,
		})
	case "redis", "rediss":
		return NewRedisRepository(ctx, NewRedisRepositoryOptions{
			URL:         opts.URL,
			MaxAttempts: opts.MaxAttempts,
		})
	case "firestore":
		if u.Host == "" {
			return nil, fmt.Errorf("firestore url %q has no project", opts.URL)
		}
		return NewFirestoreRepository(ctx, NewFirestoreRepositoryOptions{
			ProjectID:       u.Host,
			CredentialsFile: opts.FirebaseCredentialsFile,
			MaxAttempts:     opts.MaxAttempts,
		})
	default:
		return nil, fmt.Errorf("unknown database type %s", u.Scheme)
	}
}
