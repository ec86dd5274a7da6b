package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sqliteMigrationsDir = "../../migrations/sqlite"

func TestSQLiteRepository(t *testing.T) {
	testRepository(t, func(t *testing.T) Repository {
		repo, err := NewSQLiteRepository(context.Background(), NewSQLiteRepositoryOptions{
			Path:          filepath.Join(t.TempDir(), "noughts.db"),
			MigrationsDir: sqliteMigrationsDir,
		})
		require.NoError(t, err)
		return repo
	})
}

func TestSQLiteRepository_missingMigrations(t *testing.T) {
	_, err := NewSQLiteRepository(context.Background(), NewSQLiteRepositoryOptions{
		Path:          filepath.Join(t.TempDir(), "noughts.db"),
		MigrationsDir: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
}
