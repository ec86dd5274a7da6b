package repositories

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const postgresMigrationsDir = "../../migrations/postgres"

func TestPostgresRepository(t *testing.T) {
	connString := os.Getenv("TTT_TEST_POSTGRES_URL")
	if connString == "" {
		t.Skip("TTT_TEST_POSTGRES_URL is not set")
	}
	testRepository(t, func(t *testing.T) Repository {
		repo, err := NewPostgresRepository(context.Background(), NewPostgresRepositoryOptions{
			ConnString:    connString,
			MigrationsDir: postgresMigrationsDir,
		})
		require.NoError(t, err)
		return repo
	})
}
