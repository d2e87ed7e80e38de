package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/db"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/migrations"
	"github.com/stretchr/testify/require"
)

var (
	once           sync.Once
	sharedDB       *db.DB
	dbErr          error
	migrationsDone bool
	mu             sync.Mutex
)

// Stable advisory lock so only one package resets/runs migrations at a time.
const advisoryLockID int64 = 0x74616E64656D

func getConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		URL:             os.Getenv("TEST_DATABASE_URL"),
		Host:            envOr("TEST_DB_HOST", "localhost"),
		Port:            5432,
		User:            envOr("TEST_DB_USER", "postgres"),
		Password:        envOr("TEST_DB_PASSWORD", "postgres"),
		Database:        envOr("TEST_DB_NAME", "tandem_test"),
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

// GetDB returns a migrated database with empty tables, or skips the test
// when Postgres is not reachable.
func GetDB(t *testing.T) *db.DB {
	t.Helper()

	mu.Lock()
	defer mu.Unlock()

	once.Do(func() {
		sharedDB, dbErr = db.New(getConfig())
	})
	if dbErr != nil {
		t.Skipf("testutil: Postgres not available (%v)", dbErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	conn, err := sharedDB.Pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID)
	require.NoError(t, err)
	defer func() { _, _ = conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID) }()

	if !migrationsDone {
		resetPublicSchema(t, ctx, sharedDB)

		err = migrations.Run(ctx, sharedDB.Pool)
		require.NoError(t, err, "Failed to run migrations")
		migrationsDone = true
	}

	_, err = sharedDB.Pool.Exec(ctx, "TRUNCATE TABLE profiles")
	require.NoError(t, err)

	return sharedDB
}

func resetPublicSchema(t *testing.T, ctx context.Context, database *db.DB) {
	t.Helper()

	_, err := database.Pool.Exec(ctx, `DROP SCHEMA IF EXISTS public CASCADE`)
	require.NoError(t, err)

	_, err = database.Pool.Exec(ctx, `CREATE SCHEMA public`)
	require.NoError(t, err)

	_, _ = database.Pool.Exec(ctx, `GRANT ALL ON SCHEMA public TO public`)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
