package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrationsAgainstPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("ddx"),
		postgres.WithUsername("ddx"),
		postgres.WithPassword("ddx"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://ddx:ddx@%s:%s/ddx?sslmode=disable", host, port.Port())

	runner, err := NewMigrationRunner(dsn, quietLogger())
	require.NoError(t, err)
	defer runner.Close()

	require.NoError(t, runner.Up())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, runner.Up())

	store, err := NewPostgresStoreFromURL(dsn)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, sampleRecord("run-1", at)))
	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Prostate Cancer", got.Excluded[0].CanonicalName)
	assert.True(t, got.CreatedAt.Equal(at))
	require.NoError(t, store.Close())

	require.NoError(t, runner.Down())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
