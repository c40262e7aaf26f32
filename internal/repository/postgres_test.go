package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("wallet_ledger"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("password"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db, newTestLogger()))
	// A second run is a no-op.
	require.NoError(t, Migrate(db, newTestLogger()))
	return db
}

func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping postgres store test in short mode")
	}

	db := startPostgres(t)
	store := NewStore(db, newTestLogger())
	require.NoError(t, store.Ping(context.Background()))

	runStoreContract(t, store)
}
