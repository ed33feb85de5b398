package postgres

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"orderbook-lab/internal/domain"
)

// setupTestDB creates a PostgreSQL container for testing and applies migrations.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations executes ../migrations/postgres/*.sql in name order.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	files, err := fs.Glob(os.DirFS(filepath.Join("..", "migrations")), "postgres/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no postgres migrations found")
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join("..", "migrations", file))
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", file)
	}
}

// newTestBook returns an order book with every field populated.
func newTestBook(dex int, base, quote string) *domain.OrderBook {
	ob := domain.NewOrderBook(domain.OrderBookKey{DexID: dex, BaseAssetID: base, QuoteAssetID: quote}, 100)
	ob.BaseAssetReserves = decimal.RequireFromString("1000000000000000000000")
	ob.QuoteAssetReserves = decimal.RequireFromString("2500000000000000000")
	ob.Price = decimal.NewNullDecimal(decimal.RequireFromString("0.000123456789012345"))
	ob.PushDeal(domain.Deal{
		OrderID:   7,
		Timestamp: 1700000000000,
		IsBuy:     true,
		Amount:    decimal.RequireFromString("12.5"),
		Price:     decimal.RequireFromString("0.000123456789012345"),
	})
	ob.PriceChangeDay = decimal.RequireFromString("-3.25")
	ob.VolumeDayUSD = decimal.RequireFromString("1234.5678")
	return ob
}
