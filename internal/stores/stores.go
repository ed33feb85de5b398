// Package stores opens the storage backends selected in the configuration.
package stores

import (
	"context"
	"fmt"
	"log/slog"

	"orderbook-lab/internal/config"
	"orderbook-lab/internal/indexer"
	"orderbook-lab/internal/storage"
	chstore "orderbook-lab/internal/storage/clickhouse"
	"orderbook-lab/internal/storage/memory"
	"orderbook-lab/internal/storage/migrations"
	pgstore "orderbook-lab/internal/storage/postgres"
	redisstore "orderbook-lab/internal/storage/redis"
)

// backends opens each database at most once, on first use.
type backends struct {
	cfg    *config.Config
	logger *slog.Logger

	pool  *pgstore.Pool
	ch    *chstore.Conn
	redis *redisstore.Client
}

func (b *backends) postgres(ctx context.Context) (*pgstore.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	pool, err := pgstore.NewPool(ctx, b.cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if b.cfg.Postgres.Migrate {
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		b.logger.Info("postgres migrations applied", "files", applied)
	}
	b.pool = pool
	return pool, nil
}

func (b *backends) clickhouse(ctx context.Context) (*chstore.Conn, error) {
	if b.ch != nil {
		return b.ch, nil
	}
	var (
		conn *chstore.Conn
		err  error
	)
	if b.cfg.ClickHouse.Migrate {
		conn, err = migrations.RunClickhouseMigrations(ctx, b.cfg.ClickHouse.DSN)
		if err == nil {
			b.logger.Info("clickhouse migrations applied")
		}
	} else {
		conn, err = chstore.NewConn(ctx, b.cfg.ClickHouse.DSN)
	}
	if err != nil {
		return nil, err
	}
	b.ch = conn
	return conn, nil
}

func (b *backends) redisClient(ctx context.Context) (*redisstore.Client, error) {
	if b.redis != nil {
		return b.redis, nil
	}
	client, err := redisstore.NewClient(ctx, redisstore.Options{
		Addr:      b.cfg.Redis.Addr,
		Password:  b.cfg.Redis.Password,
		DB:        b.cfg.Redis.DB,
		KeyPrefix: b.cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	b.redis = client
	return client, nil
}

func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.ch != nil {
		b.ch.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
}

// Set is the opened stores plus the handle that releases their connections.
type Set struct {
	indexer.Stores
	Progress storage.ProgressStore

	backends *backends
}

// Close releases every opened connection.
func (s *Set) Close() { s.backends.Close() }

// Open builds the configured store for each entity. Databases are connected
// once and shared between entities; migrations run when enabled.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Set, error) {
	b := &backends{cfg: cfg, logger: logger}
	set := &Set{backends: b}
	fail := func(what string, err error) (*Set, error) {
		b.Close()
		return nil, fmt.Errorf("%s store: %w", what, err)
	}

	switch cfg.Storage.OrderBooks {
	case config.BackendPostgres:
		pool, err := b.postgres(ctx)
		if err != nil {
			return fail("order book", err)
		}
		set.OrderBooks = pgstore.NewOrderBookStore(pool)
	case config.BackendClickHouse:
		conn, err := b.clickhouse(ctx)
		if err != nil {
			return fail("order book", err)
		}
		set.OrderBooks = chstore.NewOrderBookStore(conn)
	case config.BackendRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return fail("order book", err)
		}
		set.OrderBooks = redisstore.NewOrderBookStore(client)
	default:
		set.OrderBooks = memory.NewOrderBookStore()
	}

	switch cfg.Storage.Snapshots {
	case config.BackendPostgres:
		pool, err := b.postgres(ctx)
		if err != nil {
			return fail("snapshot", err)
		}
		set.Snapshots = pgstore.NewSnapshotStore(pool)
	case config.BackendClickHouse:
		conn, err := b.clickhouse(ctx)
		if err != nil {
			return fail("snapshot", err)
		}
		set.Snapshots = chstore.NewSnapshotStore(conn)
	case config.BackendRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return fail("snapshot", err)
		}
		set.Snapshots = redisstore.NewSnapshotStore(client)
	default:
		set.Snapshots = memory.NewSnapshotStore()
	}

	switch cfg.Storage.Progress {
	case config.BackendPostgres:
		pool, err := b.postgres(ctx)
		if err != nil {
			return fail("progress", err)
		}
		set.Progress = pgstore.NewProgressStore(pool)
	case config.BackendRedis:
		client, err := b.redisClient(ctx)
		if err != nil {
			return fail("progress", err)
		}
		set.Progress = redisstore.NewProgressStore(client)
	default:
		set.Progress = memory.NewProgressStore()
	}

	logger.Info("stores ready",
		"order_books", cfg.Storage.OrderBooks,
		"snapshots", cfg.Storage.Snapshots,
		"progress", cfg.Storage.Progress,
	)
	return set, nil
}
