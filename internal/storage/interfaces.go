package storage

import (
	"context"

	"orderbook-lab/internal/domain"
)

// OrderBookStore provides access to order_books storage.
type OrderBookStore interface {
	// Get retrieves an order book by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.OrderBook, error)

	// SaveBatch upserts order books by id.
	SaveBatch(ctx context.Context, books []*domain.OrderBook) error

	// All returns every stored order book ordered by id.
	All(ctx context.Context) ([]*domain.OrderBook, error)
}

// SnapshotStore provides access to order_book_snapshots storage.
type SnapshotStore interface {
	// Get retrieves a snapshot by id. Returns ErrNotFound if not exists.
	Get(ctx context.Context, id string) (*domain.OrderBookSnapshot, error)

	// SaveBatch upserts snapshots by id.
	SaveBatch(ctx context.Context, snapshots []*domain.OrderBookSnapshot) error

	// All returns every stored snapshot ordered by id.
	All(ctx context.Context) ([]*domain.OrderBookSnapshot, error)
}

// SnapshotRangeReader is implemented by snapshot stores that can fetch a run
// of buckets of one order book in a single read.
type SnapshotRangeReader interface {
	// GetRange returns the snapshots of orderBookID at resolution res with
	// bucket start in [from, to], ordered by timestamp.
	GetRange(ctx context.Context, orderBookID string, res domain.Resolution, from, to int64) ([]*domain.OrderBookSnapshot, error)
}
