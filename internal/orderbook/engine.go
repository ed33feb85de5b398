// Package orderbook maintains order book state and multi-resolution snapshots
// from a block-ordered stream of deals and reserve changes.
//
// An Engine is single-writer: callers must apply events strictly in block order
// and must not share an Engine between goroutines.
package orderbook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/bucket"
	"orderbook-lab/internal/cache"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// AssetAggregator is the asset-level aggregator the engine cascades into.
type AssetAggregator interface {
	// GetAsset returns the asset, creating a default one if needed.
	GetAsset(ctx context.Context, block domain.Block, id string) (*domain.Asset, error)

	// UpdateVolume adds a traded amount to the asset.
	UpdateVolume(ctx context.Context, block domain.Block, id string, amount decimal.Decimal) error

	// UpdateLiquidityBooks overwrites the asset's reserves locked in order books.
	UpdateLiquidityBooks(ctx context.Context, block domain.Block, id string, amount decimal.Decimal) error
}

// NetworkAggregator is the network-level aggregator the engine cascades into.
type NetworkAggregator interface {
	UpdateVolumeStats(ctx context.Context, block domain.Block, volumeUSD decimal.Decimal) error
}

// AccountResolver maps reserve accounts to order books.
type AccountResolver interface {
	OrderBookOf(ctx context.Context, block domain.Block, account string) (domain.OrderBookKey, bool, error)
	AccountOf(ctx context.Context, block domain.Block, key domain.OrderBookKey) (string, bool, error)
}

// Options configures an Engine.
type Options struct {
	Resolutions    []domain.Resolution // active resolutions, all if empty
	FlushThreshold int64               // cache staleness threshold in blocks
	Logger         *slog.Logger
}

// Engine is the order book aggregator.
type Engine struct {
	books         *cache.Cache[*domain.OrderBook]
	snapshots     *cache.Cache[*domain.OrderBookSnapshot]
	bookStore     storage.OrderBookStore
	snapshotStore storage.SnapshotStore
	resolver      AccountResolver
	assets        AssetAggregator
	network       NetworkAggregator
	resolutions   []domain.Resolution
	logger        *slog.Logger
}

// NewEngine creates an engine over the given stores and peers.
func NewEngine(
	bookStore storage.OrderBookStore,
	snapshotStore storage.SnapshotStore,
	resolver AccountResolver,
	assets AssetAggregator,
	network NetworkAggregator,
	opts Options,
) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	resolutions := opts.Resolutions
	if len(resolutions) == 0 {
		resolutions = domain.AllResolutions
	}

	return &Engine{
		books: cache.New[*domain.OrderBook](bookStore, cache.Options{
			Name:      "order_books",
			Threshold: opts.FlushThreshold,
			Logger:    opts.Logger,
		}),
		snapshots: cache.New[*domain.OrderBookSnapshot](snapshotStore, cache.Options{
			Name:      "order_book_snapshots",
			Threshold: opts.FlushThreshold,
			Logger:    opts.Logger,
		}),
		bookStore:     bookStore,
		snapshotStore: snapshotStore,
		resolver:      resolver,
		assets:        assets,
		network:       network,
		resolutions:   append([]domain.Resolution(nil), resolutions...),
		logger:        opts.Logger.With("component", "orderbook"),
	}
}

// Resolutions returns the active resolutions.
func (e *Engine) Resolutions() []domain.Resolution {
	return append([]domain.Resolution(nil), e.resolutions...)
}

// GetOrderBook returns the order book for key, creating it on first reference.
func (e *Engine) GetOrderBook(ctx context.Context, block domain.Block, key domain.OrderBookKey) (*domain.OrderBook, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	return e.books.Get(ctx, block, key.String(), func(ctx context.Context) (*domain.OrderBook, error) {
		// Warm the resolver so reserve events for this book resolve.
		if _, _, err := e.resolver.AccountOf(ctx, block, key); err != nil {
			return nil, err
		}
		if _, err := e.assets.GetAsset(ctx, block, key.BaseAssetID); err != nil {
			return nil, err
		}
		if _, err := e.assets.GetAsset(ctx, block, key.QuoteAssetID); err != nil {
			return nil, err
		}

		e.logger.Debug("order book created", "id", key.String(), "block", block.Height)
		return domain.NewOrderBook(key, block.Height), nil
	})
}

// GetOrderBookByID parses id and returns its order book.
func (e *Engine) GetOrderBookByID(ctx context.Context, block domain.Block, id string) (*domain.OrderBook, error) {
	key, err := domain.ParseOrderBookID(id)
	if err != nil {
		return nil, err
	}
	return e.GetOrderBook(ctx, block, key)
}

// GetOrderBookByAccountID returns the order book whose reserves are held by
// account. The boolean is false when account backs no order book.
func (e *Engine) GetOrderBookByAccountID(ctx context.Context, block domain.Block, account string) (*domain.OrderBook, bool, error) {
	key, ok, err := e.resolver.OrderBookOf(ctx, block, account)
	if err != nil || !ok {
		return nil, false, err
	}
	book, err := e.GetOrderBook(ctx, block, key)
	if err != nil {
		return nil, false, err
	}
	return book, true, nil
}

// UpdateStatus records the chain trading status of an order book.
func (e *Engine) UpdateStatus(ctx context.Context, block domain.Block, key domain.OrderBookKey, status domain.OrderBookStatus) error {
	book, err := e.GetOrderBook(ctx, block, key)
	if err != nil {
		return err
	}
	book.Status = status
	book.UpdatedAtBlock = block.Height
	return e.books.Save(ctx, block, book, false)
}

// UpdateReserves overwrites one reserve leg of the order book backed by
// account. It reports false when the account or asset is not part of any
// order book.
func (e *Engine) UpdateReserves(ctx context.Context, block domain.Block, account, assetID string, balance decimal.Decimal) (bool, error) {
	if balance.IsNegative() {
		return false, fmt.Errorf("reserves of %s: negative balance %s: %w", account, balance, storage.ErrInvalidInput)
	}

	book, ok, err := e.GetOrderBookByAccountID(ctx, block, account)
	if err != nil || !ok {
		return false, err
	}

	switch assetID {
	case book.BaseAssetID:
		book.BaseAssetReserves = balance
	case book.QuoteAssetID:
		book.QuoteAssetReserves = balance
	default:
		return false, nil
	}
	book.UpdatedAtBlock = block.Height

	if err := e.books.Save(ctx, block, book, false); err != nil {
		return false, err
	}
	observability.RecordReserveUpdate()
	return true, nil
}

// LoadOrderBooks caches every stored order book so that liquidity valuation
// and daily statistics cover books created before a restart.
func (e *Engine) LoadOrderBooks(ctx context.Context, block domain.Block) (int, error) {
	books, err := e.bookStore.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load order books: %w", err)
	}
	n := e.books.Warm(block, books)
	e.logger.Info("order books loaded", "stored", len(books), "cached", n, "block", block.Height)
	return n, nil
}

// OrderBooks returns the cached order books ordered by id.
func (e *Engine) OrderBooks() []*domain.OrderBook {
	return e.books.Values()
}

// PeekSnapshot returns a cached snapshot without loading or creating it.
func (e *Engine) PeekSnapshot(key domain.SnapshotKey) (*domain.OrderBookSnapshot, bool) {
	return e.snapshots.Peek(key.String())
}

// Sync flushes every dirty entity and evicts snapshots whose bucket has closed
// as of block. Order books stay cached.
func (e *Engine) Sync(ctx context.Context, block domain.Block) error {
	start := time.Now()

	if err := e.flush(ctx, block); err != nil {
		return err
	}

	now := block.Unix()
	evicted := e.snapshots.Evict(func(s *domain.OrderBookSnapshot) bool {
		return bucket.Closed(s.Timestamp, s.Resolution, now)
	})

	observability.RecordSync(time.Since(start).Seconds())
	e.logger.Debug("synced",
		"block", block.Height,
		"order_books", e.books.Len(),
		"snapshots", e.snapshots.Len(),
		"evicted", evicted,
	)
	return nil
}

// Flush writes every dirty entity without evicting anything.
func (e *Engine) Flush(ctx context.Context, block domain.Block) error {
	return e.flush(ctx, block)
}

// Reset drops all cached state. The stores are untouched.
func (e *Engine) Reset() {
	e.books.Reset()
	e.snapshots.Reset()
	if r, ok := e.resolver.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func (e *Engine) flush(ctx context.Context, block domain.Block) error {
	// Books first: snapshot rows may reference them.
	if err := e.books.Sync(ctx, block); err != nil {
		return err
	}
	return e.snapshots.Sync(ctx, block)
}

// snapshot fetches or creates the current bucket of book at resolution r.
func (e *Engine) snapshot(ctx context.Context, block domain.Block, book *domain.OrderBook, r domain.Resolution) (*domain.OrderBookSnapshot, error) {
	index, start := bucket.Of(block.Unix(), r)
	key := domain.SnapshotKey{OrderBook: book.Key(), Resolution: r, Index: index}

	return e.snapshots.Get(ctx, block, key.String(), func(context.Context) (*domain.OrderBookSnapshot, error) {
		seed := decimal.Zero
		if book.Price.Valid {
			seed = book.Price.Decimal
		}
		observability.RecordSnapshotCreated(string(r))
		return domain.NewSnapshot(key, start, seed, block.Height), nil
	})
}
