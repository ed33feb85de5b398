package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// OrderBookStore implements storage.OrderBookStore using PostgreSQL.
type OrderBookStore struct {
	pool *Pool
}

// NewOrderBookStore creates a new OrderBookStore.
func NewOrderBookStore(pool *Pool) *OrderBookStore {
	return &OrderBookStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OrderBookStore = (*OrderBookStore)(nil)

const selectOrderBook = `
	SELECT id, dex_id, base_asset_id, quote_asset_id, status,
	       base_asset_reserves::text, quote_asset_reserves::text, price::text,
	       last_deals, price_change_day::text, volume_day_usd::text, updated_at_block
	FROM order_books
`

const upsertOrderBook = `
	INSERT INTO order_books (
		id, dex_id, base_asset_id, quote_asset_id, status,
		base_asset_reserves, quote_asset_reserves, price,
		last_deals, price_change_day, volume_day_usd, updated_at_block
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		base_asset_reserves = EXCLUDED.base_asset_reserves,
		quote_asset_reserves = EXCLUDED.quote_asset_reserves,
		price = EXCLUDED.price,
		last_deals = EXCLUDED.last_deals,
		price_change_day = EXCLUDED.price_change_day,
		volume_day_usd = EXCLUDED.volume_day_usd,
		updated_at_block = EXCLUDED.updated_at_block
`

// Get retrieves an order book by id. Returns ErrNotFound if not exists.
func (s *OrderBookStore) Get(ctx context.Context, id string) (*domain.OrderBook, error) {
	row := s.pool.QueryRow(ctx, selectOrderBook+` WHERE id = $1`, id)
	ob, err := scanOrderBook(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get order book: %w", err)
	}
	return ob, nil
}

// SaveBatch upserts order books in one transaction.
func (s *OrderBookStore) SaveBatch(ctx context.Context, books []*domain.OrderBook) error {
	if len(books) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ob := range books {
		if ob == nil || ob.ID == "" {
			return storage.ErrInvalidInput
		}
		deals, err := json.Marshal(nonNilDeals(ob.LastDeals))
		if err != nil {
			return fmt.Errorf("encode last deals of %s: %w", ob.ID, err)
		}
		batch.Queue(upsertOrderBook,
			ob.ID,
			ob.DexID,
			ob.BaseAssetID,
			ob.QuoteAssetID,
			string(ob.Status),
			ob.BaseAssetReserves.String(),
			ob.QuoteAssetReserves.String(),
			nullDecimalArg(ob.Price),
			deals,
			ob.PriceChangeDay.String(),
			ob.VolumeDayUSD.String(),
			ob.UpdatedAtBlock,
		)
	}

	return sendBatch(ctx, s.pool, batch, "order_books")
}

// All returns every order book ordered by id.
func (s *OrderBookStore) All(ctx context.Context) ([]*domain.OrderBook, error) {
	rows, err := s.pool.Query(ctx, selectOrderBook+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list order books: %w", err)
	}
	defer rows.Close()

	var books []*domain.OrderBook
	for rows.Next() {
		ob, err := scanOrderBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order book: %w", err)
		}
		books = append(books, ob)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order books: %w", err)
	}
	return books, nil
}

// scanOrderBook scans a single row into OrderBook.
func scanOrderBook(row pgx.Row) (*domain.OrderBook, error) {
	var (
		ob                     domain.OrderBook
		status                 string
		baseRes, quoteRes      string
		price                  *string
		deals                  []byte
		priceChange, volumeUSD string
	)

	err := row.Scan(
		&ob.ID,
		&ob.DexID,
		&ob.BaseAssetID,
		&ob.QuoteAssetID,
		&status,
		&baseRes,
		&quoteRes,
		&price,
		&deals,
		&priceChange,
		&volumeUSD,
		&ob.UpdatedAtBlock,
	)
	if err != nil {
		return nil, err
	}

	ob.Status = domain.OrderBookStatus(status)
	if ob.BaseAssetReserves, err = decimal.NewFromString(baseRes); err != nil {
		return nil, fmt.Errorf("parse base reserves: %w", err)
	}
	if ob.QuoteAssetReserves, err = decimal.NewFromString(quoteRes); err != nil {
		return nil, fmt.Errorf("parse quote reserves: %w", err)
	}
	if ob.Price, err = parseNullDecimal(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	if ob.PriceChangeDay, err = decimal.NewFromString(priceChange); err != nil {
		return nil, fmt.Errorf("parse price change: %w", err)
	}
	if ob.VolumeDayUSD, err = decimal.NewFromString(volumeUSD); err != nil {
		return nil, fmt.Errorf("parse day volume: %w", err)
	}
	if err := json.Unmarshal(deals, &ob.LastDeals); err != nil {
		return nil, fmt.Errorf("decode last deals: %w", err)
	}
	if len(ob.LastDeals) == 0 {
		ob.LastDeals = nil
	}

	return &ob, nil
}

func nonNilDeals(deals []domain.Deal) []domain.Deal {
	if deals == nil {
		return []domain.Deal{}
	}
	return deals
}
