package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// OrderBookStore implements storage.OrderBookStore using ClickHouse.
// Every save appends a version; FINAL collapses to the latest by updated_at_block.
type OrderBookStore struct {
	conn *Conn
}

// NewOrderBookStore creates a new OrderBookStore.
func NewOrderBookStore(conn *Conn) *OrderBookStore {
	return &OrderBookStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OrderBookStore = (*OrderBookStore)(nil)

const orderBookColumns = `
	id, dex_id, base_asset_id, quote_asset_id, status,
	base_asset_reserves, quote_asset_reserves, price,
	last_deals, price_change_day, volume_day_usd, updated_at_block
`

// Get retrieves an order book by id. Returns ErrNotFound if not exists.
func (s *OrderBookStore) Get(ctx context.Context, id string) (*domain.OrderBook, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+orderBookColumns+` FROM order_books FINAL WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query order book: %w", err)
	}
	defer rows.Close()

	books, err := scanOrderBooks(rows)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, storage.ErrNotFound
	}
	return books[0], nil
}

// SaveBatch appends a new version of every order book.
func (s *OrderBookStore) SaveBatch(ctx context.Context, books []*domain.OrderBook) (err error) {
	if len(books) == 0 {
		return nil
	}
	for _, ob := range books {
		if ob == nil || ob.ID == "" || ob.UpdatedAtBlock < 0 {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_order_books", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO order_books (`+orderBookColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ob := range books {
		deals := ob.LastDeals
		if deals == nil {
			deals = []domain.Deal{}
		}
		encoded, err := json.Marshal(deals)
		if err != nil {
			return fmt.Errorf("encode last deals of %s: %w", ob.ID, err)
		}

		var price *string
		if ob.Price.Valid {
			p := ob.Price.Decimal.String()
			price = &p
		}

		err = batch.Append(
			ob.ID, int32(ob.DexID), ob.BaseAssetID, ob.QuoteAssetID, string(ob.Status),
			ob.BaseAssetReserves.String(), ob.QuoteAssetReserves.String(), price,
			string(encoded), ob.PriceChangeDay.String(), ob.VolumeDayUSD.String(),
			uint64(ob.UpdatedAtBlock),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// All returns every order book ordered by id.
func (s *OrderBookStore) All(ctx context.Context) ([]*domain.OrderBook, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+orderBookColumns+` FROM order_books FINAL ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query order books: %w", err)
	}
	defer rows.Close()

	return scanOrderBooks(rows)
}

// scanOrderBooks scans multiple rows.
func scanOrderBooks(rows chRows) ([]*domain.OrderBook, error) {
	var books []*domain.OrderBook

	for rows.Next() {
		var (
			ob       domain.OrderBook
			dexID    int32
			status   string
			price    *string
			deals    string
			dec      [4]string
			updateAt uint64
		)

		err := rows.Scan(
			&ob.ID, &dexID, &ob.BaseAssetID, &ob.QuoteAssetID, &status,
			&dec[0], &dec[1], &price,
			&deals, &dec[2], &dec[3], &updateAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order book row: %w", err)
		}

		err = parseDecimals(dec[:],
			&ob.BaseAssetReserves, &ob.QuoteAssetReserves, &ob.PriceChangeDay, &ob.VolumeDayUSD,
		)
		if err != nil {
			return nil, fmt.Errorf("order book %s: %w", ob.ID, err)
		}
		if price != nil {
			p, err := decimal.NewFromString(*price)
			if err != nil {
				return nil, fmt.Errorf("order book %s: parse price: %w", ob.ID, err)
			}
			ob.Price = decimal.NewNullDecimal(p)
		}
		if err := json.Unmarshal([]byte(deals), &ob.LastDeals); err != nil {
			return nil, fmt.Errorf("order book %s: decode last deals: %w", ob.ID, err)
		}
		if len(ob.LastDeals) == 0 {
			ob.LastDeals = nil
		}

		ob.DexID = int(dexID)
		ob.Status = domain.OrderBookStatus(status)
		ob.UpdatedAtBlock = int64(updateAt)
		books = append(books, &ob)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order book rows: %w", err)
	}

	return books, nil
}
