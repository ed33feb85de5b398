package redis

import (
	"context"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

type orderBookRecord struct {
	ID                 string              `json:"id"`
	DexID              int                 `json:"dexId"`
	BaseAssetID        string              `json:"baseAssetId"`
	QuoteAssetID       string              `json:"quoteAssetId"`
	Status             string              `json:"status"`
	BaseAssetReserves  decimal.Decimal     `json:"baseAssetReserves"`
	QuoteAssetReserves decimal.Decimal     `json:"quoteAssetReserves"`
	Price              decimal.NullDecimal `json:"price"`
	LastDeals          []domain.Deal       `json:"lastDeals,omitempty"`
	PriceChangeDay     decimal.Decimal     `json:"priceChangeDay"`
	VolumeDayUSD       decimal.Decimal     `json:"volumeDayUSD"`
	UpdatedAtBlock     int64               `json:"updatedAtBlock"`
}

func toOrderBookRecord(ob *domain.OrderBook) orderBookRecord {
	return orderBookRecord{
		ID:                 ob.ID,
		DexID:              ob.DexID,
		BaseAssetID:        ob.BaseAssetID,
		QuoteAssetID:       ob.QuoteAssetID,
		Status:             string(ob.Status),
		BaseAssetReserves:  ob.BaseAssetReserves,
		QuoteAssetReserves: ob.QuoteAssetReserves,
		Price:              ob.Price,
		LastDeals:          ob.LastDeals,
		PriceChangeDay:     ob.PriceChangeDay,
		VolumeDayUSD:       ob.VolumeDayUSD,
		UpdatedAtBlock:     ob.UpdatedAtBlock,
	}
}

func (r *orderBookRecord) toDomain() *domain.OrderBook {
	return &domain.OrderBook{
		ID:                 r.ID,
		DexID:              r.DexID,
		BaseAssetID:        r.BaseAssetID,
		QuoteAssetID:       r.QuoteAssetID,
		Status:             domain.OrderBookStatus(r.Status),
		BaseAssetReserves:  r.BaseAssetReserves,
		QuoteAssetReserves: r.QuoteAssetReserves,
		Price:              r.Price,
		LastDeals:          r.LastDeals,
		PriceChangeDay:     r.PriceChangeDay,
		VolumeDayUSD:       r.VolumeDayUSD,
		UpdatedAtBlock:     r.UpdatedAtBlock,
	}
}

// OrderBookStore implements storage.OrderBookStore using Redis.
type OrderBookStore struct {
	docs docStore[orderBookRecord]
}

// NewOrderBookStore creates a new OrderBookStore.
func NewOrderBookStore(client *Client) *OrderBookStore {
	return &OrderBookStore{docs: docStore[orderBookRecord]{client: client, kind: "orderbook"}}
}

// Compile-time interface check.
var _ storage.OrderBookStore = (*OrderBookStore)(nil)

// Get retrieves an order book by id. Returns ErrNotFound if not exists.
func (s *OrderBookStore) Get(ctx context.Context, id string) (*domain.OrderBook, error) {
	rec, err := s.docs.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// SaveBatch upserts order books atomically.
func (s *OrderBookStore) SaveBatch(ctx context.Context, books []*domain.OrderBook) error {
	if len(books) == 0 {
		return nil
	}

	ids := make([]string, len(books))
	recs := make([]orderBookRecord, len(books))
	for i, ob := range books {
		if ob == nil || ob.ID == "" {
			return storage.ErrInvalidInput
		}
		ids[i] = ob.ID
		recs[i] = toOrderBookRecord(ob)
	}
	return s.docs.save(ctx, ids, recs)
}

// All returns every order book ordered by id.
func (s *OrderBookStore) All(ctx context.Context) ([]*domain.OrderBook, error) {
	recs, err := s.docs.all(ctx)
	if err != nil {
		return nil, err
	}
	books := make([]*domain.OrderBook, len(recs))
	for i := range recs {
		books[i] = recs[i].toDomain()
	}
	return books, nil
}
