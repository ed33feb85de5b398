package postgres

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

func TestOrderBookStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderBookStore(pool)

	ob := newTestBook(0, "A", "B")
	require.NoError(t, store.SaveBatch(ctx, []*domain.OrderBook{ob}))

	got, err := store.Get(ctx, ob.ID)
	require.NoError(t, err)

	assert.Equal(t, ob.ID, got.ID)
	assert.Equal(t, ob.DexID, got.DexID)
	assert.Equal(t, domain.StatusTrade, got.Status)
	assert.Equal(t, ob.BaseAssetReserves.String(), got.BaseAssetReserves.String())
	assert.Equal(t, ob.QuoteAssetReserves.String(), got.QuoteAssetReserves.String())
	require.True(t, got.Price.Valid)
	assert.Equal(t, ob.Price.Decimal.String(), got.Price.Decimal.String())
	assert.Equal(t, ob.PriceChangeDay.String(), got.PriceChangeDay.String())
	assert.Equal(t, ob.VolumeDayUSD.String(), got.VolumeDayUSD.String())
	assert.Equal(t, ob.UpdatedAtBlock, got.UpdatedAtBlock)

	require.Len(t, got.LastDeals, 1)
	assert.Equal(t, int64(7), got.LastDeals[0].OrderID)
	assert.True(t, got.LastDeals[0].IsBuy)
	assert.Equal(t, "12.5", got.LastDeals[0].Amount.String())
}

func TestOrderBookStore_NullPriceAndEmptyDeals(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderBookStore(pool)

	ob := domain.NewOrderBook(domain.OrderBookKey{DexID: 1, BaseAssetID: "A", QuoteAssetID: "B"}, 5)
	require.NoError(t, store.SaveBatch(ctx, []*domain.OrderBook{ob}))

	got, err := store.Get(ctx, ob.ID)
	require.NoError(t, err)
	assert.False(t, got.Price.Valid)
	assert.Empty(t, got.LastDeals)
	assert.True(t, got.BaseAssetReserves.IsZero())
}

func TestOrderBookStore_GetNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOrderBookStore(pool)

	_, err := store.Get(context.Background(), "0-X-Y")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOrderBookStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderBookStore(pool)

	ob := newTestBook(0, "A", "B")
	require.NoError(t, store.SaveBatch(ctx, []*domain.OrderBook{ob}))

	ob.Price = decimal.NewNullDecimal(decimal.RequireFromString("42"))
	ob.Status = domain.StatusStop
	ob.UpdatedAtBlock = 200
	require.NoError(t, store.SaveBatch(ctx, []*domain.OrderBook{ob}))

	got, err := store.Get(ctx, ob.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", got.Price.Decimal.String())
	assert.Equal(t, domain.StatusStop, got.Status)
	assert.Equal(t, int64(200), got.UpdatedAtBlock)
}

func TestOrderBookStore_AllOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewOrderBookStore(pool)

	books := []*domain.OrderBook{newTestBook(1, "C", "D"), newTestBook(0, "A", "B")}
	require.NoError(t, store.SaveBatch(ctx, books))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "0-A-B", all[0].ID)
	assert.Equal(t, "1-C-D", all[1].ID)
}

func TestOrderBookStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOrderBookStore(pool)

	err := store.SaveBatch(context.Background(), []*domain.OrderBook{nil})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
