package orderbook

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/aggregates"
	"orderbook-lab/internal/bucket"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage/memory"
)

// countingAssets counts asset lookups per id.
type countingAssets struct {
	*aggregates.AssetRegistry
	lookups map[string]int
}

func (a *countingAssets) GetAsset(ctx context.Context, block domain.Block, id string) (*domain.Asset, error) {
	a.lookups[id]++
	return a.AssetRegistry.GetAsset(ctx, block, id)
}

func TestGetLockedLiquidityUSD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	block := blockAt(1, t0)

	f.assets.SetPriceUSD("A", d("1.5"))
	f.assets.SetPriceUSD("B", d("2"))
	f.assets.SetDecimals("C", 6)

	ab, err := f.engine.GetOrderBook(ctx, block, pairAB)
	require.NoError(t, err)
	ab.BaseAssetReserves = d("2000000000000000000")
	ab.QuoteAssetReserves = d("3000000000000000000")

	cbKey := domain.OrderBookKey{DexID: 0, BaseAssetID: "C", QuoteAssetID: "B"}
	cb, err := f.engine.GetOrderBook(ctx, block, cbKey)
	require.NoError(t, err)
	cb.BaseAssetReserves = d("1000000")
	cb.QuoteAssetReserves = d("500000000000000000")

	total, err := f.engine.GetLockedLiquidityUSD(ctx, block)
	require.NoError(t, err)

	// AB: 2*1.5 + 3*2 = 9; CB: C has no price, 0.5*2 = 1.
	assertDecimal(t, "10", total)

	for _, r := range domain.AllResolutions {
		assertDecimal(t, "9", currentSnapshot(t, f.engine, block, pairAB, r).LiquidityUSD, r)
		assertDecimal(t, "1", currentSnapshot(t, f.engine, block, cbKey, r).LiquidityUSD, r)
	}

	assertDecimal(t, "2000000000000000000", f.assets.LiquidityBooks("A"))
	assertDecimal(t, "3500000000000000000", f.assets.LiquidityBooks("B"))
	assertDecimal(t, "1000000", f.assets.LiquidityBooks("C"))
}

func TestGetLockedLiquidityUSD_OneLookupPerLeg(t *testing.T) {
	ctx := context.Background()
	block := blockAt(1, t0)
	assets := &countingAssets{AssetRegistry: aggregates.NewAssetRegistry(), lookups: map[string]int{}}
	assets.SetPriceUSD("A", d("1.5"))
	assets.SetPriceUSD("B", d("2"))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(memory.NewOrderBookStore(), memory.NewSnapshotStore(),
		accounts.NewResolver(accounts.NewMemorySource(), accounts.Options{Logger: logger}),
		assets, aggregates.NewNetworkStats(), Options{Logger: logger})

	book, err := engine.GetOrderBook(ctx, block, pairAB)
	require.NoError(t, err)
	book.BaseAssetReserves = d("2000000000000000000")
	book.QuoteAssetReserves = d("3000000000000000000")

	clear(assets.lookups)
	total, err := engine.GetLockedLiquidityUSD(ctx, block)
	require.NoError(t, err)
	assertDecimal(t, "9", total)
	assert.Equal(t, map[string]int{"A": 1, "B": 1}, assets.lookups)
}

func TestUpdateLiquidityUSD_OverwritesAndRounds(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateLiquidityUSD(ctx, block, pairAB, d("123.456")))
	require.NoError(t, f.engine.UpdateLiquidityUSD(ctx, block, pairAB, d("7.004")))

	snap := currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionDefault)
	assert.Equal(t, "7", snap.LiquidityUSD.String())
	assert.True(t, snap.Price.Open.IsZero(), "bucket without trades is seeded with zero price")

	index, _ := bucket.Of(block.Unix(), domain.ResolutionHour)
	_, ok := f.engine.PeekSnapshot(domain.SnapshotKey{OrderBook: pairAB, Resolution: domain.ResolutionHour, Index: index})
	assert.False(t, ok, "inactive resolution must not be written")
}

func TestLiquidityBucketSeededWithLastPrice(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault)
	ctx := context.Background()

	require.NoError(t, f.engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "10", "5", true)))

	later := blockAt(100, t0+3600)
	_, err := f.engine.GetLockedLiquidityUSD(ctx, later)
	require.NoError(t, err)

	snap := currentSnapshot(t, f.engine, later, pairAB, domain.ResolutionDefault)
	for _, p := range []decimal.Decimal{snap.Price.Open, snap.Price.High, snap.Price.Low, snap.Price.Close} {
		assertDecimal(t, "10", p)
	}
	assert.Equal(t, int64(0), snap.DealCount)
}
