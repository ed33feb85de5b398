package orderbook

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/aggregates"
	"orderbook-lab/internal/bucket"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
	"orderbook-lab/internal/storage/memory"
)

const (
	xorID = "0x0200000000000000000000000000000000000000000000000000000000000000"
	valID = "0x0200040000000000000000000000000000000000000000000000000000000000"

	// 2023-11-14T22:13:20Z
	t0 int64 = 1700000000
)

type fixture struct {
	engine  *Engine
	books   *memory.OrderBookStore
	snaps   *memory.SnapshotStore
	source  *accounts.MemorySource
	assets  *aggregates.AssetRegistry
	network *aggregates.NetworkStats
}

func newFixture(t *testing.T, resolutions ...domain.Resolution) *fixture {
	t.Helper()
	f := &fixture{
		books:   memory.NewOrderBookStore(),
		snaps:   memory.NewSnapshotStore(),
		source:  accounts.NewMemorySource(),
		assets:  aggregates.NewAssetRegistry(),
		network: aggregates.NewNetworkStats(),
	}
	f.engine = f.restart(resolutions...)
	return f
}

// restart builds a fresh engine over the fixture's durable state.
func (f *fixture) restart(resolutions ...domain.Resolution) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := accounts.NewResolver(f.source, accounts.Options{Logger: logger})
	return NewEngine(f.books, f.snaps, resolver, f.assets, f.network, Options{
		Resolutions: resolutions,
		Logger:      logger,
	})
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func blockAt(height, unix int64) domain.Block {
	return domain.Block{Height: height, Timestamp: unix * 1000}
}

var pairAB = domain.OrderBookKey{DexID: 0, BaseAssetID: "A", QuoteAssetID: "B"}

func dealAB(orderID int64, price, amount string, isBuy bool) DealEvent {
	return DealEvent{
		DexID: 0, BaseAssetID: "A", QuoteAssetID: "B",
		OrderID: orderID, Price: d(price), Amount: d(amount), IsBuy: isBuy,
	}
}

func currentSnapshot(t *testing.T, e *Engine, block domain.Block, key domain.OrderBookKey, r domain.Resolution) *domain.OrderBookSnapshot {
	t.Helper()
	index, _ := bucket.Of(block.Unix(), r)
	snap, ok := e.PeekSnapshot(domain.SnapshotKey{OrderBook: key, Resolution: r, Index: index})
	require.True(t, ok, "snapshot %s not cached", r)
	return snap
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !got.Equal(d(want)) {
		assert.Fail(t, fmt.Sprintf("decimal mismatch: want %s, got %s", want, got), msgAndArgs...)
	}
}

func TestUpdateDeal_ScenarioA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))

	book, err := f.engine.GetOrderBook(ctx, block, pairAB)
	require.NoError(t, err)
	require.True(t, book.Price.Valid)
	assertDecimal(t, "10", book.Price.Decimal)
	require.Len(t, book.LastDeals, 1)
	assert.Equal(t, int64(1), book.LastDeals[0].OrderID)
	assert.Equal(t, block.Timestamp, book.LastDeals[0].Timestamp)
	assert.True(t, book.LastDeals[0].IsBuy)

	for _, r := range domain.AllResolutions {
		snap := currentSnapshot(t, f.engine, block, pairAB, r)
		assertDecimal(t, "5", snap.BaseAssetVolume, r)
		assertDecimal(t, "50", snap.QuoteAssetVolume, r)
		assertDecimal(t, "10", snap.Price.Open, r)
		assertDecimal(t, "10", snap.Price.High, r)
		assertDecimal(t, "10", snap.Price.Low, r)
		assertDecimal(t, "10", snap.Price.Close, r)
	}
}

func TestUpdateDeal_ScenarioB(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))
	require.NoError(t, f.engine.UpdateDeal(ctx, blockAt(2, t0+6), dealAB(2, "12", "3", false)))

	for _, r := range domain.AllResolutions {
		snap := currentSnapshot(t, f.engine, block, pairAB, r)
		assertDecimal(t, "10", snap.Price.Open, r)
		assertDecimal(t, "12", snap.Price.High, r)
		assertDecimal(t, "10", snap.Price.Low, r)
		assertDecimal(t, "12", snap.Price.Close, r)
		assertDecimal(t, "8", snap.BaseAssetVolume, r)
		assertDecimal(t, "86", snap.QuoteAssetVolume, r)
		assert.Equal(t, int64(2), snap.DealCount)
	}

	book, err := f.engine.GetOrderBook(ctx, block, pairAB)
	require.NoError(t, err)
	require.Len(t, book.LastDeals, 2)
	assert.Equal(t, int64(2), book.LastDeals[0].OrderID)
	assert.False(t, book.LastDeals[0].IsBuy)
}

func TestUpdateDeal_LastTradePriceAndBoundedDeals(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault)
	ctx := context.Background()

	var last string
	for i := int64(1); i <= 30; i++ {
		last = decimal.NewFromInt(100 + (i*7)%13).String()
		require.NoError(t, f.engine.UpdateDeal(ctx, blockAt(i, t0+i*6), dealAB(i, last, "1", i%2 == 0)))

		book, err := f.engine.GetOrderBook(ctx, blockAt(i, t0+i*6), pairAB)
		require.NoError(t, err)
		assertDecimal(t, last, book.Price.Decimal)
		assert.LessOrEqual(t, len(book.LastDeals), domain.LastDealsLength)
		assert.Equal(t, i, book.LastDeals[0].OrderID)
	}
}

func TestUpdateDeal_OHLCBounds(t *testing.T) {
	f := newFixture(t, domain.ResolutionHour)
	ctx := context.Background()
	prices := []string{"7.5", "9", "3.25", "11", "6", "6", "10.999"}

	for i, p := range prices {
		block := blockAt(int64(i+1), t0+int64(i)*6)
		require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(int64(i+1), p, "2", true)))

		snap := currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionHour)
		for _, v := range append([]decimal.Decimal{snap.Price.Open, snap.Price.Close}, pricesUpTo(prices, i)...) {
			assert.True(t, snap.Price.Low.LessThanOrEqual(v), "low %s > %s", snap.Price.Low, v)
			assert.True(t, snap.Price.High.GreaterThanOrEqual(v), "high %s < %s", snap.Price.High, v)
		}
	}
}

func pricesUpTo(prices []string, i int) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, i+1)
	for _, p := range prices[:i+1] {
		out = append(out, d(p))
	}
	return out
}

func TestUpdateDeal_VolumeUSDExactSum(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault, domain.ResolutionDay)
	ctx := context.Background()
	f.assets.SetPriceUSD("B", d("0.333333333333333333"))

	deals := [][2]string{{"1.1", "3"}, {"2.35", "0.7"}, {"0.0001", "12345.6789"}}
	want := decimal.Zero
	for i, dl := range deals {
		block := blockAt(int64(i+1), t0+int64(i)*6)
		require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(int64(i), dl[0], dl[1], true)))
		want = want.Add(d(dl[1]).Mul(d(dl[0])).Mul(d("0.333333333333333333")))
	}

	for _, r := range []domain.Resolution{domain.ResolutionDefault, domain.ResolutionDay} {
		snap := currentSnapshot(t, f.engine, blockAt(3, t0+12), pairAB, r)
		assert.True(t, snap.VolumeUSD.Equal(want), "%s volumeUSD %s, want %s", r, snap.VolumeUSD, want)
	}
}

func TestUpdateDeal_NetworkVolumeNotDoubleCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.assets.SetPriceUSD("B", d("2"))
	block := blockAt(5, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))
	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(2, "12", "3", false)))

	// 5*10*2 + 3*12*2, once per deal across three resolutions.
	assertDecimal(t, "172", f.network.BlockVolumeUSD(block.Height))
	assertDecimal(t, "8", f.assets.Volume("A"))
	assertDecimal(t, "86", f.assets.Volume("B"))

	snap := currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionDefault)
	assertDecimal(t, "172", snap.VolumeUSD)
}

func TestUpdateDeal_UnknownQuotePriceValuesAtZero(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))

	snap := currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionDefault)
	assert.True(t, snap.VolumeUSD.IsZero())
	assertDecimal(t, "50", snap.QuoteAssetVolume)
	assert.True(t, f.network.TotalVolumeUSD().IsZero())
}

func TestUpdateDeal_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "0", "5", true))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = f.engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "1", "-5", true))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	bad := dealAB(1, "1", "1", true)
	bad.BaseAssetID = "A-1"
	err = f.engine.UpdateDeal(ctx, blockAt(1, t0), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestUpdateDeal_ActiveResolutionsOnly(t *testing.T) {
	f := newFixture(t, domain.ResolutionDefault)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))
	require.NoError(t, f.engine.Flush(ctx, block))

	all, err := f.snaps.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.ResolutionDefault, all[0].Resolution)
}

func TestGetOrderBook_CreatedOnceWithDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	block := blockAt(3, t0)

	first, err := f.engine.GetOrderBook(ctx, block, pairAB)
	require.NoError(t, err)
	second, err := f.engine.GetOrderBookByID(ctx, block, pairAB.String())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, domain.StatusTrade, first.Status)
	assert.True(t, first.BaseAssetReserves.IsZero())
	assert.True(t, first.QuoteAssetReserves.IsZero())
	assert.Equal(t, int64(3), first.UpdatedAtBlock)

	// Written through at creation.
	stored, err := f.books.Get(ctx, pairAB.String())
	require.NoError(t, err)
	assert.Equal(t, pairAB.String(), stored.ID)

	all, err := f.books.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.engine.GetOrderBookByID(ctx, block, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func hexAccount(b byte) string {
	return "0x" + strings.Repeat(hex.EncodeToString([]byte{b}), 32)
}

func registerKeeper(f *fixture, account string, key domain.OrderBookKey) {
	f.source.Put(accounts.TechAccount{
		AccountID: account,
		ID: accounts.PureTechAccount{
			DexID: key.DexID,
			Purpose: accounts.OrderBookLiquidityKeeper{Pair: accounts.TradingPair{
				BaseAssetID:   accounts.EscapedAsset{AssetID: key.QuoteAssetID},
				TargetAssetID: accounts.EscapedAsset{AssetID: key.BaseAssetID},
			}},
		},
	})
}

func TestUpdateReserves(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := domain.OrderBookKey{DexID: 0, BaseAssetID: valID, QuoteAssetID: xorID}
	account := hexAccount(0x01)
	registerKeeper(f, account, key)
	block := blockAt(1, t0)

	ok, err := f.engine.UpdateReserves(ctx, block, account, valID, d("1000"))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.engine.UpdateReserves(ctx, block, account, xorID, d("250"))
	require.NoError(t, err)
	require.True(t, ok)

	book, found, err := f.engine.GetOrderBookByAccountID(ctx, block, account)
	require.NoError(t, err)
	require.True(t, found)
	assertDecimal(t, "1000", book.BaseAssetReserves)
	assertDecimal(t, "250", book.QuoteAssetReserves)

	ok, err = f.engine.UpdateReserves(ctx, block, account, "0x0200050000000000000000000000000000000000000000000000000000000000", d("1"))
	require.NoError(t, err)
	assert.False(t, ok, "asset outside the pair")

	ok, err = f.engine.UpdateReserves(ctx, block, hexAccount(0x02), xorID, d("1"))
	require.NoError(t, err)
	assert.False(t, ok, "account backs no order book")
}

func TestUpdateReserves_UnmappedAssetIsFatal(t *testing.T) {
	f := newFixture(t)
	account := hexAccount(0x03)
	f.source.Put(accounts.TechAccount{
		AccountID: account,
		ID: accounts.PureTechAccount{Purpose: accounts.OrderBookLiquidityKeeper{Pair: accounts.TradingPair{
			BaseAssetID:   accounts.WrappedAsset{Symbol: "XOR"},
			TargetAssetID: accounts.WrappedAsset{Symbol: "KSM"},
		}}},
	})

	_, err := f.engine.UpdateReserves(context.Background(), blockAt(1, t0), account, xorID, d("1"))
	assert.ErrorIs(t, err, accounts.ErrUnmappedAsset)
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.UpdateStatus(ctx, blockAt(2, t0), pairAB, domain.StatusStop))

	book, err := f.engine.GetOrderBook(ctx, blockAt(2, t0), pairAB)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStop, book.Status)
}

func TestSync_EvictsClosedSnapshotsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	block := blockAt(1, t0)

	require.NoError(t, f.engine.UpdateDeal(ctx, block, dealAB(1, "10", "5", true)))

	// Next DEFAULT bucket; HOUR and DAY still open.
	next := blockAt(2, t0+bucket.DefaultSeconds)
	require.NoError(t, f.engine.Sync(ctx, next))

	defIdx, _ := bucket.Of(block.Unix(), domain.ResolutionDefault)
	_, ok := f.engine.PeekSnapshot(domain.SnapshotKey{OrderBook: pairAB, Resolution: domain.ResolutionDefault, Index: defIdx})
	assert.False(t, ok, "closed DEFAULT bucket should be evicted")

	currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionHour)
	currentSnapshot(t, f.engine, block, pairAB, domain.ResolutionDay)
	assert.Len(t, f.engine.OrderBooks(), 1)

	// Evicted but persisted.
	id := domain.SnapshotKey{OrderBook: pairAB, Resolution: domain.ResolutionDefault, Index: defIdx}.String()
	stored, err := f.snaps.Get(ctx, id)
	require.NoError(t, err)
	assertDecimal(t, "5", stored.BaseAssetVolume)
}

type failingSnapshotStore struct {
	*memory.SnapshotStore
	err error
}

func (s *failingSnapshotStore) SaveBatch(ctx context.Context, snaps []*domain.OrderBookSnapshot) error {
	if s.err != nil {
		return s.err
	}
	return s.SnapshotStore.SaveBatch(ctx, snaps)
}

func TestSync_SurfacesStoreErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snaps := &failingSnapshotStore{SnapshotStore: memory.NewSnapshotStore()}
	engine := NewEngine(
		memory.NewOrderBookStore(), snaps,
		accounts.NewResolver(accounts.NewMemorySource(), accounts.Options{Logger: logger}),
		aggregates.NewAssetRegistry(), aggregates.NewNetworkStats(),
		Options{Resolutions: []domain.Resolution{domain.ResolutionDefault}, Logger: logger},
	)
	ctx := context.Background()

	require.NoError(t, engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "10", "5", true)))

	boom := errors.New("disk full")
	snaps.err = boom
	assert.ErrorIs(t, engine.Sync(ctx, blockAt(2, t0+6)), boom)

	snaps.err = nil
	require.NoError(t, engine.Sync(ctx, blockAt(3, t0+12)))
}

func TestRestart_ContinuesBucketFromStore(t *testing.T) {
	f := newFixture(t, domain.ResolutionHour)
	ctx := context.Background()

	require.NoError(t, f.engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "10", "5", true)))
	require.NoError(t, f.engine.Sync(ctx, blockAt(1, t0)))

	restarted := f.restart(domain.ResolutionHour)
	block := blockAt(2, t0+60)
	require.NoError(t, restarted.UpdateDeal(ctx, block, dealAB(2, "8", "1", true)))

	snap := currentSnapshot(t, restarted, block, pairAB, domain.ResolutionHour)
	assertDecimal(t, "10", snap.Price.Open)
	assertDecimal(t, "8", snap.Price.Low)
	assertDecimal(t, "6", snap.BaseAssetVolume)
	assert.Equal(t, int64(2), snap.DealCount)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.UpdateDeal(ctx, blockAt(1, t0), dealAB(1, "10", "5", true)))

	f.engine.Reset()
	assert.Empty(t, f.engine.OrderBooks())
}
