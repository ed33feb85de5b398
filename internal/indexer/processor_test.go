package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/replay"
	"orderbook-lab/internal/storage/memory"
)

const (
	xorID  = "0x0200000000000000000000000000000000000000000000000000000000000000"
	valID  = "0x0200040000000000000000000000000000000000000000000000000000000000"
	keeper = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

// VAL/XOR book; XOR at $2, VAL at $0.5.
const eventLog = `{"height":1,"timestamp":1700000000000,"events":[{"type":"asset_price","assetId":"` + xorID + `","priceUsd":"2"},{"type":"asset_price","assetId":"` + valID + `","priceUsd":"0.5"},{"type":"tech_accounts","accounts":[{"accountId":"` + keeper + `","techAccountId":{"__kind":"Pure","value":[0,{"__kind":"OrderBookLiquidityKeeper","value":{"baseAssetId":{"__kind":"Wrapped","value":{"__kind":"XOR"}},"targetAssetId":{"__kind":"Wrapped","value":{"__kind":"VAL"}}}}]}}]}]}
{"height":2,"timestamp":1700000006000,"events":[{"type":"deal","dexId":0,"baseAssetId":"` + valID + `","quoteAssetId":"` + xorID + `","orderId":1,"price":"10","amount":"5","isBuy":true}]}
{"height":3,"timestamp":1700000012000,"events":[{"type":"reserve","account":"` + keeper + `","assetId":"` + valID + `","balance":"4000000000000000000"},{"type":"reserve","account":"` + keeper + `","assetId":"` + xorID + `","balance":"1500000000000000000"}]}
{"height":4,"timestamp":1700000018000,"events":[{"type":"deal","dexId":0,"baseAssetId":"` + valID + `","quoteAssetId":"` + xorID + `","orderId":2,"price":"12","amount":"3","isBuy":false},{"type":"status","dexId":0,"baseAssetId":"` + valID + `","quoteAssetId":"` + xorID + `","status":"PlaceAndCancel"}]}
`

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProcessor_EndToEnd(t *testing.T) {
	ctx := context.Background()
	stores := Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}
	peers := NewPeers()
	proc, engine := Build(stores, peers, Settings{DailyStatsEvery: 2, Logger: testLogger()})

	blocks, err := replay.ReadBlocks(strings.NewReader(eventLog))
	require.NoError(t, err)

	progress := memory.NewProgressStore()
	res, err := replay.NewRunner(progress, 1, testLogger()).Run(ctx, replay.NewSliceSource(blocks), proc)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Blocks)

	key := domain.OrderBookKey{DexID: 0, BaseAssetID: valID, QuoteAssetID: xorID}
	book, err := stores.OrderBooks.Get(ctx, key.String())
	require.NoError(t, err)

	assert.True(t, book.Price.Decimal.Equal(d("12")))
	assert.Len(t, book.LastDeals, 2)
	assert.True(t, book.BaseAssetReserves.Equal(d("4000000000000000000")))
	assert.True(t, book.QuoteAssetReserves.Equal(d("1500000000000000000")))
	assert.Equal(t, domain.StatusPlaceAndCancel, book.Status)

	// 5*10*2 + 3*12*2
	assert.True(t, peers.Network.TotalVolumeUSD().Equal(d("172")))

	// 4 VAL * 0.5 + 1.5 XOR * 2
	all, err := stores.Snapshots.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, s := range all {
		assert.True(t, s.LiquidityUSD.Equal(d("5")), "%s liquidity %s", s.ID, s.LiquidityUSD)
		assert.True(t, s.QuoteAssetVolume.Equal(d("86")), "%s quote volume %s", s.ID, s.QuoteAssetVolume)
	}

	assert.True(t, peers.Assets.LiquidityBooks(valID).Equal(d("4000000000000000000")))

	p, err := progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.Height)

	_, cached := engine.PeekSnapshot(domain.SnapshotKey{OrderBook: key, Resolution: domain.ResolutionDay, Index: 1700000018 / 86400})
	assert.True(t, cached, "open DAY bucket stays cached")
}

func TestProcessor_RestartWithFreshPeers(t *testing.T) {
	ctx := context.Background()
	blocks, err := replay.ReadBlocks(strings.NewReader(eventLog))
	require.NoError(t, err)

	run := func(stores Stores, progress *memory.ProgressStore, blocks []*replay.Block) *replay.Result {
		proc, _ := Build(stores, NewPeers(), Settings{DailyStatsEvery: 2, Logger: testLogger()})
		res, err := replay.NewRunner(progress, 1, testLogger()).Run(ctx, replay.NewSliceSource(blocks), proc)
		require.NoError(t, err)
		return res
	}

	straight := Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}
	run(straight, memory.NewProgressStore(), blocks)

	// Stop after block 2, then resume with a new process: same stores and
	// progress, empty peers.
	restarted := Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}
	progress := memory.NewProgressStore()
	run(restarted, progress, blocks[:2])
	res := run(restarted, progress, blocks)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 4, res.Restored)

	key := domain.OrderBookKey{DexID: 0, BaseAssetID: valID, QuoteAssetID: xorID}
	book, err := restarted.OrderBooks.Get(ctx, key.String())
	require.NoError(t, err)
	assert.True(t, book.BaseAssetReserves.Equal(d("4000000000000000000")), "base reserves %s", book.BaseAssetReserves)
	assert.True(t, book.QuoteAssetReserves.Equal(d("1500000000000000000")), "quote reserves %s", book.QuoteAssetReserves)

	want, err := straight.Snapshots.All(ctx)
	require.NoError(t, err)
	got, err := restarted.Snapshots.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.True(t, got[i].VolumeUSD.Equal(d("172")), "%s volume %s", got[i].ID, got[i].VolumeUSD)
		assert.True(t, got[i].LiquidityUSD.Equal(d("5")), "%s liquidity %s", got[i].ID, got[i].LiquidityUSD)
		assert.True(t, got[i].VolumeUSD.Equal(want[i].VolumeUSD))
	}
}

func TestProcessor_UnmappedAssetAbortsRun(t *testing.T) {
	ctx := context.Background()
	stores := Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}
	peers := NewPeers()
	peers.TechAccounts.Put(accounts.TechAccount{
		AccountID: keeper,
		ID: accounts.PureTechAccount{Purpose: accounts.OrderBookLiquidityKeeper{Pair: accounts.TradingPair{
			BaseAssetID:   accounts.WrappedAsset{Symbol: "XOR"},
			TargetAssetID: accounts.WrappedAsset{Symbol: "DOT"},
		}}},
	})
	proc, _ := Build(stores, peers, Settings{Logger: testLogger()})

	blocks := []*replay.Block{{
		Height:    1,
		Timestamp: 1700000000000,
		Events: []*replay.Event{{
			Type: replay.EventTypeReserve, Account: keeper, AssetID: xorID, Balance: d("1"),
		}},
	}}

	_, err := replay.NewRunner(nil, 1, testLogger()).Run(ctx, replay.NewSliceSource(blocks), proc)
	assert.True(t, errors.Is(err, accounts.ErrUnmappedAsset), "got %v", err)
}

func TestProcessor_LoadsStoredBooksOnStart(t *testing.T) {
	ctx := context.Background()
	stores := Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()}
	peers := NewPeers()

	key := domain.OrderBookKey{DexID: 0, BaseAssetID: valID, QuoteAssetID: xorID}
	stored := domain.NewOrderBook(key, 1)
	stored.BaseAssetReserves = d("2000000000000000000")
	require.NoError(t, stores.OrderBooks.SaveBatch(ctx, []*domain.OrderBook{stored}))
	peers.Assets.SetPriceUSD(valID, d("3"))

	proc, engine := Build(stores, peers, Settings{Resolutions: []domain.Resolution{domain.ResolutionDefault}, Logger: testLogger()})
	block := domain.Block{Height: 10, Timestamp: 1700000000000}
	require.NoError(t, proc.EndBlock(ctx, block, true))

	assert.Len(t, engine.OrderBooks(), 1)
	snaps, err := stores.Snapshots.All(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.True(t, snaps[0].LiquidityUSD.Equal(d("6")))
}

func TestProcessor_UnknownEventType(t *testing.T) {
	proc, _ := Build(
		Stores{OrderBooks: memory.NewOrderBookStore(), Snapshots: memory.NewSnapshotStore()},
		NewPeers(), Settings{Logger: testLogger()},
	)
	err := proc.OnEvent(context.Background(), domain.Block{Height: 1}, &replay.Event{Type: "swap"})
	assert.ErrorIs(t, err, replay.ErrInvalidEvent)
}
