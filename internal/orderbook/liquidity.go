package orderbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
)

// UpdateLiquidityUSD overwrites LiquidityUSD, rounded to cents, in the current
// bucket of every active resolution.
func (e *Engine) UpdateLiquidityUSD(ctx context.Context, block domain.Block, key domain.OrderBookKey, usd decimal.Decimal) error {
	book, err := e.GetOrderBook(ctx, block, key)
	if err != nil {
		return err
	}

	rounded := usd.Round(2)
	for _, r := range e.resolutions {
		snap, err := e.snapshot(ctx, block, book, r)
		if err != nil {
			return err
		}
		snap.LiquidityUSD = rounded
		snap.UpdatedAtBlock = block.Height
		if err := e.snapshots.Save(ctx, block, snap, false); err != nil {
			return err
		}
	}
	return nil
}

// GetLockedLiquidityUSD values the reserves of every cached order book in USD,
// writes each book's value to its snapshots and reports per-asset locked
// reserves to the asset aggregator. It returns the total USD value.
func (e *Engine) GetLockedLiquidityUSD(ctx context.Context, block domain.Block) (decimal.Decimal, error) {
	locked := make(map[string]decimal.Decimal)
	total := decimal.Zero

	for _, book := range e.books.Values() {
		locked[book.BaseAssetID] = locked[book.BaseAssetID].Add(book.BaseAssetReserves)
		locked[book.QuoteAssetID] = locked[book.QuoteAssetID].Add(book.QuoteAssetReserves)

		baseUSD, err := e.reservesUSD(ctx, block, book.BaseAssetID, book.BaseAssetReserves)
		if err != nil {
			return decimal.Zero, err
		}
		quoteUSD, err := e.reservesUSD(ctx, block, book.QuoteAssetID, book.QuoteAssetReserves)
		if err != nil {
			return decimal.Zero, err
		}

		usd := baseUSD.Add(quoteUSD)
		if err := e.UpdateLiquidityUSD(ctx, block, book.Key(), usd); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(usd)
	}

	ids := make([]string, 0, len(locked))
	for id := range locked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := e.assets.UpdateLiquidityBooks(ctx, block, id, locked[id]); err != nil {
			return decimal.Zero, err
		}
	}

	observability.SetLockedLiquidityUSD(total.InexactFloat64())
	return total, nil
}

// reservesUSD converts smallest-unit reserves of an asset to USD.
func (e *Engine) reservesUSD(ctx context.Context, block domain.Block, id string, reserves decimal.Decimal) (decimal.Decimal, error) {
	asset, err := e.assets.GetAsset(ctx, block, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("asset %s: %w", id, err)
	}
	return e.assetUSD(block, asset, asset.Units(reserves), "liquidity"), nil
}
