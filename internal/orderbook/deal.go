package orderbook

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// DealEvent is an executed limit order.
type DealEvent struct {
	DexID        int
	BaseAssetID  string
	QuoteAssetID string
	OrderID      int64
	Price        decimal.Decimal // quote per base
	Amount       decimal.Decimal // base amount
	IsBuy        bool
}

// Key returns the order book the deal belongs to.
func (d DealEvent) Key() domain.OrderBookKey {
	return domain.OrderBookKey{DexID: d.DexID, BaseAssetID: d.BaseAssetID, QuoteAssetID: d.QuoteAssetID}
}

// UpdateDeal applies a deal to its order book and to every active snapshot,
// then cascades the traded volume to the asset and network aggregators.
func (e *Engine) UpdateDeal(ctx context.Context, block domain.Block, deal DealEvent) error {
	if !deal.Price.IsPositive() || deal.Amount.IsNegative() {
		return fmt.Errorf("deal %d: price %s amount %s: %w", deal.OrderID, deal.Price, deal.Amount, storage.ErrInvalidInput)
	}

	key := deal.Key()
	book, err := e.GetOrderBook(ctx, block, key)
	if err != nil {
		return fmt.Errorf("deal %d: %w", deal.OrderID, err)
	}

	quoteAmount := deal.Amount.Mul(deal.Price)
	quoteVolumeUSD, err := e.usdValue(ctx, block, key.QuoteAssetID, quoteAmount, "deal")
	if err != nil {
		return err
	}

	// Snapshots before the book: a new bucket is seeded with the previous price.
	for _, r := range e.resolutions {
		snap, err := e.snapshot(ctx, block, book, r)
		if err != nil {
			return fmt.Errorf("deal %d: %w", deal.OrderID, err)
		}

		snap.BaseAssetVolume = snap.BaseAssetVolume.Add(deal.Amount)
		snap.QuoteAssetVolume = snap.QuoteAssetVolume.Add(quoteAmount)
		snap.VolumeUSD = snap.VolumeUSD.Add(quoteVolumeUSD)
		snap.Price.Apply(deal.Price, snap.DealCount == 0)
		snap.DealCount++
		snap.UpdatedAtBlock = block.Height

		if err := e.snapshots.Save(ctx, block, snap, false); err != nil {
			return err
		}
	}

	book.PushDeal(domain.Deal{
		OrderID:   deal.OrderID,
		Timestamp: block.Timestamp,
		IsBuy:     deal.IsBuy,
		Amount:    deal.Amount,
		Price:     deal.Price,
	})
	book.Price = decimal.NewNullDecimal(deal.Price)
	book.UpdatedAtBlock = block.Height
	if err := e.books.Save(ctx, block, book, false); err != nil {
		return err
	}

	// Cascade once per deal, regardless of the number of resolutions.
	if err := e.assets.UpdateVolume(ctx, block, key.BaseAssetID, deal.Amount); err != nil {
		return fmt.Errorf("base volume: %w", err)
	}
	if err := e.assets.UpdateVolume(ctx, block, key.QuoteAssetID, quoteAmount); err != nil {
		return fmt.Errorf("quote volume: %w", err)
	}
	if err := e.network.UpdateVolumeStats(ctx, block, quoteVolumeUSD); err != nil {
		return fmt.Errorf("network volume: %w", err)
	}

	observability.RecordDeal()
	e.logger.Debug("deal applied",
		"order_book", book.ID,
		"order_id", domain.DealOrderID(key, deal.OrderID),
		"price", deal.Price.String(),
		"amount", deal.Amount.String(),
		"block", block.Height,
	)
	return nil
}

// usdValue converts amount of asset id to USD. An unknown price values the
// amount at zero and is logged.
func (e *Engine) usdValue(ctx context.Context, block domain.Block, id string, amount decimal.Decimal, label string) (decimal.Decimal, error) {
	asset, err := e.assets.GetAsset(ctx, block, id)
	if err != nil {
		return decimal.Zero, fmt.Errorf("asset %s: %w", id, err)
	}
	return e.assetUSD(block, asset, amount, label), nil
}

// assetUSD values amount at the asset's USD price, or at zero when the price
// is unknown.
func (e *Engine) assetUSD(block domain.Block, asset *domain.Asset, amount decimal.Decimal, label string) decimal.Decimal {
	if !asset.PriceUSD.Valid {
		if !amount.IsZero() {
			observability.RecordUnknownPrice(label)
			e.logger.Warn("unknown USD price, valuing at zero", "asset", asset.ID, "context", label, "block", block.Height)
		}
		return decimal.Zero
	}
	return amount.Mul(asset.PriceUSD.Decimal)
}
