// Package indexer applies decoded block events to the order book engine.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/aggregates"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/orderbook"
	"orderbook-lab/internal/replay"
)

// DefaultDailyStatsEvery is the daily statistics cadence in blocks.
const DefaultDailyStatsEvery int64 = 600

// networkRetainBlocks bounds the per-block network volume history.
const networkRetainBlocks int64 = 14400

// Options configures a Processor.
type Options struct {
	DailyStatsEvery int64 // DefaultDailyStatsEvery if zero
	Logger          *slog.Logger
}

// Processor is the replay.BlockEngine of the indexer.
//
// At every sync point it values locked liquidity, then syncs the engine.
// Daily statistics run at heights divisible by DailyStatsEvery. On a resumed
// run, Restore rebuilds asset prices and technical accounts from the blocks
// that are skipped.
type Processor struct {
	engine     *orderbook.Engine
	assets     *aggregates.AssetRegistry
	network    *aggregates.NetworkStats
	techSource *accounts.MemorySource
	dailyEvery int64
	logger     *slog.Logger

	loaded bool
	last   domain.Block
	seen   bool
}

// NewProcessor wires a processor around engine and its peers. techSource
// receives tech_accounts events and must be the resolver's source.
func NewProcessor(
	engine *orderbook.Engine,
	assets *aggregates.AssetRegistry,
	network *aggregates.NetworkStats,
	techSource *accounts.MemorySource,
	opts Options,
) *Processor {
	if opts.DailyStatsEvery <= 0 {
		opts.DailyStatsEvery = DefaultDailyStatsEvery
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Processor{
		engine:     engine,
		assets:     assets,
		network:    network,
		techSource: techSource,
		dailyEvery: opts.DailyStatsEvery,
		logger:     opts.Logger.With("component", "processor"),
	}
}

// OnEvent dispatches one event.
func (p *Processor) OnEvent(ctx context.Context, block domain.Block, ev *replay.Event) error {
	if err := p.ensureLoaded(ctx, block); err != nil {
		return err
	}

	switch ev.Type {
	case replay.EventTypeDeal:
		return p.engine.UpdateDeal(ctx, block, orderbook.DealEvent{
			DexID:        ev.DexID,
			BaseAssetID:  ev.BaseAssetID,
			QuoteAssetID: ev.QuoteAssetID,
			OrderID:      ev.OrderID,
			Price:        ev.Price,
			Amount:       ev.Amount,
			IsBuy:        ev.IsBuy,
		})

	case replay.EventTypeReserve:
		ok, err := p.engine.UpdateReserves(ctx, block, ev.Account, ev.AssetID, ev.Balance)
		if err != nil {
			return err
		}
		if !ok {
			p.logger.Debug("balance change outside order books", "account", ev.Account, "asset", ev.AssetID, "block", block.Height)
		}
		return nil

	case replay.EventTypeStatus:
		key := domain.OrderBookKey{DexID: ev.DexID, BaseAssetID: ev.BaseAssetID, QuoteAssetID: ev.QuoteAssetID}
		return p.engine.UpdateStatus(ctx, block, key, ev.Status)

	case replay.EventTypeAssetPrice, replay.EventTypeTechAccounts:
		p.applyChainState(ev)
		return nil
	}
	return fmt.Errorf("%w: unknown type %q", replay.ErrInvalidEvent, ev.Type)
}

// Restore rebuilds the peer state of an already confirmed block. Order book
// effects of deal, reserve and status events are in the stores and are not
// applied again.
func (p *Processor) Restore(_ context.Context, _ domain.Block, ev *replay.Event) error {
	switch ev.Type {
	case replay.EventTypeAssetPrice, replay.EventTypeTechAccounts:
		p.applyChainState(ev)
	case replay.EventTypeDeal, replay.EventTypeReserve, replay.EventTypeStatus:
	default:
		return fmt.Errorf("%w: unknown type %q", replay.ErrInvalidEvent, ev.Type)
	}
	return nil
}

// applyChainState records asset prices and technical accounts in the peers.
func (p *Processor) applyChainState(ev *replay.Event) {
	switch ev.Type {
	case replay.EventTypeAssetPrice:
		p.assets.SetPriceUSD(ev.AssetID, ev.PriceUSD)
		if ev.Decimals != nil {
			p.assets.SetDecimals(ev.AssetID, *ev.Decimals)
		}
	case replay.EventTypeTechAccounts:
		p.techSource.Put(ev.TechAccounts...)
	}
}

// EndBlock runs the per-block tasks and, when sync is set, persists state.
func (p *Processor) EndBlock(ctx context.Context, block domain.Block, sync bool) error {
	if err := p.ensureLoaded(ctx, block); err != nil {
		return err
	}
	p.last, p.seen = block, true

	if block.Height%p.dailyEvery == 0 {
		if err := p.engine.UpdateDailyStats(ctx, block); err != nil {
			return fmt.Errorf("daily stats: %w", err)
		}
	}

	if !sync {
		return nil
	}

	total, err := p.engine.GetLockedLiquidityUSD(ctx, block)
	if err != nil {
		return fmt.Errorf("locked liquidity: %w", err)
	}
	if err := p.engine.Sync(ctx, block); err != nil {
		return err
	}
	p.network.PruneBefore(block.Height - networkRetainBlocks)

	p.logger.Debug("block synced", "block", block.Height, "locked_liquidity_usd", total.StringFixed(2))
	return nil
}

// Flush persists all pending state as of the last processed block.
func (p *Processor) Flush(ctx context.Context) error {
	if !p.seen {
		return nil
	}
	return p.engine.Flush(ctx, p.last)
}

// ensureLoaded caches stored order books once, before the first event.
func (p *Processor) ensureLoaded(ctx context.Context, block domain.Block) error {
	if p.loaded {
		return nil
	}
	if _, err := p.engine.LoadOrderBooks(ctx, block); err != nil {
		return err
	}
	p.loaded = true
	return nil
}

var (
	_ replay.BlockEngine   = (*Processor)(nil)
	_ replay.StateRestorer = (*Processor)(nil)
)
