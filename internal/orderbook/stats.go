package orderbook

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/bucket"
	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// DailyWindow is the number of trailing HOUR buckets in the daily statistics.
const DailyWindow = 24

var hundred = decimal.NewFromInt(100)

// UpdateDailyStats recomputes PriceChangeDay and VolumeDayUSD for every cached
// order book from the DailyWindow HOUR buckets preceding block.
func (e *Engine) UpdateDailyStats(ctx context.Context, block domain.Block) error {
	index, _ := bucket.Of(block.Unix(), domain.ResolutionHour)
	window := bucket.Preceding(index, DailyWindow)

	for _, book := range e.books.Values() {
		snaps, err := e.hourSnapshots(ctx, book.Key(), window)
		if err != nil {
			return err
		}

		volume := decimal.Zero
		for _, s := range snaps {
			volume = volume.Add(s.VolumeUSD)
		}

		startPrice := decimal.Zero
		if len(snaps) > 0 {
			startPrice = snaps[0].Price.Open
		}

		book.PriceChangeDay = priceChange(book.Price, startPrice)
		book.VolumeDayUSD = volume
		book.UpdatedAtBlock = block.Height
		if err := e.books.Save(ctx, block, book, false); err != nil {
			return err
		}
	}
	return nil
}

// hourSnapshots returns the existing HOUR snapshots at the given indices,
// oldest first. The cache is consulted before the store.
func (e *Engine) hourSnapshots(ctx context.Context, key domain.OrderBookKey, indices []int64) ([]*domain.OrderBookSnapshot, error) {
	stored, err := e.storedRange(ctx, key, indices)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.OrderBookSnapshot, 0, len(indices))
	for _, idx := range indices {
		id := domain.SnapshotKey{OrderBook: key, Resolution: domain.ResolutionHour, Index: idx}.String()

		if s, ok := e.snapshots.Peek(id); ok {
			out = append(out, s)
			continue
		}
		if stored != nil {
			if s, ok := stored[id]; ok {
				out = append(out, s)
			}
			continue
		}
		s, err := e.snapshotStore.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", id, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// storedRange loads the whole window in one read when the store supports it.
// A nil map means the store has no range reads.
func (e *Engine) storedRange(ctx context.Context, key domain.OrderBookKey, indices []int64) (map[string]*domain.OrderBookSnapshot, error) {
	reader, ok := e.snapshotStore.(storage.SnapshotRangeReader)
	if !ok || len(indices) == 0 {
		return nil, nil
	}

	width := bucket.Duration(domain.ResolutionHour)
	from, to := indices[0]*width, indices[len(indices)-1]*width
	snaps, err := reader.GetRange(ctx, key.String(), domain.ResolutionHour, from, to)
	if err != nil {
		return nil, fmt.Errorf("load hour snapshots of %s: %w", key, err)
	}

	byID := make(map[string]*domain.OrderBookSnapshot, len(snaps))
	for _, s := range snaps {
		byID[s.ID] = s
	}
	return byID, nil
}

// priceChange returns the percentage change from start to current, 2 dp.
func priceChange(current decimal.NullDecimal, start decimal.Decimal) decimal.Decimal {
	if !current.Valid || start.IsZero() {
		return decimal.Zero
	}
	return current.Decimal.Sub(start).Div(start).Mul(hundred).Round(2)
}
