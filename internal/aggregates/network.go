package aggregates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// NetworkStats accumulates USD volume across every order book.
type NetworkStats struct {
	total   decimal.Decimal
	byBlock map[int64]decimal.Decimal
}

// NewNetworkStats creates zeroed stats.
func NewNetworkStats() *NetworkStats {
	n := &NetworkStats{}
	n.Reset()
	return n
}

// UpdateVolumeStats adds a deal's USD volume to the running totals.
func (n *NetworkStats) UpdateVolumeStats(_ context.Context, block domain.Block, volumeUSD decimal.Decimal) error {
	if volumeUSD.IsNegative() {
		return fmt.Errorf("update volume stats: negative volume %s: %w", volumeUSD, storage.ErrInvalidInput)
	}
	n.total = n.total.Add(volumeUSD)
	n.byBlock[block.Height] = n.byBlock[block.Height].Add(volumeUSD)
	return nil
}

// TotalVolumeUSD returns the volume accumulated since the last Reset.
func (n *NetworkStats) TotalVolumeUSD() decimal.Decimal { return n.total }

// BlockVolumeUSD returns the volume added while processing one block.
func (n *NetworkStats) BlockVolumeUSD(height int64) decimal.Decimal { return n.byBlock[height] }

// PruneBefore drops per-block increments below height.
func (n *NetworkStats) PruneBefore(height int64) {
	for h := range n.byBlock {
		if h < height {
			delete(n.byBlock, h)
		}
	}
}

// Reset zeroes every counter.
func (n *NetworkStats) Reset() {
	n.total = decimal.Zero
	n.byBlock = make(map[int64]decimal.Decimal)
}
