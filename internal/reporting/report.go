package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
)

// Report is a point-in-time summary of the persisted order book state.
type Report struct {
	GeneratedAt time.Time

	Summary Summary

	// Sorted by VolumeDayUSD descending, then id.
	OrderBooks []OrderBookRow

	// One row per resolution present in the snapshot store, in
	// DEFAULT, HOUR, DAY order.
	Resolutions []ResolutionRow
}

// Summary holds store-wide totals.
type Summary struct {
	OrderBooks   int
	Snapshots    int
	VolumeDayUSD decimal.Decimal // sum over all order books
	LatestBlock  int64           // highest UpdatedAtBlock seen
}

// OrderBookRow represents one row in the order book table.
type OrderBookRow struct {
	ID             string
	Status         domain.OrderBookStatus
	Price          decimal.NullDecimal
	PriceChangeDay decimal.Decimal
	VolumeDayUSD   decimal.Decimal
	RecentDeals    int
	UpdatedAtBlock int64
}

// ResolutionRow aggregates every stored bucket of one resolution.
type ResolutionRow struct {
	Resolution   domain.Resolution
	Buckets      int
	Deals        int64
	VolumeUSD    decimal.Decimal
	FirstBucket  int64 // Unix seconds
	LatestBucket int64 // Unix seconds
}
