package domain

import "github.com/shopspring/decimal"

// PriceOHLC is the open/high/low/close record of a bucket.
type PriceOHLC struct {
	Open  decimal.Decimal `json:"open"`
	High  decimal.Decimal `json:"high"`
	Low   decimal.Decimal `json:"low"`
	Close decimal.Decimal `json:"close"`
}

// FlatOHLC returns a record with every field set to p.
func FlatOHLC(p decimal.Decimal) PriceOHLC {
	return PriceOHLC{Open: p, High: p, Low: p, Close: p}
}

// Apply folds a trade price into the record.
// first resets the record to p; otherwise close moves and high/low widen.
func (o *PriceOHLC) Apply(p decimal.Decimal, first bool) {
	if first {
		*o = FlatOHLC(p)
		return
	}
	o.Close = p
	o.High = decimal.Max(o.High, p)
	o.Low = decimal.Min(o.Low, p)
}

// OrderBookSnapshot aggregates one bucket of trading activity for an order book.
// Corresponds to the order_book_snapshots table.
type OrderBookSnapshot struct {
	ID               string     // "{orderBookId}-{resolution}-{bucketIndex}"
	OrderBookID      string     // parent order book id
	Timestamp        int64      // bucket start, Unix seconds
	Resolution       Resolution // DEFAULT | HOUR | DAY
	BaseAssetVolume  decimal.Decimal
	QuoteAssetVolume decimal.Decimal
	VolumeUSD        decimal.Decimal
	LiquidityUSD     decimal.Decimal // point in time, 2 dp
	Price            PriceOHLC
	DealCount        int64 // deals folded into this bucket
	UpdatedAtBlock   int64
}

// NewSnapshot returns an empty bucket whose OHLC is seeded with seed.
func NewSnapshot(key SnapshotKey, start int64, seed decimal.Decimal, height int64) *OrderBookSnapshot {
	return &OrderBookSnapshot{
		ID:               key.String(),
		OrderBookID:      key.OrderBook.String(),
		Timestamp:        start,
		Resolution:       key.Resolution,
		BaseAssetVolume:  decimal.Zero,
		QuoteAssetVolume: decimal.Zero,
		VolumeUSD:        decimal.Zero,
		LiquidityUSD:     decimal.Zero,
		Price:            FlatOHLC(seed),
		UpdatedAtBlock:   height,
	}
}

// EntityID returns the persisted id.
func (s *OrderBookSnapshot) EntityID() string { return s.ID }

// Clone returns a copy. decimal.Decimal values are immutable.
func (s *OrderBookSnapshot) Clone() *OrderBookSnapshot {
	c := *s
	return &c
}
