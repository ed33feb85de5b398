package domain

import "github.com/shopspring/decimal"

// LastDealsLength is the capacity of OrderBook.LastDeals.
const LastDealsLength = 20

// OrderBookStatus is the trading status reported by the chain.
// Stored as received; nothing in this module branches on it.
type OrderBookStatus string

// OrderBookStatus constants.
const (
	StatusTrade          OrderBookStatus = "Trade"
	StatusPlaceAndCancel OrderBookStatus = "PlaceAndCancel"
	StatusOnlyCancel     OrderBookStatus = "OnlyCancel"
	StatusStop           OrderBookStatus = "Stop"
)

// Deal is a single executed trade kept in OrderBook.LastDeals.
type Deal struct {
	OrderID   int64           `json:"orderId"`
	Timestamp int64           `json:"timestamp"` // block time, Unix milliseconds
	IsBuy     bool            `json:"isBuy"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
}

// OrderBook is the current state of one trading pair.
// Corresponds to the order_books table.
type OrderBook struct {
	ID                 string          // "{dexId}-{baseAssetId}-{quoteAssetId}"
	DexID              int             // dex identifier
	BaseAssetID        string          // base asset id
	QuoteAssetID       string          // quote asset id
	Status             OrderBookStatus // chain trading status
	BaseAssetReserves  decimal.Decimal // integer amount, smallest unit
	QuoteAssetReserves decimal.Decimal // integer amount, smallest unit
	Price              decimal.NullDecimal
	LastDeals          []Deal // newest first, at most LastDealsLength
	PriceChangeDay     decimal.Decimal
	VolumeDayUSD       decimal.Decimal
	UpdatedAtBlock     int64
}

// NewOrderBook returns an order book with default state for key.
func NewOrderBook(key OrderBookKey, height int64) *OrderBook {
	return &OrderBook{
		ID:                 key.String(),
		DexID:              key.DexID,
		BaseAssetID:        key.BaseAssetID,
		QuoteAssetID:       key.QuoteAssetID,
		Status:             StatusTrade,
		BaseAssetReserves:  decimal.Zero,
		QuoteAssetReserves: decimal.Zero,
		PriceChangeDay:     decimal.Zero,
		VolumeDayUSD:       decimal.Zero,
		UpdatedAtBlock:     height,
	}
}

// EntityID returns the persisted id.
func (ob *OrderBook) EntityID() string { return ob.ID }

// Key returns the typed composite key.
func (ob *OrderBook) Key() OrderBookKey {
	return OrderBookKey{DexID: ob.DexID, BaseAssetID: ob.BaseAssetID, QuoteAssetID: ob.QuoteAssetID}
}

// PushDeal prepends d and drops the oldest deals beyond LastDealsLength.
func (ob *OrderBook) PushDeal(d Deal) {
	n := len(ob.LastDeals) + 1
	if n > LastDealsLength {
		n = LastDealsLength
	}
	deals := make([]Deal, n)
	deals[0] = d
	copy(deals[1:], ob.LastDeals)
	ob.LastDeals = deals
}

// Clone returns a deep copy.
func (ob *OrderBook) Clone() *OrderBook {
	c := *ob
	if ob.LastDeals != nil {
		c.LastDeals = append([]Deal(nil), ob.LastDeals...)
	}
	return &c
}
