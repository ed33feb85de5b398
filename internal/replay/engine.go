package replay

import (
	"context"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/domain"
)

// EventType represents the type of event.
type EventType string

// Event type constants.
const (
	EventTypeDeal         EventType = "deal"
	EventTypeReserve      EventType = "reserve"
	EventTypeStatus       EventType = "status"
	EventTypeAssetPrice   EventType = "asset_price"
	EventTypeTechAccounts EventType = "tech_accounts"
)

// Event is one decoded chain event. Only the fields of its Type are set.
type Event struct {
	Type  EventType
	Index int // position within the block

	// deal, status
	DexID        int
	BaseAssetID  string
	QuoteAssetID string
	OrderID      int64
	Price        decimal.Decimal
	Amount       decimal.Decimal
	IsBuy        bool
	Status       domain.OrderBookStatus

	// reserve
	Account string
	Balance decimal.Decimal

	// reserve, asset_price
	AssetID  string
	PriceUSD decimal.Decimal
	Decimals *int32

	// tech_accounts
	TechAccounts []accounts.TechAccount
}

// Block is one block of the event log.
type Block struct {
	Height    int64
	Timestamp int64 // Unix milliseconds
	Events    []*Event
}

// Context returns the block context handed to the aggregators.
func (b *Block) Context() domain.Block {
	return domain.Block{Height: b.Height, Timestamp: b.Timestamp}
}

// BlockEngine consumes blocks in order.
type BlockEngine interface {
	// OnEvent is called for each event of a block in log order.
	OnEvent(ctx context.Context, block domain.Block, event *Event) error

	// EndBlock is called after the last event of a block. sync asks the
	// engine to persist its state; the block is confirmed once it returns.
	EndBlock(ctx context.Context, block domain.Block, sync bool) error

	// Flush persists everything still pending. Called once when the log ends.
	Flush(ctx context.Context) error
}

// StateRestorer is implemented by engines that keep chain state outside the
// stores, such as asset prices and technical accounts. For blocks at or below
// the resume point the runner calls Restore for each event instead of
// OnEvent, so that state is rebuilt before the first new block.
type StateRestorer interface {
	Restore(ctx context.Context, block domain.Block, event *Event) error
}
