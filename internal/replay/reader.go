package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/accounts"
	"orderbook-lab/internal/domain"
)

const maxLineBytes = 16 << 20

// Wire format of one JSON-lines block.
type blockRecord struct {
	Height    int64         `json:"height"`
	Timestamp int64         `json:"timestamp"`
	Events    []eventRecord `json:"events"`
}

type eventRecord struct {
	Type         EventType           `json:"type"`
	DexID        int                 `json:"dexId"`
	BaseAssetID  string              `json:"baseAssetId"`
	QuoteAssetID string              `json:"quoteAssetId"`
	OrderID      int64               `json:"orderId"`
	Price        decimal.NullDecimal `json:"price"`
	Amount       decimal.NullDecimal `json:"amount"`
	IsBuy        bool                `json:"isBuy"`
	Status       string              `json:"status"`
	Account      string              `json:"account"`
	AssetID      string              `json:"assetId"`
	Balance      decimal.NullDecimal `json:"balance"`
	PriceUSD     decimal.NullDecimal `json:"priceUsd"`
	Decimals     *int32              `json:"decimals"`
	Accounts     []techAccountRecord `json:"accounts"`
}

type techAccountRecord struct {
	AccountID     string          `json:"accountId"`
	TechAccountID json.RawMessage `json:"techAccountId"`
}

// Reader decodes a JSON-lines event log and enforces ascending heights.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	last    int64
	started bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	return &Reader{scanner: s}
}

// Next returns the next block, or io.EOF at the end of the log.
func (r *Reader) Next() (*Block, error) {
	for r.scanner.Scan() {
		r.line++
		raw := r.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec blockRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", r.line, ErrInvalidEvent, err)
		}
		if r.started {
			if err := checkOrder(r.last, rec.Height); err != nil {
				return nil, fmt.Errorf("line %d: %w", r.line, err)
			}
		}

		block, err := rec.decode()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		r.started = true
		r.last = rec.Height
		return block, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return nil, io.EOF
}

// ReadBlocks decodes a whole event log.
func ReadBlocks(r io.Reader) ([]*Block, error) {
	reader := NewReader(r)
	var blocks []*Block
	for {
		b, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
}

func (rec *blockRecord) decode() (*Block, error) {
	if rec.Height < 0 || rec.Timestamp < 0 {
		return nil, fmt.Errorf("%w: negative height or timestamp", ErrInvalidEvent)
	}

	b := &Block{Height: rec.Height, Timestamp: rec.Timestamp, Events: make([]*Event, 0, len(rec.Events))}
	for i := range rec.Events {
		ev, err := rec.Events[i].decode(i)
		if err != nil {
			return nil, fmt.Errorf("block %d event %d: %w", rec.Height, i, err)
		}
		b.Events = append(b.Events, ev)
	}
	return b, nil
}

func (rec *eventRecord) decode(index int) (*Event, error) {
	ev := &Event{Type: rec.Type, Index: index}

	switch rec.Type {
	case EventTypeDeal:
		if !rec.Price.Valid || !rec.Amount.Valid {
			return nil, fmt.Errorf("%w: deal needs price and amount", ErrInvalidEvent)
		}
		ev.DexID, ev.BaseAssetID, ev.QuoteAssetID = rec.DexID, rec.BaseAssetID, rec.QuoteAssetID
		ev.OrderID, ev.IsBuy = rec.OrderID, rec.IsBuy
		ev.Price, ev.Amount = rec.Price.Decimal, rec.Amount.Decimal

	case EventTypeStatus:
		if rec.Status == "" {
			return nil, fmt.Errorf("%w: status event needs status", ErrInvalidEvent)
		}
		ev.DexID, ev.BaseAssetID, ev.QuoteAssetID = rec.DexID, rec.BaseAssetID, rec.QuoteAssetID
		ev.Status = domain.OrderBookStatus(rec.Status)

	case EventTypeReserve:
		if rec.Account == "" || rec.AssetID == "" || !rec.Balance.Valid {
			return nil, fmt.Errorf("%w: reserve needs account, assetId and balance", ErrInvalidEvent)
		}
		ev.Account, ev.AssetID, ev.Balance = rec.Account, rec.AssetID, rec.Balance.Decimal

	case EventTypeAssetPrice:
		if rec.AssetID == "" || !rec.PriceUSD.Valid {
			return nil, fmt.Errorf("%w: asset_price needs assetId and priceUsd", ErrInvalidEvent)
		}
		ev.AssetID, ev.PriceUSD, ev.Decimals = rec.AssetID, rec.PriceUSD.Decimal, rec.Decimals

	case EventTypeTechAccounts:
		ev.TechAccounts = make([]accounts.TechAccount, 0, len(rec.Accounts))
		for _, a := range rec.Accounts {
			id, err := accounts.UnmarshalTechAccountID(a.TechAccountID)
			if err != nil {
				return nil, fmt.Errorf("%w: account %s: %w", ErrInvalidEvent, a.AccountID, err)
			}
			ev.TechAccounts = append(ev.TechAccounts, accounts.TechAccount{AccountID: a.AccountID, ID: id})
		}

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, rec.Type)
	}
	return ev, nil
}
