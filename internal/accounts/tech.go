// Package accounts resolves on-chain technical accounts to the order books they back.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orderbook-lab/internal/domain"
)

// ErrUnmappedAsset is returned when a technical asset has no known asset id.
// Processing must stop: continuing would attach reserves to the wrong order book.
var ErrUnmappedAsset = errors.New("unmapped technical asset")

// TechAccountID identifies a technical account.
// Implemented by PureTechAccount and OtherTechAccount.
type TechAccountID interface {
	isTechAccountID()
}

// PureTechAccount is a dex-owned technical account with a purpose.
type PureTechAccount struct {
	DexID   int
	Purpose TechPurpose
}

// OtherTechAccount covers every other account kind. Ignored by the resolver.
type OtherTechAccount struct {
	Kind string
}

func (PureTechAccount) isTechAccountID()  {}
func (OtherTechAccount) isTechAccountID() {}

// TechPurpose is the purpose of a pure technical account.
// Implemented by OrderBookLiquidityKeeper and OtherPurpose.
type TechPurpose interface {
	isTechPurpose()
}

// OrderBookLiquidityKeeper holds the reserves of an order book.
type OrderBookLiquidityKeeper struct {
	Pair TradingPair
}

// OtherPurpose covers fee accounts, pool accounts and similar.
type OtherPurpose struct {
	Kind string
}

func (OrderBookLiquidityKeeper) isTechPurpose() {}
func (OtherPurpose) isTechPurpose()             {}

// TradingPair as reported by the chain. BaseAssetID is the order book's
// quote asset and TargetAssetID its base asset.
type TradingPair struct {
	BaseAssetID   TechAssetID
	TargetAssetID TechAssetID
}

// TechAssetID names an asset inside a technical account id.
// Implemented by WrappedAsset and EscapedAsset.
type TechAssetID interface {
	isTechAssetID()
}

// WrappedAsset refers to a predefined asset by symbol.
type WrappedAsset struct {
	Symbol string
}

// EscapedAsset carries the asset id directly.
type EscapedAsset struct {
	AssetID string
}

func (WrappedAsset) isTechAssetID() {}
func (EscapedAsset) isTechAssetID() {}

// TechAccount is one row of the chain's technical accounts table.
type TechAccount struct {
	AccountID string
	ID        TechAccountID
}

// TechAccountSource enumerates the technical accounts table as of a block.
type TechAccountSource interface {
	TechAccounts(ctx context.Context, block domain.Block) ([]TechAccount, error)
}

// Predefined asset ids by symbol.
var predefinedAssets = map[string]string{
	"XOR":    "0x0200000000000000000000000000000000000000000000000000000000000000",
	"VAL":    "0x0200040000000000000000000000000000000000000000000000000000000000",
	"PSWAP":  "0x0200050000000000000000000000000000000000000000000000000000000000",
	"DAI":    "0x0200060000000000000000000000000000000000000000000000000000000000",
	"ETH":    "0x0200070000000000000000000000000000000000000000000000000000000000",
	"XSTUSD": "0x0200080000000000000000000000000000000000000000000000000000000000",
	"XST":    "0x0200090000000000000000000000000000000000000000000000000000000000",
	"TBCD":   "0x02000a0000000000000000000000000000000000000000000000000000000000",
}

// PredefinedAssetID returns the asset id of a predefined symbol.
func PredefinedAssetID(symbol string) (string, bool) {
	id, ok := predefinedAssets[symbol]
	return id, ok
}

// AssetIDOf maps a technical asset to its asset id.
// Wrapped symbols outside the predefined table, including DOT, KSM and USDT,
// return ErrUnmappedAsset.
func AssetIDOf(a TechAssetID) (string, error) {
	switch v := a.(type) {
	case WrappedAsset:
		id, ok := predefinedAssets[v.Symbol]
		if !ok {
			return "", fmt.Errorf("%w: wrapped %s", ErrUnmappedAsset, v.Symbol)
		}
		return id, nil
	case EscapedAsset:
		id := strings.ToLower(v.AssetID)
		if !strings.HasPrefix(id, "0x") || len(id) != 66 {
			return "", fmt.Errorf("%w: escaped %q", ErrUnmappedAsset, v.AssetID)
		}
		return id, nil
	case nil:
		return "", fmt.Errorf("%w: missing asset", ErrUnmappedAsset)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnmappedAsset, a)
	}
}

// OrderBookKeyOf returns the order book backed by id, if any.
func OrderBookKeyOf(id TechAccountID) (domain.OrderBookKey, bool, error) {
	pure, ok := id.(PureTechAccount)
	if !ok {
		return domain.OrderBookKey{}, false, nil
	}
	keeper, ok := pure.Purpose.(OrderBookLiquidityKeeper)
	if !ok {
		return domain.OrderBookKey{}, false, nil
	}

	quote, err := AssetIDOf(keeper.Pair.BaseAssetID)
	if err != nil {
		return domain.OrderBookKey{}, false, err
	}
	base, err := AssetIDOf(keeper.Pair.TargetAssetID)
	if err != nil {
		return domain.OrderBookKey{}, false, err
	}

	return domain.OrderBookKey{DexID: pure.DexID, BaseAssetID: base, QuoteAssetID: quote}, true, nil
}
