package domain

import "github.com/shopspring/decimal"

// DefaultAssetDecimals is used when an asset's precision is unknown.
const DefaultAssetDecimals int32 = 18

// Asset is the asset aggregator's view of a token.
type Asset struct {
	ID       string
	Decimals int32
	PriceUSD decimal.NullDecimal // unset when no price has been observed
}

// Units converts an integer amount in the smallest unit to whole tokens.
func (a *Asset) Units(amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(-a.Decimals)
}
