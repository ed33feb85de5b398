// Package aggregates holds the asset- and network-level counters the
// order book engine cascades into.
package aggregates

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// AssetRegistry tracks asset prices, traded volume and reserves locked in
// order books. Not safe for concurrent use.
type AssetRegistry struct {
	assets         map[string]*domain.Asset
	volume         map[string]decimal.Decimal
	liquidityBooks map[string]decimal.Decimal
}

// NewAssetRegistry creates an empty registry.
func NewAssetRegistry() *AssetRegistry {
	r := &AssetRegistry{}
	r.Reset()
	return r
}

// GetAsset returns the asset, registering it with default precision and no
// price on first reference.
func (r *AssetRegistry) GetAsset(_ context.Context, _ domain.Block, id string) (*domain.Asset, error) {
	if id == "" {
		return nil, fmt.Errorf("get asset: empty id: %w", storage.ErrInvalidInput)
	}
	a, ok := r.assets[id]
	if !ok {
		a = &domain.Asset{ID: id, Decimals: domain.DefaultAssetDecimals}
		r.assets[id] = a
	}
	return a, nil
}

// SetPriceUSD records the latest USD price of an asset.
func (r *AssetRegistry) SetPriceUSD(id string, price decimal.Decimal) {
	a := r.ensure(id)
	a.PriceUSD = decimal.NewNullDecimal(price)
}

// SetDecimals records the precision of an asset.
func (r *AssetRegistry) SetDecimals(id string, decimals int32) {
	r.ensure(id).Decimals = decimals
}

// UpdateVolume adds amount to the asset's traded volume.
func (r *AssetRegistry) UpdateVolume(_ context.Context, _ domain.Block, id string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("update volume %s: negative amount %s: %w", id, amount, storage.ErrInvalidInput)
	}
	r.ensure(id)
	r.volume[id] = r.volume[id].Add(amount)
	return nil
}

// UpdateLiquidityBooks overwrites the reserves of the asset locked in order books.
func (r *AssetRegistry) UpdateLiquidityBooks(_ context.Context, _ domain.Block, id string, amount decimal.Decimal) error {
	r.ensure(id)
	r.liquidityBooks[id] = amount
	return nil
}

// Volume returns the accumulated traded volume of an asset.
func (r *AssetRegistry) Volume(id string) decimal.Decimal {
	return r.volume[id]
}

// LiquidityBooks returns the last locked reserves reported for an asset.
func (r *AssetRegistry) LiquidityBooks(id string) decimal.Decimal {
	return r.liquidityBooks[id]
}

// IDs returns every registered asset id in ascending order.
func (r *AssetRegistry) IDs() []string {
	ids := make([]string, 0, len(r.assets))
	for id := range r.assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset forgets every asset.
func (r *AssetRegistry) Reset() {
	r.assets = make(map[string]*domain.Asset)
	r.volume = make(map[string]decimal.Decimal)
	r.liquidityBooks = make(map[string]decimal.Decimal)
}

func (r *AssetRegistry) ensure(id string) *domain.Asset {
	a, ok := r.assets[id]
	if !ok {
		a = &domain.Asset{ID: id, Decimals: domain.DefaultAssetDecimals}
		r.assets[id] = a
	}
	return a
}
