// Package verification checks that replaying a block range from a restart
// point reproduces the state of an uninterrupted run.
package verification

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
)

// FieldDivergence represents a mismatch between expected and actual values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // value from the reference run
	Actual   interface{} // value from the compared run
}

// EntityDivergence lists the mismatching fields of one entity.
type EntityDivergence struct {
	Kind   string // "order_book" or "snapshot"
	ID     string
	Fields []FieldDivergence
}

const (
	kindOrderBook = "order_book"
	kindSnapshot  = "snapshot"
)

// fieldDiff accumulates divergences of one entity.
type fieldDiff []FieldDivergence

func (d *fieldDiff) decimal(field string, expected, actual decimal.Decimal) {
	if !expected.Equal(actual) {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected.String(), Actual: actual.String()})
	}
}

func (d *fieldDiff) nullDecimal(field string, expected, actual decimal.NullDecimal) {
	if expected.Valid != actual.Valid || (expected.Valid && !expected.Decimal.Equal(actual.Decimal)) {
		*d = append(*d, FieldDivergence{Field: field, Expected: nullString(expected), Actual: nullString(actual)})
	}
}

func (d *fieldDiff) value(field string, expected, actual interface{}) {
	if expected != actual {
		*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

func nullString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "null"
	}
	return v.Decimal.String()
}

// CompareOrderBook compares two order books field by field.
// Decimals are compared by value, so 1.50 equals 1.5.
func CompareOrderBook(expected, actual *domain.OrderBook) []FieldDivergence {
	var d fieldDiff

	d.value("ID", expected.ID, actual.ID)
	d.value("DexID", expected.DexID, actual.DexID)
	d.value("BaseAssetID", expected.BaseAssetID, actual.BaseAssetID)
	d.value("QuoteAssetID", expected.QuoteAssetID, actual.QuoteAssetID)
	d.value("Status", expected.Status, actual.Status)
	d.decimal("BaseAssetReserves", expected.BaseAssetReserves, actual.BaseAssetReserves)
	d.decimal("QuoteAssetReserves", expected.QuoteAssetReserves, actual.QuoteAssetReserves)
	d.nullDecimal("Price", expected.Price, actual.Price)
	d.decimal("PriceChangeDay", expected.PriceChangeDay, actual.PriceChangeDay)
	d.decimal("VolumeDayUSD", expected.VolumeDayUSD, actual.VolumeDayUSD)
	d.value("UpdatedAtBlock", expected.UpdatedAtBlock, actual.UpdatedAtBlock)

	// LastDeals
	d.value("LastDeals.len", len(expected.LastDeals), len(actual.LastDeals))
	for i := 0; i < len(expected.LastDeals) && i < len(actual.LastDeals); i++ {
		e, a := expected.LastDeals[i], actual.LastDeals[i]
		d.value(fieldAt("LastDeals", i, "OrderID"), e.OrderID, a.OrderID)
		d.value(fieldAt("LastDeals", i, "Timestamp"), e.Timestamp, a.Timestamp)
		d.value(fieldAt("LastDeals", i, "IsBuy"), e.IsBuy, a.IsBuy)
		d.decimal(fieldAt("LastDeals", i, "Amount"), e.Amount, a.Amount)
		d.decimal(fieldAt("LastDeals", i, "Price"), e.Price, a.Price)
	}

	return d
}

// CompareSnapshot compares two snapshots field by field.
func CompareSnapshot(expected, actual *domain.OrderBookSnapshot) []FieldDivergence {
	var d fieldDiff

	d.value("ID", expected.ID, actual.ID)
	d.value("OrderBookID", expected.OrderBookID, actual.OrderBookID)
	d.value("Timestamp", expected.Timestamp, actual.Timestamp)
	d.value("Resolution", expected.Resolution, actual.Resolution)
	d.decimal("BaseAssetVolume", expected.BaseAssetVolume, actual.BaseAssetVolume)
	d.decimal("QuoteAssetVolume", expected.QuoteAssetVolume, actual.QuoteAssetVolume)
	d.decimal("VolumeUSD", expected.VolumeUSD, actual.VolumeUSD)
	d.decimal("LiquidityUSD", expected.LiquidityUSD, actual.LiquidityUSD)
	d.decimal("Price.Open", expected.Price.Open, actual.Price.Open)
	d.decimal("Price.High", expected.Price.High, actual.Price.High)
	d.decimal("Price.Low", expected.Price.Low, actual.Price.Low)
	d.decimal("Price.Close", expected.Price.Close, actual.Price.Close)
	d.value("DealCount", expected.DealCount, actual.DealCount)
	d.value("UpdatedAtBlock", expected.UpdatedAtBlock, actual.UpdatedAtBlock)

	return d
}

// CompareOrderBooks matches two sets of order books by id.
// Entities present on one side only are reported with a "present" field.
func CompareOrderBooks(expected, actual []*domain.OrderBook) []EntityDivergence {
	return compareSets(kindOrderBook, index(expected), index(actual), CompareOrderBook)
}

// CompareSnapshots matches two sets of snapshots by id.
func CompareSnapshots(expected, actual []*domain.OrderBookSnapshot) []EntityDivergence {
	return compareSets(kindSnapshot, index(expected), index(actual), CompareSnapshot)
}

type identified interface {
	EntityID() string
}

func index[T identified](values []T) map[string]T {
	m := make(map[string]T, len(values))
	for _, v := range values {
		m[v.EntityID()] = v
	}
	return m
}

func compareSets[T identified](kind string, expected, actual map[string]T, compare func(T, T) []FieldDivergence) []EntityDivergence {
	ids := make([]string, 0, len(expected)+len(actual))
	for id := range expected {
		ids = append(ids, id)
	}
	for id := range actual {
		if _, ok := expected[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []EntityDivergence
	for _, id := range ids {
		e, inExpected := expected[id]
		a, inActual := actual[id]

		var fields []FieldDivergence
		if inExpected && inActual {
			fields = compare(e, a)
		} else {
			fields = []FieldDivergence{{Field: "present", Expected: inExpected, Actual: inActual}}
		}
		if len(fields) > 0 {
			out = append(out, EntityDivergence{Kind: kind, ID: id, Fields: fields})
		}
	}
	return out
}

func fieldAt(field string, i int, sub string) string {
	return field + "[" + strconv.Itoa(i) + "]." + sub
}
