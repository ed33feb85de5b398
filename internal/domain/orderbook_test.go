package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewOrderBook_Defaults(t *testing.T) {
	key := OrderBookKey{DexID: 0, BaseAssetID: "A", QuoteAssetID: "B"}
	ob := NewOrderBook(key, 7)

	if ob.ID != "0-A-B" {
		t.Errorf("ID = %s", ob.ID)
	}
	if ob.Status != StatusTrade {
		t.Errorf("Status = %s, want Trade", ob.Status)
	}
	if !ob.BaseAssetReserves.IsZero() || !ob.QuoteAssetReserves.IsZero() {
		t.Error("reserves should start at zero")
	}
	if ob.Price.Valid {
		t.Error("price should be unset")
	}
	if ob.UpdatedAtBlock != 7 {
		t.Errorf("UpdatedAtBlock = %d, want 7", ob.UpdatedAtBlock)
	}
	if ob.Key() != key {
		t.Errorf("Key() = %+v", ob.Key())
	}
}

func TestOrderBook_PushDealBounded(t *testing.T) {
	ob := NewOrderBook(OrderBookKey{BaseAssetID: "A", QuoteAssetID: "B"}, 1)

	for i := int64(1); i <= 25; i++ {
		ob.PushDeal(Deal{OrderID: i, Amount: decimal.NewFromInt(i), Price: decimal.NewFromInt(1)})

		if len(ob.LastDeals) > LastDealsLength {
			t.Fatalf("LastDeals length %d exceeds %d", len(ob.LastDeals), LastDealsLength)
		}
		if ob.LastDeals[0].OrderID != i {
			t.Fatalf("LastDeals[0].OrderID = %d, want %d", ob.LastDeals[0].OrderID, i)
		}
	}

	if len(ob.LastDeals) != LastDealsLength {
		t.Errorf("LastDeals length = %d, want %d", len(ob.LastDeals), LastDealsLength)
	}
	if last := ob.LastDeals[LastDealsLength-1].OrderID; last != 6 {
		t.Errorf("oldest kept OrderID = %d, want 6", last)
	}
}

func TestOrderBook_CloneIsDeep(t *testing.T) {
	ob := NewOrderBook(OrderBookKey{BaseAssetID: "A", QuoteAssetID: "B"}, 1)
	ob.PushDeal(Deal{OrderID: 1})

	c := ob.Clone()
	c.LastDeals[0].OrderID = 99
	c.PushDeal(Deal{OrderID: 2})

	if ob.LastDeals[0].OrderID != 1 || len(ob.LastDeals) != 1 {
		t.Errorf("clone mutation leaked into original: %+v", ob.LastDeals)
	}
}

func TestPriceOHLC_Apply(t *testing.T) {
	o := FlatOHLC(decimal.Zero)

	o.Apply(decimal.RequireFromString("10"), true)
	o.Apply(decimal.RequireFromString("12"), false)
	o.Apply(decimal.RequireFromString("9"), false)
	o.Apply(decimal.RequireFromString("11"), false)

	want := PriceOHLC{
		Open:  decimal.RequireFromString("10"),
		High:  decimal.RequireFromString("12"),
		Low:   decimal.RequireFromString("9"),
		Close: decimal.RequireFromString("11"),
	}
	if !o.Open.Equal(want.Open) || !o.High.Equal(want.High) || !o.Low.Equal(want.Low) || !o.Close.Equal(want.Close) {
		t.Errorf("OHLC = %+v, want %+v", o, want)
	}
}

func TestAsset_Units(t *testing.T) {
	a := &Asset{ID: "A", Decimals: 18}
	got := a.Units(decimal.RequireFromString("1500000000000000000"))
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Units = %s, want 1.5", got)
	}
}

func TestBlock_Unix(t *testing.T) {
	b := Block{Height: 1, Timestamp: 1700000000999}
	if b.Unix() != 1700000000 {
		t.Errorf("Unix() = %d", b.Unix())
	}
}
