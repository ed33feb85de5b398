// Package reporting renders summaries of persisted order books and snapshots.
package reporting

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	books     storage.OrderBookStore
	snapshots storage.SnapshotStore
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(books storage.OrderBookStore, snapshots storage.SnapshotStore) *Generator {
	return &Generator{
		books:     books,
		snapshots: snapshots,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate reads both stores and builds the report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	books, err := g.books.All(ctx)
	if err != nil {
		return nil, err
	}
	snaps, err := g.snapshots.All(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		Summary: Summary{
			OrderBooks:   len(books),
			Snapshots:    len(snaps),
			VolumeDayUSD: decimal.Zero,
		},
		OrderBooks:  orderBookRows(books),
		Resolutions: resolutionRows(snaps),
	}

	for _, ob := range books {
		r.Summary.VolumeDayUSD = r.Summary.VolumeDayUSD.Add(ob.VolumeDayUSD)
		if ob.UpdatedAtBlock > r.Summary.LatestBlock {
			r.Summary.LatestBlock = ob.UpdatedAtBlock
		}
	}
	for _, s := range snaps {
		if s.UpdatedAtBlock > r.Summary.LatestBlock {
			r.Summary.LatestBlock = s.UpdatedAtBlock
		}
	}

	return r, nil
}

func orderBookRows(books []*domain.OrderBook) []OrderBookRow {
	rows := make([]OrderBookRow, 0, len(books))
	for _, ob := range books {
		rows = append(rows, OrderBookRow{
			ID:             ob.ID,
			Status:         ob.Status,
			Price:          ob.Price,
			PriceChangeDay: ob.PriceChangeDay,
			VolumeDayUSD:   ob.VolumeDayUSD,
			RecentDeals:    len(ob.LastDeals),
			UpdatedAtBlock: ob.UpdatedAtBlock,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].VolumeDayUSD.Cmp(rows[j].VolumeDayUSD); c != 0 {
			return c > 0
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}

func resolutionRows(snaps []*domain.OrderBookSnapshot) []ResolutionRow {
	byRes := make(map[domain.Resolution]*ResolutionRow)
	for _, s := range snaps {
		row, ok := byRes[s.Resolution]
		if !ok {
			row = &ResolutionRow{
				Resolution:   s.Resolution,
				VolumeUSD:    decimal.Zero,
				FirstBucket:  s.Timestamp,
				LatestBucket: s.Timestamp,
			}
			byRes[s.Resolution] = row
		}
		row.Buckets++
		row.Deals += s.DealCount
		row.VolumeUSD = row.VolumeUSD.Add(s.VolumeUSD)
		if s.Timestamp < row.FirstBucket {
			row.FirstBucket = s.Timestamp
		}
		if s.Timestamp > row.LatestBucket {
			row.LatestBucket = s.Timestamp
		}
	}

	var rows []ResolutionRow
	for _, res := range domain.AllResolutions {
		if row, ok := byRes[res]; ok {
			rows = append(rows, *row)
		}
	}
	return rows
}
