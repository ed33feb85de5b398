package redis

import (
	"context"

	"github.com/shopspring/decimal"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

type snapshotRecord struct {
	ID               string           `json:"id"`
	OrderBookID      string           `json:"orderBookId"`
	Timestamp        int64            `json:"timestamp"`
	Resolution       string           `json:"type"`
	BaseAssetVolume  decimal.Decimal  `json:"baseAssetVolume"`
	QuoteAssetVolume decimal.Decimal  `json:"quoteAssetVolume"`
	VolumeUSD        decimal.Decimal  `json:"volumeUSD"`
	LiquidityUSD     decimal.Decimal  `json:"liquidityUSD"`
	Price            domain.PriceOHLC `json:"price"`
	DealCount        int64            `json:"dealCount"`
	UpdatedAtBlock   int64            `json:"updatedAtBlock"`
}

func toSnapshotRecord(s *domain.OrderBookSnapshot) snapshotRecord {
	return snapshotRecord{
		ID:               s.ID,
		OrderBookID:      s.OrderBookID,
		Timestamp:        s.Timestamp,
		Resolution:       string(s.Resolution),
		BaseAssetVolume:  s.BaseAssetVolume,
		QuoteAssetVolume: s.QuoteAssetVolume,
		VolumeUSD:        s.VolumeUSD,
		LiquidityUSD:     s.LiquidityUSD,
		Price:            s.Price,
		DealCount:        s.DealCount,
		UpdatedAtBlock:   s.UpdatedAtBlock,
	}
}

func (r *snapshotRecord) toDomain() *domain.OrderBookSnapshot {
	return &domain.OrderBookSnapshot{
		ID:               r.ID,
		OrderBookID:      r.OrderBookID,
		Timestamp:        r.Timestamp,
		Resolution:       domain.Resolution(r.Resolution),
		BaseAssetVolume:  r.BaseAssetVolume,
		QuoteAssetVolume: r.QuoteAssetVolume,
		VolumeUSD:        r.VolumeUSD,
		LiquidityUSD:     r.LiquidityUSD,
		Price:            r.Price,
		DealCount:        r.DealCount,
		UpdatedAtBlock:   r.UpdatedAtBlock,
	}
}

// SnapshotStore implements storage.SnapshotStore using Redis.
type SnapshotStore struct {
	docs docStore[snapshotRecord]
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(client *Client) *SnapshotStore {
	return &SnapshotStore{docs: docStore[snapshotRecord]{client: client, kind: "snapshot"}}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Get retrieves a snapshot by id. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*domain.OrderBookSnapshot, error) {
	rec, err := s.docs.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// SaveBatch upserts snapshots atomically.
func (s *SnapshotStore) SaveBatch(ctx context.Context, snapshots []*domain.OrderBookSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	ids := make([]string, len(snapshots))
	recs := make([]snapshotRecord, len(snapshots))
	for i, snap := range snapshots {
		if snap == nil || snap.ID == "" {
			return storage.ErrInvalidInput
		}
		ids[i] = snap.ID
		recs[i] = toSnapshotRecord(snap)
	}
	return s.docs.save(ctx, ids, recs)
}

// All returns every snapshot ordered by id.
func (s *SnapshotStore) All(ctx context.Context) ([]*domain.OrderBookSnapshot, error) {
	recs, err := s.docs.all(ctx)
	if err != nil {
		return nil, err
	}
	snapshots := make([]*domain.OrderBookSnapshot, len(recs))
	for i := range recs {
		snapshots[i] = recs[i].toDomain()
	}
	return snapshots, nil
}
