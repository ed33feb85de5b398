package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const selectSnapshot = `
	SELECT id, order_book_id, timestamp, resolution,
	       base_asset_volume::text, quote_asset_volume::text, volume_usd::text, liquidity_usd::text,
	       price_open::text, price_high::text, price_low::text, price_close::text,
	       deal_count, updated_at_block
	FROM order_book_snapshots
`

const upsertSnapshot = `
	INSERT INTO order_book_snapshots (
		id, order_book_id, timestamp, resolution,
		base_asset_volume, quote_asset_volume, volume_usd, liquidity_usd,
		price_open, price_high, price_low, price_close,
		deal_count, updated_at_block
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO UPDATE SET
		base_asset_volume = EXCLUDED.base_asset_volume,
		quote_asset_volume = EXCLUDED.quote_asset_volume,
		volume_usd = EXCLUDED.volume_usd,
		liquidity_usd = EXCLUDED.liquidity_usd,
		price_open = EXCLUDED.price_open,
		price_high = EXCLUDED.price_high,
		price_low = EXCLUDED.price_low,
		price_close = EXCLUDED.price_close,
		deal_count = EXCLUDED.deal_count,
		updated_at_block = EXCLUDED.updated_at_block
`

// Get retrieves a snapshot by id. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*domain.OrderBookSnapshot, error) {
	row := s.pool.QueryRow(ctx, selectSnapshot+` WHERE id = $1`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

// SaveBatch upserts snapshots in one transaction.
func (s *SnapshotStore) SaveBatch(ctx context.Context, snapshots []*domain.OrderBookSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		if snap == nil || snap.ID == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(upsertSnapshot,
			snap.ID,
			snap.OrderBookID,
			snap.Timestamp,
			string(snap.Resolution),
			snap.BaseAssetVolume.String(),
			snap.QuoteAssetVolume.String(),
			snap.VolumeUSD.String(),
			snap.LiquidityUSD.String(),
			snap.Price.Open.String(),
			snap.Price.High.String(),
			snap.Price.Low.String(),
			snap.Price.Close.String(),
			snap.DealCount,
			snap.UpdatedAtBlock,
		)
	}

	return sendBatch(ctx, s.pool, batch, "snapshots")
}

// All returns every snapshot ordered by id.
func (s *SnapshotStore) All(ctx context.Context) ([]*domain.OrderBookSnapshot, error) {
	rows, err := s.pool.Query(ctx, selectSnapshot+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*domain.OrderBookSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// scanSnapshot scans a single row into OrderBookSnapshot.
func scanSnapshot(row pgx.Row) (*domain.OrderBookSnapshot, error) {
	var (
		snap       domain.OrderBookSnapshot
		resolution string
		decimals   [8]string
	)

	err := row.Scan(
		&snap.ID,
		&snap.OrderBookID,
		&snap.Timestamp,
		&resolution,
		&decimals[0], &decimals[1], &decimals[2], &decimals[3],
		&decimals[4], &decimals[5], &decimals[6], &decimals[7],
		&snap.DealCount,
		&snap.UpdatedAtBlock,
	)
	if err != nil {
		return nil, err
	}

	snap.Resolution = domain.Resolution(resolution)
	targets := [8]*decimalField{
		{"base_asset_volume", &snap.BaseAssetVolume},
		{"quote_asset_volume", &snap.QuoteAssetVolume},
		{"volume_usd", &snap.VolumeUSD},
		{"liquidity_usd", &snap.LiquidityUSD},
		{"price_open", &snap.Price.Open},
		{"price_high", &snap.Price.High},
		{"price_low", &snap.Price.Low},
		{"price_close", &snap.Price.Close},
	}
	for i, f := range targets {
		if err := f.parse(decimals[i]); err != nil {
			return nil, err
		}
	}

	return &snap, nil
}
