package clickhouse

import (
	"context"
	"fmt"
	"time"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Rows are versioned by updated_at_block in a ReplacingMergeTree; reads use FINAL.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface checks.
var (
	_ storage.SnapshotStore       = (*SnapshotStore)(nil)
	_ storage.SnapshotRangeReader = (*SnapshotStore)(nil)
)

const snapshotColumns = `
	id, order_book_id, timestamp, resolution,
	base_asset_volume, quote_asset_volume, volume_usd, liquidity_usd,
	price_open, price_high, price_low, price_close,
	deal_count, updated_at_block
`

// Get retrieves a snapshot by id. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(ctx context.Context, id string) (*domain.OrderBookSnapshot, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+snapshotColumns+` FROM order_book_snapshots FINAL WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	snapshots, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, storage.ErrNotFound
	}
	return snapshots[0], nil
}

// SaveBatch appends a new version of every snapshot.
func (s *SnapshotStore) SaveBatch(ctx context.Context, snapshots []*domain.OrderBookSnapshot) (err error) {
	if len(snapshots) == 0 {
		return nil
	}
	for _, snap := range snapshots {
		if snap == nil || snap.ID == "" || snap.DealCount < 0 || snap.UpdatedAtBlock < 0 {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_snapshots", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO order_book_snapshots (`+snapshotColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.ID, snap.OrderBookID, snap.Timestamp, string(snap.Resolution),
			snap.BaseAssetVolume.String(), snap.QuoteAssetVolume.String(),
			snap.VolumeUSD.String(), snap.LiquidityUSD.String(),
			snap.Price.Open.String(), snap.Price.High.String(),
			snap.Price.Low.String(), snap.Price.Close.String(),
			uint64(snap.DealCount), uint64(snap.UpdatedAtBlock),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// All returns every snapshot ordered by id.
func (s *SnapshotStore) All(ctx context.Context) ([]*domain.OrderBookSnapshot, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+snapshotColumns+` FROM order_book_snapshots FINAL ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetRange returns the snapshots of one order book and resolution with
// bucket start in [from, to], ordered by timestamp.
func (s *SnapshotStore) GetRange(ctx context.Context, orderBookID string, res domain.Resolution, from, to int64) ([]*domain.OrderBookSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM order_book_snapshots FINAL
		WHERE order_book_id = ? AND resolution = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`

	rows, err := s.conn.Query(ctx, query, orderBookID, string(res), from, to)
	if err != nil {
		return nil, fmt.Errorf("query snapshot range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows chRows) ([]*domain.OrderBookSnapshot, error) {
	var snapshots []*domain.OrderBookSnapshot

	for rows.Next() {
		var (
			snap                domain.OrderBookSnapshot
			resolution          string
			dec                 [8]string
			dealCount, updateAt uint64
		)

		err := rows.Scan(
			&snap.ID, &snap.OrderBookID, &snap.Timestamp, &resolution,
			&dec[0], &dec[1], &dec[2], &dec[3],
			&dec[4], &dec[5], &dec[6], &dec[7],
			&dealCount, &updateAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		err = parseDecimals(dec[:],
			&snap.BaseAssetVolume, &snap.QuoteAssetVolume, &snap.VolumeUSD, &snap.LiquidityUSD,
			&snap.Price.Open, &snap.Price.High, &snap.Price.Low, &snap.Price.Close,
		)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}

		snap.Resolution = domain.Resolution(resolution)
		snap.DealCount = int64(dealCount)
		snap.UpdatedAtBlock = int64(updateAt)
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
