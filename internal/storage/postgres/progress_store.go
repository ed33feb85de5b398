package postgres

import (
	"context"
	"fmt"

	"orderbook-lab/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore.
// The indexer_progress table holds a single row.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the last confirmed block.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT height, block_timestamp
		FROM indexer_progress
		WHERE id = 1
	`)

	var progress storage.Progress
	if err := row.Scan(&progress.Height, &progress.Timestamp); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get indexer progress: %w", err)
	}

	return &progress, nil
}

// SetLastProcessed records the last confirmed block.
// Uses upsert to handle initial insert and subsequent updates.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if progress == nil || progress.Height < 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_progress (id, height, block_timestamp, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET height = EXCLUDED.height,
		    block_timestamp = EXCLUDED.block_timestamp,
		    updated_at = NOW()
	`, progress.Height, progress.Timestamp)
	if err != nil {
		return fmt.Errorf("set indexer progress: %w", err)
	}
	return nil
}
