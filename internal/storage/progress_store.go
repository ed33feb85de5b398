package storage

import "context"

// Progress is the last block whose state has been fully synced to the stores.
type Progress struct {
	Height    int64 // block height
	Timestamp int64 // block time, Unix milliseconds
}

// ProgressStore persists the indexer's last confirmed block.
// Restarts resume from the block after the stored one.
type ProgressStore interface {
	// GetLastProcessed returns the last confirmed block.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*Progress, error)

	// SetLastProcessed records the last confirmed block.
	SetLastProcessed(ctx context.Context, progress *Progress) error
}
