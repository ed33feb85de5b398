package redis

import (
	"context"

	"orderbook-lab/internal/storage"
)

type progressRecord struct {
	Height    int64 `json:"height"`
	Timestamp int64 `json:"timestamp"`
}

// ProgressStore implements storage.ProgressStore using Redis.
type ProgressStore struct {
	docs docStore[progressRecord]
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(client *Client) *ProgressStore {
	return &ProgressStore{docs: docStore[progressRecord]{client: client, kind: "progress"}}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

const progressID = "last"

// GetLastProcessed returns the last confirmed block.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	rec, err := s.docs.get(ctx, progressID)
	if err != nil {
		return nil, err
	}
	return &storage.Progress{Height: rec.Height, Timestamp: rec.Timestamp}, nil
}

// SetLastProcessed records the last confirmed block.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if progress == nil || progress.Height < 0 {
		return storage.ErrInvalidInput
	}
	rec := progressRecord{Height: progress.Height, Timestamp: progress.Timestamp}
	return s.docs.save(ctx, []string{progressID}, []progressRecord{rec})
}
