package memory

import (
	"context"
	"sync"

	"orderbook-lab/internal/storage"
)

// ProgressStore is an in-memory implementation of storage.ProgressStore.
type ProgressStore struct {
	mu       sync.RWMutex
	progress *storage.Progress
}

// NewProgressStore creates a new in-memory progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{}
}

// GetLastProcessed returns the last confirmed block.
func (s *ProgressStore) GetLastProcessed(_ context.Context) (*storage.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	p := *s.progress
	return &p, nil
}

// SetLastProcessed records the last confirmed block.
func (s *ProgressStore) SetLastProcessed(_ context.Context, progress *storage.Progress) error {
	if progress == nil || progress.Height < 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	s.progress = &p
	return nil
}

var _ storage.ProgressStore = (*ProgressStore)(nil)
