package memory

import (
	"context"
	"sort"
	"sync"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*domain.OrderBookSnapshot // keyed by snapshot id
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string]*domain.OrderBookSnapshot),
	}
}

// Get retrieves a snapshot by id. Returns ErrNotFound if not exists.
func (s *SnapshotStore) Get(_ context.Context, id string) (*domain.OrderBookSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.snapshots[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return snap.Clone(), nil
}

// SaveBatch upserts snapshots. The whole batch is rejected on invalid input.
func (s *SnapshotStore) SaveBatch(_ context.Context, snapshots []*domain.OrderBookSnapshot) error {
	for _, snap := range snapshots {
		if snap == nil || snap.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		s.snapshots[snap.ID] = snap.Clone()
	}
	return nil
}

// All returns every snapshot ordered by id.
func (s *SnapshotStore) All(_ context.Context) ([]*domain.OrderBookSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OrderBookSnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		result = append(result, snap.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetRange returns the snapshots of one order book and resolution with bucket
// start in [from, to], ordered by timestamp.
func (s *SnapshotStore) GetRange(_ context.Context, orderBookID string, res domain.Resolution, from, to int64) ([]*domain.OrderBookSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OrderBookSnapshot
	for _, snap := range s.snapshots {
		if snap.OrderBookID != orderBookID || snap.Resolution != res {
			continue
		}
		if snap.Timestamp < from || snap.Timestamp > to {
			continue
		}
		result = append(result, snap.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

var (
	_ storage.SnapshotStore       = (*SnapshotStore)(nil)
	_ storage.SnapshotRangeReader = (*SnapshotStore)(nil)
)
