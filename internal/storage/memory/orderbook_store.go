package memory

import (
	"context"
	"sort"
	"sync"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/storage"
)

// OrderBookStore is an in-memory implementation of storage.OrderBookStore.
type OrderBookStore struct {
	mu    sync.RWMutex
	books map[string]*domain.OrderBook // keyed by order book id
}

// NewOrderBookStore creates a new in-memory order book store.
func NewOrderBookStore() *OrderBookStore {
	return &OrderBookStore{
		books: make(map[string]*domain.OrderBook),
	}
}

// Get retrieves an order book by id. Returns ErrNotFound if not exists.
func (s *OrderBookStore) Get(_ context.Context, id string) (*domain.OrderBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ob, exists := s.books[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return ob.Clone(), nil
}

// SaveBatch upserts order books. The whole batch is rejected on invalid input.
func (s *OrderBookStore) SaveBatch(_ context.Context, books []*domain.OrderBook) error {
	for _, ob := range books {
		if ob == nil || ob.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ob := range books {
		s.books[ob.ID] = ob.Clone()
	}
	return nil
}

// All returns every order book ordered by id.
func (s *OrderBookStore) All(_ context.Context) ([]*domain.OrderBook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.OrderBook, 0, len(s.books))
	for _, ob := range s.books {
		result = append(result, ob.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

var _ storage.OrderBookStore = (*OrderBookStore)(nil)
