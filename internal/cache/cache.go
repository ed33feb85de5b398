// Package cache provides a write-back entity cache over a persistent store.
//
// A Cache is the read authority for its entities between flushes. Entities are
// written through at creation and when they have gone more than Threshold blocks
// without a write; everything else waits for Sync. A Cache is not safe for
// concurrent use and must have a single logical writer.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"orderbook-lab/internal/domain"
	"orderbook-lab/internal/observability"
	"orderbook-lab/internal/storage"
)

// DefaultThreshold is the staleness threshold in blocks.
const DefaultThreshold int64 = 60

// Entity is a value addressable by its persisted id.
type Entity interface {
	EntityID() string
}

// Store is the durable backing copy of a Cache.
type Store[T Entity] interface {
	// Get returns storage.ErrNotFound when id does not exist.
	Get(ctx context.Context, id string) (T, error)

	// SaveBatch upserts all values.
	SaveBatch(ctx context.Context, values []T) error
}

// Options configures a Cache.
type Options struct {
	Name      string // metric and log label
	Threshold int64  // staleness threshold in blocks, DefaultThreshold if zero
	Logger    *slog.Logger
}

type entry[T Entity] struct {
	value       T
	dirty       bool
	persistedAt int64 // block height of the last write to the store
}

// Cache memoizes entities of type T in front of a Store.
type Cache[T Entity] struct {
	store     Store[T]
	name      string
	threshold int64
	logger    *slog.Logger
	entries   map[string]*entry[T]
}

// New creates an empty cache over store.
func New[T Entity](store Store[T], opts Options) *Cache[T] {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache[T]{
		store:     store,
		name:      opts.Name,
		threshold: opts.Threshold,
		logger:    opts.Logger.With("cache", opts.Name),
		entries:   make(map[string]*entry[T]),
	}
}

// Get returns the cached entity, loading it from the store on a miss.
// When the store also misses and create is non-nil, the created entity is
// cached and written through immediately. Without create a double miss
// returns storage.ErrNotFound.
func (c *Cache[T]) Get(ctx context.Context, block domain.Block, id string, create func(ctx context.Context) (T, error)) (T, error) {
	if e, ok := c.entries[id]; ok {
		observability.RecordCacheHit(c.name)
		return e.value, nil
	}
	observability.RecordCacheMiss(c.name)

	var zero T
	v, err := c.store.Get(ctx, id)
	if err == nil {
		c.entries[id] = &entry[T]{value: v, persistedAt: block.Height}
		return v, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return zero, fmt.Errorf("load %s %s: %w", c.name, id, err)
	}
	if create == nil {
		return zero, storage.ErrNotFound
	}

	v, err = create(ctx)
	if err != nil {
		return zero, fmt.Errorf("create %s %s: %w", c.name, id, err)
	}
	if v.EntityID() != id {
		return zero, fmt.Errorf("create %s %s: factory returned id %s: %w", c.name, id, v.EntityID(), storage.ErrInvalidInput)
	}

	if err := c.Save(ctx, block, v, true); err != nil {
		return zero, err
	}
	c.logger.Debug("entity created", "id", id, "block", block.Height)
	return v, nil
}

// Warm caches values already known to be persisted. Entries present in the
// cache are left untouched.
func (c *Cache[T]) Warm(block domain.Block, values []T) int {
	n := 0
	for _, v := range values {
		id := v.EntityID()
		if _, ok := c.entries[id]; ok {
			continue
		}
		c.entries[id] = &entry[T]{value: v, persistedAt: block.Height}
		n++
	}
	return n
}

// Peek returns the cached entity without touching the store.
func (c *Cache[T]) Peek(id string) (T, bool) {
	e, ok := c.entries[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Save marks v dirty and writes it through if forced or stale.
func (c *Cache[T]) Save(ctx context.Context, block domain.Block, v T, force bool) error {
	id := v.EntityID()
	e, ok := c.entries[id]
	if !ok {
		e = &entry[T]{persistedAt: block.Height}
		c.entries[id] = e
	}
	e.value = v
	e.dirty = true

	if !force && block.Height-e.persistedAt <= c.threshold {
		return nil
	}

	if err := c.store.SaveBatch(ctx, []T{v}); err != nil {
		return fmt.Errorf("save %s %s: %w", c.name, id, err)
	}
	e.dirty = false
	e.persistedAt = block.Height
	observability.RecordEntitiesFlushed(c.name, 1)
	return nil
}

// Sync writes every dirty entry to the store in one batch.
func (c *Cache[T]) Sync(ctx context.Context, block domain.Block) error {
	ids := make([]string, 0, len(c.entries))
	for id, e := range c.entries {
		if e.dirty {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Strings(ids)

	batch := make([]T, len(ids))
	for i, id := range ids {
		batch[i] = c.entries[id].value
	}
	if err := c.store.SaveBatch(ctx, batch); err != nil {
		return fmt.Errorf("sync %s: %w", c.name, err)
	}

	for _, id := range ids {
		e := c.entries[id]
		e.dirty = false
		e.persistedAt = block.Height
	}
	observability.RecordEntitiesFlushed(c.name, len(batch))
	c.logger.Debug("synced", "entities", len(batch), "block", block.Height)
	return nil
}

// Evict drops clean entries matching pred from memory. The store is untouched.
// Dirty entries are kept so no write is lost.
func (c *Cache[T]) Evict(pred func(T) bool) int {
	n := 0
	for id, e := range c.entries {
		if !e.dirty && pred(e.value) {
			delete(c.entries, id)
			n++
		}
	}
	if n > 0 {
		observability.RecordEvictions(c.name, n)
	}
	return n
}

// Values returns the cached entities ordered by id.
func (c *Cache[T]) Values() []T {
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = c.entries[id].value
	}
	return out
}

// Len returns the number of cached entities.
func (c *Cache[T]) Len() int { return len(c.entries) }

// Dirty returns the number of entries awaiting a write.
func (c *Cache[T]) Dirty() int {
	n := 0
	for _, e := range c.entries {
		if e.dirty {
			n++
		}
	}
	return n
}

// Reset drops every entry, dirty or not.
func (c *Cache[T]) Reset() {
	c.entries = make(map[string]*entry[T])
}
