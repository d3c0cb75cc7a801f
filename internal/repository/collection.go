package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/persistence"
)

// ErrNotFound is returned when an id is absent from a collection.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateID is returned when inserting an id that already exists.
var ErrDuplicateID = errors.New("duplicate id")

// Snapshot keys, one per store.
const (
	TicketsKey       = "saf-ticket-storage"
	EvaluationsKey   = "saf-coordinator-evaluations"
	NotificationsKey = "saf-coordinator-notifications"
	AuditKey         = "saf-audit-storage"
)

// collection is an insertion-ordered set of records guarded by a mutex.
// After every mutation the whole slice is serialized as JSON and handed to
// the snapshot store. Save failures are logged and otherwise ignored.
type collection[T any] struct {
	mu        sync.RWMutex
	key       string
	items     []T
	index     map[string]int
	idOf      func(*T) string
	clone     func(T) T
	snapshots persistence.SnapshotStore
	logger    *zap.Logger
}

func newCollection[T any](key string, snapshots persistence.SnapshotStore, logger *zap.Logger, idOf func(*T) string, clone func(T) T) *collection[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &collection[T]{
		key:       key,
		index:     make(map[string]int),
		idOf:      idOf,
		clone:     clone,
		snapshots: snapshots,
		logger:    logger,
	}
}

// load replaces the collection with the persisted snapshot, if any.
func (c *collection[T]) load(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	data, err := c.snapshots.Load(ctx, c.key)
	if errors.Is(err, persistence.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", c.key, err)
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("decode %s: %w", c.key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.reindex()
	c.logger.Info("store loaded", zap.String("key", c.key), zap.Int("count", len(items)))
	return nil
}

func (c *collection[T]) reindex() {
	c.index = make(map[string]int, len(c.items))
	for i := range c.items {
		c.index[c.idOf(&c.items[i])] = i
	}
}

// persist must be called with the write lock held.
func (c *collection[T]) persist(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	data, err := json.Marshal(c.items)
	if err != nil {
		c.logger.Warn("encode snapshot", zap.String("key", c.key), zap.Error(err))
		return
	}
	if err := c.snapshots.Save(ctx, c.key, data); err != nil {
		c.logger.Warn("save snapshot", zap.String("key", c.key), zap.Error(err))
	}
}

func (c *collection[T]) insert(ctx context.Context, item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.idOf(&item)
	if _, exists := c.index[id]; exists {
		return ErrDuplicateID
	}
	c.items = append(c.items, c.clone(item))
	c.index[id] = len(c.items) - 1
	c.persist(ctx)
	return nil
}

func (c *collection[T]) replace(ctx context.Context, item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[c.idOf(&item)]
	if !ok {
		return ErrNotFound
	}
	c.items[pos] = c.clone(item)
	c.persist(ctx)
	return nil
}

// updateIf runs mutate on a copy of the item under the write lock. The copy
// replaces the stored item only when mutate returns nil.
func (c *collection[T]) updateIf(ctx context.Context, id string, mutate func(*T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	pos, ok := c.index[id]
	if !ok {
		return zero, ErrNotFound
	}
	item := c.clone(c.items[pos])
	if err := mutate(&item); err != nil {
		return zero, err
	}
	c.items[pos] = c.clone(item)
	c.persist(ctx)
	return item, nil
}

func (c *collection[T]) remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.index[id]
	if !ok {
		return ErrNotFound
	}
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	c.reindex()
	c.persist(ctx)
	return nil
}

// removeWhere deletes every item drop selects and returns how many went.
func (c *collection[T]) removeWhere(ctx context.Context, drop func(*T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.items[:0]
	removed := 0
	for i := range c.items {
		if drop(&c.items[i]) {
			removed++
			continue
		}
		kept = append(kept, c.items[i])
	}
	if removed == 0 {
		return 0
	}
	c.items = kept
	c.reindex()
	c.persist(ctx)
	return removed
}

// updateWhere applies fn to every item, persisting once if any reported a change.
func (c *collection[T]) updateWhere(ctx context.Context, fn func(*T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := 0
	for i := range c.items {
		if fn(&c.items[i]) {
			changed++
		}
	}
	if changed > 0 {
		c.persist(ctx)
	}
	return changed
}

func (c *collection[T]) get(id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pos, ok := c.index[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return c.clone(c.items[pos]), nil
}

// filter returns copies of matching items in insertion order. A nil match selects all.
func (c *collection[T]) filter(match func(*T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.items))
	for i := range c.items {
		if match == nil || match(&c.items[i]) {
			out = append(out, c.clone(c.items[i]))
		}
	}
	return out
}

func (c *collection[T]) count(match func(*T) bool) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for i := range c.items {
		if match(&c.items[i]) {
			n++
		}
	}
	return n
}
