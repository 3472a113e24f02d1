// Package results keeps a bounded, time-ordered cache of finalized session outcomes.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/studyroom/internal/domain/model"
	"github.com/okian/studyroom/pkg/logger"
	"github.com/okian/studyroom/pkg/metrics"
)

// Default cache configuration constants.
const (
	DefaultKey   = "session_results"
	DefaultLimit = 100
	// BackupPrefix namespaces copies of corrupt payloads away from live keys.
	BackupPrefix = "corrupt:"
)

// KV is the durable string store the cache persists its snapshot in.
type KV interface {
	// Get returns ok=false when key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Cache holds at most limit ResultItems under one key, newest first.
// All mutations rewrite the full snapshot; the mutex makes this process the
// single writer of its key. Caches of one Registry share a lock per key.
type Cache struct {
	mu     *sync.Mutex
	kv     KV
	key    string
	limit  int
	logger logger.Logger
}

// NewCache creates a cache stored under key in kv.
func NewCache(kv KV, key string, opts ...Option) *Cache {
	c := &Cache{
		mu:     &sync.Mutex{},
		kv:     kv,
		key:    key,
		limit:  DefaultLimit,
		logger: logger.Get().Named("results"),
	}
	if c.key == "" {
		c.key = DefaultKey
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the storage key of the snapshot.
func (c *Cache) Key() string { return c.key }

// Load returns the cached items, newest first. Absent, unreadable or corrupt
// storage yields an empty slice.
func (c *Cache) Load(ctx context.Context) []model.ResultItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.read(ctx)
	if err != nil {
		c.logger.Warn(ctx, "result cache unreadable; returning empty",
			logger.String("key", c.key),
			logger.Error(err),
		)
		return []model.ResultItem{}
	}
	return items
}

// Upsert replaces the item with the same RoomID (or adds it), re-sorts,
// trims to the bound and persists the snapshot. Same-room upserts are
// last-write-wins with no field merge.
func (c *Cache) Upsert(ctx context.Context, item model.ResultItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.read(ctx)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", item.RoomID, err)
	}

	merged := make([]model.ResultItem, 0, len(items)+1)
	merged = append(merged, item)
	for _, it := range items {
		if it.RoomID != item.RoomID {
			merged = append(merged, it)
		}
	}
	sortNewestFirst(merged)

	evicted := 0
	if len(merged) > c.limit {
		evicted = len(merged) - c.limit
		merged = merged[:c.limit]
	}

	if err := c.write(ctx, merged); err != nil {
		return fmt.Errorf("upsert %s: %w", item.RoomID, err)
	}
	metrics.RecordResultCacheWrite(evicted)
	return nil
}

// Clear removes the whole snapshot.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("clear %s: %w", c.key, err)
	}
	return nil
}

// read returns the stored items. Only a failing store is an error; a corrupt
// payload is moved aside and treated as empty.
func (c *Cache) read(ctx context.Context) ([]model.ResultItem, error) {
	raw, ok, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !ok || raw == "" {
		return []model.ResultItem{}, nil
	}

	var items []model.ResultItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.discard(ctx, raw, err)
		return []model.ResultItem{}, nil
	}
	return normalize(items, c.limit), nil
}

func (c *Cache) write(ctx context.Context, items []model.ResultItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.kv.Set(ctx, c.key, string(raw)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (c *Cache) discard(ctx context.Context, raw string, cause error) {
	metrics.RecordResultCacheCorrupt()
	c.logger.Warn(ctx, "discarding corrupt result cache payload",
		logger.String("key", c.key),
		logger.String("backup", BackupPrefix+c.key),
		logger.Error(cause),
	)
	if err := c.kv.Set(ctx, BackupPrefix+c.key, raw); err != nil {
		c.logger.Warn(ctx, "corrupt payload backup failed", logger.Error(err))
	}
	if err := c.kv.Delete(ctx, c.key); err != nil {
		c.logger.Warn(ctx, "corrupt payload delete failed", logger.Error(err))
	}
}

// normalize sorts newest first, keeps the newest entry per room and bounds the length.
func normalize(items []model.ResultItem, limit int) []model.ResultItem {
	sortNewestFirst(items)
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if it.RoomID == "" {
			continue
		}
		if _, dup := seen[it.RoomID]; dup {
			continue
		}
		seen[it.RoomID] = struct{}{}
		out = append(out, it)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortNewestFirst(items []model.ResultItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].FinalizedAt > items[j].FinalizedAt })
}
