package cache

import (
	"context"
	"sync"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/pkg/logger"
)

// MemoryCache keeps one entry per rate kind for the lifetime of the process.
type MemoryCache struct {
	entries map[model.RateKind]*model.CacheEntry
	mutex   sync.RWMutex
	log     *logger.Logger
}

func NewMemoryCache(log *logger.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[model.RateKind]*model.CacheEntry),
		log:     log,
	}
}

func (c *MemoryCache) Get(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, found := c.entries[kind]
	if !found {
		c.log.Debug("Cache miss", "kind", kind)
		return nil, false
	}

	c.log.Debug("Cache hit", "kind", kind, "source", entry.Source)
	return copyEntry(entry), true
}

func (c *MemoryCache) Set(ctx context.Context, kind model.RateKind, entry *model.CacheEntry) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[kind] = copyEntry(entry)
	c.log.Debug("Cache set", "kind", kind, "source", entry.Source, "count", len(entry.Rates))

	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	count := len(c.entries)
	c.entries = make(map[model.RateKind]*model.CacheEntry)
	c.log.Info("Cleared rate cache", "count", count)

	return nil
}

func copyEntry(entry *model.CacheEntry) *model.CacheEntry {
	return &model.CacheEntry{
		Timestamp: entry.Timestamp,
		Source:    entry.Source,
		Rates:     model.CloneRates(entry.Rates),
	}
}
