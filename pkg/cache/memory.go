package cache

import (
	"context"
	"sync"
	"time"

	"github.com/logflow/caseline/internal/model"
)

// MemoryCache is an in-process ResultCache with a size bound and entry age limit.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry
	size    int
	maxSize int
	maxAge  time.Duration
	hits    int64
	misses  int64
}

// Entry represents a cached case result.
type Entry struct {
	Result    *model.CaseResult
	CreatedAt time.Time
	ExpiresAt time.Time
	Hits      int64
}

// NewMemoryCache creates a new cache. maxAge <= 0 disables expiry.
func NewMemoryCache(maxSize int, maxAge time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]map[string]*Entry),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Get retrieves a cached result.
func (c *MemoryCache) Get(_ context.Context, namespace, caseID string) (*model.CaseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[namespace][caseID]
	if !ok {
		c.misses++
		return nil, ErrMiss
	}

	// Check expiration
	if c.maxAge > 0 && time.Now().After(entry.ExpiresAt) {
		c.remove(namespace, caseID)
		c.misses++
		return nil, ErrMiss
	}

	entry.Hits++
	c.hits++
	return entry.Result, nil
}

// Put stores a result in the cache.
func (c *MemoryCache) Put(_ context.Context, namespace string, result *model.CaseResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ns, ok := c.entries[namespace]
	if !ok {
		ns = make(map[string]*Entry)
		c.entries[namespace] = ns
	}

	if _, exists := ns[result.CaseID]; !exists {
		// Evict if at capacity
		if c.maxSize > 0 && c.size >= c.maxSize {
			c.evictOldest()
		}
		c.size++
	}

	now := time.Now()
	ns[result.CaseID] = &Entry{
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(c.maxAge),
	}
	return nil
}

// Invalidate drops every entry of a namespace.
func (c *MemoryCache) Invalidate(_ context.Context, namespace string) error {
	c.mu.Lock()
	c.size -= len(c.entries[namespace])
	delete(c.entries, namespace)
	c.mu.Unlock()
	return nil
}

// Close clears the cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.entries = make(map[string]map[string]*Entry)
	c.size = 0
	c.mu.Unlock()
	return nil
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Entries: c.size,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.hitRate(),
	}
}

func (c *MemoryCache) hitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

func (c *MemoryCache) remove(namespace, caseID string) {
	ns := c.entries[namespace]
	if _, ok := ns[caseID]; !ok {
		return
	}
	delete(ns, caseID)
	c.size--
	if len(ns) == 0 {
		delete(c.entries, namespace)
	}
}

func (c *MemoryCache) evictOldest() {
	var (
		oldest              *Entry
		oldestNS, oldestKey string
	)

	for ns, entries := range c.entries {
		for key, entry := range entries {
			if oldest == nil || entry.CreatedAt.Before(oldest.CreatedAt) {
				oldest = entry
				oldestNS, oldestKey = ns, key
			}
		}
	}

	if oldest != nil {
		c.remove(oldestNS, oldestKey)
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	HitRate float64
}
