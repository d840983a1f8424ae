package icon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type cacheEntry struct {
	img      *Image
	lastUsed time.Time
}

// Cache holds resolved images by load id.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*cacheEntry
	destroyed bool
	now       func() time.Time
	logger    *slog.Logger
}

// NewCache creates an empty cache.
func NewCache(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
		logger:  logger,
	}
}

// Get returns the image stored under id.
func (c *Cache) Get(id string) (*Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	entry.lastUsed = c.now()
	return entry.img, true
}

// Add stores img under id and returns the stored image. When id is already
// present the existing image wins and img is disposed.
func (c *Cache) Add(id string, img *Image) *Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return img
	}
	if entry, ok := c.entries[id]; ok {
		if entry.img != img {
			img.Dispose()
		}
		entry.lastUsed = c.now()
		return entry.img
	}
	c.entries[id] = &cacheEntry{img: img, lastUsed: c.now()}
	return img
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear evicts every entry. Images in use are disposed once released.
func (c *Cache) Clear() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()

	for _, entry := range entries {
		entry.img.Dispose()
	}
}

// Destroy clears the cache and stops accepting new entries.
func (c *Cache) Destroy() {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()
	c.Clear()
}

// GC evicts entries that are not in use and were not looked up within
// lifetime. It returns the number of evicted entries.
func (c *Cache) GC(lifetime time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := c.now().Add(-lifetime)
	removed := 0
	for id, entry := range c.entries {
		if entry.img.InUse() || entry.lastUsed.After(deadline) {
			continue
		}
		delete(c.entries, id)
		entry.img.Dispose()
		removed++
	}
	return removed
}

// Run collects idle entries every interval until ctx is done.
func (c *Cache) Run(ctx context.Context, interval, lifetime time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.GC(lifetime); n > 0 {
				c.logger.Debug("icon cache collected", "evicted", n)
			}
		}
	}
}
