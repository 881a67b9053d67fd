package catalog

import "sync"

// entryCache is an in-memory postal-code cache with FIFO-approximate trimming.
// Postal-code mappings are effectively static, so there is no TTL; when the
// cache grows past capacity the oldest quarter of entries is evicted.
type entryCache struct {
	mu       sync.RWMutex
	capacity int
	order    []string
	entries  map[string]*CatalogEntry
}

func newEntryCache(capacity int) *entryCache {
	if capacity <= 0 {
		capacity = 200
	}
	return &entryCache{
		capacity: capacity,
		entries:  make(map[string]*CatalogEntry, capacity),
	}
}

func (c *entryCache) get(postalCode string) *CatalogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[postalCode]
}

func (c *entryCache) put(entry *CatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[entry.PostalCode]; !exists {
		c.order = append(c.order, entry.PostalCode)
	}
	c.entries[entry.PostalCode] = entry

	if len(c.entries) > c.capacity {
		evict := c.capacity / 4
		if evict < 1 {
			evict = 1
		}
		for _, key := range c.order[:evict] {
			delete(c.entries, key)
		}
		c.order = append([]string(nil), c.order[evict:]...)
	}
}

func (c *entryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.entries = make(map[string]*CatalogEntry, c.capacity)
}

func (c *entryCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
