package navigator

import (
	"sync"

	"github.com/gigapi/gigapi-zoomview/core"
	"github.com/gigapi/gigapi-zoomview/metrics"
)

// Cache holds the views of the current neighbourhood: the last resolved view and its four
// neighbours. Keys outside the live set are never stored.
type Cache struct {
	mu      sync.RWMutex
	entries map[uint64]*core.ViewResult
	live    map[uint64]struct{}
}

// NewCache creates a new Cache
func NewCache() *Cache {
	return &Cache{
		entries: make(map[uint64]*core.ViewResult),
		live:    make(map[uint64]struct{}),
	}
}

func (c *Cache) Get(key uint64) (*core.ViewResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[key]
	return res, ok
}

func (c *Cache) Has(key uint64) bool {
	_, ok := c.Get(key)
	return ok
}

// IsLive reports whether key belongs to the current neighbourhood
func (c *Cache) IsLive(key uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.live[key]
	return ok
}

// Settle stores the resolved view and makes {current, neighbours} the live set, evicting every
// other entry. It returns the number of evicted entries.
func (c *Cache) Settle(current uint64, res *core.ViewResult, neighbours []uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live = make(map[uint64]struct{}, len(neighbours)+1)
	c.live[current] = struct{}{}
	for _, k := range neighbours {
		c.live[k] = struct{}{}
	}
	c.entries[current] = res
	evicted := 0
	for k := range c.entries {
		if _, ok := c.live[k]; !ok {
			delete(c.entries, k)
			evicted++
		}
	}
	metrics.CacheEvictions.Add(float64(evicted))
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return evicted
}

// PutIfLive stores a prefetched view unless its key left the neighbourhood meanwhile
func (c *Cache) PutIfLive(key uint64, res *core.ViewResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[key]; !ok {
		return false
	}
	c.entries[key] = res
	metrics.CacheEntries.Set(float64(len(c.entries)))
	return true
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the stored keys in no particular order
func (c *Cache) Keys() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]uint64, 0, len(c.entries))
	for k := range c.entries {
		res = append(res, k)
	}
	return res
}
