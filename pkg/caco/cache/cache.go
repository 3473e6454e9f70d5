// Package cache provides thread-safe caching of fetched grid series with
// TTL so repeated planning cycles over the same window do not hammer the
// upstream providers.
package cache

import (
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

// GridSeries is one cached forecast bundle.
type GridSeries struct {
	Carbon []domain.CarbonPoint
	Price  []domain.PricePoint
}

// Key identifies a cached series by region and planning window.
func Key(region string, from, to time.Time) string {
	return fmt.Sprintf("%s|%s|%s", region, domain.FormatTime(from), domain.FormatTime(to))
}

type cacheEntry struct {
	series    *GridSeries
	timestamp time.Time
	hits      int64
}

// SeriesCache caches grid series keyed by region+window.
type SeriesCache struct {
	data   map[string]*cacheEntry
	mutex  sync.RWMutex
	ttl    time.Duration
	maxAge time.Duration
	stopCh chan struct{}
}

// New creates a cache. Entries older than ttl are misses; entries
// unaccessed past maxAge are evicted by a background sweep.
func New(ttl, maxAge time.Duration) *SeriesCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	c := &SeriesCache{
		data:   make(map[string]*cacheEntry),
		ttl:    ttl,
		maxAge: maxAge,
		stopCh: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a series if it is still fresh.
func (c *SeriesCache) Get(key string) (*GridSeries, bool) {
	c.mutex.RLock()
	entry, exists := c.data[key]
	c.mutex.RUnlock()

	if !exists {
		return nil, false
	}
	if time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}

	c.mutex.Lock()
	entry.hits++
	c.mutex.Unlock()

	return entry.series, true
}

// Set stores a series.
func (c *SeriesCache) Set(key string, series *GridSeries) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[key] = &cacheEntry{
		series:    series,
		timestamp: time.Now(),
	}

	klog.V(4).InfoS("Cached grid series",
		"key", key,
		"carbonPoints", len(series.Carbon),
		"pricePoints", len(series.Price))
}

// Size returns the number of cached entries.
func (c *SeriesCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all entries.
func (c *SeriesCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[string]*cacheEntry)
}

// Close stops the cleanup goroutine.
func (c *SeriesCache) Close() {
	close(c.stopCh)
}

func (c *SeriesCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *SeriesCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for key, entry := range c.data {
		age := now.Sub(entry.timestamp)
		if age > c.maxAge {
			delete(c.data, key)
			klog.V(4).InfoS("Removed expired grid series",
				"key", key,
				"age", age.String(),
				"hits", entry.hits)
		}
	}
}
