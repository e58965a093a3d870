// Package cache keeps screening reports for the current catalog.
//
// A Screener screens the catalog over a rolling window on an interval and stores
// each report in a ReportCache. When the catalog store is refreshed the
// constellation is rebuilt and reports for older catalogs are dropped, without
// interrupting reads of the latest report.
package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/orbitscreen/internal/epoch"
	"github.com/star/orbitscreen/internal/events"
	"github.com/star/orbitscreen/internal/metrics"
)

// Key identifies a screening request against one catalog version. SatelliteID is
// 0 for an all-pairs report.
type Key struct {
	Version     uint64
	Start       epoch.Epoch
	End         epoch.Epoch
	Threshold   float64
	SatelliteID int
}

type cacheEntry struct {
	key      Key
	report   *events.Report
	storedAt time.Time
}

// ReportCache is a size-bounded LRU of screening reports.
// Safe for concurrent use by multiple goroutines.
type ReportCache struct {
	mu      sync.Mutex
	size    int
	order   *list.List // front is most recently used
	entries map[Key]*list.Element
	logger  *slog.Logger

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewReportCache creates a cache holding at most size reports (minimum 1).
func NewReportCache(size int, logger *slog.Logger) *ReportCache {
	if size < 1 {
		size = 1
	}
	c := &ReportCache{
		size:    size,
		order:   list.New(),
		entries: make(map[Key]*list.Element, size),
		logger:  logger.With("component", "report_cache"),
	}
	metrics.RegisterGaugeFunc("orbitscreen_report_cache_entries", "Screening reports held in the cache.",
		func() float64 { return float64(c.Len()) })
	c.logger.Info("report cache initialized", "size", size)
	return c
}

// Get returns the report stored under k.
func (c *ReportCache) Get(k Key) (*events.Report, bool) {
	c.mu.Lock()
	el, ok := c.entries[k]
	if ok {
		c.order.MoveToFront(el)
	}
	c.mu.Unlock()

	metrics.RecordCacheLookup(ok)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return el.Value.(*cacheEntry).report, true
}

// Put stores r under k, evicting the least recently used report when full.
func (c *ReportCache) Put(k Key, r *events.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[k]; ok {
		el.Value.(*cacheEntry).report = r
		el.Value.(*cacheEntry).storedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	c.entries[k] = c.order.PushFront(&cacheEntry{key: k, report: r, storedAt: time.Now()})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.evictions.Add(1)
	}
}

// InvalidateBefore drops every report computed against a catalog version older
// than version and returns how many were removed.
func (c *ReportCache) InvalidateBefore(version uint64) int {
	c.mu.Lock()
	var removed int
	for k, el := range c.entries {
		if k.Version < version {
			c.order.Remove(el)
			delete(c.entries, k)
			removed++
		}
	}
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		c.logger.Debug("cache invalidation", "entries_removed", removed, "version", version)
	}
	return removed
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns current cache statistics.
func (c *ReportCache) Stats() Stats {
	c.mu.Lock()
	count := c.order.Len()
	var oldest, newest time.Time
	for el := c.order.Front(); el != nil; el = el.Next() {
		at := el.Value.(*cacheEntry).storedAt
		if oldest.IsZero() || at.Before(oldest) {
			oldest = at
		}
		if at.After(newest) {
			newest = at
		}
	}
	c.mu.Unlock()

	return Stats{
		Entries:   count,
		Capacity:  c.size,
		Oldest:    oldest,
		Newest:    newest,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries   int       `json:"entries"`
	Capacity  int       `json:"capacity"`
	Oldest    time.Time `json:"oldest"`
	Newest    time.Time `json:"newest"`
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Evictions int64     `json:"evictions"`
	InCutover bool      `json:"in_cutover"`
}
