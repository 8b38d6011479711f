// Package fragcache maps fragment ids to bound executor vectors.
//
// Vectors are built once per id on the first Resolve and reused by every
// later execution. Entries are evicted in least-recently-used order when the
// engine asks for a purge, skipping entries pinned by an in-flight run. The
// cache is owned by one engine and is not safe for concurrent use.
package fragcache

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"sitekernel/pkg/dberror"
	"sitekernel/pkg/execution"
	"sitekernel/pkg/logging"
	"sitekernel/pkg/stats"
)

// Builder parses and binds the plan bytes of a fragment.
type Builder func(id int64, raw []byte) (*execution.Vector, error)

// Weigher returns the size estimate of one cached vector.
type Weigher func(v *execution.Vector) int64

// EntryWeight counts every vector as 1, so the aggregate size is the entry
// count.
func EntryWeight(*execution.Vector) int64 { return 1 }

// PlanBytes weighs a vector by the length of its serialized plan.
func PlanBytes(v *execution.Vector) int64 { return v.Size() }

type entry struct {
	vector *execution.Vector
	weight int64
	pins   int
}

// Cache is the fragment cache of one engine.
type Cache struct {
	lru    *simplelru.LRU[int64, *entry]
	build  Builder
	weigh  Weigher
	sink   stats.Sink
	size   int64
	evicts int64
}

// New creates an empty cache. A nil weigh counts entries; a nil sink drops
// statistics.
func New(build Builder, weigh Weigher, sink stats.Sink) *Cache {
	if weigh == nil {
		weigh = EntryWeight
	}
	if sink == nil {
		sink = stats.Discard{}
	}
	c := &Cache{build: build, weigh: weigh, sink: sink}
	c.lru = c.newLRU()
	return c
}

func (c *Cache) newLRU() *simplelru.LRU[int64, *entry] {
	// Capacity is unbounded; eviction happens only through Purge.
	lru, err := simplelru.NewLRU[int64, *entry](math.MaxInt, c.onEvict)
	if err != nil {
		panic(err)
	}
	return lru
}

func (c *Cache) onEvict(id int64, e *entry) {
	c.size -= e.weight
}

// Resolve returns the vector for id, building it from raw on a miss. A
// failed build leaves the cache untouched.
//
// Returns:
//   - *execution.Vector: the cached or newly built vector
//   - bool: true when the vector was already cached
//   - int64: the aggregate size estimate after the call
//   - error: the build error, if any
func (c *Cache) Resolve(id int64, raw []byte) (*execution.Vector, bool, int64, error) {
	if e, ok := c.lru.Get(id); ok {
		c.sink.Add(stats.PlanCacheHits, 1)
		return e.vector, true, c.size, nil
	}
	c.sink.Add(stats.PlanCacheMisses, 1)

	v, err := c.build(id, raw)
	if err != nil {
		return nil, false, c.size, err
	}
	e := &entry{vector: v, weight: c.weigh(v)}
	c.lru.Add(id, e)
	c.size += e.weight
	c.report()

	logging.WithFragment(id).Debug("fragment cached",
		"weight", e.weight, "cache_size", c.size, "entries", c.lru.Len())
	return v, false, c.size, nil
}

// Get returns a cached vector and marks it most recently used.
func (c *Cache) Get(id int64) (*execution.Vector, error) {
	e, ok := c.lru.Get(id)
	if !ok {
		return nil, dberror.New(dberror.ErrCategoryPlan, dberror.CodeUnknownFragment,
			"fragment not loaded").
			WithDetail("fragment %d", id).
			WithHint("load the plan bytes before executing the fragment").
			At("Get", "FragmentCache")
	}
	return e.vector, nil
}

// Contains reports whether id is cached without touching its recency.
func (c *Cache) Contains(id int64) bool { return c.lru.Contains(id) }

// Pin protects id from eviction until a matching Unpin.
func (c *Cache) Pin(id int64) {
	if e, ok := c.lru.Peek(id); ok {
		e.pins++
	}
}

func (c *Cache) Unpin(id int64) {
	if e, ok := c.lru.Peek(id); ok && e.pins > 0 {
		e.pins--
	}
}

// Purge evicts least-recently-used entries until the aggregate size is at
// most target. Pinned entries are skipped, so the result may stay above
// target. It returns the number of entries evicted.
func (c *Cache) Purge(target int64) int {
	evicted := 0
	for _, id := range c.lru.Keys() {
		if c.size <= target {
			break
		}
		e, ok := c.lru.Peek(id)
		if !ok || e.pins > 0 {
			continue
		}
		c.lru.Remove(id)
		evicted++
		logging.WithFragment(id).Debug("fragment evicted", "cache_size", c.size)
	}
	if evicted > 0 {
		c.evicts += int64(evicted)
		c.sink.Add(stats.PlanCacheEvictions, float64(evicted))
		c.report()
	}
	return evicted
}

// Clear drops every entry, pinned or not.
func (c *Cache) Clear() {
	n := c.lru.Len()
	c.lru = c.newLRU()
	c.size = 0
	c.report()
	if n > 0 {
		logging.WithComponent("fragcache").Info("fragment cache cleared", "entries", n)
	}
}

// Len is the number of cached vectors.
func (c *Cache) Len() int { return c.lru.Len() }

// Size is the aggregate size estimate of all cached vectors.
func (c *Cache) Size() int64 { return c.size }

// Evictions is the total number of entries evicted by Purge.
func (c *Cache) Evictions() int64 { return c.evicts }

// IDs lists cached fragment ids from least to most recently used.
func (c *Cache) IDs() []int64 { return c.lru.Keys() }

func (c *Cache) report() {
	c.sink.Set(stats.PlanCacheSize, float64(c.size))
	c.sink.Set(stats.PlanCacheEntries, float64(c.lru.Len()))
}
