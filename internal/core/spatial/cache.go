package spatial

import "github.com/wildvale/server/internal/core/ecs"

const defaultCacheCapacity = 256

// regionKey is the quantized identity of a radius query: the center's cell
// coordinates plus the radius in whole cells. Queries that quantize to the
// same key share one candidate-set scan.
type regionKey struct {
	CellX int32
	CellY int32
	Range int32
}

type cachedRegion struct {
	candidates []ecs.EntityID
	stamps     map[CellCoord]uint64
}

// queryCache holds candidate sets for quantized regions, each stamped with the
// version of every cell the scan touched. Invalidation is lazy: entries are
// never swept on mutation, only rejected at lookup when any stamped version
// has moved on.
type queryCache struct {
	entries  map[regionKey]*cachedRegion
	capacity int
}

func newQueryCache(capacity int) *queryCache {
	return &queryCache{
		entries:  make(map[regionKey]*cachedRegion, capacity),
		capacity: capacity,
	}
}

// lookup returns the cached candidate set if every touched cell still reports
// its stamped version. A stale entry is dropped on the spot.
func (c *queryCache) lookup(key regionKey, versions map[CellCoord]uint64) ([]ecs.EntityID, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	for cell, stamped := range entry.stamps {
		if versions[cell] != stamped {
			delete(c.entries, key)
			return nil, false
		}
	}
	return entry.candidates, true
}

// store records a freshly scanned candidate set. When the cache is full it is
// cleared wholesale: entries are cheap to recompute and a sweep would cost
// more than the refills.
func (c *queryCache) store(key regionKey, candidates []ecs.EntityID, stamps map[CellCoord]uint64) {
	if len(c.entries) >= c.capacity {
		c.entries = make(map[regionKey]*cachedRegion, c.capacity)
	}
	c.entries[key] = &cachedRegion{candidates: candidates, stamps: stamps}
}

func (c *queryCache) len() int { return len(c.entries) }
