package decision

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
)

// CorruptionError reports broken LRU bookkeeping in one cache shard. Fatal for
// the cache only: the shard is dropped and recreated empty, the simulation
// continues.
type CorruptionError struct {
	Shard  int
	Detail string
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("decision cache corruption in shard %d: %s", e.Shard, e.Detail)
}

// CacheStats are cumulative counters, safe to read from any goroutine.
type CacheStats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Corruptions uint64
}

type cacheEntry struct {
	key      uint64
	decision Decision
	tick     uint64
}

type cacheShard struct {
	mu    sync.Mutex
	order *list.List // front = most recently used
	items map[uint64]*list.Element
	cap   int
}

func newCacheShard(capacity int) *cacheShard {
	return &cacheShard{
		order: list.New(),
		items: make(map[uint64]*list.Element, capacity),
		cap:   capacity,
	}
}

// Cache maps quantized decision contexts to Decisions with LRU eviction and a
// tick-based expiry horizon. It is sharded by key hash: readers and writers of
// different shards never contend, and each shard's list/map pair is guarded by
// one mutex so concurrent inserts cannot corrupt recency order.
type Cache struct {
	shards   []*cacheShard
	ttlTicks uint64

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
	corruptions atomic.Uint64
}

const defaultShardCount = 16

// NewCache builds a cache with the default shard count. Total capacity is
// divided across shards.
func NewCache(capacity int, ttlTicks uint64) *Cache {
	shards := defaultShardCount
	if capacity < shards {
		shards = 1
	}
	return NewCacheSharded(capacity, ttlTicks, shards)
}

// NewCacheSharded builds a cache with an explicit shard count (used by tests
// and by per-worker partitioned setups).
func NewCacheSharded(capacity int, ttlTicks uint64, shardCount int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	if shardCount < 1 {
		shardCount = 1
	}
	perShard := capacity / shardCount
	if perShard < 1 {
		perShard = 1
	}
	c := &Cache{
		shards:   make([]*cacheShard, shardCount),
		ttlTicks: ttlTicks,
	}
	for i := range c.shards {
		c.shards[i] = newCacheShard(perShard)
	}
	return c
}

func (c *Cache) shardFor(key uint64) (int, *cacheShard) {
	i := int(key % uint64(len(c.shards)))
	return i, c.shards[i]
}

// Get returns the cached decision for a quantized context key, marking the
// entry most recently used. Entries older than the TTL are expired on lookup.
func (c *Cache) Get(key uint64, tick uint64) (Decision, bool) {
	_, s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		c.misses.Add(1)
		return Decision{}, false
	}
	e := el.Value.(*cacheEntry)
	if c.ttlTicks > 0 && tick >= e.tick+c.ttlTicks {
		s.order.Remove(el)
		delete(s.items, key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return Decision{}, false
	}
	s.order.MoveToFront(el)
	c.hits.Add(1)
	return e.decision, true
}

// Put inserts a computed decision, evicting the least recently used entry if
// the shard is at capacity. A detected bookkeeping violation rebuilds the
// shard empty and is reported as a CorruptionError.
func (c *Cache) Put(key uint64, d Decision, tick uint64) error {
	idx, s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if listLen, mapLen := s.order.Len(), len(s.items); listLen != mapLen {
		s.order = list.New()
		s.items = make(map[uint64]*list.Element, s.cap)
		c.corruptions.Add(1)
		return &CorruptionError{
			Shard:  idx,
			Detail: fmt.Sprintf("list length %d != map length %d", listLen, mapLen),
		}
	}

	if el, ok := s.items[key]; ok {
		e := el.Value.(*cacheEntry)
		e.decision = d
		e.tick = tick
		s.order.MoveToFront(el)
		return nil
	}

	el := s.order.PushFront(&cacheEntry{key: key, decision: d, tick: tick})
	s.items[key] = el
	if s.order.Len() > s.cap {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.items, oldest.Value.(*cacheEntry).key)
			c.evictions.Add(1)
		}
	}
	return nil
}

// Len returns the total number of live entries across shards.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Corruptions: c.corruptions.Load(),
	}
}
