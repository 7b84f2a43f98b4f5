package decision

import (
	"sync"
	"testing"
)

func TestCacheLRUEviction(t *testing.T) {
	// Single shard so capacity semantics are exact.
	c := NewCacheSharded(2, 0, 1)

	x, y, z := uint64(1), uint64(2), uint64(3)
	dx := Decision{Kind: KindRest, Duration: 1}
	dy := Decision{Kind: KindRest, Duration: 2}
	dz := Decision{Kind: KindRest, Duration: 3}

	if err := c.Put(x, dx, 0); err != nil {
		t.Fatalf("put x: %v", err)
	}
	if err := c.Put(y, dy, 0); err != nil {
		t.Fatalf("put y: %v", err)
	}
	if err := c.Put(z, dz, 0); err != nil {
		t.Fatalf("put z: %v", err)
	}

	if _, ok := c.Get(x, 0); ok {
		t.Fatalf("x survived eviction at capacity 2")
	}
	if got, ok := c.Get(y, 0); !ok || got != dy {
		t.Fatalf("y lookup: got %+v ok=%v", got, ok)
	}
	if got, ok := c.Get(z, 0); !ok || got != dz {
		t.Fatalf("z lookup: got %+v ok=%v", got, ok)
	}
}

func TestCacheGetRefreshesRecency(t *testing.T) {
	c := NewCacheSharded(2, 0, 1)
	dx := Decision{Kind: KindIdle}

	c.Put(1, dx, 0)
	c.Put(2, dx, 0)
	// Touch 1 so 2 becomes the LRU victim.
	if _, ok := c.Get(1, 0); !ok {
		t.Fatalf("warm lookup missed")
	}
	c.Put(3, dx, 0)

	if _, ok := c.Get(2, 0); ok {
		t.Fatalf("recently inserted but least-recently-used entry survived")
	}
	if _, ok := c.Get(1, 0); !ok {
		t.Fatalf("most-recently-used entry evicted")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c := NewCacheSharded(8, 5, 1)
	d := Decision{Kind: KindMove}

	c.Put(1, d, 10)
	if _, ok := c.Get(1, 14); !ok {
		t.Fatalf("entry expired before TTL horizon")
	}
	if _, ok := c.Get(1, 15); ok {
		t.Fatalf("entry survived past TTL horizon")
	}
	if c.Stats().Expirations != 1 {
		t.Fatalf("expiration not counted: %+v", c.Stats())
	}
}

func TestCachePutUpdatesExisting(t *testing.T) {
	c := NewCacheSharded(2, 0, 1)
	c.Put(1, Decision{Kind: KindIdle}, 0)
	c.Put(1, Decision{Kind: KindRest}, 3)

	got, ok := c.Get(1, 3)
	if !ok || got.Kind != KindRest {
		t.Fatalf("update lost: got %+v ok=%v", got, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("duplicate key grew the cache: len=%d", c.Len())
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := NewCache(256, 100)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := uint64(w*1000 + i%64)
				if _, ok := c.Get(key, uint64(i)); !ok {
					if err := c.Put(key, Decision{Kind: KindIdle}, uint64(i)); err != nil {
						t.Errorf("put: %v", err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Stats().Corruptions != 0 {
		t.Fatalf("concurrent access corrupted a shard: %+v", c.Stats())
	}
}
