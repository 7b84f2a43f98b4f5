package sim

import (
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/spatial"
	coresys "github.com/wildvale/server/internal/core/system"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineWorkers(t, 4)
}

func newTestEngineWorkers(t *testing.T, workers int) *Engine {
	t.Helper()
	w := newTestWorld(t)
	return NewEngine(w, coresys.NewRunner(), Options{
		CellSize:      10,
		CacheCapacity: 256,
		CacheTTLTicks: 0,
		Workers:       workers,
	}, zap.NewNop())
}

func TestEngineTickMovesHungryCreatureTowardFood(t *testing.T) {
	e := newTestEngine(t)
	w := e.World()
	id, _ := w.SpawnCreature("rabbit", spatial.Vec2{X: 0, Y: 0})
	if _, err := w.SpawnResource("berry_bush", spatial.Vec2{X: 5, Y: 0}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.Creatures().Mutate(id, func(c *Creature) { c.Needs.Hunger = 0.9 })

	for i := 0; i < 3; i++ {
		if err := e.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if e.CurrentTick() != 3 {
		t.Fatalf("tick counter: %d", e.CurrentTick())
	}

	pos, _ := w.Grid().Position(id)
	if pos.X <= 0 {
		t.Fatalf("hungry rabbit did not move toward food: %+v", pos)
	}
	c, _ := w.Creatures().Get(id)
	if c.State != decision.StateMoving && c.State != decision.StateEating {
		t.Fatalf("state: %v", c.State)
	}
}

func TestEngineCachesStableContexts(t *testing.T) {
	e := newTestEngine(t)
	w := e.World()
	id, _ := w.SpawnCreature("rabbit", spatial.Vec2{X: 0, Y: 0})
	// A resting creature with no urgent needs decides Idle and commits no
	// change, so its context is bit-identical across ticks.
	w.Creatures().Mutate(id, func(c *Creature) { c.State = decision.StateResting })

	for i := 0; i < 3; i++ {
		if err := e.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	stats := e.CacheStats()
	if stats.Hits < 1 {
		t.Fatalf("expected cache hits for an unchanged context: %+v", stats)
	}
}

func TestEngineTickDeterministicAcrossWorkerCounts(t *testing.T) {
	build := func(workers int) *Engine {
		e := newTestEngineWorkers(t, workers)
		w := e.World()
		for _, pos := range []spatial.Vec2{{X: 0, Y: 0}, {X: 3, Y: 1}, {X: -2, Y: 4}, {X: 6, Y: -3}} {
			id, err := w.SpawnCreature("rabbit", pos)
			if err != nil {
				t.Fatalf("spawn rabbit: %v", err)
			}
			w.Creatures().Mutate(id, func(c *Creature) { c.Needs.Hunger = 0.85 })
		}
		if _, err := w.SpawnCreature("wolf", spatial.Vec2{X: 10, Y: 10}); err != nil {
			t.Fatalf("spawn wolf: %v", err)
		}
		if _, err := w.SpawnResource("berry_bush", spatial.Vec2{X: 8, Y: 0}); err != nil {
			t.Fatalf("spawn bush: %v", err)
		}
		return e
	}

	// The committed outcome of a tick may not depend on worker scheduling,
	// and the decision cache is part of that outcome: a hit can only replay
	// the same agent's own earlier decision.
	serial := build(1)
	parallel := build(8)
	for i := 0; i < 5; i++ {
		if err := serial.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("serial tick %d: %v", i, err)
		}
		if err := parallel.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("parallel tick %d: %v", i, err)
		}
		a := serial.World().RenderFrame(serial.CurrentTick())
		b := parallel.World().RenderFrame(parallel.CurrentTick())
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("tick %d diverged:\n1 worker:  %+v\n8 workers: %+v", i+1, a, b)
		}
	}
}

// corruptPutCache reports corruption on every insert, as if the shard's LRU
// bookkeeping were broken and rebuilt each time.
type corruptPutCache struct {
	inner decisionCache
}

func (c *corruptPutCache) Get(key uint64, tick uint64) (decision.Decision, bool) {
	return c.inner.Get(key, tick)
}

func (c *corruptPutCache) Put(uint64, decision.Decision, uint64) error {
	return &decision.CorruptionError{Shard: 3, Detail: "list length 1 != map length 0"}
}

func (c *corruptPutCache) Stats() decision.CacheStats { return c.inner.Stats() }

func TestEngineKeepsDecisionOnCacheCorruption(t *testing.T) {
	e := newTestEngine(t)
	e.cache = &corruptPutCache{inner: e.cache}
	w := e.World()
	id, _ := w.SpawnCreature("rabbit", spatial.Vec2{X: 0, Y: 0})
	if _, err := w.SpawnResource("berry_bush", spatial.Vec2{X: 5, Y: 0}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.Creatures().Mutate(id, func(c *Creature) { c.Needs.Hunger = 0.9 })

	for i := 0; i < 3; i++ {
		if err := e.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}

	// Corruption rebuilds the shard but the freshly computed decision is
	// still valid; the hungry rabbit keeps moving instead of idling.
	pos, _ := w.Grid().Position(id)
	if pos.X <= 0 {
		t.Fatalf("decision discarded on cache corruption: %+v", pos)
	}
	c, _ := w.Creatures().Get(id)
	if c.State != decision.StateMoving && c.State != decision.StateEating {
		t.Fatalf("state after corrupted puts: %v", c.State)
	}
}

func TestEngineSnapshotRestoreRewindsTick(t *testing.T) {
	e := newTestEngine(t)
	w := e.World()
	if _, err := w.SpawnCreature("rabbit", spatial.Vec2{X: 0, Y: 0}); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	if err := e.Tick(100 * time.Millisecond); err != nil {
		t.Fatalf("tick: %v", err)
	}
	blob, err := e.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := e.Tick(100 * time.Millisecond); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	if e.CurrentTick() != 5 {
		t.Fatalf("tick before restore: %d", e.CurrentTick())
	}

	if err := e.Restore(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if e.CurrentTick() != 1 {
		t.Fatalf("tick after restore: %d", e.CurrentTick())
	}
	if err := e.Tick(100 * time.Millisecond); err != nil {
		t.Fatalf("tick after restore: %v", err)
	}
}
