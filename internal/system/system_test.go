package system

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/event"
	"github.com/wildvale/server/internal/core/spatial"
	"github.com/wildvale/server/internal/data"
	"github.com/wildvale/server/internal/persist"
	"github.com/wildvale/server/internal/sim"
)

func newTestWorld(t *testing.T) (*sim.World, *data.SpeciesTable) {
	t.Helper()
	species := data.NewSpeciesTable([]data.Species{
		{
			Name:             "rabbit",
			Diet:             "herbivore",
			MaxHealth:        20,
			MoveSpeed:        6,
			PerceptionRadius: 25,
			HungerRate:       0.01,
			ThirstRate:       0.02,
			EnergyRate:       0.005,
			SocialRate:       0.004,
		},
	})
	resources := data.NewResourceTable([]data.ResourceTemplate{
		{Name: "berry_bush", Kind: "food", MaxAmount: 80, RegenRate: 0.5, ConsumeRate: 4},
	})
	return sim.NewWorld(10, species, resources, nil, event.NewBus(), zap.NewNop()), species
}

func spawnAt(t *testing.T, w *sim.World, species string, x, y float64) ecs.EntityID {
	t.Helper()
	id, err := w.SpawnCreature(species, spatial.Vec2{X: x, Y: y})
	if err != nil {
		t.Fatalf("spawn %s: %v", species, err)
	}
	return id
}

func TestNeedsDecayAtSpeciesRates(t *testing.T) {
	w, species := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)

	sys := NewNeedsSystem(w, species)
	sys.Update(10 * time.Second)

	c, _ := w.Creatures().Get(id)
	if math.Abs(c.Needs.Hunger-0.3) > 1e-9 {
		t.Fatalf("hunger: %v", c.Needs.Hunger)
	}
	if math.Abs(c.Needs.Thirst-0.4) > 1e-9 {
		t.Fatalf("thirst: %v", c.Needs.Thirst)
	}
	if math.Abs(c.Needs.Energy-0.95) > 1e-9 {
		t.Fatalf("energy: %v", c.Needs.Energy)
	}
	if c.Age != 10 {
		t.Fatalf("age: %v", c.Age)
	}
}

func TestNeedsClampAtOne(t *testing.T) {
	w, species := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Creatures().Mutate(id, func(c *sim.Creature) {
		c.Needs.Thirst = 0.99
	})

	sys := NewNeedsSystem(w, species)
	sys.Update(10 * time.Second)

	c, _ := w.Creatures().Get(id)
	if c.Needs.Thirst != 1 {
		t.Fatalf("thirst not clamped: %v", c.Needs.Thirst)
	}
}

func TestRestingRecoversEnergyAndWakes(t *testing.T) {
	w, species := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Creatures().Mutate(id, func(c *sim.Creature) {
		c.State = decision.StateResting
		c.Needs.Energy = 0.5
	})

	sys := NewNeedsSystem(w, species)
	sys.Update(2 * time.Second)

	c, _ := w.Creatures().Get(id)
	if math.Abs(c.Needs.Energy-0.6) > 1e-9 {
		t.Fatalf("energy after rest: %v", c.Needs.Energy)
	}
	if c.State != decision.StateResting {
		t.Fatalf("woke too early: %v", c.State)
	}

	// Enough rest pushes energy past the wake threshold.
	sys.Update(8 * time.Second)
	c, _ = w.Creatures().Get(id)
	if c.State != decision.StateIdle {
		t.Fatalf("still resting at energy %v", c.Needs.Energy)
	}
}

func TestNeedsSkipDeadCreatures(t *testing.T) {
	w, species := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Kill(id, "test")

	sys := NewNeedsSystem(w, species)
	sys.Update(10 * time.Second)

	c, _ := w.Creatures().Get(id)
	if c.Age != 0 || c.Needs.Hunger != 0.2 {
		t.Fatalf("dead creature mutated: %+v", c)
	}
}

func TestCriticalThirstDamagesAndKills(t *testing.T) {
	w, _ := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Creatures().Mutate(id, func(c *sim.Creature) {
		c.Needs.Thirst = 1
	})

	sys := NewHealthSystem(w)
	sys.Update(time.Second)

	c, _ := w.Creatures().Get(id)
	want := 20 - 20*criticalDamageRate
	if math.Abs(c.Health-want) > 1e-9 {
		t.Fatalf("health: %v want %v", c.Health, want)
	}

	var died event.CreatureDied
	event.Subscribe(w.Bus(), func(ev event.CreatureDied) { died = ev })

	w.Creatures().Mutate(id, func(c *sim.Creature) {
		c.Health = 0.001
	})
	sys.Update(time.Second)

	c, _ = w.Creatures().Get(id)
	if c.State != decision.StateDead {
		t.Fatalf("state: %v", c.State)
	}

	w.Bus().SwapBuffers()
	w.Bus().DispatchAll()
	if died.Entity != id || died.Cause != "dehydration" {
		t.Fatalf("death event: %+v", died)
	}
}

func TestDehydrationOutranksStarvation(t *testing.T) {
	n := decision.NeedState{Hunger: 1, Thirst: 1, Energy: 0}
	if got := criticalCause(n); got != "dehydration" {
		t.Fatalf("cause: %q", got)
	}
	n.Thirst = 0.5
	if got := criticalCause(n); got != "starvation" {
		t.Fatalf("cause: %q", got)
	}
	n.Hunger = 0.5
	if got := criticalCause(n); got != "exhaustion" {
		t.Fatalf("cause: %q", got)
	}
	n.Energy = 0.5
	if got := criticalCause(n); got != "" {
		t.Fatalf("cause: %q", got)
	}
}

func TestComfortableCreatureRecoversHealth(t *testing.T) {
	w, _ := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Creatures().Mutate(id, func(c *sim.Creature) {
		c.Health = 10
	})

	sys := NewHealthSystem(w)
	sys.Update(time.Second)

	c, _ := w.Creatures().Get(id)
	want := 10 + 20*healthRecoveryRate
	if math.Abs(c.Health-want) > 1e-9 {
		t.Fatalf("health: %v want %v", c.Health, want)
	}
}

func TestResourceRegenClampsAtMax(t *testing.T) {
	w, _ := newTestWorld(t)
	id, err := w.SpawnResource("berry_bush", spatial.Vec2{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("spawn resource: %v", err)
	}
	w.Resources().Mutate(id, func(r *sim.ResourceNode) {
		r.Amount = 79.9
	})

	sys := NewResourceRegenSystem(w)
	sys.Update(time.Second)

	r, _ := w.Resources().Get(id)
	if r.Amount != 80 {
		t.Fatalf("amount: %v", r.Amount)
	}
}

type fakeSnapshotter struct {
	blob []byte
	err  error
	tick uint64
}

func (f *fakeSnapshotter) Snapshot() ([]byte, error) { return f.blob, f.err }
func (f *fakeSnapshotter) CurrentTick() uint64       { return f.tick }

type fakeSaver struct {
	saves []uint64
	err   error
}

func (f *fakeSaver) SaveSnapshot(_ context.Context, tick uint64, _ []byte) error {
	if f.err != nil {
		return f.err
	}
	f.saves = append(f.saves, tick)
	return nil
}

func TestAutosaveRunsOnInterval(t *testing.T) {
	src := &fakeSnapshotter{blob: []byte("blob"), tick: 7}
	saver := &fakeSaver{}
	sys := NewAutosaveSystem(src, saver, 3, zap.NewNop())

	for i := 0; i < 7; i++ {
		sys.Update(time.Second)
	}
	if len(saver.saves) != 2 {
		t.Fatalf("saves: %v", saver.saves)
	}
	if saver.saves[0] != 7 {
		t.Fatalf("saved tick: %v", saver.saves[0])
	}
}

func TestAutosaveSurvivesSaveFailure(t *testing.T) {
	src := &fakeSnapshotter{blob: []byte("blob")}
	saver := &fakeSaver{err: errors.New("db down")}
	sys := NewAutosaveSystem(src, saver, 1, zap.NewNop())

	sys.Update(time.Second)
	sys.Update(time.Second)
	if len(saver.saves) != 0 {
		t.Fatalf("saves: %v", saver.saves)
	}
}

type fakeJournal struct {
	batches [][]persist.JournalEntry
	err     error
}

func (f *fakeJournal) Append(_ context.Context, entries []persist.JournalEntry) error {
	if f.err != nil {
		return f.err
	}
	batch := make([]persist.JournalEntry, len(entries))
	copy(batch, entries)
	f.batches = append(f.batches, batch)
	return nil
}

func TestJournalBuffersAndFlushes(t *testing.T) {
	bus := event.NewBus()
	writer := &fakeJournal{}
	sys := NewJournalSystem(bus, writer, zap.NewNop())

	// Dispatch runs one tick after emission; entries must carry the tick the
	// event was emitted on, not the tick it was delivered on.
	event.Emit(bus, event.CreatureSpawned{Entity: 5, Species: "rabbit", Tick: 12})
	event.Emit(bus, event.CreatureDied{Entity: 6, Species: "rabbit", Cause: "starvation", Tick: 12})
	event.Emit(bus, event.ResourceDepleted{Entity: 9, Tick: 12})
	bus.SwapBuffers()
	bus.DispatchAll()

	sys.Update(time.Second)
	if len(writer.batches) != 1 {
		t.Fatalf("batches: %d", len(writer.batches))
	}
	batch := writer.batches[0]
	if len(batch) != 3 {
		t.Fatalf("entries: %d", len(batch))
	}
	if batch[0].Kind != "spawn" || batch[0].Entity != 5 || batch[0].Tick != 12 {
		t.Fatalf("spawn entry: %+v", batch[0])
	}
	if batch[1].Kind != "death" || batch[1].Detail != "starvation" {
		t.Fatalf("death entry: %+v", batch[1])
	}
	if batch[2].Kind != "depleted" || batch[2].Entity != 9 {
		t.Fatalf("depleted entry: %+v", batch[2])
	}

	// Nothing pending, nothing written.
	sys.Update(time.Second)
	if len(writer.batches) != 1 {
		t.Fatalf("flushed empty batch: %d", len(writer.batches))
	}
}

func TestJournalKeepsBatchOnFailure(t *testing.T) {
	bus := event.NewBus()
	writer := &fakeJournal{err: errors.New("db down")}
	sys := NewJournalSystem(bus, writer, zap.NewNop())

	event.Emit(bus, event.CreatureSpawned{Entity: 5, Species: "rabbit", Tick: 1})
	bus.SwapBuffers()
	bus.DispatchAll()

	sys.Update(time.Second)
	if len(writer.batches) != 0 {
		t.Fatalf("batches after failure: %d", len(writer.batches))
	}

	writer.err = nil
	sys.Update(time.Second)
	if len(writer.batches) != 1 || len(writer.batches[0]) != 1 {
		t.Fatalf("retry batches: %+v", writer.batches)
	}
}

func TestObserverPublishesFrame(t *testing.T) {
	w, _ := newTestWorld(t)
	spawnAt(t, w, "rabbit", 3, 4)

	var got sim.Frame
	pub := framePublisherFunc(func(f sim.Frame) { got = f })
	sys := NewObserverSystem(w, pub, func() uint64 { return 8 })
	sys.Update(time.Second)

	if got.Tick != 8 || len(got.Creatures) != 1 {
		t.Fatalf("frame: %+v", got)
	}
	if got.Creatures[0].Species != "rabbit" || got.Creatures[0].X != 3 {
		t.Fatalf("creature frame: %+v", got.Creatures[0])
	}
}

type framePublisherFunc func(sim.Frame)

func (f framePublisherFunc) Broadcast(fr sim.Frame) { f(fr) }

func TestCleanupDestroysQueued(t *testing.T) {
	w, _ := newTestWorld(t)
	id := spawnAt(t, w, "rabbit", 0, 0)
	w.Kill(id, "test")

	sys := NewCleanupSystem(w, zap.NewNop())
	sys.Update(time.Second)

	if w.Live() != 0 {
		t.Fatalf("live after cleanup: %d", w.Live())
	}
	if _, ok := w.Creatures().Get(id); ok {
		t.Fatal("creature component survived cleanup")
	}
}
