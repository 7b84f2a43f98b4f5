package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/event"
	"github.com/wildvale/server/internal/core/fault"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/core/tick"
)

// Options are the tunables the engine needs from config.
type Options struct {
	CellSize      float64
	CacheCapacity int
	CacheTTLTicks uint64
	Workers       int
}

// decisionCache is the slice of decision.Cache the engine uses. Narrowed to
// an interface so tests can inject failing caches.
type decisionCache interface {
	Get(key uint64, tick uint64) (decision.Decision, bool)
	Put(key uint64, d decision.Decision, tick uint64) error
	Stats() decision.CacheStats
}

// Engine wires the world, the tick controller, the decision cache, and the
// auxiliary system runner into one Tick entry point.
type Engine struct {
	world      *World
	controller *tick.Controller
	runner     *coresys.Runner
	bus        *event.Bus
	cache      decisionCache
	cellSize   float64
	log        *zap.Logger
}

func NewEngine(world *World, runner *coresys.Runner, opts Options, log *zap.Logger) *Engine {
	e := &Engine{
		world:    world,
		runner:   runner,
		bus:      world.Bus(),
		cache:    decision.NewCache(opts.CacheCapacity, opts.CacheTTLTicks),
		cellSize: opts.CellSize,
		log:      log,
	}
	e.controller = tick.NewController(world, e.evaluate, fault.NewBoundary(log), opts.Workers, log)
	return e
}

func (e *Engine) World() *World             { return e.world }
func (e *Engine) Runner() *coresys.Runner   { return e.runner }
func (e *Engine) CurrentTick() uint64       { return e.controller.Tick() }
func (e *Engine) CacheStats() decision.CacheStats {
	return e.cache.Stats()
}

// evaluate runs on the decision worker pool. It consults the shared cache
// under the quantized context key before computing; the key covers the owning
// entity id, so a hit can only replay the same agent's earlier decision and
// the committed outcome never depends on worker scheduling.
func (e *Engine) evaluate(ctx *decision.Context, tickNum uint64) (decision.Decision, error) {
	key := ctx.CacheKey(e.cellSize)
	if d, ok := e.cache.Get(key, tickNum); ok {
		return d, nil
	}
	d := decision.Evaluate(ctx, tickNum, e.world.ProfileFor(ctx.Species))
	if err := e.cache.Put(key, d, tickNum); err != nil {
		// Corruption is fatal for the cache only: the shard was rebuilt
		// empty, and the decision just computed is still valid.
		e.log.Warn("decision cache rebuilt", zap.Error(err))
	}
	return d, nil
}

// Tick advances the simulation by one step: last tick's events are swapped in
// and dispatched, pre-commit systems run, the gather/decide/commit pipeline
// executes, then output, persistence and cleanup systems run against the
// committed state.
func (e *Engine) Tick(dt time.Duration) error {
	e.world.SetTick(e.controller.Tick())
	e.bus.SwapBuffers()
	e.runner.TickPhase(coresys.PhasePreTick, dt)
	e.runner.TickPhase(coresys.PhaseUpdate, dt)

	e.world.SetDelta(dt)
	if err := e.controller.RunTick(dt); err != nil {
		return err
	}

	e.runner.TickPhase(coresys.PhasePostUpdate, dt)
	e.runner.TickPhase(coresys.PhaseOutput, dt)
	e.runner.TickPhase(coresys.PhasePersist, dt)
	e.runner.TickPhase(coresys.PhaseCleanup, dt)
	return nil
}

// Snapshot captures the world at the current tick.
func (e *Engine) Snapshot() ([]byte, error) {
	return e.world.Snapshot(e.controller.Tick())
}

// Restore replaces world state from a snapshot blob and rewinds the tick
// counter to the snapshot's tick.
func (e *Engine) Restore(blob []byte) error {
	t, err := e.world.Restore(blob)
	if err != nil {
		return err
	}
	e.controller.SetTick(t)
	e.log.Info("world restored from snapshot", zap.Uint64("tick", t))
	return nil
}
