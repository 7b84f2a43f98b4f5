// Package tick orchestrates the per-tick pipeline: a read-only context
// gather, a parallel decision phase across a worker pool, and a strictly
// serial commit phase that owns every write to the registry and the spatial
// index.
package tick

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/fault"
)

// State names the controller's position in the tick pipeline.
type State int

const (
	Idle State = iota
	GatheringContexts
	DecidingParallel
	CommittingSerial
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case GatheringContexts:
		return "gathering"
	case DecidingParallel:
		return "deciding"
	case CommittingSerial:
		return "committing"
	}
	return "unknown"
}

// AgentContext pairs an agent with its gathered perception snapshot. A nil
// Ctx means required perception data was unavailable this tick; the boundary
// downgrades that agent to the idle no-op.
type AgentContext struct {
	Entity ecs.EntityID
	Ctx    *decision.Context
}

// Result is one agent's decided outcome, ready for the commit phase.
type Result struct {
	Entity   ecs.EntityID
	Decision decision.Decision
}

// Simulation is the surface the controller drives. GatherContexts must be
// read-only; Commit owns all mutation and must stage, validate, then apply;
// a returned error guarantees no staged update reached live state.
type Simulation interface {
	GatherContexts(tick uint64) ([]AgentContext, error)
	Commit(tick uint64, results []Result) error
}

// Evaluator computes one agent's decision. It runs concurrently across
// workers and must not touch mutable shared state beyond the decision cache.
type Evaluator func(ctx *decision.Context, tick uint64) (decision.Decision, error)

// Controller runs the Idle → GatheringContexts → DecidingParallel →
// CommittingSerial loop, once per external tick invocation.
type Controller struct {
	sim      Simulation
	eval     Evaluator
	boundary *fault.Boundary
	workers  int
	log      *zap.Logger

	state State
	tick  uint64
}

func NewController(sim Simulation, eval Evaluator, boundary *fault.Boundary, workers int, log *zap.Logger) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		sim:      sim,
		eval:     eval,
		boundary: boundary,
		workers:  workers,
		log:      log,
		state:    Idle,
	}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Tick() uint64 { return c.tick }

// RunTick advances the simulation by one tick. On a fatal error the tick
// counter does not advance and no partial commit has been applied; the caller
// decides whether to halt or restore from a snapshot.
func (c *Controller) RunTick(dt time.Duration) error {
	tick := c.tick
	defer func() { c.state = Idle }()

	c.state = GatheringContexts
	agents, err := c.sim.GatherContexts(tick)
	if err != nil {
		return fmt.Errorf("gather contexts (tick %d): %w", tick, err)
	}

	c.state = DecidingParallel
	results := make([]Result, len(agents))
	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for i := range agents {
		i := i
		agent := agents[i]
		g.Go(func() error {
			d, err := c.boundary.Decide(agent.Entity, tick, func() (decision.Decision, error) {
				if agent.Ctx == nil {
					return decision.Decision{}, fault.ErrContextMissing
				}
				return c.eval(agent.Ctx, tick)
			})
			if err != nil {
				return err
			}
			results[i] = Result{Entity: agent.Entity, Decision: d}
			return nil
		})
	}
	// Barrier: commit may not begin until every worker's result (or its
	// recoverable-failure fallback) has been collected.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("decision phase (tick %d): %w", tick, err)
	}

	c.state = CommittingSerial
	if err := c.boundary.Commit(tick, func() error {
		return c.sim.Commit(tick, results)
	}); err != nil {
		return fmt.Errorf("commit phase (tick %d): %w", tick, err)
	}

	c.tick++
	return nil
}

// SetTick overrides the tick counter; used when restoring from a snapshot.
func (c *Controller) SetTick(tick uint64) {
	c.tick = tick
}
