package tick

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/fault"
	"github.com/wildvale/server/internal/core/spatial"
)

// fakeSim records committed results and can inject failures.
type fakeSim struct {
	mu        sync.Mutex
	agents    []AgentContext
	committed [][]Result
	commitErr error
}

func (s *fakeSim) GatherContexts(tick uint64) ([]AgentContext, error) {
	return s.agents, nil
}

func (s *fakeSim) Commit(tick uint64, results []Result) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Result, len(results))
	copy(cp, results)
	s.committed = append(s.committed, cp)
	return nil
}

func makeAgents(n int) []AgentContext {
	agents := make([]AgentContext, 0, n)
	for i := 0; i < n; i++ {
		id := ecs.NewEntityID(uint32(i), 0)
		agents = append(agents, AgentContext{
			Entity: id,
			Ctx: &decision.Context{
				Entity:   id,
				Position: spatial.Vec2{X: float64(i), Y: float64(i)},
				State:    decision.StateIdle,
				Needs:    decision.NeedState{Hunger: 0.5, Energy: 0.8},
			},
		})
	}
	return agents
}

func evalViaProfile(ctx *decision.Context, tick uint64) (decision.Decision, error) {
	return decision.Evaluate(ctx, tick, decision.DefaultProfile()), nil
}

func TestWorkerCountDoesNotChangeOutcome(t *testing.T) {
	boundary := fault.NewBoundary(zap.NewNop())

	run := func(workers int) []Result {
		sim := &fakeSim{agents: makeAgents(64)}
		c := NewController(sim, evalViaProfile, boundary, workers, zap.NewNop())
		if err := c.RunTick(time.Millisecond); err != nil {
			t.Fatalf("tick with %d workers: %v", workers, err)
		}
		if len(sim.committed) != 1 {
			t.Fatalf("expected exactly one commit, got %d", len(sim.committed))
		}
		results := sim.committed[0]
		sort.Slice(results, func(i, j int) bool { return results[i].Entity < results[j].Entity })
		return results
	}

	serial := run(1)
	parallel := run(8)

	if len(serial) != len(parallel) {
		t.Fatalf("result counts differ: %d vs %d", len(serial), len(parallel))
	}
	for i := range serial {
		if serial[i] != parallel[i] {
			t.Fatalf("result %d differs between 1 and 8 workers:\n  serial:   %+v\n  parallel: %+v",
				i, serial[i], parallel[i])
		}
	}
}

func TestMissingContextDowngradesToIdle(t *testing.T) {
	boundary := fault.NewBoundary(zap.NewNop())
	id := ecs.NewEntityID(3, 0)
	sim := &fakeSim{agents: []AgentContext{{Entity: id, Ctx: nil}}}
	c := NewController(sim, evalViaProfile, boundary, 2, zap.NewNop())

	if err := c.RunTick(time.Millisecond); err != nil {
		t.Fatalf("tick: %v", err)
	}
	got := sim.committed[0][0]
	if got.Entity != id || got.Decision.Kind != decision.KindIdle {
		t.Fatalf("missing context result: %+v, want idle for %v", got, id)
	}
}

func TestFatalDecisionAbortsBeforeCommit(t *testing.T) {
	boundary := fault.NewBoundary(zap.NewNop())
	sim := &fakeSim{agents: makeAgents(4)}
	wantErr := &spatial.InconsistencyError{Op: "move unindexed"}

	evalFatal := func(ctx *decision.Context, tick uint64) (decision.Decision, error) {
		if ctx.Entity.Index() == 2 {
			return decision.Decision{}, wantErr
		}
		return decision.Idle(), nil
	}

	c := NewController(sim, evalFatal, boundary, 4, zap.NewNop())
	err := c.RunTick(time.Millisecond)
	var inc *spatial.InconsistencyError
	if !errors.As(err, &inc) {
		t.Fatalf("fatal decision error not propagated: %v", err)
	}
	if len(sim.committed) != 0 {
		t.Fatalf("commit ran after fatal decision failure")
	}
	if c.Tick() != 0 {
		t.Fatalf("tick counter advanced after abort: %d", c.Tick())
	}
	if c.State() != Idle {
		t.Fatalf("controller not back to idle after abort: %v", c.State())
	}
}

func TestFatalCommitAbortsTick(t *testing.T) {
	boundary := fault.NewBoundary(zap.NewNop())
	wantErr := &spatial.InconsistencyError{Op: "remove unindexed"}
	sim := &fakeSim{agents: makeAgents(2), commitErr: wantErr}
	c := NewController(sim, evalViaProfile, boundary, 2, zap.NewNop())

	err := c.RunTick(time.Millisecond)
	var inc *spatial.InconsistencyError
	if !errors.As(err, &inc) {
		t.Fatalf("fatal commit error not propagated: %v", err)
	}
	if c.Tick() != 0 {
		t.Fatalf("tick counter advanced after commit abort")
	}
}

func TestTickCounterAdvances(t *testing.T) {
	boundary := fault.NewBoundary(zap.NewNop())
	sim := &fakeSim{agents: makeAgents(1)}
	c := NewController(sim, evalViaProfile, boundary, 1, zap.NewNop())

	for i := 0; i < 3; i++ {
		if err := c.RunTick(time.Millisecond); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
	}
	if c.Tick() != 3 {
		t.Fatalf("tick counter: got %d want 3", c.Tick())
	}
}
