package system

import (
	"sort"
	"time"
)

// Runner holds the registered systems in phase order and executes them each
// tick. Registration order is preserved within a phase.
type Runner struct {
	systems []System
	ordered bool
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 16)}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.ordered = false
}

// Tick runs every system once, in phase order.
func (r *Runner) Tick(dt time.Duration) {
	r.order()
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhase runs only the systems of one phase. The engine uses it to place
// the pre-commit and post-commit groups around the decision pipeline.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.order()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) order() {
	if r.ordered {
		return
	}
	sort.SliceStable(r.systems, func(i, j int) bool {
		return r.systems[i].Phase() < r.systems[j].Phase()
	})
	r.ordered = true
}
