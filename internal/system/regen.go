package system

import (
	"math"
	"time"

	"github.com/wildvale/server/internal/core/ecs"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/sim"
)

// ResourceRegenSystem refills resource nodes toward their maximum. Runs
// before the decision phase so creatures perceive the regenerated amounts.
type ResourceRegenSystem struct {
	world *sim.World
}

func NewResourceRegenSystem(world *sim.World) *ResourceRegenSystem {
	return &ResourceRegenSystem{world: world}
}

func (s *ResourceRegenSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *ResourceRegenSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	store := s.world.Resources()
	store.Each(func(id ecs.EntityID, r sim.ResourceNode) {
		if r.Amount >= r.MaxAmount || r.RegenRate <= 0 {
			return
		}
		store.Mutate(id, func(r *sim.ResourceNode) {
			r.Amount = math.Min(r.MaxAmount, r.Amount+r.RegenRate*secs)
		})
	})
}
