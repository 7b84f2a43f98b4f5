package system

import (
	"math"
	"time"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/sim"
)

const (
	// Fraction of max health lost per second while a need is critical, and
	// recovered per second while all needs are comfortable.
	criticalDamageRate = 0.02
	healthRecoveryRate = 0.01
	comfortableBelow   = 0.5
)

// HealthSystem turns critical needs into damage and kills creatures whose
// health reaches zero. Runs after commit so deaths from this tick drop out of
// the next tick's perception.
type HealthSystem struct {
	world *sim.World
}

func NewHealthSystem(world *sim.World) *HealthSystem {
	return &HealthSystem{world: world}
}

func (s *HealthSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *HealthSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	store := s.world.Creatures()

	type casualty struct {
		id    ecs.EntityID
		cause string
	}
	var casualties []casualty

	store.Each(func(id ecs.EntityID, c sim.Creature) {
		if c.State == decision.StateDead {
			return
		}
		cause := criticalCause(c.Needs)
		if cause == "" {
			if c.Needs.Hunger < comfortableBelow && c.Needs.Thirst < comfortableBelow && c.Health < c.MaxHealth {
				store.Mutate(id, func(c *sim.Creature) {
					c.Health = math.Min(c.MaxHealth, c.Health+c.MaxHealth*healthRecoveryRate*secs)
				})
			}
			return
		}

		dead := false
		store.Mutate(id, func(c *sim.Creature) {
			c.Health -= c.MaxHealth * criticalDamageRate * secs
			dead = c.Health <= 0
		})
		if dead {
			casualties = append(casualties, casualty{id: id, cause: cause})
		}
	})

	// Kill outside the Each loop: it mutates the store and queues destruction.
	for _, cs := range casualties {
		s.world.Kill(cs.id, cs.cause)
	}
}

// criticalCause returns the label of the worst critical need, or "" when none
// is critical. Priority order matches the urgency of dying from each.
func criticalCause(n decision.NeedState) string {
	switch {
	case n.Thirst >= 1:
		return "dehydration"
	case n.Hunger >= 1:
		return "starvation"
	case n.Energy <= 0:
		return "exhaustion"
	}
	return ""
}
