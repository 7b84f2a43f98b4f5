package system

import (
	"math"
	"time"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/data"
	"github.com/wildvale/server/internal/sim"
)

const (
	// Resting restores energy at this rate per second; a creature wakes once
	// energy is back near full.
	restRecoveryRate = 0.05
	wakeEnergyAbove  = 0.95
)

// NeedsSystem decays every living creature's needs at its species rates and
// advances age. Resting creatures recover energy instead of draining it.
type NeedsSystem struct {
	world   *sim.World
	species *data.SpeciesTable
}

func NewNeedsSystem(world *sim.World, species *data.SpeciesTable) *NeedsSystem {
	return &NeedsSystem{world: world, species: species}
}

func (s *NeedsSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *NeedsSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	store := s.world.Creatures()
	store.Each(func(id ecs.EntityID, c sim.Creature) {
		if c.State == decision.StateDead {
			return
		}
		sp := s.species.Get(c.Species)
		if sp == nil {
			return
		}
		store.Mutate(id, func(c *sim.Creature) {
			c.Age += secs
			c.Needs.Hunger = math.Min(1, c.Needs.Hunger+sp.HungerRate*secs)
			c.Needs.Thirst = math.Min(1, c.Needs.Thirst+sp.ThirstRate*secs)
			c.Needs.Social = math.Min(1, c.Needs.Social+sp.SocialRate*secs)

			if c.State == decision.StateResting {
				c.Needs.Energy = math.Min(1, c.Needs.Energy+restRecoveryRate*secs)
				if c.Needs.Energy > wakeEnergyAbove {
					c.State = decision.StateIdle
				}
			} else {
				c.Needs.Energy = math.Max(0, c.Needs.Energy-sp.EnergyRate*secs)
			}
		})
	})
}
