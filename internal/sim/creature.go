package sim

import (
	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
)

// Diet classifies what a species eats. It controls which neighbors count as
// threats during perception.
type Diet uint8

const (
	DietHerbivore Diet = iota
	DietCarnivore
	DietOmnivore
)

func (d Diet) String() string {
	switch d {
	case DietHerbivore:
		return "herbivore"
	case DietCarnivore:
		return "carnivore"
	case DietOmnivore:
		return "omnivore"
	}
	return "unknown"
}

// DietFromString maps the YAML diet field. Unknown values default to herbivore.
func DietFromString(s string) Diet {
	switch s {
	case "carnivore":
		return DietCarnivore
	case "omnivore":
		return DietOmnivore
	}
	return DietHerbivore
}

// Creature is the component carried by every simulated animal. Needs and
// health are fractions except Health/MaxHealth which are absolute points.
type Creature struct {
	Species     string
	Diet        Diet
	State       decision.AgentState
	Needs       decision.NeedState
	Health      float64
	MaxHealth   float64
	Orientation float64 // radians, facing of last movement
	Age         float64 // seconds alive

	// Consuming is the resource node the creature is eating or drinking from,
	// zero otherwise.
	Consuming ecs.EntityID
}
