package decision

import (
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/spatial"
)

// Kind is the discrete decision outcome.
type Kind uint8

const (
	KindIdle Kind = iota
	KindMove
	KindConsume
	KindRest
	KindSocialize
	KindFlee
)

func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindMove:
		return "move"
	case KindConsume:
		return "consume"
	case KindRest:
		return "rest"
	case KindSocialize:
		return "socialize"
	case KindFlee:
		return "flee"
	}
	return "unknown"
}

// Decision is the outcome of evaluating one agent's context. Only the fields
// relevant to the Kind are meaningful.
type Decision struct {
	Kind     Kind
	Target   spatial.Vec2 // Move: destination; Flee: unit direction
	Subject  ecs.EntityID // Consume: resource node; Socialize: other creature
	Resource ResourceKind // Consume only
	Urgency  float64      // Move only, [0,1]
	Duration float64      // Rest only, seconds
}

// Idle is the safe default substituted when an agent's evaluation fails.
func Idle() Decision {
	return Decision{Kind: KindIdle}
}
