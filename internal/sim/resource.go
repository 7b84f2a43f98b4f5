package sim

import "github.com/wildvale/server/internal/core/decision"

// ResourceNode is the component carried by a food or water node. Amount
// regenerates toward MaxAmount at RegenRate units per second while the node is
// not depleted by consumers faster than it refills.
type ResourceNode struct {
	Name        string
	Kind        decision.ResourceKind
	Amount      float64
	MaxAmount   float64
	RegenRate   float64
	ConsumeRate float64
}

// Depleted reports whether the node has nothing left to give.
func (r ResourceNode) Depleted() bool {
	return r.Amount <= 0
}
