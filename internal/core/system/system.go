package system

import "time"

// Phase defines execution ordering of auxiliary systems within a single tick.
// The gather/decide/commit pipeline itself is owned by the tick controller;
// these phases order everything that runs around it.
type Phase int

const (
	PhasePreTick    Phase = iota // 0: dispatch last tick's events
	PhaseUpdate                  // 1: need decay, resource regeneration
	PhasePostUpdate              // 2: health consequences, respawn checks
	PhaseOutput                  // 3: publish observer snapshots
	PhasePersist                 // 4: journal flush + periodic snapshot save
	PhaseCleanup                 // 5: destroy queued entities
)

// System is the interface every auxiliary system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
