// Package system holds the auxiliary systems that run around the
// gather/decide/commit pipeline, ordered by the core runner's phases.
package system

import (
	"time"

	"github.com/wildvale/server/internal/core/event"
	coresys "github.com/wildvale/server/internal/core/system"
)

// EventDispatchSystem delivers last tick's events to their subscribers at the
// start of each tick. The engine swaps the bus buffers before PhasePreTick
// runs.
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreTick }

func (s *EventDispatchSystem) Update(time.Duration) {
	s.bus.DispatchAll()
}
