package system

import (
	"time"

	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/sim"
)

// FramePublisher receives one render frame per tick. Implemented by the
// websocket observer hub.
type FramePublisher interface {
	Broadcast(f sim.Frame)
}

// ObserverSystem publishes the committed world state to observers once per
// tick, after commit and before persistence.
type ObserverSystem struct {
	world *sim.World
	pub   FramePublisher
	tick  func() uint64
}

func NewObserverSystem(world *sim.World, pub FramePublisher, tick func() uint64) *ObserverSystem {
	return &ObserverSystem{world: world, pub: pub, tick: tick}
}

func (s *ObserverSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *ObserverSystem) Update(time.Duration) {
	s.pub.Broadcast(s.world.RenderFrame(s.tick()))
}
