package system

import (
	"time"

	"go.uber.org/zap"

	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/sim"
)

// CleanupSystem destroys entities queued for destruction during the tick:
// grid removal first, then despawn with component cleanup.
type CleanupSystem struct {
	world *sim.World
	log   *zap.Logger
}

func NewCleanupSystem(world *sim.World, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{world: world, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(time.Duration) {
	n, err := s.world.Cleanup()
	if err != nil {
		s.log.Error("entity cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Debug("entities destroyed", zap.Int("count", n))
	}
}
