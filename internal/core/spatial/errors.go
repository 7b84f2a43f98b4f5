package spatial

import (
	"fmt"

	"github.com/wildvale/server/internal/core/ecs"
)

// InconsistencyError reports that a grid operation disagrees with the index's
// recorded cell membership: the grid has diverged from the registry's view of
// live entities. The containing tick must abort; the state is untrustworthy.
type InconsistencyError struct {
	Entity ecs.EntityID
	Op     string
	Cell   CellCoord
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("spatial inconsistency: %s entity slot=%d gen=%d cell=(%d,%d)",
		e.Op, e.Entity.Index(), e.Entity.Generation(), e.Cell.X, e.Cell.Y)
}
