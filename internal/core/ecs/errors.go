package ecs

import "fmt"

// StaleEntityError is returned when an operation is attempted through an
// EntityID whose generation no longer matches the registry. The caller held a
// reference to an entity that has since been despawned (and possibly had its
// slot reused). Treat as "not found"; never retry.
type StaleEntityError struct {
	Entity EntityID
}

func (e *StaleEntityError) Error() string {
	return fmt.Sprintf("stale entity reference: slot %d generation %d", e.Entity.Index(), e.Entity.Generation())
}
