package event

import (
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/spatial"
)

// CreatureSpawned is emitted when a creature enters the world. Tick is the
// tick the event happened on; the double-buffered bus delivers it one tick
// later, so consumers must not substitute their own clock.
type CreatureSpawned struct {
	Entity   ecs.EntityID
	Species  string
	Position spatial.Vec2
	Tick     uint64
}

// CreatureDied is emitted when a creature's health reaches zero. Cause is a
// short diagnostic label ("starvation", "dehydration", "exhaustion").
type CreatureDied struct {
	Entity   ecs.EntityID
	Species  string
	Position spatial.Vec2
	Cause    string
	Tick     uint64
}

// ResourceDepleted is emitted when a resource node's amount reaches zero.
type ResourceDepleted struct {
	Entity   ecs.EntityID
	Position spatial.Vec2
	Tick     uint64
}
