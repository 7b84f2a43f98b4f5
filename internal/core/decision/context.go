package decision

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/spatial"
)

// AgentState mirrors the creature's behavioral state at context-gather time.
type AgentState uint8

const (
	StateIdle AgentState = iota
	StateMoving
	StateEating
	StateDrinking
	StateResting
	StateDead
)

func (s AgentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateEating:
		return "eating"
	case StateDrinking:
		return "drinking"
	case StateResting:
		return "resting"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// ResourceKind distinguishes consumable resource nodes.
type ResourceKind uint8

const (
	ResourceFood ResourceKind = iota
	ResourceWater
)

// Relation classifies a nearby creature from the agent's point of view.
type Relation uint8

const (
	RelationFriendly Relation = iota
	RelationNeutral
	RelationHostile
)

// ResourceInfo describes one perceivable resource node.
type ResourceInfo struct {
	Entity   ecs.EntityID
	Position spatial.Vec2
	Kind     ResourceKind
	Amount   float64
	Distance float64
}

// CreatureInfo describes one perceivable creature.
type CreatureInfo struct {
	Entity   ecs.EntityID
	Position spatial.Vec2
	Relation Relation
	Distance float64
}

// ThreatInfo describes a perceived threat.
type ThreatInfo struct {
	Position spatial.Vec2
	Level    float64
	Distance float64
}

// NeedState is the agent's need levels, all in [0,1]. Hunger, thirst and
// social grow toward 1 as they become urgent; energy drains toward 0.
type NeedState struct {
	Hunger float64
	Thirst float64
	Energy float64
	Social float64
}

// NeedKind names one of the decayable needs.
type NeedKind uint8

const (
	NeedHunger NeedKind = iota
	NeedThirst
	NeedEnergy
)

// MostUrgent returns the need with the highest urgency. Energy urgency is
// inverted: low energy is urgent.
func (n NeedState) MostUrgent() (NeedKind, float64) {
	kind, urgency := NeedEnergy, 1.0-n.Energy
	if n.Hunger > urgency {
		kind, urgency = NeedHunger, n.Hunger
	}
	if n.Thirst > urgency {
		kind, urgency = NeedThirst, n.Thirst
	}
	return kind, urgency
}

// Context is a read-only snapshot of everything an agent can perceive,
// gathered before the parallel decision phase. The nearby slices come from
// spatial queries and are ordered ascending by entity id, which keeps
// evaluation deterministic.
type Context struct {
	Entity   ecs.EntityID
	Position spatial.Vec2
	State    AgentState
	Needs    NeedState
	Health   float64 // fraction of max, [0,1]
	Species  string

	Resources []ResourceInfo
	Creatures []CreatureInfo
	Threats   []ThreatInfo
}

// Quantization buckets: positions round to the nearest world unit, fractional
// stats to 5% steps, distances to whole cells. Near-identical situations
// collapse to one cache key.
const (
	statBuckets = 20 // 5% steps
)

func bucketFrac(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(math.Round(v * statBuckets))
}

// CacheKey hashes the quantized context. cellSize supplies the distance
// bucket width. The hash covers everything Evaluate reads, including the
// owning entity id: Evaluate seeds its tie-break RNG from the entity, so two
// agents in the same quantized situation may still decide differently and
// must not share a cache entry. Hits come from the same agent revisiting a
// quantized situation within the TTL.
func (c *Context) CacheKey(cellSize float64) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeI32 := func(v int32) {
		binary.LittleEndian.PutUint32(buf[:4], uint32(v))
		h.Write(buf[:4])
	}

	writeU64(uint64(c.Entity))
	h.Write([]byte{byte(c.State)})
	h.Write([]byte(c.Species))
	writeI32(int32(math.Round(c.Position.X)))
	writeI32(int32(math.Round(c.Position.Y)))
	h.Write([]byte{
		bucketFrac(c.Needs.Hunger),
		bucketFrac(c.Needs.Thirst),
		bucketFrac(c.Needs.Energy),
		bucketFrac(c.Needs.Social),
		bucketFrac(c.Health),
	})

	distBucket := func(d float64) uint64 {
		if cellSize <= 0 {
			return uint64(math.Round(d))
		}
		return uint64(math.Round(d / cellSize))
	}

	for _, r := range c.Resources {
		writeU64(uint64(r.Entity))
		h.Write([]byte{byte(r.Kind), bucketFrac(r.Amount / maxResourceAmount)})
		writeU64(distBucket(r.Distance))
	}
	for _, cr := range c.Creatures {
		writeU64(uint64(cr.Entity))
		h.Write([]byte{byte(cr.Relation)})
		writeU64(distBucket(cr.Distance))
	}
	for _, th := range c.Threats {
		h.Write([]byte{bucketFrac(th.Level)})
		writeU64(distBucket(th.Distance))
	}

	return h.Sum64()
}

// maxResourceAmount normalizes resource amounts into [0,1] for bucketing.
// Amounts above this clamp to the top bucket.
const maxResourceAmount = 100.0
