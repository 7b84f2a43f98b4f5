// Package sim owns the live world state: creatures, resource nodes, the
// spatial index, and the staged serial commit that is the only writer of all
// three. Perception gathering and decision evaluation never mutate anything
// here.
package sim

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/event"
	"github.com/wildvale/server/internal/core/spatial"
	"github.com/wildvale/server/internal/core/tick"
	"github.com/wildvale/server/internal/data"
)

const (
	nourishPerUnit   = 0.015 // need relief per unit of resource consumed
	fleeSpeedBoost   = 1.5
	socialRelief     = 0.3
	consumeDoneBelow = 0.05
)

// World holds all mutable simulation state. GatherContexts is read-only and
// safe to run concurrently with queries; Commit and Cleanup are the only
// writers and run on the tick goroutine.
type World struct {
	ecs       *ecs.World
	grid      *spatial.Grid
	creatures *ecs.Store[Creature]
	resources *ecs.Store[ResourceNode]
	species   *data.SpeciesTable
	restable  *data.ResourceTable
	profiles  map[string]decision.Profile
	bus       *event.Bus
	log       *zap.Logger

	dt             float64 // seconds, set by the engine before each tick
	tickNum        uint64  // current tick, stamped onto emitted events
	pendingDestroy []ecs.EntityID
}

func NewWorld(cellSize float64, species *data.SpeciesTable, resources *data.ResourceTable, profiles map[string]decision.Profile, bus *event.Bus, log *zap.Logger) *World {
	if profiles == nil {
		profiles = make(map[string]decision.Profile)
	}
	w := &World{
		ecs:       ecs.NewWorld(),
		grid:      spatial.NewGrid(cellSize),
		creatures: ecs.NewStore[Creature](),
		resources: ecs.NewStore[ResourceNode](),
		species:   species,
		restable:  resources,
		profiles:  profiles,
		bus:       bus,
		log:       log,
	}
	w.ecs.AttachStore(w.creatures)
	w.ecs.AttachStore(w.resources)
	return w
}

func (w *World) Grid() *spatial.Grid                 { return w.grid }
func (w *World) Creatures() *ecs.Store[Creature]     { return w.creatures }
func (w *World) Resources() *ecs.Store[ResourceNode] { return w.resources }
func (w *World) Bus() *event.Bus                     { return w.bus }
func (w *World) Live() int                           { return w.ecs.Registry().Live() }

// SetDelta records the tick delta used by the next Commit. Called by the
// engine before each tick; commit itself has no time parameter.
func (w *World) SetDelta(dt time.Duration) {
	w.dt = dt.Seconds()
}

// SetTick records the tick number stamped onto events emitted this tick.
func (w *World) SetTick(tickNum uint64) {
	w.tickNum = tickNum
}

// ProfileFor resolves the behavior profile for a species, falling back to the
// default weights when the species has no scripted behavior.
func (w *World) ProfileFor(species string) decision.Profile {
	if sp := w.species.Get(species); sp != nil && sp.Behavior != "" {
		if p, ok := w.profiles[sp.Behavior]; ok {
			return p
		}
	}
	return decision.DefaultProfile()
}

// SpawnCreature creates a creature of the given species at a position.
func (w *World) SpawnCreature(species string, pos spatial.Vec2) (ecs.EntityID, error) {
	sp := w.species.Get(species)
	if sp == nil {
		return 0, fmt.Errorf("spawn creature: unknown species %q", species)
	}
	id := w.ecs.Spawn()
	w.creatures.Set(id, Creature{
		Species:   species,
		Diet:      DietFromString(sp.Diet),
		State:     decision.StateIdle,
		Needs:     decision.NeedState{Hunger: 0.2, Thirst: 0.2, Energy: 1.0},
		Health:    sp.MaxHealth,
		MaxHealth: sp.MaxHealth,
	})
	if err := w.grid.Insert(id, pos); err != nil {
		w.creatures.Remove(id)
		_ = w.ecs.Registry().Despawn(id)
		return 0, fmt.Errorf("spawn creature: %w", err)
	}
	event.Emit(w.bus, event.CreatureSpawned{Entity: id, Species: species, Position: pos, Tick: w.tickNum})
	return id, nil
}

// SpawnResource creates a resource node of the given template at a position,
// starting at full amount.
func (w *World) SpawnResource(name string, pos spatial.Vec2) (ecs.EntityID, error) {
	tmpl := w.restable.Get(name)
	if tmpl == nil {
		return 0, fmt.Errorf("spawn resource: unknown resource %q", name)
	}
	kind := decision.ResourceFood
	if tmpl.Kind == "water" {
		kind = decision.ResourceWater
	}
	id := w.ecs.Spawn()
	w.resources.Set(id, ResourceNode{
		Name:        name,
		Kind:        kind,
		Amount:      tmpl.MaxAmount,
		MaxAmount:   tmpl.MaxAmount,
		RegenRate:   tmpl.RegenRate,
		ConsumeRate: tmpl.ConsumeRate,
	})
	if err := w.grid.Insert(id, pos); err != nil {
		w.resources.Remove(id)
		_ = w.ecs.Registry().Despawn(id)
		return 0, fmt.Errorf("spawn resource: %w", err)
	}
	return id, nil
}

// GatherContexts builds each live creature's perception snapshot. Read-only:
// it queries the grid and copies component state, in ascending entity id order
// so decision inputs are deterministic.
func (w *World) GatherContexts(tickNum uint64) ([]tick.AgentContext, error) {
	ids := make([]ecs.EntityID, 0, w.creatures.Len())
	w.creatures.Each(func(id ecs.EntityID, c Creature) {
		if c.State != decision.StateDead {
			ids = append(ids, id)
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	agents := make([]tick.AgentContext, 0, len(ids))
	for _, id := range ids {
		c, _ := w.creatures.Get(id)
		pos, indexed := w.grid.Position(id)
		sp := w.species.Get(c.Species)
		if !indexed || sp == nil {
			agents = append(agents, tick.AgentContext{Entity: id})
			continue
		}

		ctx := &decision.Context{
			Entity:   id,
			Position: pos,
			State:    c.State,
			Needs:    c.Needs,
			Health:   c.Health / c.MaxHealth,
			Species:  c.Species,
		}
		for _, nid := range w.grid.QueryRadius(pos, sp.PerceptionRadius) {
			if nid == id {
				continue
			}
			npos, ok := w.grid.Position(nid)
			if !ok {
				continue
			}
			dist := pos.DistanceTo(npos)

			if res, ok := w.resources.Get(nid); ok {
				ctx.Resources = append(ctx.Resources, decision.ResourceInfo{
					Entity:   nid,
					Position: npos,
					Kind:     res.Kind,
					Amount:   res.Amount,
					Distance: dist,
				})
				continue
			}
			other, ok := w.creatures.Get(nid)
			if !ok || other.State == decision.StateDead {
				continue
			}
			ctx.Creatures = append(ctx.Creatures, decision.CreatureInfo{
				Entity:   nid,
				Position: npos,
				Relation: relationBetween(c, other),
				Distance: dist,
			})
			if osp := w.species.Get(other.Species); osp != nil && osp.ThreatLevel > 0 && threatens(other, c) {
				ctx.Threats = append(ctx.Threats, decision.ThreatInfo{
					Position: npos,
					Level:    osp.ThreatLevel,
					Distance: dist,
				})
			}
		}
		agents = append(agents, tick.AgentContext{Entity: id, Ctx: ctx})
	}
	return agents, nil
}

// relationBetween classifies other from c's point of view.
func relationBetween(c, other Creature) decision.Relation {
	if c.Species == other.Species {
		return decision.RelationFriendly
	}
	if threatens(other, c) {
		return decision.RelationHostile
	}
	return decision.RelationNeutral
}

// threatens reports whether hunter preys on prey: a meat eater of a different
// species.
func threatens(hunter, prey Creature) bool {
	if hunter.Species == prey.Species {
		return false
	}
	return hunter.Diet == DietCarnivore || hunter.Diet == DietOmnivore
}

type stagedUpdate struct {
	id       ecs.EntityID
	move     bool
	to       spatial.Vec2
	creature Creature
}

type stagedConsume struct {
	creature ecs.EntityID
	node     ecs.EntityID
	kind     decision.ResourceKind
	take     float64
}

// Commit applies all decided outcomes for one tick. It stages every change
// first, validates the staged set against live state, then applies. A fatal
// error returns before the apply loop starts, so the caller sees either the
// full commit or none of it.
func (w *World) Commit(tickNum uint64, results []tick.Result) error {
	updates := make([]stagedUpdate, 0, len(results))
	consumes := make([]stagedConsume, 0, 16)

	// Stage. Reads only; skips stale references (cached decisions may outlive
	// the entities they name).
	for _, r := range results {
		if !w.ecs.Valid(r.Entity) {
			continue
		}
		c, ok := w.creatures.Get(r.Entity)
		if !ok || c.State == decision.StateDead {
			continue
		}
		pos, indexed := w.grid.Position(r.Entity)
		if !indexed {
			return &spatial.InconsistencyError{Entity: r.Entity, Op: "commit unindexed creature"}
		}
		sp := w.species.Get(c.Species)
		if sp == nil {
			w.log.Warn("creature with unknown species skipped",
				zap.Uint64("entity", uint64(r.Entity)),
				zap.String("species", c.Species))
			continue
		}

		switch d := r.Decision; d.Kind {
		case decision.KindIdle:
			switch c.State {
			case decision.StateEating, decision.StateDrinking:
				u, con, ok := w.stageContinueConsume(r.Entity, c)
				if ok {
					consumes = append(consumes, con)
				}
				updates = append(updates, u)
			case decision.StateMoving:
				c.State = decision.StateIdle
				updates = append(updates, stagedUpdate{id: r.Entity, creature: c})
			}

		case decision.KindMove:
			to := stepToward(pos, d.Target, sp.MoveSpeed*w.dt)
			c.State = decision.StateMoving
			c.Orientation = headingOf(to.Sub(pos), c.Orientation)
			c.Consuming = 0
			updates = append(updates, stagedUpdate{id: r.Entity, move: true, to: to, creature: c})

		case decision.KindFlee:
			to := pos.Add(d.Target.Scale(sp.MoveSpeed * fleeSpeedBoost * w.dt))
			c.State = decision.StateMoving
			c.Orientation = headingOf(d.Target, c.Orientation)
			c.Consuming = 0
			updates = append(updates, stagedUpdate{id: r.Entity, move: true, to: to, creature: c})

		case decision.KindConsume:
			res, rok := w.resourceFor(d.Subject)
			if !rok || res.Depleted() {
				c.State = decision.StateIdle
				c.Consuming = 0
				updates = append(updates, stagedUpdate{id: r.Entity, creature: c})
				continue
			}
			if d.Resource == decision.ResourceWater {
				c.State = decision.StateDrinking
			} else {
				c.State = decision.StateEating
			}
			c.Consuming = d.Subject
			updates = append(updates, stagedUpdate{id: r.Entity, creature: c})
			consumes = append(consumes, stagedConsume{
				creature: r.Entity,
				node:     d.Subject,
				kind:     res.Kind,
				take:     res.ConsumeRate * w.dt,
			})

		case decision.KindRest:
			c.State = decision.StateResting
			c.Consuming = 0
			updates = append(updates, stagedUpdate{id: r.Entity, creature: c})

		case decision.KindSocialize:
			if !w.ecs.Valid(d.Subject) {
				continue
			}
			spos, ok := w.grid.Position(d.Subject)
			if !ok {
				continue
			}
			if pos.DistanceTo(spos) <= w.ProfileFor(c.Species).InteractionRange {
				c.Needs.Social = math.Max(0, c.Needs.Social-socialRelief)
				c.State = decision.StateIdle
				updates = append(updates, stagedUpdate{id: r.Entity, creature: c})
			} else {
				to := stepToward(pos, spos, sp.MoveSpeed*w.dt)
				c.State = decision.StateMoving
				c.Orientation = headingOf(to.Sub(pos), c.Orientation)
				updates = append(updates, stagedUpdate{id: r.Entity, move: true, to: to, creature: c})
			}
		}
	}

	// Validate. Every staged write must target live, indexed state.
	for _, u := range updates {
		if u.move && !w.grid.Contains(u.id) {
			return &spatial.InconsistencyError{Entity: u.id, Op: "commit move unindexed"}
		}
	}

	// Apply.
	for _, u := range updates {
		if u.move {
			if err := w.grid.Move(u.id, u.to); err != nil {
				return fmt.Errorf("apply move: %w", err)
			}
		}
		w.creatures.Set(u.id, u.creature)
	}
	for _, con := range consumes {
		actual := 0.0
		depleted := false
		w.resources.Mutate(con.node, func(r *ResourceNode) {
			actual = math.Min(con.take, r.Amount)
			r.Amount -= actual
			depleted = r.Amount <= 0
		})
		if actual > 0 {
			w.creatures.Mutate(con.creature, func(c *Creature) {
				relief := actual * nourishPerUnit
				if con.kind == decision.ResourceWater {
					c.Needs.Thirst = math.Max(0, c.Needs.Thirst-relief)
				} else {
					c.Needs.Hunger = math.Max(0, c.Needs.Hunger-relief)
				}
			})
		}
		if depleted {
			if npos, ok := w.grid.Position(con.node); ok {
				event.Emit(w.bus, event.ResourceDepleted{Entity: con.node, Position: npos, Tick: tickNum})
			}
		}
	}
	return nil
}

// stageContinueConsume extends an in-progress eating or drinking action, or
// ends it when the node is gone, empty, or the need is satisfied.
func (w *World) stageContinueConsume(id ecs.EntityID, c Creature) (stagedUpdate, stagedConsume, bool) {
	res, ok := w.resourceFor(c.Consuming)
	need := c.Needs.Hunger
	if c.State == decision.StateDrinking {
		need = c.Needs.Thirst
	}
	if !ok || res.Depleted() || need < consumeDoneBelow {
		c.State = decision.StateIdle
		c.Consuming = 0
		return stagedUpdate{id: id, creature: c}, stagedConsume{}, false
	}
	return stagedUpdate{id: id, creature: c}, stagedConsume{
		creature: id,
		node:     c.Consuming,
		kind:     res.Kind,
		take:     res.ConsumeRate * w.dt,
	}, true
}

func (w *World) resourceFor(id ecs.EntityID) (ResourceNode, bool) {
	if id.IsZero() || !w.ecs.Valid(id) {
		return ResourceNode{}, false
	}
	return w.resources.Get(id)
}

// Kill marks a creature dead, emits the death event, and queues it for
// end-of-tick destruction.
func (w *World) Kill(id ecs.EntityID, cause string) {
	c, ok := w.creatures.Get(id)
	if !ok || c.State == decision.StateDead {
		return
	}
	w.creatures.Mutate(id, func(c *Creature) {
		c.State = decision.StateDead
		c.Health = 0
	})
	pos, _ := w.grid.Position(id)
	event.Emit(w.bus, event.CreatureDied{Entity: id, Species: c.Species, Position: pos, Cause: cause, Tick: w.tickNum})
	w.pendingDestroy = append(w.pendingDestroy, id)
	w.log.Info("creature died",
		zap.Uint64("entity", uint64(id)),
		zap.String("species", c.Species),
		zap.String("cause", cause))
}

// Cleanup destroys every queued entity: removed from the grid first, then
// despawned with its components cleared. Returns the number destroyed.
func (w *World) Cleanup() (int, error) {
	for _, id := range w.pendingDestroy {
		if !w.ecs.Valid(id) {
			continue
		}
		if w.grid.Contains(id) {
			if err := w.grid.Remove(id); err != nil {
				return 0, fmt.Errorf("cleanup: %w", err)
			}
		}
		w.ecs.MarkForDestruction(id)
	}
	w.pendingDestroy = w.pendingDestroy[:0]
	return w.ecs.FlushDestroyQueue(), nil
}

// CreatureFrame is one creature's render state for observers.
type CreatureFrame struct {
	Entity      uint64  `json:"entity_id"`
	Species     string  `json:"species"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Orientation float64 `json:"orientation"`
	Animation   string  `json:"animation_state"`
}

// Frame is the per-tick observer broadcast payload.
type Frame struct {
	Tick      uint64          `json:"tick"`
	Creatures []CreatureFrame `json:"creatures"`
}

// RenderFrame builds the observer frame for the current state, creatures in
// ascending entity id order.
func (w *World) RenderFrame(tickNum uint64) Frame {
	ids := make([]ecs.EntityID, 0, w.creatures.Len())
	w.creatures.Each(func(id ecs.EntityID, _ Creature) {
		ids = append(ids, id)
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	f := Frame{Tick: tickNum, Creatures: make([]CreatureFrame, 0, len(ids))}
	for _, id := range ids {
		c, _ := w.creatures.Get(id)
		pos, ok := w.grid.Position(id)
		if !ok {
			continue
		}
		f.Creatures = append(f.Creatures, CreatureFrame{
			Entity:      uint64(id),
			Species:     c.Species,
			X:           pos.X,
			Y:           pos.Y,
			Orientation: c.Orientation,
			Animation:   c.State.String(),
		})
	}
	return f
}

// stepToward advances from toward to by at most maxStep, without overshooting.
func stepToward(from, to spatial.Vec2, maxStep float64) spatial.Vec2 {
	delta := to.Sub(from)
	d := delta.Len()
	if d <= maxStep || d == 0 {
		return to
	}
	return from.Add(delta.Scale(maxStep / d))
}

// headingOf returns the facing angle of a movement direction, keeping the
// previous heading for a zero-length step.
func headingOf(dir spatial.Vec2, prev float64) float64 {
	if dir == (spatial.Vec2{}) {
		return prev
	}
	return math.Atan2(dir.Y, dir.X)
}
