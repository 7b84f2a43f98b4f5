package sim

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/blake2b"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/spatial"
)

// Snapshot blob layout: 6-byte magic, 1-byte format version, 32-byte
// blake2b-256 checksum of the compressed payload, zstd-compressed JSON payload.
var snapshotMagic = []byte("WVSNAP")

const snapshotVersion = 1

var (
	ErrSnapshotMagic    = errors.New("snapshot: bad magic")
	ErrSnapshotVersion  = errors.New("snapshot: unsupported version")
	ErrSnapshotChecksum = errors.New("snapshot: checksum mismatch")
)

var (
	zstdEnc, _ = zstd.NewWriter(nil)
	zstdDec, _ = zstd.NewReader(nil)
)

type creatureRecord struct {
	ID          uint64  `json:"id"`
	Species     string  `json:"species"`
	Diet        uint8   `json:"diet"`
	State       uint8   `json:"state"`
	Hunger      float64 `json:"hunger"`
	Thirst      float64 `json:"thirst"`
	Energy      float64 `json:"energy"`
	Social      float64 `json:"social"`
	Health      float64 `json:"health"`
	MaxHealth   float64 `json:"max_health"`
	Orientation float64 `json:"orientation"`
	Age         float64 `json:"age"`
	Consuming   uint64  `json:"consuming,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

type resourceRecord struct {
	ID          uint64  `json:"id"`
	Name        string  `json:"name"`
	Kind        uint8   `json:"kind"`
	Amount      float64 `json:"amount"`
	MaxAmount   float64 `json:"max_amount"`
	RegenRate   float64 `json:"regen_rate"`
	ConsumeRate float64 `json:"consume_rate"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

type snapshotPayload struct {
	Tick        uint64           `json:"tick"`
	Generations []uint32         `json:"generations"`
	FreeList    []uint32         `json:"free_list"`
	Creatures   []creatureRecord `json:"creatures"`
	Resources   []resourceRecord `json:"resources"`
}

// Snapshot serializes the full world state at the given tick into a
// self-verifying blob.
func (w *World) Snapshot(tickNum uint64) ([]byte, error) {
	gens, free := w.ecs.Registry().Table()
	p := snapshotPayload{
		Tick:        tickNum,
		Generations: gens,
		FreeList:    free,
	}

	w.creatures.Each(func(id ecs.EntityID, c Creature) {
		pos, _ := w.grid.Position(id)
		p.Creatures = append(p.Creatures, creatureRecord{
			ID:          uint64(id),
			Species:     c.Species,
			Diet:        uint8(c.Diet),
			State:       uint8(c.State),
			Hunger:      c.Needs.Hunger,
			Thirst:      c.Needs.Thirst,
			Energy:      c.Needs.Energy,
			Social:      c.Needs.Social,
			Health:      c.Health,
			MaxHealth:   c.MaxHealth,
			Orientation: c.Orientation,
			Age:         c.Age,
			Consuming:   uint64(c.Consuming),
			X:           pos.X,
			Y:           pos.Y,
		})
	})
	w.resources.Each(func(id ecs.EntityID, r ResourceNode) {
		pos, _ := w.grid.Position(id)
		p.Resources = append(p.Resources, resourceRecord{
			ID:          uint64(id),
			Name:        r.Name,
			Kind:        uint8(r.Kind),
			Amount:      r.Amount,
			MaxAmount:   r.MaxAmount,
			RegenRate:   r.RegenRate,
			ConsumeRate: r.ConsumeRate,
			X:           pos.X,
			Y:           pos.Y,
		})
	})

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("snapshot marshal: %w", err)
	}
	compressed := zstdEnc.EncodeAll(raw, nil)
	sum := blake2b.Sum256(compressed)

	blob := make([]byte, 0, len(snapshotMagic)+1+len(sum)+len(compressed))
	blob = append(blob, snapshotMagic...)
	blob = append(blob, snapshotVersion)
	blob = append(blob, sum[:]...)
	blob = append(blob, compressed...)
	return blob, nil
}

// Restore rebuilds the world from a snapshot blob: registry table, component
// stores, and a fresh spatial grid reindexed from the stored positions.
// Returns the tick the snapshot was taken at.
func (w *World) Restore(blob []byte) (uint64, error) {
	headerLen := len(snapshotMagic) + 1 + blake2b.Size256
	if len(blob) < headerLen {
		return 0, ErrSnapshotMagic
	}
	if !bytes.Equal(blob[:len(snapshotMagic)], snapshotMagic) {
		return 0, ErrSnapshotMagic
	}
	if blob[len(snapshotMagic)] != snapshotVersion {
		return 0, fmt.Errorf("%w: %d", ErrSnapshotVersion, blob[len(snapshotMagic)])
	}
	sumStart := len(snapshotMagic) + 1
	compressed := blob[headerLen:]
	sum := blake2b.Sum256(compressed)
	if !bytes.Equal(blob[sumStart:headerLen], sum[:]) {
		return 0, ErrSnapshotChecksum
	}

	raw, err := zstdDec.DecodeAll(compressed, nil)
	if err != nil {
		return 0, fmt.Errorf("snapshot decompress: %w", err)
	}
	var p snapshotPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, fmt.Errorf("snapshot unmarshal: %w", err)
	}

	world := ecs.NewWorld()
	world.ReplaceRegistry(ecs.RestoreRegistry(p.Generations, p.FreeList))
	grid := spatial.NewGrid(w.grid.CellSize())
	creatures := ecs.NewStore[Creature]()
	resources := ecs.NewStore[ResourceNode]()
	world.AttachStore(creatures)
	world.AttachStore(resources)

	var dead []ecs.EntityID
	for _, rec := range p.Creatures {
		id := ecs.EntityID(rec.ID)
		// A snapshot taken between the persist and cleanup phases can hold
		// creatures that died that tick but were not yet destroyed. They
		// come back indexed so the restored state matches the saved one,
		// and go straight onto the destroy queue for the next cleanup.
		if decision.AgentState(rec.State) == decision.StateDead {
			dead = append(dead, id)
		}
		creatures.Set(id, Creature{
			Species:     rec.Species,
			Diet:        Diet(rec.Diet),
			State:       decision.AgentState(rec.State),
			Needs:       decision.NeedState{Hunger: rec.Hunger, Thirst: rec.Thirst, Energy: rec.Energy, Social: rec.Social},
			Health:      rec.Health,
			MaxHealth:   rec.MaxHealth,
			Orientation: rec.Orientation,
			Age:         rec.Age,
			Consuming:   ecs.EntityID(rec.Consuming),
		})
		if err := grid.Insert(id, spatial.Vec2{X: rec.X, Y: rec.Y}); err != nil {
			return 0, fmt.Errorf("snapshot reindex creature: %w", err)
		}
	}
	for _, rec := range p.Resources {
		id := ecs.EntityID(rec.ID)
		resources.Set(id, ResourceNode{
			Name:        rec.Name,
			Kind:        decision.ResourceKind(rec.Kind),
			Amount:      rec.Amount,
			MaxAmount:   rec.MaxAmount,
			RegenRate:   rec.RegenRate,
			ConsumeRate: rec.ConsumeRate,
		})
		if err := grid.Insert(id, spatial.Vec2{X: rec.X, Y: rec.Y}); err != nil {
			return 0, fmt.Errorf("snapshot reindex resource: %w", err)
		}
	}

	w.ecs = world
	w.grid = grid
	w.creatures = creatures
	w.resources = resources
	w.pendingDestroy = append(w.pendingDestroy[:0], dead...)
	w.tickNum = p.Tick
	return p.Tick, nil
}
