package spatial

import (
	"math"
	"sort"

	"github.com/wildvale/server/internal/core/ecs"
)

// CellCoord identifies one bucket of the uniform grid.
type CellCoord struct {
	X int32
	Y int32
}

// Stats counts query traffic for diagnostics.
type Stats struct {
	Queries      uint64
	CacheHits    uint64
	CacheMisses  uint64
	CellsScanned uint64
}

type entityRecord struct {
	cell CellCoord
	pos  Vec2
}

// Grid is a uniform spatial index. Each entity lives in exactly one cell, the
// cell containing its last-committed position. Every cell carries a version
// counter bumped on each insert or removal touching it; radius queries cache
// their candidate sets stamped with those versions and revalidate lazily.
//
// Mutations are confined to the serial commit phase of a tick (single logical
// writer); concurrent read-only queries during the decision phase are safe
// because nothing mutates between them.
type Grid struct {
	cellSize float64
	cells    map[CellCoord]map[ecs.EntityID]struct{}
	versions map[CellCoord]uint64
	records  map[ecs.EntityID]entityRecord
	cache    *queryCache
	stats    Stats
}

// NewGrid creates a grid with the given cell size in world units.
// cellSize must be positive.
func NewGrid(cellSize float64) *Grid {
	if cellSize <= 0 {
		panic("spatial: cell size must be positive")
	}
	return &Grid{
		cellSize: cellSize,
		cells:    make(map[CellCoord]map[ecs.EntityID]struct{}, 256),
		versions: make(map[CellCoord]uint64, 256),
		records:  make(map[ecs.EntityID]entityRecord, 1024),
		cache:    newQueryCache(defaultCacheCapacity),
	}
}

func (g *Grid) CellSize() float64 { return g.cellSize }

// CellOf maps a world position to its cell coordinates.
func (g *Grid) CellOf(p Vec2) CellCoord {
	return CellCoord{
		X: int32(math.Floor(p.X / g.cellSize)),
		Y: int32(math.Floor(p.Y / g.cellSize)),
	}
}

// Insert places an entity at a position. Inserting an entity that is already
// indexed signals an inconsistency: membership is owned by the commit phase
// and a double insert means the caller's view has diverged.
func (g *Grid) Insert(id ecs.EntityID, pos Vec2) error {
	if rec, exists := g.records[id]; exists {
		return &InconsistencyError{Entity: id, Op: "insert duplicate", Cell: rec.cell}
	}
	cell := g.CellOf(pos)
	set := g.cells[cell]
	if set == nil {
		set = make(map[ecs.EntityID]struct{}, 8)
		g.cells[cell] = set
	}
	set[id] = struct{}{}
	g.versions[cell]++
	g.records[id] = entityRecord{cell: cell, pos: pos}
	return nil
}

// Remove takes an entity out of the grid. Removing an entity that is not
// indexed, or whose recorded cell no longer contains it, is fatal.
func (g *Grid) Remove(id ecs.EntityID) error {
	rec, exists := g.records[id]
	if !exists {
		return &InconsistencyError{Entity: id, Op: "remove unindexed", Cell: CellCoord{}}
	}
	set := g.cells[rec.cell]
	if set == nil {
		return &InconsistencyError{Entity: id, Op: "remove from empty cell", Cell: rec.cell}
	}
	if _, member := set[id]; !member {
		return &InconsistencyError{Entity: id, Op: "remove non-member", Cell: rec.cell}
	}
	delete(set, id)
	if len(set) == 0 {
		delete(g.cells, rec.cell)
	}
	g.versions[rec.cell]++
	delete(g.records, id)
	return nil
}

// Move updates an entity's committed position. If the old and new cells
// differ, both cell versions are bumped; a move within one cell changes no
// version (membership is unchanged, and cached candidate sets stay correct
// because the distance filter reads live positions).
func (g *Grid) Move(id ecs.EntityID, newPos Vec2) error {
	rec, exists := g.records[id]
	if !exists {
		return &InconsistencyError{Entity: id, Op: "move unindexed", Cell: CellCoord{}}
	}
	newCell := g.CellOf(newPos)
	if newCell == rec.cell {
		g.records[id] = entityRecord{cell: rec.cell, pos: newPos}
		return nil
	}

	oldSet := g.cells[rec.cell]
	if oldSet == nil {
		return &InconsistencyError{Entity: id, Op: "move from empty cell", Cell: rec.cell}
	}
	if _, member := oldSet[id]; !member {
		return &InconsistencyError{Entity: id, Op: "move non-member", Cell: rec.cell}
	}
	delete(oldSet, id)
	if len(oldSet) == 0 {
		delete(g.cells, rec.cell)
	}
	g.versions[rec.cell]++

	newSet := g.cells[newCell]
	if newSet == nil {
		newSet = make(map[ecs.EntityID]struct{}, 8)
		g.cells[newCell] = newSet
	}
	newSet[id] = struct{}{}
	g.versions[newCell]++

	g.records[id] = entityRecord{cell: newCell, pos: newPos}
	return nil
}

// Position returns the entity's last-committed position.
func (g *Grid) Position(id ecs.EntityID) (Vec2, bool) {
	rec, ok := g.records[id]
	return rec.pos, ok
}

// Contains reports whether the entity is indexed.
func (g *Grid) Contains(id ecs.EntityID) bool {
	_, ok := g.records[id]
	return ok
}

// QueryRadius returns every entity whose committed position lies within radius
// of center, each exactly once, in ascending entity id order. It never fails.
//
// The cell scan (the expensive part) is cached per quantized region and
// revalidated against the touched cells' versions; the exact Euclidean filter
// always runs against live positions.
func (g *Grid) QueryRadius(center Vec2, radius float64) []ecs.EntityID {
	g.stats.Queries++
	if radius < 0 {
		return nil
	}

	key := g.quantize(center, radius)
	candidates, ok := g.cache.lookup(key, g.versions)
	if ok {
		g.stats.CacheHits++
	} else {
		g.stats.CacheMisses++
		candidates = g.scanRegion(key)
	}

	r2 := radius * radius
	result := make([]ecs.EntityID, 0, len(candidates))
	for _, id := range candidates {
		rec, live := g.records[id]
		if !live {
			continue
		}
		dx := rec.pos.X - center.X
		dy := rec.pos.Y - center.Y
		if dx*dx+dy*dy <= r2 {
			result = append(result, id)
		}
	}
	return result
}

// scanRegion collects the deduplicated, sorted candidate set for a quantized
// region and stores it in the cache stamped with the touched cell versions.
func (g *Grid) scanRegion(key regionKey) []ecs.EntityID {
	seen := make(map[ecs.EntityID]struct{}, 32)
	stamps := make(map[CellCoord]uint64, (2*key.Range+1)*(2*key.Range+1))
	for cx := key.CellX - key.Range; cx <= key.CellX+key.Range; cx++ {
		for cy := key.CellY - key.Range; cy <= key.CellY+key.Range; cy++ {
			cell := CellCoord{X: cx, Y: cy}
			stamps[cell] = g.versions[cell]
			set := g.cells[cell]
			if set == nil {
				continue
			}
			g.stats.CellsScanned++
			for id := range set {
				seen[id] = struct{}{}
			}
		}
	}

	candidates := make([]ecs.EntityID, 0, len(seen))
	for id := range seen {
		candidates = append(candidates, id)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	g.cache.store(key, candidates, stamps)
	return candidates
}

// quantize maps a query to its region key: the center's cell plus the radius
// rounded up to whole cells. The resulting cell range is a superset of the
// circle's bounding square.
func (g *Grid) quantize(center Vec2, radius float64) regionKey {
	c := g.CellOf(center)
	return regionKey{
		CellX: c.X,
		CellY: c.Y,
		Range: int32(math.Ceil(radius / g.cellSize)),
	}
}

// CellVersion returns the version counter of the cell containing p.
func (g *Grid) CellVersion(cell CellCoord) uint64 {
	return g.versions[cell]
}

func (g *Grid) Len() int { return len(g.records) }

func (g *Grid) Stats() Stats { return g.stats }

// Each visits every indexed entity with its committed position.
func (g *Grid) Each(fn func(ecs.EntityID, Vec2)) {
	for id, rec := range g.records {
		fn(id, rec.pos)
	}
}
