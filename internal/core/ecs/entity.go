package ecs

import "sync"

// EntityID encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. The generation increments on despawn so every
// previously issued reference to a reused slot becomes distinguishable as stale.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

// Registry issues entity identities with generational indices and a free list.
// Two EntityID values name the same logical entity only when both slot index
// and generation match.
//
// Despawn and a later allocation of the same slot are serialized behind the
// mutex: the generation bump is published before the slot re-enters the free
// list, so no two callers can ever observe the same (slot, generation) pair
// for different logical entities.
type Registry struct {
	mu          sync.Mutex
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
}

func NewRegistry() *Registry {
	return &Registry{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

// Allocate takes a slot from the free list (its generation was already bumped
// at despawn time) or appends a fresh slot with generation 0.
func (r *Registry) Allocate() EntityID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.freeList); n > 0 {
		idx := r.freeList[n-1]
		r.freeList = r.freeList[:n-1]
		return NewEntityID(idx, r.generations[idx])
	}
	idx := r.nextIndex
	r.nextIndex++
	if int(idx) >= len(r.generations) {
		r.generations = append(r.generations, 0)
	}
	return NewEntityID(idx, r.generations[idx])
}

// Despawn invalidates the entity: the slot's generation is incremented and the
// slot returns to the free list. A stale or unknown reference is an error, not
// a no-op; callers must check Valid first or handle the failure.
func (r *Registry) Despawn(id EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := id.Index()
	if idx >= r.nextIndex || r.generations[idx] != id.Generation() {
		return &StaleEntityError{Entity: id}
	}
	r.generations[idx]++
	r.freeList = append(r.freeList, idx)
	return nil
}

// Valid reports whether the reference is current. Pure generation comparison;
// never fails.
func (r *Registry) Valid(id EntityID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := id.Index()
	if idx >= r.nextIndex {
		return false
	}
	return r.generations[idx] == id.Generation()
}

// Live returns the number of currently allocated slots.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.nextIndex) - len(r.freeList)
}

// Table returns a copy of the slot/generation table and the free list, in
// allocation order. Used by snapshot serialization.
func (r *Registry) Table() (generations []uint32, freeList []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	generations = make([]uint32, len(r.generations))
	copy(generations, r.generations)
	freeList = make([]uint32, len(r.freeList))
	copy(freeList, r.freeList)
	return generations, freeList
}

// RestoreRegistry rebuilds a registry from a snapshotted slot/generation table.
func RestoreRegistry(generations []uint32, freeList []uint32) *Registry {
	r := NewRegistry()
	r.generations = append(r.generations[:0], generations...)
	r.freeList = append(r.freeList[:0], freeList...)
	r.nextIndex = uint32(len(generations))
	return r
}
