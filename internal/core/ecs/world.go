package ecs

// World is the top-level container. It owns the entity registry, the list of
// component stores, and a deferred destruction queue flushed at tick end.
type World struct {
	registry     *Registry
	stores       []Removable
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		registry:     NewRegistry(),
		stores:       make([]Removable, 0, 16),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Registry() *Registry { return w.registry }

// AttachStore adds a component store to the bulk-cleanup list.
func (w *World) AttachStore(store Removable) {
	w.stores = append(w.stores, store)
}

func (w *World) Spawn() EntityID {
	return w.registry.Allocate()
}

func (w *World) Valid(id EntityID) bool {
	return w.registry.Valid(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup. Queueing a
// stale reference is harmless; FlushDestroyQueue skips it.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue despawns all queued entities and clears their components
// from every attached store. Stale queue entries (despawned twice in one tick)
// are skipped.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if !w.registry.Valid(id) {
			continue
		}
		for _, s := range w.stores {
			s.Remove(id)
		}
		if err := w.registry.Despawn(id); err == nil {
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

// ReplaceRegistry swaps in a restored registry. Component stores are expected
// to be repopulated by the caller (snapshot restore path).
func (w *World) ReplaceRegistry(r *Registry) {
	w.registry = r
	w.destroyQueue = w.destroyQueue[:0]
}
