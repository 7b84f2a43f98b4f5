package ecs

import "testing"

type testHealth struct {
	Current float64
	Max     float64
}

func TestStoreVersionBumpsOnWrite(t *testing.T) {
	s := NewStore[testHealth]()
	id := NewEntityID(0, 0)

	if got := s.Version(id); got != 0 {
		t.Fatalf("version before any write: got %d want 0", got)
	}

	s.Set(id, testHealth{Current: 100, Max: 100})
	if got := s.Version(id); got != 1 {
		t.Fatalf("version after Set: got %d want 1", got)
	}

	if ok := s.Mutate(id, func(h *testHealth) { h.Current -= 10 }); !ok {
		t.Fatalf("Mutate on present component returned false")
	}
	if got := s.Version(id); got != 2 {
		t.Fatalf("version after Mutate: got %d want 2", got)
	}

	h, ok := s.Get(id)
	if !ok || h.Current != 90 {
		t.Fatalf("Mutate not applied: got %+v ok=%v", h, ok)
	}
}

func TestStoreGetReturnsCopy(t *testing.T) {
	s := NewStore[testHealth]()
	id := NewEntityID(1, 0)
	s.Set(id, testHealth{Current: 50, Max: 100})

	h, _ := s.Get(id)
	h.Current = 0

	stored, _ := s.Get(id)
	if stored.Current != 50 {
		t.Fatalf("mutating a Get copy changed the store: %+v", stored)
	}
	if got := s.Version(id); got != 1 {
		t.Fatalf("read access changed the version: got %d want 1", got)
	}
}

func TestWorldFlushDestroyQueue(t *testing.T) {
	w := NewWorld()
	healths := NewStore[testHealth]()
	w.AttachStore(healths)

	id := w.Spawn()
	healths.Set(id, testHealth{Current: 1, Max: 1})

	w.MarkForDestruction(id)
	w.MarkForDestruction(id) // duplicate entry in one tick

	if n := w.FlushDestroyQueue(); n != 1 {
		t.Fatalf("flush destroyed %d entities, want 1", n)
	}
	if w.Valid(id) {
		t.Fatalf("entity valid after flush")
	}
	if healths.Has(id) {
		t.Fatalf("component survived flush")
	}
}
