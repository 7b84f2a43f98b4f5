package ecs

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a generic typed map store for components. No reflect, no
// interface{}, just generics.
//
// All mutations go through Set or Mutate, which bump the entity's write
// version as part of the same operation. There is no implicit version side
// effect on read access: Get returns a copy, and changing that copy does not
// touch the store.
type Store[T any] struct {
	data     map[EntityID]T
	versions map[EntityID]uint64
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		data:     make(map[EntityID]T, 256),
		versions: make(map[EntityID]uint64, 256),
	}
}

// Set stores the component value and bumps its write version.
func (s *Store[T]) Set(id EntityID, c T) {
	s.data[id] = c
	s.versions[id]++
}

// Mutate applies fn to the stored value in place and bumps the write version.
// Returns false if the entity has no component in this store.
func (s *Store[T]) Mutate(id EntityID, fn func(*T)) bool {
	c, ok := s.data[id]
	if !ok {
		return false
	}
	fn(&c)
	s.data[id] = c
	s.versions[id]++
	return true
}

// Get returns a copy of the component value.
func (s *Store[T]) Get(id EntityID) (T, bool) {
	c, ok := s.data[id]
	return c, ok
}

// Version returns the component's write version (0 = never written).
func (s *Store[T]) Version(id EntityID) uint64 {
	return s.versions[id]
}

func (s *Store[T]) Remove(id EntityID) {
	delete(s.data, id)
	delete(s.versions, id)
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *Store[T]) Len() int {
	return len(s.data)
}

// Each visits every component. The value passed to fn is a copy; use Mutate to
// write back.
func (s *Store[T]) Each(fn func(EntityID, T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}
