// Package event carries simulation lifecycle events between ticks. Emission
// during tick N is invisible until tick N+1, so subscribers always observe a
// fully committed world.
package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered typed event bus. Events land in the pending buffer
// and become deliverable after SwapBuffers, which the engine calls once at the
// start of each tick.
type Bus struct {
	mu       sync.Mutex // guards handler registration only
	ready    map[reflect.Type][]any
	pending  map[reflect.Type][]any
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		ready:    make(map[reflect.Type][]any),
		pending:  make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event for the next tick. Only the serial commit phase and the
// phase systems emit, so no lock is taken.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.pending[t] = append(b.pending[t], event)
}

// Subscribe registers a handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers promotes pending events to deliverable and recycles the old
// ready buffer.
func (b *Bus) SwapBuffers() {
	b.ready, b.pending = b.pending, b.ready
	for t := range b.pending {
		b.pending[t] = b.pending[t][:0]
	}
}

// DispatchAll delivers every promoted event to its type's handlers, in
// emission order per type.
func (b *Bus) DispatchAll() {
	for t, events := range b.ready {
		handlers := b.handlers[t]
		if len(handlers) == 0 {
			continue
		}
		for _, ev := range events {
			for _, h := range handlers {
				// Subscribe and Emit key by the same concrete type, so the
				// call cannot mismatch.
				reflect.ValueOf(h).Call([]reflect.Value{reflect.ValueOf(ev)})
			}
		}
	}
}
