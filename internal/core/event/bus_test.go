package event

import (
	"testing"

	"github.com/wildvale/server/internal/core/ecs"
)

func TestBusDoubleBuffering(t *testing.T) {
	b := NewBus()
	var got []CreatureDied
	Subscribe(b, func(ev CreatureDied) { got = append(got, ev) })

	Emit(b, CreatureDied{Entity: ecs.NewEntityID(1, 0), Cause: "starvation"})

	// Same tick: nothing delivered yet.
	b.DispatchAll()
	if len(got) != 0 {
		t.Fatalf("event delivered in the emitting tick")
	}

	// Next tick: buffers swap, event delivers.
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 || got[0].Cause != "starvation" {
		t.Fatalf("got %+v, want one starvation event", got)
	}

	// Tick after: buffer cleared, no redelivery.
	b.SwapBuffers()
	b.DispatchAll()
	if len(got) != 1 {
		t.Fatalf("event redelivered: %d deliveries", len(got))
	}
}

func TestBusTypedRouting(t *testing.T) {
	b := NewBus()
	deaths, spawns := 0, 0
	Subscribe(b, func(CreatureDied) { deaths++ })
	Subscribe(b, func(CreatureSpawned) { spawns++ })

	Emit(b, CreatureSpawned{Species: "vole"})
	Emit(b, CreatureSpawned{Species: "fox"})
	Emit(b, CreatureDied{Cause: "dehydration"})

	b.SwapBuffers()
	b.DispatchAll()

	if spawns != 2 || deaths != 1 {
		t.Fatalf("routing wrong: spawns=%d deaths=%d", spawns, deaths)
	}
}
