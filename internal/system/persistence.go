package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/event"
	coresys "github.com/wildvale/server/internal/core/system"
	"github.com/wildvale/server/internal/persist"
)

// Snapshotter produces a world snapshot blob at the current tick.
type Snapshotter interface {
	Snapshot() ([]byte, error)
	CurrentTick() uint64
}

// SnapshotSaver persists snapshot blobs.
type SnapshotSaver interface {
	SaveSnapshot(ctx context.Context, tick uint64, blob []byte) error
}

// JournalWriter persists a batch of tick journal entries atomically.
type JournalWriter interface {
	Append(ctx context.Context, entries []persist.JournalEntry) error
}

// AutosaveSystem saves a snapshot every intervalTicks ticks.
type AutosaveSystem struct {
	src      Snapshotter
	saver    SnapshotSaver
	interval uint64
	elapsed  uint64
	timeout  time.Duration
	log      *zap.Logger
}

func NewAutosaveSystem(src Snapshotter, saver SnapshotSaver, intervalTicks uint64, log *zap.Logger) *AutosaveSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &AutosaveSystem{
		src:      src,
		saver:    saver,
		interval: intervalTicks,
		timeout:  5 * time.Second,
		log:      log,
	}
}

func (s *AutosaveSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AutosaveSystem) Update(time.Duration) {
	s.elapsed++
	if s.elapsed%s.interval != 0 {
		return
	}
	blob, err := s.src.Snapshot()
	if err != nil {
		s.log.Error("autosave snapshot failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	tick := s.src.CurrentTick()
	if err := s.saver.SaveSnapshot(ctx, tick, blob); err != nil {
		s.log.Error("autosave store failed", zap.Uint64("tick", tick), zap.Error(err))
		return
	}
	s.log.Info("snapshot saved", zap.Uint64("tick", tick), zap.Int("bytes", len(blob)))
}

// JournalSystem buffers lifecycle events delivered during PhasePreTick and
// flushes them as one batch in PhasePersist. A failed flush keeps the batch
// for the next tick.
type JournalSystem struct {
	writer  JournalWriter
	pending []persist.JournalEntry
	timeout time.Duration
	log     *zap.Logger
}

func NewJournalSystem(bus *event.Bus, writer JournalWriter, log *zap.Logger) *JournalSystem {
	s := &JournalSystem{
		writer:  writer,
		timeout: 5 * time.Second,
		log:     log,
	}
	event.Subscribe(bus, func(ev event.CreatureSpawned) {
		s.record(ev.Tick, "spawn", uint64(ev.Entity), ev.Species, "")
	})
	event.Subscribe(bus, func(ev event.CreatureDied) {
		s.record(ev.Tick, "death", uint64(ev.Entity), ev.Species, ev.Cause)
	})
	event.Subscribe(bus, func(ev event.ResourceDepleted) {
		s.record(ev.Tick, "depleted", uint64(ev.Entity), "", "")
	})
	return s
}

// record stamps each entry with the tick carried by the event itself. Events
// cross the bus one tick after emission, so reading a clock here would shift
// every entry forward by one.
func (s *JournalSystem) record(tick uint64, kind string, entity uint64, species, detail string) {
	s.pending = append(s.pending, persist.JournalEntry{
		Tick:    tick,
		Kind:    kind,
		Entity:  entity,
		Species: species,
		Detail:  detail,
	})
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(time.Duration) {
	if len(s.pending) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.Append(ctx, s.pending); err != nil {
		s.log.Error("journal flush failed",
			zap.Int("entries", len(s.pending)),
			zap.Error(err))
		return
	}
	s.pending = s.pending[:0]
}
