// Package fault classifies simulation failures as recoverable or fatal and
// wraps the two checkpoints where that classification is enforced: per-agent
// decision evaluation and the per-tick serial commit.
//
// Recoverable errors never unwind past the boundary: they are logged and a
// safe default is substituted. Fatal errors propagate to the tick controller,
// which guarantees no partial commit was applied.
package fault

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wildvale/server/internal/core/decision"
	"github.com/wildvale/server/internal/core/ecs"
	"github.com/wildvale/server/internal/core/spatial"
)

// Class is the failure classification.
type Class int

const (
	// Recoverable degrades a single agent's outcome; the tick continues.
	Recoverable Class = iota
	// Fatal aborts the tick with no partial commit applied.
	Fatal
)

func (c Class) String() string {
	if c == Recoverable {
		return "recoverable"
	}
	return "fatal"
}

// ErrContextMissing signals that required perception data was unavailable for
// an agent this tick. The agent degrades to a no-op decision.
var ErrContextMissing = errors.New("decision context missing")

// Classify maps an error to its failure class. Unknown errors are fatal:
// continuing past an unclassified failure risks corrupting committed state.
func Classify(err error) Class {
	var stale *ecs.StaleEntityError
	if errors.As(err, &stale) {
		return Recoverable
	}
	if errors.Is(err, ErrContextMissing) {
		return Recoverable
	}
	// Cache corruption is fatal for the cache only; the shard has already
	// been rebuilt empty by the time the error surfaces.
	var corrupt *decision.CorruptionError
	if errors.As(err, &corrupt) {
		return Recoverable
	}
	var inconsistent *spatial.InconsistencyError
	if errors.As(err, &inconsistent) {
		return Fatal
	}
	return Fatal
}

// Boundary wraps checkpoints with classification and diagnostics.
type Boundary struct {
	log *zap.Logger
}

func NewBoundary(log *zap.Logger) *Boundary {
	return &Boundary{log: log}
}

// Decide runs one agent's decision evaluation. On a recoverable failure the
// agent's result downgrades to the idle no-op and the tick continues; a fatal
// failure propagates.
func (b *Boundary) Decide(entity ecs.EntityID, tick uint64, fn func() (decision.Decision, error)) (decision.Decision, error) {
	d, err := fn()
	if err == nil {
		return d, nil
	}
	if Classify(err) == Recoverable {
		b.log.Warn("decision degraded to idle",
			zap.Uint64("entity", uint64(entity)),
			zap.Uint64("tick", tick),
			zap.Error(err))
		return decision.Idle(), nil
	}
	b.log.Error("fatal failure in decision phase",
		zap.Uint64("entity", uint64(entity)),
		zap.Uint64("tick", tick),
		zap.Error(err))
	return decision.Idle(), err
}

// Commit runs the per-tick serial commit. Recoverable errors are logged and
// absorbed; fatal errors propagate to the controller, which aborts the tick.
func (b *Boundary) Commit(tick uint64, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if Classify(err) == Recoverable {
		b.log.Warn("recoverable failure during commit",
			zap.Uint64("tick", tick),
			zap.Error(err))
		return nil
	}
	b.log.Error("tick aborted at commit",
		zap.Uint64("tick", tick),
		zap.Error(err))
	return err
}
