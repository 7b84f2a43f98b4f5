package persist

import (
	"context"
	"fmt"
)

// JournalEntry records one creature lifecycle event for diagnostics and
// population history.
type JournalEntry struct {
	Tick    uint64
	Kind    string // "spawn", "death", "depleted"
	Entity  uint64
	Species string
	Detail  string // death cause, "" otherwise
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// Append atomically writes a batch of journal entries in a single
// transaction. If it fails the caller keeps the batch and retries next tick.
func (r *JournalRepo) Append(ctx context.Context, entries []JournalEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tick_journal (tick, kind, entity_id, species, detail)
			 VALUES ($1, $2, $3, $4, $5)`,
			int64(e.Tick), e.Kind, int64(e.Entity), e.Species, e.Detail,
		); err != nil {
			return fmt.Errorf("journal insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}
