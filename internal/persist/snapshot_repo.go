package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNoSnapshot is returned when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotRepo stores world snapshot blobs.
type SnapshotRepo struct {
	db   *DB
	keep int
}

// NewSnapshotRepo creates a repo that retains the most recent keep snapshots.
func NewSnapshotRepo(db *DB, keep int) *SnapshotRepo {
	if keep < 1 {
		keep = 1
	}
	return &SnapshotRepo{db: db, keep: keep}
}

// SaveSnapshot inserts a snapshot and prunes old ones past the retention
// limit, in a single transaction.
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, tick uint64, blob []byte) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("snapshot begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO snapshots (tick, blob) VALUES ($1, $2)`,
		int64(tick), blob,
	); err != nil {
		return fmt.Errorf("snapshot insert: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM snapshots
		 WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT $1)`,
		r.keep,
	); err != nil {
		return fmt.Errorf("snapshot prune: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadLatest returns the newest stored snapshot blob and its tick.
func (r *SnapshotRepo) LoadLatest(ctx context.Context) (uint64, []byte, error) {
	var tick int64
	var blob []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT tick, blob FROM snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&tick, &blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil, ErrNoSnapshot
	}
	if err != nil {
		return 0, nil, fmt.Errorf("snapshot load: %w", err)
	}
	return uint64(tick), blob, nil
}
