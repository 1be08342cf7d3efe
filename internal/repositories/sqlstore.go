package repositories

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jmoiron/sqlx"

	"social-service/internal/db"
)

// sqlStore carries what every sqlx-backed repository shares: the handle,
// transaction helper and per-aggregate write lock.
type sqlStore struct {
	db *sqlx.DB
}

func (s sqlStore) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// lock serializes writers of one aggregate until the transaction ends.
// SQLite transactions already start with a reserved lock, so only postgres needs it.
func (s sqlStore) lock(ctx context.Context, tx *sqlx.Tx, key string) error {
	if s.db.DriverName() != db.DriverPostgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey(key))
	return err
}

func advisoryKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}

func pairKey(kind string, low, high int64) string {
	return fmt.Sprintf("%s:%d:%d", kind, low, high)
}
