package db

import (
	"context"
	"hash/fnv"
)

// AdvisoryLocker serializes link/unlink calls per primary user. Two
// legitimate flows for the same primary account in different browser
// sessions otherwise race on the identity provider.
type AdvisoryLocker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// PgAdvisoryLocker holds a transaction-scoped advisory lock for the
// duration of fn. The lock is released when the transaction ends, even on
// error or connection loss.
type PgAdvisoryLocker struct {
	DB *DB
}

func (l *PgAdvisoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey(key)); err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		return err
	}

	return tx.Commit()
}

// NoopLocker is used when no relational database is configured. The
// provider's own conflict detection remains the backstop.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func lockKey(key string) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
