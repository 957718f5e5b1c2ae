package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transaction options shared by the repositories.
var (
	RepeatableRead = pgx.TxOptions{IsoLevel: pgx.RepeatableRead}
	ReadCommitted  = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

	// Snapshot is a read-only repeatable-read transaction.
	Snapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

// ErrNoPool is returned when a repository was built without a pool.
var ErrNoPool = errors.New("platform/db: pool not initialised")

// WithTx runs fn in a transaction with the given options. The transaction is
// rolled back when fn fails or panics.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(pgx.Tx) error) error {
	if pool == nil {
		return ErrNoPool
	}
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
