package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// Querier is the subset of pgx shared by pgx.Tx and *pgxpool.Pool. Ledger
// apply functions take a Querier so they can run inside whichever transaction
// the calling service opened.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx executes fn within a repeatable-read transaction. The ledgers rely
// on every mutation being all-or-nothing: any error aborts the transaction
// and no partial aggregate update becomes visible. A transaction that loses
// a serialization or lock race surfaces shared.ErrConcurrencyConflict so the
// caller can retry instead of seeing an opaque failure.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return asConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return asConflict(fmt.Errorf("platform/db: commit tx: %w", err))
	}

	return nil
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization,
// deadlock, or lock-acquisition failure (SQLSTATE 40001, 40P01, 55P03).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func asConflict(err error) error {
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", shared.ErrConcurrencyConflict, err)
	}
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
