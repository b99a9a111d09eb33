package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore records processed request keys so retried payment
// submissions are applied once.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// ErrIdempotencyConflict indicates the key was already processed.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert claims a key for one scope. A nil store accepts every
// request so callers can treat the guard as optional.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, scope string) error {
	if s == nil || s.pool == nil || key == "" {
		return nil
	}
	if scope == "" {
		return errors.New("idempotency scope required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, scope, created_at) VALUES ($1, $2, NOW())`, key, scope)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrIdempotencyConflict
	}
	return err
}

// Release frees a key after the guarded operation failed, so the client
// can retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key, scope string) error {
	if s == nil || s.pool == nil || key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND scope=$2`, key, scope)
	return err
}

// Cleanup removes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
