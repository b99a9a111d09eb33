package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// idempotencyRetention keeps keys long enough to absorb client retries
// while the table stays small.
const idempotencyRetention = 48 * time.Hour

// NewIdempotencyCleanupHandler returns the asynq handler expiring old
// processed request keys.
func NewIdempotencyCleanupHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	store := shared.NewIdempotencyStore(pool)
	return func(ctx context.Context, t *asynq.Task) error {
		removed, err := store.Cleanup(ctx, idempotencyRetention)
		if err != nil {
			return err
		}
		logger.Info("idempotency keys expired", slog.Int64("removed", removed))
		return nil
	}
}
