package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// NewReceiptNotifyHandler returns the asynq handler delivering receipts.
// Delivery is a log line for now; the SMTP hookup rides the same task.
func NewReceiptNotifyHandler(logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload ReceiptNotifyPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		logger.Info("receipt issued",
			slog.String("code", payload.Receipt.Code),
			slog.Int64("customer_id", payload.Receipt.CustomerID),
			slog.Float64("amount", payload.Receipt.Amount),
			slog.Float64("remaining", payload.Receipt.Remaining))
		return nil
	}
}
