package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meridian-spa/meridian-erp/internal/receivables"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes every derived aggregate from its
	// contributing records and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskReceiptNotify delivers a customer receipt after a payment.
	TaskReceiptNotify = "receipt:notify"
	// TaskIdempotencyCleanup expires old processed request keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewIdempotencyCleanupTask constructs the key expiry task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// NewLedgerIntegrityTask constructs the integrity sweep task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// ReceiptNotifyPayload carries a receipt to the notification worker.
type ReceiptNotifyPayload struct {
	Receipt receivables.Receipt `json:"receipt"`
}

// NewReceiptNotifyTask constructs a receipt notification task.
func NewReceiptNotifyTask(receipt receivables.Receipt) (*asynq.Task, error) {
	data, err := json.Marshal(ReceiptNotifyPayload{Receipt: receipt})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptNotify, data), nil
}

// ReceiptNotifier adapts the jobs client to the receivables notifier port.
type ReceiptNotifier struct {
	client *Client
}

// NewReceiptNotifier constructs a ReceiptNotifier.
func NewReceiptNotifier(client *Client) *ReceiptNotifier {
	return &ReceiptNotifier{client: client}
}

// ReceiptIssued enqueues a notification task for the receipt.
func (n *ReceiptNotifier) ReceiptIssued(ctx context.Context, receipt receivables.Receipt) error {
	if n == nil || n.client == nil {
		return nil
	}
	_, err := n.client.EnqueueReceiptNotify(ctx, receipt)
	return err
}
