package receivables

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntry(ctx context.Context, id int64) (Entry, error)
	GetEntryBySource(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error)
	ListForCustomer(ctx context.Context, customerID int64, status Status) ([]Entry, error)
	ListPayments(ctx context.Context, entryID int64) ([]Payment, error)
	InsertReceipt(ctx context.Context, receipt Receipt) error
}

// NotifierPort delivers receipts after a payment commits. Delivery failures
// are logged, never propagated; the payment itself already stands.
type NotifierPort interface {
	ReceiptIssued(ctx context.Context, receipt Receipt) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the AR ledger: entry reconciliation from source documents and
// the customer payment flow.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	notifier NotifierPort
	audit    AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, notifier NotifierPort, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, notifier: notifier, audit: audit}
}

// UpsertEntry reconciles one source document's AR entry against its
// recalculated amount.
func (s *Service) UpsertEntry(ctx context.Context, in UpsertInput) error {
	if in.SourceID == 0 || in.SourceKind == "" {
		return ErrEntryNotFound
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return UpsertWith(ctx, tx, in)
	})
}

// ApplyPayment records one customer payment against an entry. The entry row
// is locked first so concurrent payments cannot jointly overshoot the
// remaining balance; a payment larger than what remains is rejected, never
// clamped.
func (s *Service) ApplyPayment(ctx context.Context, in PaymentInput) (Payment, error) {
	if in.Amount <= 0 {
		return Payment{}, ErrInvalidAmount
	}

	payment := Payment{
		Code:      fmt.Sprintf("RP-%s", uuid.NewString()),
		EntryID:   in.EntryID,
		Amount:    in.Amount,
		Method:    in.Method,
		Note:      in.Note,
		CreatedBy: in.ActorID,
	}
	var entry Entry

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		e, err := tx.GetEntryByIDForUpdate(ctx, in.EntryID)
		if err != nil {
			return err
		}
		if in.CustomerID != 0 && in.CustomerID != e.CustomerID {
			return ErrCustomerMismatch
		}
		if in.Amount > e.Remaining() {
			return ErrOverpayment
		}
		payment.CustomerID = e.CustomerID

		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		paid := e.AmountPaid + in.Amount
		if err := tx.UpdateEntryAmounts(ctx, e.ID, e.AmountOriginal, paid, StatusFor(paid, e.AmountOriginal)); err != nil {
			return err
		}
		e.AmountPaid = paid
		e.Status = StatusFor(paid, e.AmountOriginal)
		entry = e
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.issueReceipt(ctx, entry, payment)
	s.recordAudit(ctx, in.ActorID, entry, payment)
	return payment, nil
}

// GetEntry returns one entry by id.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// GetEntryBySource returns the entry derived from one source document.
func (s *Service) GetEntryBySource(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error) {
	return s.repo.GetEntryBySource(ctx, kind, sourceID)
}

// ListForCustomer returns a customer's entries, optionally narrowed to one
// status.
func (s *Service) ListForCustomer(ctx context.Context, customerID int64, status Status) ([]Entry, error) {
	return s.repo.ListForCustomer(ctx, customerID, status)
}

// ListPayments returns payments recorded against one entry.
func (s *Service) ListPayments(ctx context.Context, entryID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, entryID)
}

// issueReceipt runs after the payment committed. A receipt that fails to
// persist or deliver is logged and dropped; the payment already stands.
func (s *Service) issueReceipt(ctx context.Context, entry Entry, payment Payment) {
	receipt := Receipt{
		Code:       fmt.Sprintf("RC-%s", uuid.NewString()),
		PaymentID:  payment.ID,
		EntryID:    entry.ID,
		CustomerID: entry.CustomerID,
		Amount:     payment.Amount,
		Remaining:  entry.Remaining(),
		IssuedAt:   time.Now().UTC(),
	}
	if err := s.repo.InsertReceipt(ctx, receipt); err != nil && s.logger != nil {
		s.logger.Warn("receipt persist failed",
			slog.Int64("payment_id", payment.ID),
			slog.Any("error", err))
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.ReceiptIssued(ctx, receipt); err != nil && s.logger != nil {
		s.logger.Warn("receipt delivery failed",
			slog.Int64("payment_id", payment.ID),
			slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, entry Entry, payment Payment) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "receivables:payment",
		Entity:   "ar_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"payment_code": payment.Code,
			"amount":       payment.Amount,
			"status":       string(entry.Status),
		},
	})
}
