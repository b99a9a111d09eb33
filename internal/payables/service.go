package payables

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDebtHead(ctx context.Context, supplierID int64, kind DebtKind) (DebtHeadSummary, error)
	ListDebtHeads(ctx context.Context, kind DebtKind) ([]DebtHead, error)
	ListPaymentsForStockIn(ctx context.Context, stockInID int64) ([]SupplierPayment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles supplier debt payments and the derived full-paid flag.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordPayment records one payment against a stock-in slip and recomputes
// the slip's full-paid flag from the current payment sum. The flag is always
// recomputed from scratch, never delta-tracked.
func (s *Service) RecordPayment(ctx context.Context, input SupplierPaymentInput) (SupplierPayment, error) {
	if input.Amount <= 0 {
		return SupplierPayment{}, ErrInvalidAmount
	}
	if input.StockInID == 0 {
		return SupplierPayment{}, ErrStockInNotFound
	}

	payment := SupplierPayment{
		Code:      fmt.Sprintf("SP-%s", uuid.NewString()),
		StockInID: input.StockInID,
		Amount:    input.Amount,
		Method:    input.Method,
		Note:      input.Note,
		CreatedBy: input.ActorID,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		debt, err := tx.GetStockInDebtForUpdate(ctx, input.StockInID)
		if err != nil {
			return err
		}
		payment.SupplierID = debt.SupplierID
		payment.Kind = debt.Kind

		id, err := tx.InsertSupplierPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		return s.refreshFullPaid(ctx, tx, debt)
	})
	if err != nil {
		return SupplierPayment{}, err
	}

	s.recordAudit(ctx, input.ActorID, "payables:payment", payment)
	return payment, nil
}

// RemovePayment deletes a recorded payment and recomputes the slip's
// full-paid flag.
func (s *Service) RemovePayment(ctx context.Context, paymentID, actorID int64) error {
	var removed SupplierPayment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.DeleteSupplierPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		removed = payment

		debt, err := tx.GetStockInDebtForUpdate(ctx, payment.StockInID)
		if err != nil {
			return err
		}
		return s.refreshFullPaid(ctx, tx, debt)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "payables:payment_removed", removed)
	return nil
}

// GetDebtHead returns the running total for (supplier, kind).
func (s *Service) GetDebtHead(ctx context.Context, supplierID int64, kind DebtKind) (DebtHeadSummary, error) {
	if kind != DebtKindGoods && kind != DebtKindEquipment {
		return DebtHeadSummary{}, fmt.Errorf("payables: unknown debt kind %q", kind)
	}
	return s.repo.GetDebtHead(ctx, supplierID, kind)
}

// ListDebtHeads lists heads of one kind.
func (s *Service) ListDebtHeads(ctx context.Context, kind DebtKind) ([]DebtHead, error) {
	return s.repo.ListDebtHeads(ctx, kind)
}

// ListPaymentsForStockIn lists payments recorded against one slip.
func (s *Service) ListPaymentsForStockIn(ctx context.Context, stockInID int64) ([]SupplierPayment, error) {
	return s.repo.ListPaymentsForStockIn(ctx, stockInID)
}

func (s *Service) refreshFullPaid(ctx context.Context, tx TxRepository, debt StockInDebt) error {
	paid, err := tx.SumPaymentsForStockIn(ctx, debt.ID)
	if err != nil {
		return err
	}
	fullPaid := paid >= debt.Total
	if fullPaid == debt.FullPaid {
		return nil
	}
	return tx.SetStockInFullPaid(ctx, debt.ID, fullPaid)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, payment SupplierPayment) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "supplier_payment",
		EntityID: fmt.Sprintf("%d", payment.StockInID),
		Meta: map[string]any{
			"payment_code": payment.Code,
			"supplier_id":  payment.SupplierID,
			"kind":         string(payment.Kind),
			"amount":       payment.Amount,
		},
	})
}
