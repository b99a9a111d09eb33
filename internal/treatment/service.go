package treatment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-spa/meridian-erp/internal/receivables"
	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPlan(ctx context.Context, id int64) (TreatmentPlan, error)
	ListPlansForCustomer(ctx context.Context, customerID int64) ([]TreatmentPlan, error)
	GetOrder(ctx context.Context, id int64) (MedicineOrder, error)
	ListOrdersForCustomer(ctx context.Context, customerID int64) ([]MedicineOrder, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns treatment plans and medicine orders and keeps each document's
// AR entry reconciled with its current amount. Document write and AR upsert
// share one transaction: a failed reconciliation aborts the edit.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func validatePlanInput(input PlanInput) error {
	if input.PackagePrice < 0 {
		return ErrInvalidPrice
	}
	return validateDiscount(input.DiscountKind, input.DiscountValue)
}

func validateOrderInput(input OrderInput) error {
	if input.ItemsTotal < 0 {
		return ErrInvalidPrice
	}
	return validateDiscount(input.DiscountKind, input.DiscountValue)
}

// CreatePlan records a treatment plan and opens its AR entry when the
// discounted amount is positive.
func (s *Service) CreatePlan(ctx context.Context, input PlanInput) (TreatmentPlan, error) {
	if err := validatePlanInput(input); err != nil {
		return TreatmentPlan{}, err
	}

	plan := TreatmentPlan{
		Code:          fmt.Sprintf("TP-%s", uuid.NewString()),
		CustomerID:    input.CustomerID,
		PackageName:   input.PackageName,
		PackagePrice:  input.PackagePrice,
		DiscountKind:  input.DiscountKind,
		DiscountValue: input.DiscountValue,
		Note:          input.Note,
		CreatedBy:     input.ActorID,
		IsActive:      true,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPlan(ctx, plan)
		if err != nil {
			return err
		}
		plan.ID = id
		return tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: plan.CustomerID,
			SourceKind: receivables.SourceTreatmentPlan,
			SourceID:   plan.ID,
			Amount:     plan.CurrentAmount(),
		})
	})
	if err != nil {
		return TreatmentPlan{}, err
	}

	s.recordAudit(ctx, input.ActorID, "treatment:plan", "treatment_plan", plan.ID, plan.CurrentAmount())
	return plan, nil
}

// UpdatePlan edits a plan's price-affecting fields and reconciles its AR
// entry with the recomputed amount. Paid amounts are never touched here.
func (s *Service) UpdatePlan(ctx context.Context, id int64, input PlanInput) (TreatmentPlan, error) {
	if err := validatePlanInput(input); err != nil {
		return TreatmentPlan{}, err
	}

	var updated TreatmentPlan
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		plan, err := tx.GetPlanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		plan.PackageName = input.PackageName
		plan.PackagePrice = input.PackagePrice
		plan.DiscountKind = input.DiscountKind
		plan.DiscountValue = input.DiscountValue
		plan.Note = input.Note

		if err := tx.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		if err := tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: plan.CustomerID,
			SourceKind: receivables.SourceTreatmentPlan,
			SourceID:   plan.ID,
			Amount:     plan.CurrentAmount(),
		}); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return TreatmentPlan{}, err
	}

	s.recordAudit(ctx, input.ActorID, "treatment:plan_updated", "treatment_plan", updated.ID, updated.CurrentAmount())
	return updated, nil
}

// DeletePlan deactivates a plan and settles its AR entry at zero.
func (s *Service) DeletePlan(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		plan, err := tx.GetPlanForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeactivatePlan(ctx, id); err != nil {
			return err
		}
		return tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: plan.CustomerID,
			SourceKind: receivables.SourceTreatmentPlan,
			SourceID:   plan.ID,
			Amount:     0,
		})
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "treatment:plan_removed", "treatment_plan", id, 0)
	return nil
}

// CreateOrder records a medicine order and opens its AR entry when the
// discounted amount is positive.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (MedicineOrder, error) {
	if err := validateOrderInput(input); err != nil {
		return MedicineOrder{}, err
	}

	order := MedicineOrder{
		Code:          fmt.Sprintf("MO-%s", uuid.NewString()),
		CustomerID:    input.CustomerID,
		ItemsTotal:    input.ItemsTotal,
		DiscountKind:  input.DiscountKind,
		DiscountValue: input.DiscountValue,
		Note:          input.Note,
		CreatedBy:     input.ActorID,
		IsActive:      true,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		return tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: order.CustomerID,
			SourceKind: receivables.SourceMedicineOrder,
			SourceID:   order.ID,
			Amount:     order.CurrentAmount(),
		})
	})
	if err != nil {
		return MedicineOrder{}, err
	}

	s.recordAudit(ctx, input.ActorID, "treatment:order", "medicine_order", order.ID, order.CurrentAmount())
	return order, nil
}

// UpdateOrder edits an order and reconciles its AR entry.
func (s *Service) UpdateOrder(ctx context.Context, id int64, input OrderInput) (MedicineOrder, error) {
	if err := validateOrderInput(input); err != nil {
		return MedicineOrder{}, err
	}

	var updated MedicineOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		order.ItemsTotal = input.ItemsTotal
		order.DiscountKind = input.DiscountKind
		order.DiscountValue = input.DiscountValue
		order.Note = input.Note

		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: order.CustomerID,
			SourceKind: receivables.SourceMedicineOrder,
			SourceID:   order.ID,
			Amount:     order.CurrentAmount(),
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return MedicineOrder{}, err
	}

	s.recordAudit(ctx, input.ActorID, "treatment:order_updated", "medicine_order", updated.ID, updated.CurrentAmount())
	return updated, nil
}

// DeleteOrder deactivates an order and settles its AR entry at zero.
func (s *Service) DeleteOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeactivateOrder(ctx, id); err != nil {
			return err
		}
		return tx.UpsertReceivable(ctx, receivables.UpsertInput{
			CustomerID: order.CustomerID,
			SourceKind: receivables.SourceMedicineOrder,
			SourceID:   order.ID,
			Amount:     0,
		})
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "treatment:order_removed", "medicine_order", id, 0)
	return nil
}

// GetPlan returns one plan.
func (s *Service) GetPlan(ctx context.Context, id int64) (TreatmentPlan, error) {
	return s.repo.GetPlan(ctx, id)
}

// ListPlansForCustomer returns a customer's plans.
func (s *Service) ListPlansForCustomer(ctx context.Context, customerID int64) ([]TreatmentPlan, error) {
	return s.repo.ListPlansForCustomer(ctx, customerID)
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id int64) (MedicineOrder, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrdersForCustomer returns a customer's orders.
func (s *Service) ListOrdersForCustomer(ctx context.Context, customerID int64) ([]MedicineOrder, error) {
	return s.repo.ListOrdersForCustomer(ctx, customerID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, amount float64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     map[string]any{"amount": amount},
	})
}
