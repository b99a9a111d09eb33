package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-spa/meridian-erp/internal/payables"
	"github.com/meridian-spa/meridian-erp/internal/platform/cache"
	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStockIn(ctx context.Context, id int64) (StockIn, error)
	ListStockIns(ctx context.Context) ([]StockIn, error)
	GetStockOut(ctx context.Context, id int64) (StockOut, error)
	ListStockOuts(ctx context.Context) ([]StockOut, error)
	GetEquipmentExport(ctx context.Context, id int64) (EquipmentExport, error)
	ListEquipmentExports(ctx context.Context) ([]EquipmentExport, error)
	ListLots(ctx context.Context, productID int64) ([]StockLot, error)
	ProductQuantity(ctx context.Context, productID int64) (int64, error)
	EquipmentQuantity(ctx context.Context, equipmentID int64) (int64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns stock movement documents and keeps the derived quantity and
// debt ledgers in sync with them. Every create, update and delete runs in one
// transaction covering the document row and both ledgers.
type Service struct {
	repo  RepositoryPort
	cache *cache.QuantityCache
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, qc *cache.QuantityCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: qc, audit: audit}
}

func validateStockInInput(input StockInInput) error {
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if input.UnitPrice < 0 {
		return ErrInvalidUnitPrice
	}
	if (input.ProductID == 0) == (input.EquipmentID == 0) {
		return ErrInconsistentReference
	}
	return nil
}

// CreateStockIn records an intake slip, adds its quantity to the matching lot
// or equipment row and raises the supplier's debt head by the slip total.
func (s *Service) CreateStockIn(ctx context.Context, input StockInInput) (StockIn, error) {
	if err := validateStockInInput(input); err != nil {
		return StockIn{}, err
	}

	slip := StockIn{
		Code:        fmt.Sprintf("SI-%s", uuid.NewString()),
		SupplierID:  input.SupplierID,
		ProductID:   input.ProductID,
		EquipmentID: input.EquipmentID,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		ImportDate:  input.ImportDate,
		Note:        input.Note,
		CreatedBy:   input.ActorID,
		IsActive:    true,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertStockIn(ctx, slip)
		if err != nil {
			return err
		}
		slip.ID = id

		if err := s.applyStockInQuantity(ctx, tx, slip, slip.Quantity); err != nil {
			return err
		}
		return applyContributionChange(ctx, tx, nil, slip.Contribution())
	})
	if err != nil {
		return StockIn{}, err
	}

	s.invalidateQuantity(ctx, slip)
	s.recordAudit(ctx, input.ActorID, "inventory:stock_in", "stock_in", slip.ID, map[string]any{
		"quantity": slip.Quantity, "total": slip.Total(), "supplier_id": slip.SupplierID,
	})
	return slip, nil
}

// UpdateStockIn edits an intake slip. When the target lot stays the same only
// the quantity difference moves; when the supplier or referenced item changes
// the old contribution is reversed in full and the new one applied in full.
func (s *Service) UpdateStockIn(ctx context.Context, id int64, input StockInInput) (StockIn, error) {
	if err := validateStockInInput(input); err != nil {
		return StockIn{}, err
	}

	var updated StockIn
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetStockInForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next := old
		next.SupplierID = input.SupplierID
		next.ProductID = input.ProductID
		next.EquipmentID = input.EquipmentID
		next.Quantity = input.Quantity
		next.UnitPrice = input.UnitPrice
		next.ImportDate = input.ImportDate
		next.Note = input.Note

		if err := s.moveStockInQuantity(ctx, tx, old, next); err != nil {
			return err
		}
		if err := applyContributionChange(ctx, tx, old.Contribution(), next.Contribution()); err != nil {
			return err
		}
		if err := tx.UpdateStockIn(ctx, next); err != nil {
			return err
		}
		updated = next
		s.invalidateQuantity(ctx, old)
		return nil
	})
	if err != nil {
		return StockIn{}, err
	}

	s.invalidateQuantity(ctx, updated)
	s.recordAudit(ctx, input.ActorID, "inventory:stock_in_updated", "stock_in", updated.ID, map[string]any{
		"quantity": updated.Quantity, "total": updated.Total(), "supplier_id": updated.SupplierID,
	})
	return updated, nil
}

// DeleteStockIn deactivates an intake slip, taking its quantity back out of
// stock and its total off the supplier's debt head. The delete is rejected
// when the received stock was already issued.
func (s *Service) DeleteStockIn(ctx context.Context, id, actorID int64) error {
	var removed StockIn
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetStockInForUpdate(ctx, id)
		if err != nil {
			return err
		}
		removed = old

		if err := s.applyStockInQuantity(ctx, tx, old, -old.Quantity); err != nil {
			return err
		}
		if err := applyContributionChange(ctx, tx, old.Contribution(), nil); err != nil {
			return err
		}
		return tx.DeactivateStockIn(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateQuantity(ctx, removed)
	s.recordAudit(ctx, actorID, "inventory:stock_in_removed", "stock_in", removed.ID, map[string]any{
		"quantity": removed.Quantity, "total": removed.Total(), "supplier_id": removed.SupplierID,
	})
	return nil
}

func (s *Service) applyStockInQuantity(ctx context.Context, tx TxRepository, slip StockIn, delta int64) error {
	if slip.ProductID != 0 {
		return tx.AdjustLot(ctx, slip.ProductID, slip.SupplierID, delta, slip.ImportDate)
	}
	return tx.AdjustEquipmentQty(ctx, slip.EquipmentID, delta)
}

func (s *Service) moveStockInQuantity(ctx context.Context, tx TxRepository, old, next StockIn) error {
	sameLot := old.ProductID != 0 && old.ProductID == next.ProductID && old.SupplierID == next.SupplierID
	sameEquipment := old.EquipmentID != 0 && old.EquipmentID == next.EquipmentID
	if sameLot || sameEquipment {
		delta := next.Quantity - old.Quantity
		if delta == 0 {
			return nil
		}
		return s.applyStockInQuantity(ctx, tx, next, delta)
	}
	if err := s.applyStockInQuantity(ctx, tx, old, -old.Quantity); err != nil {
		return err
	}
	return s.applyStockInQuantity(ctx, tx, next, next.Quantity)
}

func applyContributionChange(ctx context.Context, tx TxRepository, old, next *payables.Contribution) error {
	for _, adj := range payables.PlanAdjustments(old, next) {
		if err := tx.AdjustDebtHead(ctx, adj); err != nil {
			return err
		}
	}
	return nil
}

// CreateStockOut records an issue slip, drawing the quantity across the
// product's lots in intake order. The draw-down per lot is recorded so a
// later edit or delete reverses exactly what was taken.
func (s *Service) CreateStockOut(ctx context.Context, input StockOutInput) (StockOut, error) {
	if input.Quantity <= 0 {
		return StockOut{}, ErrInvalidQuantity
	}
	if input.ProductID == 0 {
		return StockOut{}, ErrInconsistentReference
	}

	slip := StockOut{
		Code:       fmt.Sprintf("SO-%s", uuid.NewString()),
		ProductID:  input.ProductID,
		CustomerID: input.CustomerID,
		Quantity:   input.Quantity,
		UnitPrice:  input.UnitPrice,
		ExportDate: input.ExportDate,
		IssueType:  input.IssueType,
		Note:       input.Note,
		CreatedBy:  input.ActorID,
		IsActive:   true,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertStockOut(ctx, slip)
		if err != nil {
			return err
		}
		slip.ID = id
		return s.drawDown(ctx, tx, slip.ID, slip.ProductID, slip.Quantity)
	})
	if err != nil {
		return StockOut{}, err
	}

	_ = s.cache.Invalidate(ctx, "product", slip.ProductID)
	s.recordAudit(ctx, input.ActorID, "inventory:stock_out", "stock_out", slip.ID, map[string]any{
		"quantity": slip.Quantity, "product_id": slip.ProductID,
	})
	return slip, nil
}

// UpdateStockOut edits an issue slip by reversing its recorded lot
// allocations in full and drawing the new quantity down again.
func (s *Service) UpdateStockOut(ctx context.Context, id int64, input StockOutInput) (StockOut, error) {
	if input.Quantity <= 0 {
		return StockOut{}, ErrInvalidQuantity
	}
	if input.ProductID == 0 {
		return StockOut{}, ErrInconsistentReference
	}

	var updated StockOut
	var oldProductID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetStockOutForUpdate(ctx, id)
		if err != nil {
			return err
		}
		oldProductID = old.ProductID

		if err := s.reverseAllocations(ctx, tx, id); err != nil {
			return err
		}

		next := old
		next.ProductID = input.ProductID
		next.CustomerID = input.CustomerID
		next.Quantity = input.Quantity
		next.UnitPrice = input.UnitPrice
		next.ExportDate = input.ExportDate
		next.IssueType = input.IssueType
		next.Note = input.Note

		if err := tx.UpdateStockOut(ctx, next); err != nil {
			return err
		}
		if err := s.drawDown(ctx, tx, id, next.ProductID, next.Quantity); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return StockOut{}, err
	}

	_ = s.cache.Invalidate(ctx, "product", oldProductID)
	_ = s.cache.Invalidate(ctx, "product", updated.ProductID)
	s.recordAudit(ctx, input.ActorID, "inventory:stock_out_updated", "stock_out", updated.ID, map[string]any{
		"quantity": updated.Quantity, "product_id": updated.ProductID,
	})
	return updated, nil
}

// DeleteStockOut deactivates an issue slip and puts the drawn stock back on
// the lots it came from.
func (s *Service) DeleteStockOut(ctx context.Context, id, actorID int64) error {
	var removed StockOut
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetStockOutForUpdate(ctx, id)
		if err != nil {
			return err
		}
		removed = old

		if err := s.reverseAllocations(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeactivateStockOut(ctx, id)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, "product", removed.ProductID)
	s.recordAudit(ctx, actorID, "inventory:stock_out_removed", "stock_out", removed.ID, map[string]any{
		"quantity": removed.Quantity, "product_id": removed.ProductID,
	})
	return nil
}

func (s *Service) drawDown(ctx context.Context, tx TxRepository, stockOutID, productID, quantity int64) error {
	lots, err := tx.ListLotsForUpdate(ctx, productID)
	if err != nil {
		return err
	}

	var available int64
	for _, lot := range lots {
		available += lot.Quantity
	}
	if available < quantity {
		return ErrInsufficientStock
	}

	remaining := quantity
	var allocs []LotAllocation
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.Quantity
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}
		if err := tx.AdjustLotByID(ctx, lot.ID, -take); err != nil {
			return err
		}
		allocs = append(allocs, LotAllocation{LotID: lot.ID, Quantity: take})
		remaining -= take
	}
	return tx.InsertAllocations(ctx, stockOutID, allocs)
}

func (s *Service) reverseAllocations(ctx context.Context, tx TxRepository, stockOutID int64) error {
	allocs, err := tx.ListAllocations(ctx, stockOutID)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		if err := tx.AdjustLotByID(ctx, a.LotID, a.Quantity); err != nil {
			return err
		}
	}
	return tx.DeleteAllocations(ctx, stockOutID)
}

// CreateEquipmentExport records an equipment issue and lowers the equipment
// on-hand quantity by the issued amount.
func (s *Service) CreateEquipmentExport(ctx context.Context, input EquipmentExportInput) (EquipmentExport, error) {
	if input.Quantity <= 0 {
		return EquipmentExport{}, ErrInvalidQuantity
	}
	if input.EquipmentID == 0 {
		return EquipmentExport{}, ErrInconsistentReference
	}

	exp := EquipmentExport{
		EquipmentID: input.EquipmentID,
		ExportType:  input.ExportType,
		Quantity:    input.Quantity,
		UnitPrice:   input.UnitPrice,
		CustomerID:  input.CustomerID,
		Note:        input.Note,
		CreatedBy:   input.ActorID,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.AdjustEquipmentQty(ctx, exp.EquipmentID, -exp.Quantity); err != nil {
			return err
		}
		id, err := tx.InsertEquipmentExport(ctx, exp)
		if err != nil {
			return err
		}
		exp.ID = id
		return nil
	})
	if err != nil {
		return EquipmentExport{}, err
	}

	_ = s.cache.Invalidate(ctx, "equipment", exp.EquipmentID)
	s.recordAudit(ctx, input.ActorID, "inventory:equipment_export", "equipment_export", exp.ID, map[string]any{
		"quantity": exp.Quantity, "equipment_id": exp.EquipmentID,
	})
	return exp, nil
}

// UpdateEquipmentExport edits an equipment issue. Same equipment moves by the
// quantity difference; a different equipment gets the old amount back and the
// new amount taken.
func (s *Service) UpdateEquipmentExport(ctx context.Context, id int64, input EquipmentExportInput) (EquipmentExport, error) {
	if input.Quantity <= 0 {
		return EquipmentExport{}, ErrInvalidQuantity
	}
	if input.EquipmentID == 0 {
		return EquipmentExport{}, ErrInconsistentReference
	}

	var updated EquipmentExport
	var oldEquipmentID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetEquipmentExportForUpdate(ctx, id)
		if err != nil {
			return err
		}
		oldEquipmentID = old.EquipmentID

		if old.EquipmentID == input.EquipmentID {
			if delta := old.Quantity - input.Quantity; delta != 0 {
				if err := tx.AdjustEquipmentQty(ctx, old.EquipmentID, delta); err != nil {
					return err
				}
			}
		} else {
			if err := tx.AdjustEquipmentQty(ctx, old.EquipmentID, old.Quantity); err != nil {
				return err
			}
			if err := tx.AdjustEquipmentQty(ctx, input.EquipmentID, -input.Quantity); err != nil {
				return err
			}
		}

		next := old
		next.EquipmentID = input.EquipmentID
		next.ExportType = input.ExportType
		next.Quantity = input.Quantity
		next.UnitPrice = input.UnitPrice
		next.CustomerID = input.CustomerID
		next.Note = input.Note

		if err := tx.UpdateEquipmentExport(ctx, next); err != nil {
			return err
		}
		updated = next
		return nil
	})
	if err != nil {
		return EquipmentExport{}, err
	}

	_ = s.cache.Invalidate(ctx, "equipment", oldEquipmentID)
	_ = s.cache.Invalidate(ctx, "equipment", updated.EquipmentID)
	s.recordAudit(ctx, input.ActorID, "inventory:equipment_export_updated", "equipment_export", updated.ID, map[string]any{
		"quantity": updated.Quantity, "equipment_id": updated.EquipmentID,
	})
	return updated, nil
}

// DeleteEquipmentExport removes an equipment issue and returns its quantity.
func (s *Service) DeleteEquipmentExport(ctx context.Context, id, actorID int64) error {
	var removed EquipmentExport
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetEquipmentExportForUpdate(ctx, id)
		if err != nil {
			return err
		}
		removed = old

		if err := tx.AdjustEquipmentQty(ctx, old.EquipmentID, old.Quantity); err != nil {
			return err
		}
		return tx.DeleteEquipmentExport(ctx, id)
	})
	if err != nil {
		return err
	}

	_ = s.cache.Invalidate(ctx, "equipment", removed.EquipmentID)
	s.recordAudit(ctx, actorID, "inventory:equipment_export_removed", "equipment_export", removed.ID, map[string]any{
		"quantity": removed.Quantity, "equipment_id": removed.EquipmentID,
	})
	return nil
}

// GetStockIn returns one intake slip.
func (s *Service) GetStockIn(ctx context.Context, id int64) (StockIn, error) {
	return s.repo.GetStockIn(ctx, id)
}

// ListStockIns returns active intake slips.
func (s *Service) ListStockIns(ctx context.Context) ([]StockIn, error) {
	return s.repo.ListStockIns(ctx)
}

// GetStockOut returns one issue slip.
func (s *Service) GetStockOut(ctx context.Context, id int64) (StockOut, error) {
	return s.repo.GetStockOut(ctx, id)
}

// ListStockOuts returns active issue slips.
func (s *Service) ListStockOuts(ctx context.Context) ([]StockOut, error) {
	return s.repo.ListStockOuts(ctx)
}

// GetEquipmentExport returns one equipment issue.
func (s *Service) GetEquipmentExport(ctx context.Context, id int64) (EquipmentExport, error) {
	return s.repo.GetEquipmentExport(ctx, id)
}

// ListEquipmentExports returns equipment issues.
func (s *Service) ListEquipmentExports(ctx context.Context) ([]EquipmentExport, error) {
	return s.repo.ListEquipmentExports(ctx)
}

// ListLots returns the per-supplier lots of one product.
func (s *Service) ListLots(ctx context.Context, productID int64) ([]StockLot, error) {
	return s.repo.ListLots(ctx, productID)
}

// ProductQuantity returns the cached on-hand product quantity, reading
// through to the lot sum on a miss.
func (s *Service) ProductQuantity(ctx context.Context, productID int64) (int64, error) {
	if qty, err := s.cache.Get(ctx, "product", productID); err == nil {
		return qty, nil
	}
	qty, err := s.repo.ProductQuantity(ctx, productID)
	if err != nil {
		return 0, err
	}
	_ = s.cache.Set(ctx, "product", productID, qty)
	return qty, nil
}

// EquipmentQuantity returns the cached equipment quantity, reading through
// on a miss.
func (s *Service) EquipmentQuantity(ctx context.Context, equipmentID int64) (int64, error) {
	if qty, err := s.cache.Get(ctx, "equipment", equipmentID); err == nil {
		return qty, nil
	}
	qty, err := s.repo.EquipmentQuantity(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	_ = s.cache.Set(ctx, "equipment", equipmentID, qty)
	return qty, nil
}

func (s *Service) invalidateQuantity(ctx context.Context, slip StockIn) {
	if slip.ProductID != 0 {
		_ = s.cache.Invalidate(ctx, "product", slip.ProductID)
		return
	}
	_ = s.cache.Invalidate(ctx, "equipment", slip.EquipmentID)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
