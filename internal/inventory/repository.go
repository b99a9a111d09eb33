package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/payables"
	"github.com/meridian-spa/meridian-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for stock movements.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. Every
// movement mutation runs through one of these inside a single transaction so
// the document row, the quantity ledger and the debt ledger move together.
type TxRepository interface {
	GetStockInForUpdate(ctx context.Context, id int64) (StockIn, error)
	InsertStockIn(ctx context.Context, in StockIn) (int64, error)
	UpdateStockIn(ctx context.Context, in StockIn) error
	DeactivateStockIn(ctx context.Context, id int64) error

	AdjustLot(ctx context.Context, productID, supplierID, delta int64, importDate time.Time) error
	ListLotsForUpdate(ctx context.Context, productID int64) ([]StockLot, error)
	AdjustLotByID(ctx context.Context, lotID, delta int64) error

	GetStockOutForUpdate(ctx context.Context, id int64) (StockOut, error)
	InsertStockOut(ctx context.Context, out StockOut) (int64, error)
	UpdateStockOut(ctx context.Context, out StockOut) error
	DeactivateStockOut(ctx context.Context, id int64) error

	InsertAllocations(ctx context.Context, stockOutID int64, allocs []LotAllocation) error
	ListAllocations(ctx context.Context, stockOutID int64) ([]LotAllocation, error)
	DeleteAllocations(ctx context.Context, stockOutID int64) error

	AdjustEquipmentQty(ctx context.Context, equipmentID, delta int64) error
	GetEquipmentExportForUpdate(ctx context.Context, id int64) (EquipmentExport, error)
	InsertEquipmentExport(ctx context.Context, exp EquipmentExport) (int64, error)
	UpdateEquipmentExport(ctx context.Context, exp EquipmentExport) error
	DeleteEquipmentExport(ctx context.Context, id int64) error

	AdjustDebtHead(ctx context.Context, adj payables.Adjustment) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const stockInColumns = `id, code, supplier_id, COALESCE(product_id, 0), COALESCE(equipment_id, 0),
quantity, unit_price, import_date, full_paid, note, created_by, is_active, created_at`

func scanStockIn(row pgx.Row) (StockIn, error) {
	var s StockIn
	err := row.Scan(&s.ID, &s.Code, &s.SupplierID, &s.ProductID, &s.EquipmentID,
		&s.Quantity, &s.UnitPrice, &s.ImportDate, &s.FullPaid, &s.Note, &s.CreatedBy, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockIn{}, ErrMovementNotFound
	}
	return s, err
}

// GetStockIn returns one intake slip.
func (r *Repository) GetStockIn(ctx context.Context, id int64) (StockIn, error) {
	return scanStockIn(r.pool.QueryRow(ctx, `SELECT `+stockInColumns+` FROM stock_ins WHERE id=$1 AND is_active`, id))
}

// ListStockIns returns active intake slips, newest first.
func (r *Repository) ListStockIns(ctx context.Context) ([]StockIn, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockInColumns+` FROM stock_ins WHERE is_active ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockIn
	for rows.Next() {
		s, err := scanStockIn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const stockOutColumns = `id, code, product_id, COALESCE(customer_id, 0), quantity, unit_price,
export_date, issue_type, note, created_by, is_active, created_at`

func scanStockOut(row pgx.Row) (StockOut, error) {
	var s StockOut
	err := row.Scan(&s.ID, &s.Code, &s.ProductID, &s.CustomerID, &s.Quantity, &s.UnitPrice,
		&s.ExportDate, &s.IssueType, &s.Note, &s.CreatedBy, &s.IsActive, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockOut{}, ErrMovementNotFound
	}
	return s, err
}

// GetStockOut returns one issue slip.
func (r *Repository) GetStockOut(ctx context.Context, id int64) (StockOut, error) {
	return scanStockOut(r.pool.QueryRow(ctx, `SELECT `+stockOutColumns+` FROM stock_outs WHERE id=$1 AND is_active`, id))
}

// ListStockOuts returns active issue slips, newest first.
func (r *Repository) ListStockOuts(ctx context.Context) ([]StockOut, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockOutColumns+` FROM stock_outs WHERE is_active ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockOut
	for rows.Next() {
		s, err := scanStockOut(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListLots returns the lots of one product ordered by intake.
func (r *Repository) ListLots(ctx context.Context, productID int64) ([]StockLot, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, supplier_id, quantity, import_date
FROM stock_lots WHERE product_id=$1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []StockLot
	for rows.Next() {
		var l StockLot
		if err := rows.Scan(&l.ID, &l.ProductID, &l.SupplierID, &l.Quantity, &l.ImportDate); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// ProductQuantity returns the on-hand quantity of a product summed over lots.
func (r *Repository) ProductQuantity(ctx context.Context, productID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_lots WHERE product_id=$1`, productID).Scan(&qty)
	return qty, err
}

// EquipmentQuantity returns the on-hand quantity of one equipment item.
func (r *Repository) EquipmentQuantity(ctx context.Context, equipmentID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM equipment WHERE id=$1`, equipmentID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrItemNotFound
	}
	return qty, err
}

// GetEquipmentExport returns one equipment export.
func (r *Repository) GetEquipmentExport(ctx context.Context, id int64) (EquipmentExport, error) {
	return scanEquipmentExport(r.pool.QueryRow(ctx, `SELECT `+equipmentExportColumns+` FROM equipment_exports WHERE id=$1`, id))
}

// ListEquipmentExports returns equipment exports, newest first.
func (r *Repository) ListEquipmentExports(ctx context.Context) ([]EquipmentExport, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+equipmentExportColumns+` FROM equipment_exports ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EquipmentExport
	for rows.Next() {
		e, err := scanEquipmentExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const equipmentExportColumns = `id, equipment_id, export_type, quantity, unit_price, COALESCE(customer_id, 0), note, created_by, created_at`

func scanEquipmentExport(row pgx.Row) (EquipmentExport, error) {
	var e EquipmentExport
	err := row.Scan(&e.ID, &e.EquipmentID, &e.ExportType, &e.Quantity, &e.UnitPrice, &e.CustomerID, &e.Note, &e.CreatedBy, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return EquipmentExport{}, ErrMovementNotFound
	}
	return e, err
}

func nullableID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func (t *txRepository) GetStockInForUpdate(ctx context.Context, id int64) (StockIn, error) {
	return scanStockIn(t.tx.QueryRow(ctx, `SELECT `+stockInColumns+` FROM stock_ins WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (t *txRepository) InsertStockIn(ctx context.Context, in StockIn) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_ins
(code, supplier_id, product_id, equipment_id, quantity, unit_price, import_date, full_paid, note, created_by, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8, $9, TRUE, NOW()) RETURNING id`,
		in.Code, in.SupplierID, nullableID(in.ProductID), nullableID(in.EquipmentID),
		in.Quantity, in.UnitPrice, in.ImportDate, in.Note, in.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateStockIn(ctx context.Context, in StockIn) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_ins SET supplier_id=$2, product_id=$3, equipment_id=$4,
quantity=$5, unit_price=$6, import_date=$7, note=$8 WHERE id=$1`,
		in.ID, in.SupplierID, nullableID(in.ProductID), nullableID(in.EquipmentID),
		in.Quantity, in.UnitPrice, in.ImportDate, in.Note)
	return err
}

func (t *txRepository) DeactivateStockIn(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_ins SET is_active=FALSE WHERE id=$1`, id)
	return err
}

// AdjustLot moves the (product, supplier) lot by delta. Positive deltas upsert
// the lot; negative deltas are guarded so a lot never goes below zero, which
// happens when an edit tries to take back stock that was already issued.
func (t *txRepository) AdjustLot(ctx context.Context, productID, supplierID, delta int64, importDate time.Time) error {
	if delta >= 0 {
		_, err := t.tx.Exec(ctx, `INSERT INTO stock_lots (product_id, supplier_id, quantity, import_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id, supplier_id) DO UPDATE SET quantity = stock_lots.quantity + EXCLUDED.quantity`,
			productID, supplierID, delta, importDate)
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE stock_lots SET quantity = quantity + $3
WHERE product_id=$1 AND supplier_id=$2 AND quantity + $3 >= 0`, productID, supplierID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *txRepository) ListLotsForUpdate(ctx context.Context, productID int64) ([]StockLot, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, product_id, supplier_id, quantity, import_date
FROM stock_lots WHERE product_id=$1 ORDER BY id FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lots []StockLot
	for rows.Next() {
		var l StockLot
		if err := rows.Scan(&l.ID, &l.ProductID, &l.SupplierID, &l.Quantity, &l.ImportDate); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (t *txRepository) AdjustLotByID(ctx context.Context, lotID, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE stock_lots SET quantity = quantity + $2
WHERE id=$1 AND quantity + $2 >= 0`, lotID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *txRepository) GetStockOutForUpdate(ctx context.Context, id int64) (StockOut, error) {
	return scanStockOut(t.tx.QueryRow(ctx, `SELECT `+stockOutColumns+` FROM stock_outs WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (t *txRepository) InsertStockOut(ctx context.Context, out StockOut) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO stock_outs
(code, product_id, customer_id, quantity, unit_price, export_date, issue_type, note, created_by, is_active, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, NOW()) RETURNING id`,
		out.Code, out.ProductID, nullableID(out.CustomerID), out.Quantity, out.UnitPrice,
		out.ExportDate, out.IssueType, out.Note, out.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateStockOut(ctx context.Context, out StockOut) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_outs SET product_id=$2, customer_id=$3, quantity=$4,
unit_price=$5, export_date=$6, issue_type=$7, note=$8 WHERE id=$1`,
		out.ID, out.ProductID, nullableID(out.CustomerID), out.Quantity, out.UnitPrice,
		out.ExportDate, out.IssueType, out.Note)
	return err
}

func (t *txRepository) DeactivateStockOut(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_outs SET is_active=FALSE WHERE id=$1`, id)
	return err
}

func (t *txRepository) InsertAllocations(ctx context.Context, stockOutID int64, allocs []LotAllocation) error {
	for _, a := range allocs {
		if _, err := t.tx.Exec(ctx, `INSERT INTO stock_out_allocations (stock_out_id, lot_id, quantity)
VALUES ($1, $2, $3)`, stockOutID, a.LotID, a.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepository) ListAllocations(ctx context.Context, stockOutID int64) ([]LotAllocation, error) {
	rows, err := t.tx.Query(ctx, `SELECT lot_id, quantity FROM stock_out_allocations
WHERE stock_out_id=$1 ORDER BY lot_id`, stockOutID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var allocs []LotAllocation
	for rows.Next() {
		var a LotAllocation
		if err := rows.Scan(&a.LotID, &a.Quantity); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

func (t *txRepository) DeleteAllocations(ctx context.Context, stockOutID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM stock_out_allocations WHERE stock_out_id=$1`, stockOutID)
	return err
}

// AdjustEquipmentQty moves equipment on-hand quantity by delta, guarded so it
// never goes below zero.
func (t *txRepository) AdjustEquipmentQty(ctx context.Context, equipmentID, delta int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE equipment SET quantity = quantity + $2
WHERE id=$1 AND quantity + $2 >= 0`, equipmentID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM equipment WHERE id=$1)`, equipmentID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrItemNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

func (t *txRepository) GetEquipmentExportForUpdate(ctx context.Context, id int64) (EquipmentExport, error) {
	return scanEquipmentExport(t.tx.QueryRow(ctx, `SELECT `+equipmentExportColumns+` FROM equipment_exports WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) InsertEquipmentExport(ctx context.Context, exp EquipmentExport) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO equipment_exports
(equipment_id, export_type, quantity, unit_price, customer_id, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		exp.EquipmentID, exp.ExportType, exp.Quantity, exp.UnitPrice, nullableID(exp.CustomerID),
		exp.Note, exp.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateEquipmentExport(ctx context.Context, exp EquipmentExport) error {
	_, err := t.tx.Exec(ctx, `UPDATE equipment_exports SET equipment_id=$2, export_type=$3,
quantity=$4, unit_price=$5, customer_id=$6, note=$7 WHERE id=$1`,
		exp.ID, exp.EquipmentID, exp.ExportType, exp.Quantity, exp.UnitPrice, nullableID(exp.CustomerID), exp.Note)
	return err
}

func (t *txRepository) DeleteEquipmentExport(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM equipment_exports WHERE id=$1`, id)
	return err
}

func (t *txRepository) AdjustDebtHead(ctx context.Context, adj payables.Adjustment) error {
	return payables.ApplyAdjustment(ctx, t.tx, adj)
}
