package payables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for supplier debt.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetStockInDebtForUpdate(ctx context.Context, stockInID int64) (StockInDebt, error)
	InsertSupplierPayment(ctx context.Context, payment SupplierPayment) (int64, error)
	DeleteSupplierPayment(ctx context.Context, id int64) (SupplierPayment, error)
	SumPaymentsForStockIn(ctx context.Context, stockInID int64) (float64, error)
	SetStockInFullPaid(ctx context.Context, stockInID int64, fullPaid bool) error
}

// StockInDebt is the slice of a stock-in slip the debt ledger needs.
type StockInDebt struct {
	ID         int64
	SupplierID int64
	Kind       DebtKind
	Total      float64
	FullPaid   bool
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

// GetDebtHead returns the head for (supplier, kind) with payment totals.
// A supplier with no contributions yet reads as a zero head.
func (r *Repository) GetDebtHead(ctx context.Context, supplierID int64, kind DebtKind) (DebtHeadSummary, error) {
	var head DebtHead
	err := r.pool.QueryRow(ctx, `SELECT id, supplier_id, kind, total_amount, updated_at
FROM debt_heads WHERE supplier_id=$1 AND kind=$2`, supplierID, string(kind)).
		Scan(&head.ID, &head.SupplierID, &head.Kind, &head.TotalAmount, &head.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			head = DebtHead{SupplierID: supplierID, Kind: kind}
		} else {
			return DebtHeadSummary{}, err
		}
	}

	var paid float64
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(p.amount), 0)
FROM supplier_payments p
JOIN stock_ins s ON s.id = p.stock_in_id
WHERE s.supplier_id=$1 AND p.kind=$2`, supplierID, string(kind)).Scan(&paid)
	if err != nil {
		return DebtHeadSummary{}, err
	}

	remaining := head.TotalAmount - paid
	if remaining < 0 {
		remaining = 0
	}
	return DebtHeadSummary{DebtHead: head, TotalPaid: paid, Remaining: remaining}, nil
}

// ListDebtHeads returns every head of one kind ordered by amount owed.
func (r *Repository) ListDebtHeads(ctx context.Context, kind DebtKind) ([]DebtHead, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, supplier_id, kind, total_amount, updated_at
FROM debt_heads WHERE kind=$1 ORDER BY total_amount DESC, supplier_id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var heads []DebtHead
	for rows.Next() {
		var h DebtHead
		if err := rows.Scan(&h.ID, &h.SupplierID, &h.Kind, &h.TotalAmount, &h.UpdatedAt); err != nil {
			return nil, err
		}
		heads = append(heads, h)
	}
	return heads, rows.Err()
}

// ListPaymentsForStockIn returns payments recorded against one slip.
func (r *Repository) ListPaymentsForStockIn(ctx context.Context, stockInID int64) ([]SupplierPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, stock_in_id, kind, amount, method, note, created_by, created_at
FROM supplier_payments WHERE stock_in_id=$1 ORDER BY id`, stockInID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []SupplierPayment
	for rows.Next() {
		var p SupplierPayment
		if err := rows.Scan(&p.ID, &p.Code, &p.StockInID, &p.Kind, &p.Amount, &p.Method, &p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (t *txRepository) GetStockInDebtForUpdate(ctx context.Context, stockInID int64) (StockInDebt, error) {
	var d StockInDebt
	var productID, equipmentID *int64
	err := t.tx.QueryRow(ctx, `SELECT id, supplier_id, product_id, equipment_id, quantity * unit_price, full_paid
FROM stock_ins WHERE id=$1 AND is_active FOR UPDATE`, stockInID).
		Scan(&d.ID, &d.SupplierID, &productID, &equipmentID, &d.Total, &d.FullPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockInDebt{}, ErrStockInNotFound
		}
		return StockInDebt{}, err
	}
	if productID != nil {
		d.Kind = DebtKindGoods
	} else {
		d.Kind = DebtKindEquipment
	}
	return d, nil
}

func (t *txRepository) InsertSupplierPayment(ctx context.Context, payment SupplierPayment) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO supplier_payments (code, stock_in_id, kind, amount, method, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		payment.Code, payment.StockInID, string(payment.Kind), payment.Amount, payment.Method, payment.Note, payment.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) DeleteSupplierPayment(ctx context.Context, id int64) (SupplierPayment, error) {
	var p SupplierPayment
	err := t.tx.QueryRow(ctx, `DELETE FROM supplier_payments WHERE id=$1
RETURNING id, code, stock_in_id, kind, amount, method, note, created_by, created_at`, id).
		Scan(&p.ID, &p.Code, &p.StockInID, &p.Kind, &p.Amount, &p.Method, &p.Note, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SupplierPayment{}, ErrPaymentNotFound
		}
		return SupplierPayment{}, err
	}
	return p, nil
}

func (t *txRepository) SumPaymentsForStockIn(ctx context.Context, stockInID int64) (float64, error) {
	var sum float64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM supplier_payments WHERE stock_in_id=$1`, stockInID).Scan(&sum)
	return sum, err
}

func (t *txRepository) SetStockInFullPaid(ctx context.Context, stockInID int64, fullPaid bool) error {
	_, err := t.tx.Exec(ctx, `UPDATE stock_ins SET full_paid=$2 WHERE id=$1`, stockInID, fullPaid)
	return err
}
