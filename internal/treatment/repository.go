package treatment

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/platform/db"
	"github.com/meridian-spa/meridian-erp/internal/receivables"
)

// Repository provides PostgreSQL backed persistence for source documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The AR
// upsert runs over the same transaction as the document write, so a failed
// reconciliation aborts the document change.
type TxRepository interface {
	GetPlanForUpdate(ctx context.Context, id int64) (TreatmentPlan, error)
	InsertPlan(ctx context.Context, p TreatmentPlan) (int64, error)
	UpdatePlan(ctx context.Context, p TreatmentPlan) error
	DeactivatePlan(ctx context.Context, id int64) error

	GetOrderForUpdate(ctx context.Context, id int64) (MedicineOrder, error)
	InsertOrder(ctx context.Context, o MedicineOrder) (int64, error)
	UpdateOrder(ctx context.Context, o MedicineOrder) error
	DeactivateOrder(ctx context.Context, id int64) error

	UpsertReceivable(ctx context.Context, in receivables.UpsertInput) error
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

const planColumns = `id, code, customer_id, package_name, package_price, discount_kind, discount_value,
note, created_by, is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (TreatmentPlan, error) {
	var p TreatmentPlan
	err := row.Scan(&p.ID, &p.Code, &p.CustomerID, &p.PackageName, &p.PackagePrice,
		&p.DiscountKind, &p.DiscountValue, &p.Note, &p.CreatedBy, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TreatmentPlan{}, ErrPlanNotFound
	}
	return p, err
}

// GetPlan returns one active plan.
func (r *Repository) GetPlan(ctx context.Context, id int64) (TreatmentPlan, error) {
	return scanPlan(r.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM treatment_plans WHERE id=$1 AND is_active`, id))
}

// ListPlansForCustomer returns a customer's active plans, newest first.
func (r *Repository) ListPlansForCustomer(ctx context.Context, customerID int64) ([]TreatmentPlan, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+planColumns+` FROM treatment_plans
WHERE customer_id=$1 AND is_active ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var plans []TreatmentPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

const orderColumns = `id, code, customer_id, items_total, discount_kind, discount_value,
note, created_by, is_active, created_at, updated_at`

func scanOrder(row pgx.Row) (MedicineOrder, error) {
	var o MedicineOrder
	err := row.Scan(&o.ID, &o.Code, &o.CustomerID, &o.ItemsTotal,
		&o.DiscountKind, &o.DiscountValue, &o.Note, &o.CreatedBy, &o.IsActive, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return MedicineOrder{}, ErrOrderNotFound
	}
	return o, err
}

// GetOrder returns one active order.
func (r *Repository) GetOrder(ctx context.Context, id int64) (MedicineOrder, error) {
	return scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM medicine_orders WHERE id=$1 AND is_active`, id))
}

// ListOrdersForCustomer returns a customer's active orders, newest first.
func (r *Repository) ListOrdersForCustomer(ctx context.Context, customerID int64) ([]MedicineOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM medicine_orders
WHERE customer_id=$1 AND is_active ORDER BY id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []MedicineOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (t *txRepository) GetPlanForUpdate(ctx context.Context, id int64) (TreatmentPlan, error) {
	return scanPlan(t.tx.QueryRow(ctx, `SELECT `+planColumns+` FROM treatment_plans
WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (t *txRepository) InsertPlan(ctx context.Context, p TreatmentPlan) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO treatment_plans
(code, customer_id, package_name, package_price, discount_kind, discount_value, note, created_by, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, NOW(), NOW()) RETURNING id`,
		p.Code, p.CustomerID, p.PackageName, p.PackagePrice, string(p.DiscountKind), p.DiscountValue,
		p.Note, p.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) UpdatePlan(ctx context.Context, p TreatmentPlan) error {
	_, err := t.tx.Exec(ctx, `UPDATE treatment_plans SET package_name=$2, package_price=$3,
discount_kind=$4, discount_value=$5, note=$6, updated_at=NOW() WHERE id=$1`,
		p.ID, p.PackageName, p.PackagePrice, string(p.DiscountKind), p.DiscountValue, p.Note)
	return err
}

func (t *txRepository) DeactivatePlan(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE treatment_plans SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (t *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (MedicineOrder, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM medicine_orders
WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (t *txRepository) InsertOrder(ctx context.Context, o MedicineOrder) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO medicine_orders
(code, customer_id, items_total, discount_kind, discount_value, note, created_by, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW()) RETURNING id`,
		o.Code, o.CustomerID, o.ItemsTotal, string(o.DiscountKind), o.DiscountValue, o.Note, o.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateOrder(ctx context.Context, o MedicineOrder) error {
	_, err := t.tx.Exec(ctx, `UPDATE medicine_orders SET items_total=$2, discount_kind=$3,
discount_value=$4, note=$5, updated_at=NOW() WHERE id=$1`,
		o.ID, o.ItemsTotal, string(o.DiscountKind), o.DiscountValue, o.Note)
	return err
}

func (t *txRepository) DeactivateOrder(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `UPDATE medicine_orders SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

func (t *txRepository) UpsertReceivable(ctx context.Context, in receivables.UpsertInput) error {
	return receivables.UpsertWith(ctx, receivables.NewTxRepository(t.tx), in)
}
