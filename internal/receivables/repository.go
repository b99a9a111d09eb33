package receivables

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the AR ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional AR operations. Source document services
// construct one over their own transaction via NewTxRepository so the entry
// upsert commits or rolls back together with the document write.
type TxRepository interface {
	GetEntryForUpdate(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error)
	GetEntryByIDForUpdate(ctx context.Context, id int64) (Entry, error)
	InsertEntry(ctx context.Context, e Entry) (int64, error)
	UpdateEntryAmounts(ctx context.Context, id int64, original, paid float64, status Status) error
	DeleteEntry(ctx context.Context, id int64) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
}

type txRepository struct {
	q db.Querier
}

// NewTxRepository wraps an open transaction (or a pool) in the AR
// transactional interface.
func NewTxRepository(q db.Querier) TxRepository {
	return &txRepository{q: q}
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const entryColumns = `id, customer_id, source_kind, source_id, amount_original, amount_paid, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CustomerID, &e.SourceKind, &e.SourceID, &e.AmountOriginal,
		&e.AmountPaid, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrEntryNotFound
	}
	return e, err
}

// GetEntry returns one entry by id.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ar_entries WHERE id=$1`, id))
}

// GetEntryBySource returns the entry derived from one source document.
func (r *Repository) GetEntryBySource(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error) {
	return scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ar_entries
WHERE source_kind=$1 AND source_id=$2`, string(kind), sourceID))
}

// ListForCustomer returns a customer's entries, unpaid first. A non-empty
// status narrows the list to entries in that state.
func (r *Repository) ListForCustomer(ctx context.Context, customerID int64, status Status) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ar_entries WHERE customer_id=$1`
	args := []any{customerID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY status = 'closed', id DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPayments returns the payments recorded against one entry.
func (r *Repository) ListPayments(ctx context.Context, entryID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, entry_id, customer_id, amount, method, note, created_by, created_at
FROM ar_payments WHERE entry_id=$1 ORDER BY id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Code, &p.EntryID, &p.CustomerID, &p.Amount, &p.Method, &p.Note, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// InsertReceipt persists a receipt outside the payment transaction.
func (r *Repository) InsertReceipt(ctx context.Context, receipt Receipt) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO receipts (code, payment_id, entry_id, customer_id, amount, remaining, issued_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		receipt.Code, receipt.PaymentID, receipt.EntryID, receipt.CustomerID,
		receipt.Amount, receipt.Remaining, receipt.IssuedAt)
	return err
}

func (t *txRepository) GetEntryForUpdate(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error) {
	return scanEntry(t.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ar_entries
WHERE source_kind=$1 AND source_id=$2 FOR UPDATE`, string(kind), sourceID))
}

func (t *txRepository) GetEntryByIDForUpdate(ctx context.Context, id int64) (Entry, error) {
	return scanEntry(t.q.QueryRow(ctx, `SELECT `+entryColumns+` FROM ar_entries WHERE id=$1 FOR UPDATE`, id))
}

func (t *txRepository) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO ar_entries
(customer_id, source_kind, source_id, amount_original, amount_paid, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		e.CustomerID, string(e.SourceKind), e.SourceID, e.AmountOriginal, e.AmountPaid, string(e.Status)).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateEntryAmounts(ctx context.Context, id int64, original, paid float64, status Status) error {
	_, err := t.q.Exec(ctx, `UPDATE ar_entries SET amount_original=$2, amount_paid=$3, status=$4, updated_at=NOW()
WHERE id=$1`, id, original, paid, string(status))
	return err
}

func (t *txRepository) DeleteEntry(ctx context.Context, id int64) error {
	_, err := t.q.Exec(ctx, `DELETE FROM ar_entries WHERE id=$1`, id)
	return err
}

func (t *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO ar_payments (code, entry_id, customer_id, amount, method, note, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id`,
		p.Code, p.EntryID, p.CustomerID, p.Amount, p.Method, p.Note, p.CreatedBy).Scan(&id)
	return id, err
}
