package payables

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	stockIns map[int64]*StockInDebt
	payments map[int64]SupplierPayment
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stockIns: make(map[int64]*StockInDebt),
		payments: make(map[int64]SupplierPayment),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetDebtHead(ctx context.Context, supplierID int64, kind DebtKind) (DebtHeadSummary, error) {
	return DebtHeadSummary{DebtHead: DebtHead{SupplierID: supplierID, Kind: kind}}, nil
}

func (r *memoryRepo) ListDebtHeads(ctx context.Context, kind DebtKind) ([]DebtHead, error) {
	return nil, nil
}

func (r *memoryRepo) ListPaymentsForStockIn(ctx context.Context, stockInID int64) ([]SupplierPayment, error) {
	var out []SupplierPayment
	for _, p := range r.payments {
		if p.StockInID == stockInID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memoryTx) GetStockInDebtForUpdate(ctx context.Context, stockInID int64) (StockInDebt, error) {
	d, ok := t.repo.stockIns[stockInID]
	if !ok {
		return StockInDebt{}, ErrStockInNotFound
	}
	return *d, nil
}

func (t *memoryTx) InsertSupplierPayment(ctx context.Context, payment SupplierPayment) (int64, error) {
	t.repo.nextID++
	payment.ID = t.repo.nextID
	t.repo.payments[payment.ID] = payment
	return payment.ID, nil
}

func (t *memoryTx) DeleteSupplierPayment(ctx context.Context, id int64) (SupplierPayment, error) {
	p, ok := t.repo.payments[id]
	if !ok {
		return SupplierPayment{}, ErrPaymentNotFound
	}
	delete(t.repo.payments, id)
	return p, nil
}

func (t *memoryTx) SumPaymentsForStockIn(ctx context.Context, stockInID int64) (float64, error) {
	var sum float64
	for _, p := range t.repo.payments {
		if p.StockInID == stockInID {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (t *memoryTx) SetStockInFullPaid(ctx context.Context, stockInID int64, fullPaid bool) error {
	d, ok := t.repo.stockIns[stockInID]
	if !ok {
		return ErrStockInNotFound
	}
	d.FullPaid = fullPaid
	return nil
}

func TestRecordPaymentSetsFullPaid(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockIns[1] = &StockInDebt{ID: 1, SupplierID: 5, Kind: DebtKindGoods, Total: 1000}
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.RecordPayment(ctx, SupplierPaymentInput{StockInID: 1, Amount: 400, Method: "cash"})
	require.NoError(t, err)
	require.EqualValues(t, 5, p.SupplierID)
	require.Equal(t, DebtKindGoods, p.Kind)
	require.False(t, repo.stockIns[1].FullPaid)

	_, err = svc.RecordPayment(ctx, SupplierPaymentInput{StockInID: 1, Amount: 600, Method: "transfer"})
	require.NoError(t, err)
	require.True(t, repo.stockIns[1].FullPaid)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, SupplierPaymentInput{StockInID: 1, Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, SupplierPaymentInput{StockInID: 9, Amount: 10})
	require.ErrorIs(t, err, ErrStockInNotFound)
}

func TestRemovePaymentClearsFullPaid(t *testing.T) {
	repo := newMemoryRepo()
	repo.stockIns[1] = &StockInDebt{ID: 1, SupplierID: 5, Kind: DebtKindEquipment, Total: 500}
	svc := NewService(repo, nil)
	ctx := context.Background()

	p, err := svc.RecordPayment(ctx, SupplierPaymentInput{StockInID: 1, Amount: 500, Method: "cash"})
	require.NoError(t, err)
	require.True(t, repo.stockIns[1].FullPaid)

	require.NoError(t, svc.RemovePayment(ctx, p.ID, 0))
	require.False(t, repo.stockIns[1].FullPaid)

	err = svc.RemovePayment(ctx, p.ID, 0)
	require.ErrorIs(t, err, ErrPaymentNotFound)
}
