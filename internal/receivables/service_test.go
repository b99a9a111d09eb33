package receivables

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type sourceKey struct {
	kind     SourceKind
	sourceID int64
}

type memoryRepo struct {
	entries  map[int64]Entry
	bySource map[sourceKey]int64
	payments map[int64]Payment
	receipts []Receipt
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		entries:  make(map[int64]Entry),
		bySource: make(map[sourceKey]int64),
		payments: make(map[int64]Payment),
	}
}

func (r *memoryRepo) InsertReceipt(ctx context.Context, receipt Receipt) error {
	r.receipts = append(r.receipts, receipt)
	return nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetEntry(ctx context.Context, id int64) (Entry, error) {
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return e, nil
}

func (r *memoryRepo) GetEntryBySource(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error) {
	id, ok := r.bySource[sourceKey{kind, sourceID}]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return r.entries[id], nil
}

func (r *memoryRepo) ListForCustomer(ctx context.Context, customerID int64, status Status) ([]Entry, error) {
	var out []Entry
	for _, e := range r.entries {
		if e.CustomerID != customerID {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) ListPayments(ctx context.Context, entryID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.EntryID == entryID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, kind SourceKind, sourceID int64) (Entry, error) {
	return t.repo.GetEntryBySource(ctx, kind, sourceID)
}

func (t *memoryTx) GetEntryByIDForUpdate(ctx context.Context, id int64) (Entry, error) {
	return t.repo.GetEntry(ctx, id)
}

func (t *memoryTx) InsertEntry(ctx context.Context, e Entry) (int64, error) {
	t.repo.nextID++
	e.ID = t.repo.nextID
	t.repo.entries[e.ID] = e
	t.repo.bySource[sourceKey{e.SourceKind, e.SourceID}] = e.ID
	return e.ID, nil
}

func (t *memoryTx) UpdateEntryAmounts(ctx context.Context, id int64, original, paid float64, status Status) error {
	e, ok := t.repo.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	e.AmountOriginal = original
	e.AmountPaid = paid
	e.Status = status
	t.repo.entries[id] = e
	return nil
}

func (t *memoryTx) DeleteEntry(ctx context.Context, id int64) error {
	e, ok := t.repo.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	delete(t.repo.entries, id)
	delete(t.repo.bySource, sourceKey{e.SourceKind, e.SourceID})
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.payments[p.ID] = p
	return p.ID, nil
}

type recordingNotifier struct {
	receipts []Receipt
}

func (n *recordingNotifier) ReceiptIssued(ctx context.Context, r Receipt) error {
	n.receipts = append(n.receipts, r)
	return nil
}

func newTestService(repo *memoryRepo, notifier NotifierPort) *Service {
	return NewService(slog.Default(), repo, notifier, nil)
}

func mustEntry(t *testing.T, repo *memoryRepo, kind SourceKind, sourceID int64) Entry {
	t.Helper()
	e, err := repo.GetEntryBySource(context.Background(), kind, sourceID)
	require.NoError(t, err)
	return e
}

func TestUpsertEntryCreatesOpen(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	err := svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 500})
	require.NoError(t, err)

	e := mustEntry(t, repo, SourceTreatmentPlan, 4)
	require.Equal(t, StatusOpen, e.Status)
	require.EqualValues(t, 500, e.AmountOriginal)
	require.EqualValues(t, 0, e.AmountPaid)
}

func TestUpsertEntryIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	in := UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 500}
	require.NoError(t, svc.UpsertEntry(ctx, in))
	require.NoError(t, svc.UpsertEntry(ctx, in))

	require.Len(t, repo.entries, 1)
	e := mustEntry(t, repo, SourceTreatmentPlan, 4)
	require.EqualValues(t, 500, e.AmountOriginal)
}

func TestUpsertEntryRecalcClosesWhenCovered(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceMedicineOrder, SourceID: 2, Amount: 500}))
	e := mustEntry(t, repo, SourceMedicineOrder, 2)

	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 300, Method: "cash"})
	require.NoError(t, err)

	// Discount applied on the order brings it down to what was already paid.
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceMedicineOrder, SourceID: 2, Amount: 300}))
	e = mustEntry(t, repo, SourceMedicineOrder, 2)
	require.Equal(t, StatusClosed, e.Status)
	require.EqualValues(t, 300, e.AmountOriginal)
	require.EqualValues(t, 0, e.Remaining())
}

func TestUpsertEntryZeroAmount(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	// Unpaid entry vanishes.
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 500}))
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 0}))
	_, err := repo.GetEntryBySource(ctx, SourceTreatmentPlan, 4)
	require.ErrorIs(t, err, ErrEntryNotFound)

	// Paid entry closes at the paid amount.
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 5, Amount: 400}))
	e := mustEntry(t, repo, SourceTreatmentPlan, 5)
	_, err = svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 150, Method: "cash"})
	require.NoError(t, err)

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 5, Amount: 0}))
	e = mustEntry(t, repo, SourceTreatmentPlan, 5)
	require.Equal(t, StatusClosed, e.Status)
	require.EqualValues(t, 150, e.AmountOriginal)
	require.EqualValues(t, 150, e.AmountPaid)

	// Zero amount with no entry at all does nothing.
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 6, Amount: 0}))
	require.Len(t, repo.entries, 1)
}

func TestApplyPaymentProgression(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &recordingNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 500}))
	e := mustEntry(t, repo, SourceTreatmentPlan, 4)

	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 300, Method: "cash"})
	require.NoError(t, err)
	require.Equal(t, StatusPartial, mustEntry(t, repo, SourceTreatmentPlan, 4).Status)

	_, err = svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 200, Method: "transfer"})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, mustEntry(t, repo, SourceTreatmentPlan, 4).Status)

	// The entry is settled, so even one more unit is an overpayment.
	_, err = svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 1, Method: "cash"})
	require.ErrorIs(t, err, ErrOverpayment)

	require.Len(t, notifier.receipts, 2)
	require.EqualValues(t, 200, notifier.receipts[0].Remaining)
	require.EqualValues(t, 0, notifier.receipts[1].Remaining)
	require.Len(t, repo.receipts, 2)

	// Each payment row carries the entry's customer, taken from the locked
	// entry rather than the request.
	for _, p := range repo.payments {
		require.EqualValues(t, 9, p.CustomerID)
	}
}

func TestListForCustomerStatusFilter(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 1, Amount: 500}))
	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceMedicineOrder, SourceID: 2, Amount: 200}))

	e := mustEntry(t, repo, SourceMedicineOrder, 2)
	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 200, Method: "cash"})
	require.NoError(t, err)

	all, err := svc.ListForCustomer(ctx, 9, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	open, err := svc.ListForCustomer(ctx, 9, StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, SourceTreatmentPlan, open[0].SourceKind)

	closed, err := svc.ListForCustomer(ctx, 9, StatusClosed)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.Equal(t, SourceMedicineOrder, closed[0].SourceKind)
}

func TestApplyPaymentCustomerMismatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceTreatmentPlan, SourceID: 4, Amount: 500}))
	e := mustEntry(t, repo, SourceTreatmentPlan, 4)

	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, CustomerID: 8, Amount: 100, Method: "cash"})
	require.ErrorIs(t, err, ErrCustomerMismatch)

	_, err = svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, CustomerID: 9, Amount: 100, Method: "cash"})
	require.NoError(t, err)
}

func TestApplyPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: 1, Amount: 0})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.ApplyPayment(ctx, PaymentInput{EntryID: 99, Amount: 50, Method: "cash"})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestApplyPaymentRejectsOvershoot(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	require.NoError(t, svc.UpsertEntry(ctx, UpsertInput{CustomerID: 9, SourceKind: SourceMedicineOrder, SourceID: 8, Amount: 100}))
	e := mustEntry(t, repo, SourceMedicineOrder, 8)

	_, err := svc.ApplyPayment(ctx, PaymentInput{EntryID: e.ID, Amount: 101, Method: "cash"})
	require.ErrorIs(t, err, ErrOverpayment)
	require.Equal(t, StatusOpen, mustEntry(t, repo, SourceMedicineOrder, 8).Status)
	require.Empty(t, repo.payments)
}
