package treatment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-spa/meridian-erp/internal/receivables"
)

// arStore is an in-memory receivables.TxRepository so the real upsert policy
// runs against the fake document store.
type arStore struct {
	entries map[int64]receivables.Entry
	nextID  int64
}

func newARStore() *arStore {
	return &arStore{entries: make(map[int64]receivables.Entry)}
}

func (a *arStore) bySource(kind receivables.SourceKind, sourceID int64) (receivables.Entry, bool) {
	for _, e := range a.entries {
		if e.SourceKind == kind && e.SourceID == sourceID {
			return e, true
		}
	}
	return receivables.Entry{}, false
}

func (a *arStore) GetEntryForUpdate(ctx context.Context, kind receivables.SourceKind, sourceID int64) (receivables.Entry, error) {
	if e, ok := a.bySource(kind, sourceID); ok {
		return e, nil
	}
	return receivables.Entry{}, receivables.ErrEntryNotFound
}

func (a *arStore) GetEntryByIDForUpdate(ctx context.Context, id int64) (receivables.Entry, error) {
	e, ok := a.entries[id]
	if !ok {
		return receivables.Entry{}, receivables.ErrEntryNotFound
	}
	return e, nil
}

func (a *arStore) InsertEntry(ctx context.Context, e receivables.Entry) (int64, error) {
	a.nextID++
	e.ID = a.nextID
	a.entries[e.ID] = e
	return e.ID, nil
}

func (a *arStore) UpdateEntryAmounts(ctx context.Context, id int64, original, paid float64, status receivables.Status) error {
	e, ok := a.entries[id]
	if !ok {
		return receivables.ErrEntryNotFound
	}
	e.AmountOriginal = original
	e.AmountPaid = paid
	e.Status = status
	a.entries[id] = e
	return nil
}

func (a *arStore) DeleteEntry(ctx context.Context, id int64) error {
	delete(a.entries, id)
	return nil
}

func (a *arStore) InsertPayment(ctx context.Context, p receivables.Payment) (int64, error) {
	a.nextID++
	return a.nextID, nil
}

type memoryRepo struct {
	plans  map[int64]TreatmentPlan
	orders map[int64]MedicineOrder
	ar     *arStore
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		plans:  make(map[int64]TreatmentPlan),
		orders: make(map[int64]MedicineOrder),
		ar:     newARStore(),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetPlan(ctx context.Context, id int64) (TreatmentPlan, error) {
	p, ok := r.plans[id]
	if !ok || !p.IsActive {
		return TreatmentPlan{}, ErrPlanNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPlansForCustomer(ctx context.Context, customerID int64) ([]TreatmentPlan, error) {
	var out []TreatmentPlan
	for _, p := range r.plans {
		if p.CustomerID == customerID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (MedicineOrder, error) {
	o, ok := r.orders[id]
	if !ok || !o.IsActive {
		return MedicineOrder{}, ErrOrderNotFound
	}
	return o, nil
}

func (r *memoryRepo) ListOrdersForCustomer(ctx context.Context, customerID int64) ([]MedicineOrder, error) {
	var out []MedicineOrder
	for _, o := range r.orders {
		if o.CustomerID == customerID && o.IsActive {
			out = append(out, o)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetPlanForUpdate(ctx context.Context, id int64) (TreatmentPlan, error) {
	return t.repo.GetPlan(ctx, id)
}

func (t *memoryTx) InsertPlan(ctx context.Context, p TreatmentPlan) (int64, error) {
	t.repo.nextID++
	p.ID = t.repo.nextID
	t.repo.plans[p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) UpdatePlan(ctx context.Context, p TreatmentPlan) error {
	t.repo.plans[p.ID] = p
	return nil
}

func (t *memoryTx) DeactivatePlan(ctx context.Context, id int64) error {
	p := t.repo.plans[id]
	p.IsActive = false
	t.repo.plans[id] = p
	return nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (MedicineOrder, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) InsertOrder(ctx context.Context, o MedicineOrder) (int64, error) {
	t.repo.nextID++
	o.ID = t.repo.nextID
	t.repo.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) UpdateOrder(ctx context.Context, o MedicineOrder) error {
	t.repo.orders[o.ID] = o
	return nil
}

func (t *memoryTx) DeactivateOrder(ctx context.Context, id int64) error {
	o := t.repo.orders[id]
	o.IsActive = false
	t.repo.orders[id] = o
	return nil
}

func (t *memoryTx) UpsertReceivable(ctx context.Context, in receivables.UpsertInput) error {
	return receivables.UpsertWith(ctx, t.repo.ar, in)
}

func TestCurrentAmount(t *testing.T) {
	plan := TreatmentPlan{PackagePrice: 500}
	require.EqualValues(t, 500, plan.CurrentAmount())

	plan.DiscountKind = DiscountPercent
	plan.DiscountValue = 20
	require.EqualValues(t, 400, plan.CurrentAmount())

	plan.DiscountKind = DiscountFixed
	plan.DiscountValue = 100
	require.EqualValues(t, 400, plan.CurrentAmount())

	// A fixed discount larger than the price floors at zero.
	plan.DiscountValue = 900
	require.EqualValues(t, 0, plan.CurrentAmount())
}

func TestCreatePlanOpensEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, PlanInput{CustomerID: 9, PackageName: "laser course", PackagePrice: 500})
	require.NoError(t, err)

	e, ok := repo.ar.bySource(receivables.SourceTreatmentPlan, plan.ID)
	require.True(t, ok)
	require.EqualValues(t, 500, e.AmountOriginal)
	require.Equal(t, receivables.StatusOpen, e.Status)
	require.EqualValues(t, 9, e.CustomerID)
}

func TestCreatePlanFullyDiscountedSkipsEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, PlanInput{
		CustomerID: 9, PackageName: "comp session", PackagePrice: 300,
		DiscountKind: DiscountPercent, DiscountValue: 100,
	})
	require.NoError(t, err)

	_, ok := repo.ar.bySource(receivables.SourceTreatmentPlan, plan.ID)
	require.False(t, ok)
}

func TestUpdatePlanReconcilesEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, PlanInput{CustomerID: 9, PackageName: "laser course", PackagePrice: 500})
	require.NoError(t, err)

	// Simulate a payment recorded through the AR ledger.
	e, _ := repo.ar.bySource(receivables.SourceTreatmentPlan, plan.ID)
	require.NoError(t, repo.ar.UpdateEntryAmounts(ctx, e.ID, e.AmountOriginal, 300, receivables.StatusPartial))

	_, err = svc.UpdatePlan(ctx, plan.ID, PlanInput{
		CustomerID: 9, PackageName: "laser course", PackagePrice: 500,
		DiscountKind: DiscountPercent, DiscountValue: 40,
	})
	require.NoError(t, err)

	e, _ = repo.ar.bySource(receivables.SourceTreatmentPlan, plan.ID)
	require.EqualValues(t, 300, e.AmountOriginal)
	require.EqualValues(t, 300, e.AmountPaid)
	require.Equal(t, receivables.StatusClosed, e.Status)
}

func TestDeletePlanSettlesEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	plan, err := svc.CreatePlan(ctx, PlanInput{CustomerID: 9, PackageName: "laser course", PackagePrice: 500})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePlan(ctx, plan.ID, 0))

	_, ok := repo.ar.bySource(receivables.SourceTreatmentPlan, plan.ID)
	require.False(t, ok)
	_, err = svc.GetPlan(ctx, plan.ID)
	require.ErrorIs(t, err, ErrPlanNotFound)
}

func TestOrderLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, OrderInput{CustomerID: 9, ItemsTotal: 250})
	require.NoError(t, err)

	e, ok := repo.ar.bySource(receivables.SourceMedicineOrder, order.ID)
	require.True(t, ok)
	require.EqualValues(t, 250, e.AmountOriginal)

	_, err = svc.UpdateOrder(ctx, order.ID, OrderInput{
		CustomerID: 9, ItemsTotal: 250, DiscountKind: DiscountFixed, DiscountValue: 50,
	})
	require.NoError(t, err)
	e, _ = repo.ar.bySource(receivables.SourceMedicineOrder, order.ID)
	require.EqualValues(t, 200, e.AmountOriginal)

	require.NoError(t, svc.DeleteOrder(ctx, order.ID, 0))
	_, ok = repo.ar.bySource(receivables.SourceMedicineOrder, order.ID)
	require.False(t, ok)
}

func TestValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreatePlan(ctx, PlanInput{CustomerID: 9, PackagePrice: -1})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.CreatePlan(ctx, PlanInput{CustomerID: 9, PackagePrice: 100, DiscountKind: DiscountPercent, DiscountValue: 120})
	require.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = svc.CreateOrder(ctx, OrderInput{CustomerID: 9, ItemsTotal: 100, DiscountKind: "bogus"})
	require.ErrorIs(t, err, ErrInvalidDiscount)

	_, err = svc.UpdatePlan(ctx, 99, PlanInput{CustomerID: 9, PackagePrice: 100})
	require.ErrorIs(t, err, ErrPlanNotFound)
}
