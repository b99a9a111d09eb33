package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-spa/meridian-erp/internal/payables"
)

type lotKey struct {
	productID  int64
	supplierID int64
}

type debtKey struct {
	supplierID int64
	kind       payables.DebtKind
}

type memoryRepo struct {
	stockIns    map[int64]StockIn
	stockOuts   map[int64]StockOut
	exports     map[int64]EquipmentExport
	lots        map[int64]StockLot
	lotIndex    map[lotKey]int64
	allocations map[int64][]LotAllocation
	equipment   map[int64]int64
	debtHeads   map[debtKey]float64
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stockIns:    make(map[int64]StockIn),
		stockOuts:   make(map[int64]StockOut),
		exports:     make(map[int64]EquipmentExport),
		lots:        make(map[int64]StockLot),
		lotIndex:    make(map[lotKey]int64),
		allocations: make(map[int64][]LotAllocation),
		equipment:   make(map[int64]int64),
		debtHeads:   make(map[debtKey]float64),
	}
}

func (r *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	c.nextID = r.nextID
	for k, v := range r.stockIns {
		c.stockIns[k] = v
	}
	for k, v := range r.stockOuts {
		c.stockOuts[k] = v
	}
	for k, v := range r.exports {
		c.exports[k] = v
	}
	for k, v := range r.lots {
		c.lots[k] = v
	}
	for k, v := range r.lotIndex {
		c.lotIndex[k] = v
	}
	for k, v := range r.allocations {
		c.allocations[k] = append([]LotAllocation(nil), v...)
	}
	for k, v := range r.equipment {
		c.equipment[k] = v
	}
	for k, v := range r.debtHeads {
		c.debtHeads[k] = v
	}
	return c
}

func (r *memoryRepo) restore(c *memoryRepo) {
	r.stockIns = c.stockIns
	r.stockOuts = c.stockOuts
	r.exports = c.exports
	r.lots = c.lots
	r.lotIndex = c.lotIndex
	r.allocations = c.allocations
	r.equipment = c.equipment
	r.debtHeads = c.debtHeads
	r.nextID = c.nextID
}

// WithTx snapshots state up front and rolls back to it when fn fails, so the
// fake matches the all-or-nothing behaviour of the real transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.restore(snapshot)
		return err
	}
	return nil
}

func (r *memoryRepo) GetStockIn(ctx context.Context, id int64) (StockIn, error) {
	s, ok := r.stockIns[id]
	if !ok || !s.IsActive {
		return StockIn{}, ErrMovementNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListStockIns(ctx context.Context) ([]StockIn, error) {
	var out []StockIn
	for _, s := range r.stockIns {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetStockOut(ctx context.Context, id int64) (StockOut, error) {
	s, ok := r.stockOuts[id]
	if !ok || !s.IsActive {
		return StockOut{}, ErrMovementNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListStockOuts(ctx context.Context) ([]StockOut, error) {
	var out []StockOut
	for _, s := range r.stockOuts {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepo) GetEquipmentExport(ctx context.Context, id int64) (EquipmentExport, error) {
	e, ok := r.exports[id]
	if !ok {
		return EquipmentExport{}, ErrMovementNotFound
	}
	return e, nil
}

func (r *memoryRepo) ListEquipmentExports(ctx context.Context) ([]EquipmentExport, error) {
	var out []EquipmentExport
	for _, e := range r.exports {
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) ListLots(ctx context.Context, productID int64) ([]StockLot, error) {
	return r.lotsFor(productID), nil
}

func (r *memoryRepo) lotsFor(productID int64) []StockLot {
	var out []StockLot
	var maxID int64
	for id := range r.lots {
		if id > maxID {
			maxID = id
		}
	}
	for id := int64(1); id <= maxID; id++ {
		if lot, ok := r.lots[id]; ok && lot.ProductID == productID {
			out = append(out, lot)
		}
	}
	return out
}

func (r *memoryRepo) ProductQuantity(ctx context.Context, productID int64) (int64, error) {
	var qty int64
	for _, lot := range r.lots {
		if lot.ProductID == productID {
			qty += lot.Quantity
		}
	}
	return qty, nil
}

func (r *memoryRepo) EquipmentQuantity(ctx context.Context, equipmentID int64) (int64, error) {
	qty, ok := r.equipment[equipmentID]
	if !ok {
		return 0, ErrItemNotFound
	}
	return qty, nil
}

func (r *memoryRepo) lotQty(productID, supplierID int64) int64 {
	id, ok := r.lotIndex[lotKey{productID, supplierID}]
	if !ok {
		return 0
	}
	return r.lots[id].Quantity
}

func (r *memoryRepo) debt(supplierID int64, kind payables.DebtKind) float64 {
	return r.debtHeads[debtKey{supplierID, kind}]
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) GetStockInForUpdate(ctx context.Context, id int64) (StockIn, error) {
	return t.repo.GetStockIn(ctx, id)
}

func (t *memoryTx) InsertStockIn(ctx context.Context, in StockIn) (int64, error) {
	t.repo.nextID++
	in.ID = t.repo.nextID
	t.repo.stockIns[in.ID] = in
	return in.ID, nil
}

func (t *memoryTx) UpdateStockIn(ctx context.Context, in StockIn) error {
	t.repo.stockIns[in.ID] = in
	return nil
}

func (t *memoryTx) DeactivateStockIn(ctx context.Context, id int64) error {
	s := t.repo.stockIns[id]
	s.IsActive = false
	t.repo.stockIns[id] = s
	return nil
}

func (t *memoryTx) AdjustLot(ctx context.Context, productID, supplierID, delta int64, importDate time.Time) error {
	key := lotKey{productID, supplierID}
	id, ok := t.repo.lotIndex[key]
	if !ok {
		if delta < 0 {
			return ErrInsufficientStock
		}
		t.repo.nextID++
		id = t.repo.nextID
		t.repo.lotIndex[key] = id
		t.repo.lots[id] = StockLot{ID: id, ProductID: productID, SupplierID: supplierID, ImportDate: importDate}
	}
	lot := t.repo.lots[id]
	if lot.Quantity+delta < 0 {
		return ErrInsufficientStock
	}
	lot.Quantity += delta
	t.repo.lots[id] = lot
	return nil
}

func (t *memoryTx) ListLotsForUpdate(ctx context.Context, productID int64) ([]StockLot, error) {
	return t.repo.lotsFor(productID), nil
}

func (t *memoryTx) AdjustLotByID(ctx context.Context, lotID, delta int64) error {
	lot, ok := t.repo.lots[lotID]
	if !ok || lot.Quantity+delta < 0 {
		return ErrInsufficientStock
	}
	lot.Quantity += delta
	t.repo.lots[lotID] = lot
	return nil
}

func (t *memoryTx) GetStockOutForUpdate(ctx context.Context, id int64) (StockOut, error) {
	return t.repo.GetStockOut(ctx, id)
}

func (t *memoryTx) InsertStockOut(ctx context.Context, out StockOut) (int64, error) {
	t.repo.nextID++
	out.ID = t.repo.nextID
	t.repo.stockOuts[out.ID] = out
	return out.ID, nil
}

func (t *memoryTx) UpdateStockOut(ctx context.Context, out StockOut) error {
	t.repo.stockOuts[out.ID] = out
	return nil
}

func (t *memoryTx) DeactivateStockOut(ctx context.Context, id int64) error {
	s := t.repo.stockOuts[id]
	s.IsActive = false
	t.repo.stockOuts[id] = s
	return nil
}

func (t *memoryTx) InsertAllocations(ctx context.Context, stockOutID int64, allocs []LotAllocation) error {
	t.repo.allocations[stockOutID] = append(t.repo.allocations[stockOutID], allocs...)
	return nil
}

func (t *memoryTx) ListAllocations(ctx context.Context, stockOutID int64) ([]LotAllocation, error) {
	return t.repo.allocations[stockOutID], nil
}

func (t *memoryTx) DeleteAllocations(ctx context.Context, stockOutID int64) error {
	delete(t.repo.allocations, stockOutID)
	return nil
}

func (t *memoryTx) AdjustEquipmentQty(ctx context.Context, equipmentID, delta int64) error {
	qty, ok := t.repo.equipment[equipmentID]
	if !ok {
		return ErrItemNotFound
	}
	if qty+delta < 0 {
		return ErrInsufficientStock
	}
	t.repo.equipment[equipmentID] = qty + delta
	return nil
}

func (t *memoryTx) GetEquipmentExportForUpdate(ctx context.Context, id int64) (EquipmentExport, error) {
	return t.repo.GetEquipmentExport(ctx, id)
}

func (t *memoryTx) InsertEquipmentExport(ctx context.Context, exp EquipmentExport) (int64, error) {
	t.repo.nextID++
	exp.ID = t.repo.nextID
	t.repo.exports[exp.ID] = exp
	return exp.ID, nil
}

func (t *memoryTx) UpdateEquipmentExport(ctx context.Context, exp EquipmentExport) error {
	t.repo.exports[exp.ID] = exp
	return nil
}

func (t *memoryTx) DeleteEquipmentExport(ctx context.Context, id int64) error {
	delete(t.repo.exports, id)
	return nil
}

func (t *memoryTx) AdjustDebtHead(ctx context.Context, adj payables.Adjustment) error {
	key := debtKey{adj.SupplierID, adj.Kind}
	t.repo.debtHeads[key] += adj.Delta
	return nil
}

func testDate() time.Time {
	return time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil)
}

func TestCreateStockInProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)
	require.NotZero(t, slip.ID)
	require.EqualValues(t, 10, repo.lotQty(7, 1))
	require.EqualValues(t, 1000, repo.debt(1, payables.DebtKindGoods))
}

func TestCreateStockInValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 0, ImportDate: testDate()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: -1, ImportDate: testDate()})
	require.ErrorIs(t, err, ErrInvalidUnitPrice)

	_, err = svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, Quantity: 5, ImportDate: testDate()})
	require.ErrorIs(t, err, ErrInconsistentReference)

	_, err = svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, EquipmentID: 2, Quantity: 5, ImportDate: testDate()})
	require.ErrorIs(t, err, ErrInconsistentReference)
}

func TestUpdateStockInSameTargetDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)

	_, err = svc.UpdateStockIn(ctx, slip.ID, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 6, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 6, repo.lotQty(7, 1))
	require.EqualValues(t, 600, repo.debt(1, payables.DebtKindGoods))
}

func TestUpdateStockInSupplierChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)

	_, err = svc.UpdateStockIn(ctx, slip.ID, StockInInput{
		SupplierID: 2, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.lotQty(7, 1))
	require.EqualValues(t, 10, repo.lotQty(7, 2))
	require.EqualValues(t, 0, repo.debt(1, payables.DebtKindGoods))
	require.EqualValues(t, 1000, repo.debt(2, payables.DebtKindGoods))
}

func TestUpdateStockInRejectedWhenStockIssued(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)

	_, err = svc.CreateStockOut(ctx, StockOutInput{
		ProductID: 7, Quantity: 8, ExportDate: testDate(), IssueType: "sale",
	})
	require.NoError(t, err)

	// Only 2 left on the lot so the edit down to 5 (a take-back of 5) fails
	// and nothing changes.
	_, err = svc.UpdateStockIn(ctx, slip.ID, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: 100, ImportDate: testDate(),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 2, repo.lotQty(7, 1))
	require.EqualValues(t, 1000, repo.debt(1, payables.DebtKindGoods))
}

func TestDeleteStockInReversesLedgers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 10, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStockIn(ctx, slip.ID, 0))
	require.EqualValues(t, 0, repo.lotQty(7, 1))
	require.EqualValues(t, 0, repo.debt(1, payables.DebtKindGoods))

	_, err = svc.GetStockIn(ctx, slip.ID)
	require.ErrorIs(t, err, ErrMovementNotFound)
}

func TestStockOutDrawsAcrossLotsInOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: 100, ImportDate: testDate()})
	require.NoError(t, err)
	_, err = svc.CreateStockIn(ctx, StockInInput{SupplierID: 2, ProductID: 7, Quantity: 5, UnitPrice: 90, ImportDate: testDate()})
	require.NoError(t, err)

	out, err := svc.CreateStockOut(ctx, StockOutInput{
		ProductID: 7, Quantity: 8, ExportDate: testDate(), IssueType: "sale",
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.lotQty(7, 1))
	require.EqualValues(t, 2, repo.lotQty(7, 2))

	allocs := repo.allocations[out.ID]
	require.Len(t, allocs, 2)
	require.EqualValues(t, 5, allocs[0].Quantity)
	require.EqualValues(t, 3, allocs[1].Quantity)
}

func TestStockOutInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: 100, ImportDate: testDate()})
	require.NoError(t, err)

	_, err = svc.CreateStockOut(ctx, StockOutInput{
		ProductID: 7, Quantity: 6, ExportDate: testDate(), IssueType: "sale",
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 5, repo.lotQty(7, 1))
	require.Empty(t, repo.stockOuts)
}

func TestUpdateStockOutRedraws(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: 100, ImportDate: testDate()})
	require.NoError(t, err)
	_, err = svc.CreateStockIn(ctx, StockInInput{SupplierID: 2, ProductID: 7, Quantity: 5, UnitPrice: 90, ImportDate: testDate()})
	require.NoError(t, err)

	out, err := svc.CreateStockOut(ctx, StockOutInput{
		ProductID: 7, Quantity: 8, ExportDate: testDate(), IssueType: "sale",
	})
	require.NoError(t, err)

	_, err = svc.UpdateStockOut(ctx, out.ID, StockOutInput{
		ProductID: 7, Quantity: 3, ExportDate: testDate(), IssueType: "sale",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.lotQty(7, 1))
	require.EqualValues(t, 5, repo.lotQty(7, 2))

	allocs := repo.allocations[out.ID]
	require.Len(t, allocs, 1)
	require.EqualValues(t, 3, allocs[0].Quantity)
}

func TestDeleteStockOutRestoresLots(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{SupplierID: 1, ProductID: 7, Quantity: 5, UnitPrice: 100, ImportDate: testDate()})
	require.NoError(t, err)

	out, err := svc.CreateStockOut(ctx, StockOutInput{
		ProductID: 7, Quantity: 4, ExportDate: testDate(), IssueType: "sale",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.lotQty(7, 1))

	require.NoError(t, svc.DeleteStockOut(ctx, out.ID, 0))
	require.EqualValues(t, 5, repo.lotQty(7, 1))
	require.Empty(t, repo.allocations[out.ID])
}

func TestEquipmentStockInAndExport(t *testing.T) {
	repo := newMemoryRepo()
	repo.equipment[3] = 0
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, EquipmentID: 3, Quantity: 5, UnitPrice: 2000, ImportDate: testDate(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, repo.equipment[3])
	require.EqualValues(t, 10000, repo.debt(1, payables.DebtKindEquipment))

	exp, err := svc.CreateEquipmentExport(ctx, EquipmentExportInput{
		EquipmentID: 3, ExportType: "sale", Quantity: 3, UnitPrice: 2500,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.equipment[3])

	_, err = svc.CreateEquipmentExport(ctx, EquipmentExportInput{
		EquipmentID: 3, ExportType: "sale", Quantity: 3,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.EqualValues(t, 2, repo.equipment[3])

	require.NoError(t, svc.DeleteEquipmentExport(ctx, exp.ID, 0))
	require.EqualValues(t, 5, repo.equipment[3])
}

func TestUpdateEquipmentExportMovesTarget(t *testing.T) {
	repo := newMemoryRepo()
	repo.equipment[3] = 5
	repo.equipment[4] = 5
	svc := newTestService(repo)
	ctx := context.Background()

	exp, err := svc.CreateEquipmentExport(ctx, EquipmentExportInput{
		EquipmentID: 3, ExportType: "transfer", Quantity: 4,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, repo.equipment[3])

	_, err = svc.UpdateEquipmentExport(ctx, exp.ID, EquipmentExportInput{
		EquipmentID: 4, ExportType: "transfer", Quantity: 2,
	})
	require.NoError(t, err)
	require.EqualValues(t, 5, repo.equipment[3])
	require.EqualValues(t, 3, repo.equipment[4])
}

func TestUpdateStockInKindChange(t *testing.T) {
	repo := newMemoryRepo()
	repo.equipment[3] = 0
	svc := newTestService(repo)
	ctx := context.Background()

	slip, err := svc.CreateStockIn(ctx, StockInInput{
		SupplierID: 1, ProductID: 7, Quantity: 4, UnitPrice: 100, ImportDate: testDate(),
	})
	require.NoError(t, err)

	_, err = svc.UpdateStockIn(ctx, slip.ID, StockInInput{
		SupplierID: 1, EquipmentID: 3, Quantity: 4, UnitPrice: 150, ImportDate: testDate(),
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, repo.lotQty(7, 1))
	require.EqualValues(t, 4, repo.equipment[3])
	require.EqualValues(t, 0, repo.debt(1, payables.DebtKindGoods))
	require.EqualValues(t, 600, repo.debt(1, payables.DebtKindEquipment))
}
