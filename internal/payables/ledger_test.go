package payables

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanAdjustmentsCreate(t *testing.T) {
	adjs := PlanAdjustments(nil, &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 1000})
	require.Equal(t, []Adjustment{{SupplierID: 1, Kind: DebtKindGoods, Delta: 1000}}, adjs)
}

func TestPlanAdjustmentsDelete(t *testing.T) {
	adjs := PlanAdjustments(&Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 600}, nil)
	require.Equal(t, []Adjustment{{SupplierID: 1, Kind: DebtKindGoods, Delta: -600}}, adjs)
}

func TestPlanAdjustmentsSameTargetDelta(t *testing.T) {
	old := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 1000}
	next := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 600}
	adjs := PlanAdjustments(old, next)
	require.Equal(t, []Adjustment{{SupplierID: 1, Kind: DebtKindGoods, Delta: -400}}, adjs)
}

func TestPlanAdjustmentsNoChange(t *testing.T) {
	old := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 1000}
	next := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 1000}
	require.Nil(t, PlanAdjustments(old, next))
	require.Nil(t, PlanAdjustments(nil, nil))
}

func TestPlanAdjustmentsSupplierChange(t *testing.T) {
	old := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 1000}
	next := &Contribution{SupplierID: 2, Kind: DebtKindGoods, Amount: 1000}
	adjs := PlanAdjustments(old, next)
	require.Equal(t, []Adjustment{
		{SupplierID: 1, Kind: DebtKindGoods, Delta: -1000},
		{SupplierID: 2, Kind: DebtKindGoods, Delta: 1000},
	}, adjs)
}

func TestPlanAdjustmentsKindChangeSameSupplier(t *testing.T) {
	// Switching a slip from goods to equipment is a target change even when
	// the supplier stays the same.
	old := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 500}
	next := &Contribution{SupplierID: 1, Kind: DebtKindEquipment, Amount: 800}
	adjs := PlanAdjustments(old, next)
	require.Equal(t, []Adjustment{
		{SupplierID: 1, Kind: DebtKindGoods, Delta: -500},
		{SupplierID: 1, Kind: DebtKindEquipment, Delta: 800},
	}, adjs)
}

func TestPlanAdjustmentsSkipsZeroAmounts(t *testing.T) {
	old := &Contribution{SupplierID: 1, Kind: DebtKindGoods, Amount: 0}
	next := &Contribution{SupplierID: 2, Kind: DebtKindGoods, Amount: 300}
	adjs := PlanAdjustments(old, next)
	require.Equal(t, []Adjustment{{SupplierID: 2, Kind: DebtKindGoods, Delta: 300}}, adjs)
}
