package payables

import (
	"context"

	"github.com/meridian-spa/meridian-erp/internal/platform/db"
)

// PlanAdjustments computes the debt-head deltas needed to move from a
// record's old contribution to its new one. A nil contribution means the
// record did not exist (create) or ceases to exist (delete).
//
// When supplier and kind are unchanged a single net delta is produced.
// When either changes the old amount is reversed in full against the old
// head and the new amount applied in full against the new head; a net delta
// across two different heads would corrupt both.
func PlanAdjustments(old, new *Contribution) []Adjustment {
	switch {
	case old == nil && new == nil:
		return nil
	case old == nil:
		if new.Amount == 0 {
			return nil
		}
		return []Adjustment{{SupplierID: new.SupplierID, Kind: new.Kind, Delta: new.Amount}}
	case new == nil:
		if old.Amount == 0 {
			return nil
		}
		return []Adjustment{{SupplierID: old.SupplierID, Kind: old.Kind, Delta: -old.Amount}}
	}

	if old.SupplierID == new.SupplierID && old.Kind == new.Kind {
		delta := new.Amount - old.Amount
		if delta == 0 {
			return nil
		}
		return []Adjustment{{SupplierID: new.SupplierID, Kind: new.Kind, Delta: delta}}
	}

	var adjs []Adjustment
	if old.Amount != 0 {
		adjs = append(adjs, Adjustment{SupplierID: old.SupplierID, Kind: old.Kind, Delta: -old.Amount})
	}
	if new.Amount != 0 {
		adjs = append(adjs, Adjustment{SupplierID: new.SupplierID, Kind: new.Kind, Delta: new.Amount})
	}
	return adjs
}

// ApplyAdjustment applies one delta to a debt head with a single atomic
// statement, creating the head on first contribution. Safe under concurrent
// postings for the same supplier.
func ApplyAdjustment(ctx context.Context, q db.Querier, adj Adjustment) error {
	if adj.Delta == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `INSERT INTO debt_heads (supplier_id, kind, total_amount, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (supplier_id, kind)
DO UPDATE SET total_amount = debt_heads.total_amount + EXCLUDED.total_amount, updated_at = NOW()`,
		adj.SupplierID, string(adj.Kind), adj.Delta)
	return err
}

// ApplyAdjustments applies each planned delta in order.
func ApplyAdjustments(ctx context.Context, q db.Querier, adjs []Adjustment) error {
	for _, adj := range adjs {
		if err := ApplyAdjustment(ctx, q, adj); err != nil {
			return err
		}
	}
	return nil
}
