package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// drift is one aggregate row whose stored value no longer equals the value
// recomputed from its contributing records.
type drift struct {
	ledger   string
	key      string
	stored   float64
	computed float64
}

// RunLedgerIntegrityCheck recomputes every derived aggregate from scratch
// and diffs it against the stored value: stock lots against intakes minus
// allocations, equipment quantities, debt heads against active intake slips,
// and AR paid amounts against payment sums. The four sweeps run
// concurrently; any drift is logged and reported as an error so the task
// shows up failed.
func RunLedgerIntegrityCheck(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	results := make([][]drift, 4)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		results[0], err = checkStockLots(ctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		results[1], err = checkEquipmentQuantities(ctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		results[2], err = checkDebtHeads(ctx, pool)
		return err
	})
	g.Go(func() error {
		var err error
		results[3], err = checkARPaidAmounts(ctx, pool)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var total int
	for _, drifts := range results {
		for _, d := range drifts {
			total++
			logger.Warn("ledger drift detected",
				slog.String("ledger", d.ledger),
				slog.String("key", d.key),
				slog.Float64("stored", d.stored),
				slog.Float64("computed", d.computed))
		}
	}
	if total > 0 {
		return fmt.Errorf("jobs: ledger integrity found %d drifted aggregates", total)
	}
	logger.Info("ledger integrity clean")
	return nil
}

func checkStockLots(ctx context.Context, pool *pgxpool.Pool) ([]drift, error) {
	rows, err := pool.Query(ctx, `
SELECT l.id, l.quantity,
       COALESCE((SELECT SUM(si.quantity) FROM stock_ins si
                 WHERE si.is_active AND si.product_id = l.product_id AND si.supplier_id = l.supplier_id), 0)
     - COALESCE((SELECT SUM(a.quantity) FROM stock_out_allocations a WHERE a.lot_id = l.id), 0)
FROM stock_lots l`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []drift
	for rows.Next() {
		var id, stored, computed int64
		if err := rows.Scan(&id, &stored, &computed); err != nil {
			return nil, err
		}
		if stored != computed {
			drifts = append(drifts, drift{
				ledger: "stock_lots", key: fmt.Sprintf("lot:%d", id),
				stored: float64(stored), computed: float64(computed),
			})
		}
	}
	return drifts, rows.Err()
}

func checkEquipmentQuantities(ctx context.Context, pool *pgxpool.Pool) ([]drift, error) {
	rows, err := pool.Query(ctx, `
SELECT e.id, e.quantity,
       COALESCE((SELECT SUM(si.quantity) FROM stock_ins si
                 WHERE si.is_active AND si.equipment_id = e.id), 0)
     - COALESCE((SELECT SUM(x.quantity) FROM equipment_exports x WHERE x.equipment_id = e.id), 0)
FROM equipment e`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []drift
	for rows.Next() {
		var id, stored, computed int64
		if err := rows.Scan(&id, &stored, &computed); err != nil {
			return nil, err
		}
		if stored != computed {
			drifts = append(drifts, drift{
				ledger: "equipment", key: fmt.Sprintf("equipment:%d", id),
				stored: float64(stored), computed: float64(computed),
			})
		}
	}
	return drifts, rows.Err()
}

func checkDebtHeads(ctx context.Context, pool *pgxpool.Pool) ([]drift, error) {
	rows, err := pool.Query(ctx, `
SELECT h.supplier_id, h.kind, h.total_amount,
       COALESCE((SELECT SUM(si.quantity * si.unit_price) FROM stock_ins si
                 WHERE si.is_active AND si.supplier_id = h.supplier_id
                   AND CASE WHEN h.kind = 'goods' THEN si.product_id IS NOT NULL
                            ELSE si.equipment_id IS NOT NULL END), 0)
FROM debt_heads h`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []drift
	for rows.Next() {
		var supplierID int64
		var kind string
		var stored, computed float64
		if err := rows.Scan(&supplierID, &kind, &stored, &computed); err != nil {
			return nil, err
		}
		if stored != computed {
			drifts = append(drifts, drift{
				ledger: "debt_heads", key: fmt.Sprintf("supplier:%d:%s", supplierID, kind),
				stored: stored, computed: computed,
			})
		}
	}
	return drifts, rows.Err()
}

func checkARPaidAmounts(ctx context.Context, pool *pgxpool.Pool) ([]drift, error) {
	rows, err := pool.Query(ctx, `
SELECT e.id, e.amount_paid,
       COALESCE((SELECT SUM(p.amount) FROM ar_payments p WHERE p.entry_id = e.id), 0)
FROM ar_entries e`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []drift
	for rows.Next() {
		var id int64
		var stored, computed float64
		if err := rows.Scan(&id, &stored, &computed); err != nil {
			return nil, err
		}
		if stored != computed {
			drifts = append(drifts, drift{
				ledger: "ar_entries", key: fmt.Sprintf("entry:%d", id),
				stored: stored, computed: computed,
			})
		}
	}
	return drifts, rows.Err()
}

// NewLedgerIntegrityHandler returns the asynq handler running the sweep.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return RunLedgerIntegrityCheck(ctx, pool, logger)
	}
}
