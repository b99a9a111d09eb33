package receivables

import (
	"context"
	"errors"
)

// UpsertWith reconciles the AR entry of one source document against its
// recalculated amount, inside the caller's transaction. The entry's original
// amount is rewritten, never delta-adjusted, so repeated recalculation with
// the same amount is a no-op.
//
// An amount of zero or less means the source no longer owes anything: an
// unpaid entry is deleted outright, a paid one is closed at the paid amount
// since recorded payments are never refunded here.
func UpsertWith(ctx context.Context, tx TxRepository, in UpsertInput) error {
	entry, err := tx.GetEntryForUpdate(ctx, in.SourceKind, in.SourceID)
	if err != nil {
		if !errors.Is(err, ErrEntryNotFound) {
			return err
		}
		if in.Amount <= 0 {
			return nil
		}
		_, err := tx.InsertEntry(ctx, Entry{
			CustomerID:     in.CustomerID,
			SourceKind:     in.SourceKind,
			SourceID:       in.SourceID,
			AmountOriginal: in.Amount,
			Status:         StatusOpen,
		})
		return err
	}

	if in.Amount <= 0 {
		if entry.AmountPaid <= 0 {
			return tx.DeleteEntry(ctx, entry.ID)
		}
		return tx.UpdateEntryAmounts(ctx, entry.ID, entry.AmountPaid, entry.AmountPaid, StatusClosed)
	}

	if in.Amount == entry.AmountOriginal {
		return nil
	}
	return tx.UpdateEntryAmounts(ctx, entry.ID, in.Amount, entry.AmountPaid,
		StatusFor(entry.AmountPaid, in.Amount))
}
