package receivables

import (
	"errors"
	"time"
)

// SourceKind identifies the document type an AR entry is derived from.
type SourceKind string

const (
	SourceTreatmentPlan SourceKind = "treatment_plan"
	SourceMedicineOrder SourceKind = "medicine_order"
)

// Status of an AR entry. Transitions follow the payment sum only: open while
// nothing is paid, partial while something is, closed once paid covers the
// original amount.
type Status string

const (
	StatusOpen    Status = "open"
	StatusPartial Status = "partial"
	StatusClosed  Status = "closed"
)

// StatusFor derives the entry status from the paid and original amounts.
func StatusFor(paid, original float64) Status {
	switch {
	case paid <= 0:
		return StatusOpen
	case paid < original:
		return StatusPartial
	default:
		return StatusClosed
	}
}

// Entry is one accounts-receivable line, keyed by its source document. The
// original amount is owned by the source and rewritten on every recalc; the
// paid amount is owned by the payment ledger.
type Entry struct {
	ID             int64
	CustomerID     int64
	SourceKind     SourceKind
	SourceID       int64
	AmountOriginal float64
	AmountPaid     float64
	Status         Status
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Remaining is the amount still owed on the entry.
func (e Entry) Remaining() float64 {
	r := e.AmountOriginal - e.AmountPaid
	if r < 0 {
		return 0
	}
	return r
}

// Payment is one customer payment against an AR entry. Payments are
// immutable; corrections go through a new payment, never an edit.
type Payment struct {
	ID         int64
	Code       string
	EntryID    int64
	CustomerID int64
	Amount     float64
	Method     string
	Note       string
	CreatedBy  int64
	CreatedAt  time.Time
}

// Receipt is the customer-facing proof of one payment, issued after the
// payment commits.
type Receipt struct {
	Code       string
	PaymentID  int64
	EntryID    int64
	CustomerID int64
	Amount     float64
	Remaining  float64
	IssuedAt   time.Time
}

// UpsertInput carries a recalculated source amount into the AR ledger.
type UpsertInput struct {
	CustomerID int64
	SourceKind SourceKind
	SourceID   int64
	Amount     float64
}

// PaymentInput describes one payment to apply. CustomerID, when set, must
// match the entry's customer.
type PaymentInput struct {
	EntryID    int64
	CustomerID int64
	Amount     float64
	Method     string
	Note       string
	ActorID    int64
}

// ErrOverpayment indicates a payment exceeding the remaining balance.
var ErrOverpayment = errors.New("receivables: payment exceeds remaining balance")

// ErrInvalidAmount indicates a non-positive payment amount.
var ErrInvalidAmount = errors.New("receivables: amount must be positive")

// ErrEntryNotFound indicates a missing AR entry.
var ErrEntryNotFound = errors.New("receivables: entry not found")

// ErrPaymentNotFound indicates a missing payment.
var ErrPaymentNotFound = errors.New("receivables: payment not found")

// ErrCustomerMismatch indicates a payment naming a different customer than
// the entry it targets.
var ErrCustomerMismatch = errors.New("receivables: payment customer does not match entry")
