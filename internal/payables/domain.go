package payables

import (
	"errors"
	"time"
)

// DebtKind separates supplier debt into the two mutually exclusive heads.
type DebtKind string

const (
	// DebtKindGoods accumulates debt from goods stock-ins.
	DebtKindGoods DebtKind = "goods"
	// DebtKindEquipment accumulates debt from equipment stock-ins.
	DebtKindEquipment DebtKind = "equipment"
)

// DebtHead is the running total owed to one supplier for one debt kind.
// Created lazily on first contribution; mutated only through Adjustments.
type DebtHead struct {
	ID          int64
	SupplierID  int64
	Kind        DebtKind
	TotalAmount float64
	UpdatedAt   time.Time
}

// DebtHeadSummary augments a head with the payments recorded against it.
type DebtHeadSummary struct {
	DebtHead
	TotalPaid float64
	Remaining float64
}

// Contribution is what one active stock-in record owes a supplier.
type Contribution struct {
	SupplierID int64
	Kind       DebtKind
	Amount     float64
}

// Adjustment is a signed delta against one debt head.
type Adjustment struct {
	SupplierID int64
	Kind       DebtKind
	Delta      float64
}

// SupplierPayment records one payment against one stock-in slip.
type SupplierPayment struct {
	ID         int64
	Code       string
	StockInID  int64
	SupplierID int64
	Kind       DebtKind
	Amount     float64
	Method     string
	Note       string
	CreatedBy  int64
	CreatedAt  time.Time
}

// SupplierPaymentInput describes a payment to record.
type SupplierPaymentInput struct {
	StockInID int64
	Amount    float64
	Method    string
	Note      string
	ActorID   int64
}

// ErrInvalidAmount indicates a non-positive payment amount.
var ErrInvalidAmount = errors.New("payables: amount must be positive")

// ErrStockInNotFound indicates the referenced stock-in slip does not exist.
var ErrStockInNotFound = errors.New("payables: stock-in not found")

// ErrPaymentNotFound indicates the referenced payment does not exist.
var ErrPaymentNotFound = errors.New("payables: payment not found")
