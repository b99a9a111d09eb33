package inventory

import (
	"errors"
	"time"

	"github.com/meridian-spa/meridian-erp/internal/payables"
)

// StockIn is a goods or equipment intake slip. Exactly one of ProductID /
// EquipmentID is set; which one decides the debt kind the slip contributes to.
type StockIn struct {
	ID          int64
	Code        string
	SupplierID  int64
	ProductID   int64
	EquipmentID int64
	Quantity    int64
	UnitPrice   float64
	ImportDate  time.Time
	FullPaid    bool
	Note        string
	CreatedBy   int64
	IsActive    bool
	CreatedAt   time.Time
}

// Total is the slip's contribution to its supplier debt head.
func (s StockIn) Total() float64 {
	return float64(s.Quantity) * s.UnitPrice
}

// DebtKind returns which debt head the slip feeds.
func (s StockIn) DebtKind() payables.DebtKind {
	if s.ProductID != 0 {
		return payables.DebtKindGoods
	}
	return payables.DebtKindEquipment
}

// Contribution returns the slip's debt-head contribution, nil for an
// inactive slip.
func (s StockIn) Contribution() *payables.Contribution {
	if !s.IsActive {
		return nil
	}
	return &payables.Contribution{SupplierID: s.SupplierID, Kind: s.DebtKind(), Amount: s.Total()}
}

// StockOut is a goods issue slip. Quantity is drawn across the product's
// lots; per-lot allocations are recorded so edits and deletes reverse
// exactly what was taken.
type StockOut struct {
	ID         int64
	Code       string
	ProductID  int64
	CustomerID int64
	Quantity   int64
	UnitPrice  float64
	ExportDate time.Time
	IssueType  string
	Note       string
	CreatedBy  int64
	IsActive   bool
	CreatedAt  time.Time
}

// EquipmentExport is an equipment issue record, mutating equipment on-hand
// quantity with the same delta discipline as stock slips.
type EquipmentExport struct {
	ID          int64
	EquipmentID int64
	ExportType  string
	Quantity    int64
	UnitPrice   float64
	CustomerID  int64
	Note        string
	CreatedBy   int64
	CreatedAt   time.Time
}

// StockLot is the on-hand quantity of one product received from one
// supplier. Lots accumulate per (product, supplier) pair.
type StockLot struct {
	ID         int64
	ProductID  int64
	SupplierID int64
	Quantity   int64
	ImportDate time.Time
}

// LotAllocation records how much of a stock-out was taken from one lot.
type LotAllocation struct {
	LotID    int64
	Quantity int64
}

// StockInInput describes a stock-in create or update.
type StockInInput struct {
	SupplierID  int64
	ProductID   int64
	EquipmentID int64
	Quantity    int64
	UnitPrice   float64
	ImportDate  time.Time
	Note        string
	ActorID     int64
}

// StockOutInput describes a stock-out create or update.
type StockOutInput struct {
	ProductID  int64
	CustomerID int64
	Quantity   int64
	UnitPrice  float64
	ExportDate time.Time
	IssueType  string
	Note       string
	ActorID    int64
}

// EquipmentExportInput describes an equipment export create or update.
type EquipmentExportInput struct {
	EquipmentID int64
	ExportType  string
	Quantity    int64
	UnitPrice   float64
	CustomerID  int64
	Note        string
	ActorID     int64
}

// ErrInsufficientStock indicates a draw-down larger than the available
// quantity; the operation is rejected, never clamped.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrInvalidUnitPrice indicates a negative unit price.
var ErrInvalidUnitPrice = errors.New("inventory: unit price must be >= 0")

// ErrInconsistentReference indicates a slip referencing neither or both of
// product and equipment.
var ErrInconsistentReference = errors.New("inventory: exactly one of product or equipment must be referenced")

// ErrMovementNotFound indicates a missing movement record.
var ErrMovementNotFound = errors.New("inventory: movement not found")

// ErrItemNotFound indicates a missing product or equipment row.
var ErrItemNotFound = errors.New("inventory: item not found")
