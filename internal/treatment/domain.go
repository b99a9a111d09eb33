package treatment

import (
	"errors"
	"time"
)

// DiscountKind is how a document discount is expressed. Empty means no
// discount.
type DiscountKind string

const (
	DiscountNone    DiscountKind = ""
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// applyDiscount returns base after discount, floored at zero.
func applyDiscount(base float64, kind DiscountKind, value float64) float64 {
	var amount float64
	switch kind {
	case DiscountPercent:
		amount = base * (1 - value/100)
	case DiscountFixed:
		amount = base - value
	default:
		amount = base
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// TreatmentPlan is a sold treatment package. Its current amount feeds the
// customer's AR entry; every price-affecting edit reconciles that entry.
type TreatmentPlan struct {
	ID            int64
	Code          string
	CustomerID    int64
	PackageName   string
	PackagePrice  float64
	DiscountKind  DiscountKind
	DiscountValue float64
	Note          string
	CreatedBy     int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CurrentAmount is the package price after discount.
func (p TreatmentPlan) CurrentAmount() float64 {
	return applyDiscount(p.PackagePrice, p.DiscountKind, p.DiscountValue)
}

// MedicineOrder is a dispensed medicine sale with the same discount shapes
// as a treatment plan.
type MedicineOrder struct {
	ID            int64
	Code          string
	CustomerID    int64
	ItemsTotal    float64
	DiscountKind  DiscountKind
	DiscountValue float64
	Note          string
	CreatedBy     int64
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CurrentAmount is the items total after discount.
func (o MedicineOrder) CurrentAmount() float64 {
	return applyDiscount(o.ItemsTotal, o.DiscountKind, o.DiscountValue)
}

// PlanInput describes a treatment plan create or update.
type PlanInput struct {
	CustomerID    int64
	PackageName   string
	PackagePrice  float64
	DiscountKind  DiscountKind
	DiscountValue float64
	Note          string
	ActorID       int64
}

// OrderInput describes a medicine order create or update.
type OrderInput struct {
	CustomerID    int64
	ItemsTotal    float64
	DiscountKind  DiscountKind
	DiscountValue float64
	Note          string
	ActorID       int64
}

// ErrPlanNotFound indicates a missing treatment plan.
var ErrPlanNotFound = errors.New("treatment: plan not found")

// ErrOrderNotFound indicates a missing medicine order.
var ErrOrderNotFound = errors.New("treatment: order not found")

// ErrInvalidPrice indicates a negative package price or items total.
var ErrInvalidPrice = errors.New("treatment: price must be >= 0")

// ErrInvalidDiscount indicates an unknown discount kind, a negative value or
// a percent above 100.
var ErrInvalidDiscount = errors.New("treatment: invalid discount")

func validateDiscount(kind DiscountKind, value float64) error {
	switch kind {
	case DiscountNone:
		if value != 0 {
			return ErrInvalidDiscount
		}
	case DiscountPercent:
		if value < 0 || value > 100 {
			return ErrInvalidDiscount
		}
	case DiscountFixed:
		if value < 0 {
			return ErrInvalidDiscount
		}
	default:
		return ErrInvalidDiscount
	}
	return nil
}
