package masterdata

import "time"

// ListFilters represents standard list page filters. Search matches names
// with diacritics stripped on both sides.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

// Supplier represents a goods or equipment supplier.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer represents a clinic customer.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Note      string    `json:"note"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a consumable goods item. On-hand quantity lives in the
// inventory ledger's stock lots, not here.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	SellPrice float64   `json:"sell_price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Equipment represents an equipment item. The quantity column is owned by
// the inventory ledger; master data only reads it.
type Equipment struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Quantity  int64     `json:"quantity"`
	SellPrice float64   `json:"sell_price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
