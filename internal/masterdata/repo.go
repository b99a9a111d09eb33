package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// Repository provides persistence for master data entities.
type Repository interface {
	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, s Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, c Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, p Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListEquipment(ctx context.Context, filters ListFilters) ([]Equipment, int, error)
	GetEquipment(ctx context.Context, id int64) (Equipment, error)
	CreateEquipment(ctx context.Context, e Equipment) (Equipment, error)
	UpdateEquipment(ctx context.Context, id int64, e Equipment) error
	DeleteEquipment(ctx context.Context, id int64) error
}

// repo implements Repository over pgx.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{db: pool}
}

// listWindow converts filters to LIMIT/OFFSET via the shared pagination
// helper.
func listWindow(filters ListFilters, total int) (limit, offset int) {
	p := shared.NewPagination(filters.Page, filters.Limit, total)
	return p.PerPage, (p.Page - 1) * p.PerPage
}

func listClauses(filters ListFilters) (string, []any) {
	where := ` WHERE TRUE`
	var args []any
	if q := NormalizeSearch(filters.Search); q != "" {
		args = append(args, "%"+q+"%")
		where += fmt.Sprintf(` AND name_search LIKE $%d`, len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}
	return where, args
}

func (r *repo) listCount(ctx context.Context, table, where string, args []any) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+where, args...).Scan(&total)
	return total, err
}

// Supplier operations

const supplierColumns = `id, code, name, phone, email, address, is_active, created_at, updated_at`

func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where, args := listClauses(filters)
	total, err := r.listCount(ctx, "suppliers", where, args)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := listWindow(filters, total)
	rows, err := r.db.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers`+where+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.ErrNotFound
	}
	return s, err
}

func (r *repo) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (code, name, name_search, phone, email, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7) RETURNING id`,
		s.Code, s.Name, NormalizeSearch(s.Name), s.Phone, s.Email, s.Address, now).Scan(&s.ID)
	if err != nil {
		return Supplier{}, err
	}
	s.IsActive = true
	s.CreatedAt = now
	s.UpdatedAt = now
	return s, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, id int64, s Supplier) error {
	_, err := r.db.Exec(ctx, `UPDATE suppliers SET code=$1, name=$2, name_search=$3, phone=$4, email=$5, address=$6, updated_at=$7 WHERE id=$8`,
		s.Code, s.Name, NormalizeSearch(s.Name), s.Phone, s.Email, s.Address, time.Now(), id)
	return err
}

func (r *repo) DeleteSupplier(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE suppliers SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// Customer operations

const customerColumns = `id, code, name, phone, email, address, note, is_active, created_at, updated_at`

func (r *repo) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	where, args := listClauses(filters)
	total, err := r.listCount(ctx, "customers", where, args)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := listWindow(filters, total)
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers`+where+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Note, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *repo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Note, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.ErrNotFound
	}
	return c, err
}

func (r *repo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO customers (code, name, name_search, phone, email, address, note, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8) RETURNING id`,
		c.Code, c.Name, NormalizeSearch(c.Name), c.Phone, c.Email, c.Address, c.Note, now).Scan(&c.ID)
	if err != nil {
		return Customer{}, err
	}
	c.IsActive = true
	c.CreatedAt = now
	c.UpdatedAt = now
	return c, nil
}

func (r *repo) UpdateCustomer(ctx context.Context, id int64, c Customer) error {
	_, err := r.db.Exec(ctx, `UPDATE customers SET code=$1, name=$2, name_search=$3, phone=$4, email=$5, address=$6, note=$7, updated_at=$8 WHERE id=$9`,
		c.Code, c.Name, NormalizeSearch(c.Name), c.Phone, c.Email, c.Address, c.Note, time.Now(), id)
	return err
}

func (r *repo) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE customers SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// Product operations

const productColumns = `id, code, name, unit, sell_price, is_active, created_at, updated_at`

func (r *repo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	where, args := listClauses(filters)
	total, err := r.listCount(ctx, "products", where, args)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := listWindow(filters, total)
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products`+where+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.SellPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Code, &p.Name, &p.Unit, &p.SellPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrNotFound
	}
	return p, err
}

func (r *repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO products (code, name, name_search, unit, sell_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6) RETURNING id`,
		p.Code, p.Name, NormalizeSearch(p.Name), p.Unit, p.SellPrice, now).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *repo) UpdateProduct(ctx context.Context, id int64, p Product) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET code=$1, name=$2, name_search=$3, unit=$4, sell_price=$5, updated_at=$6 WHERE id=$7`,
		p.Code, p.Name, NormalizeSearch(p.Name), p.Unit, p.SellPrice, time.Now(), id)
	return err
}

func (r *repo) DeleteProduct(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}

// Equipment operations. The quantity column is read here but only ever
// written by the inventory ledger.

const equipmentColumns = `id, code, name, quantity, sell_price, is_active, created_at, updated_at`

func (r *repo) ListEquipment(ctx context.Context, filters ListFilters) ([]Equipment, int, error) {
	where, args := listClauses(filters)
	total, err := r.listCount(ctx, "equipment", where, args)
	if err != nil {
		return nil, 0, err
	}
	limit, offset := listWindow(filters, total)
	rows, err := r.db.Query(ctx, `SELECT `+equipmentColumns+` FROM equipment`+where+
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2),
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Equipment
	for rows.Next() {
		var e Equipment
		if err := rows.Scan(&e.ID, &e.Code, &e.Name, &e.Quantity, &e.SellPrice, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

func (r *repo) GetEquipment(ctx context.Context, id int64) (Equipment, error) {
	var e Equipment
	err := r.db.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id).
		Scan(&e.ID, &e.Code, &e.Name, &e.Quantity, &e.SellPrice, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Equipment{}, shared.ErrNotFound
	}
	return e, err
}

func (r *repo) CreateEquipment(ctx context.Context, e Equipment) (Equipment, error) {
	now := time.Now()
	err := r.db.QueryRow(ctx, `INSERT INTO equipment (code, name, name_search, quantity, sell_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, 0, $4, TRUE, $5, $5) RETURNING id`,
		e.Code, e.Name, NormalizeSearch(e.Name), e.SellPrice, now).Scan(&e.ID)
	if err != nil {
		return Equipment{}, err
	}
	e.Quantity = 0
	e.IsActive = true
	e.CreatedAt = now
	e.UpdatedAt = now
	return e, nil
}

func (r *repo) UpdateEquipment(ctx context.Context, id int64, e Equipment) error {
	_, err := r.db.Exec(ctx, `UPDATE equipment SET code=$1, name=$2, name_search=$3, sell_price=$4, updated_at=$5 WHERE id=$6`,
		e.Code, e.Name, NormalizeSearch(e.Name), e.SellPrice, time.Now(), id)
	return err
}

func (r *repo) DeleteEquipment(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE equipment SET is_active=FALSE, updated_at=NOW() WHERE id=$1`, id)
	return err
}
