package masterdata

import (
	"context"
	"errors"
	"strings"
)

// Service wraps master data CRUD with validation.
type Service interface {
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

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new master data service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func requireCodeName(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return errors.New("code is required")
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	return nil
}

// Supplier operations

func (s *service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.ListSuppliers(ctx, filters)
}

func (s *service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, errors.New("invalid supplier ID")
	}
	return s.repo.GetSupplier(ctx, id)
}

func (s *service) CreateSupplier(ctx context.Context, sup Supplier) (Supplier, error) {
	if err := requireCodeName(sup.Code, sup.Name); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, sup)
}

func (s *service) UpdateSupplier(ctx context.Context, id int64, sup Supplier) error {
	if id <= 0 {
		return errors.New("invalid supplier ID")
	}
	if err := requireCodeName(sup.Code, sup.Name); err != nil {
		return err
	}
	return s.repo.UpdateSupplier(ctx, id, sup)
}

func (s *service) DeleteSupplier(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid supplier ID")
	}
	return s.repo.DeleteSupplier(ctx, id)
}

// Customer operations

func (s *service) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	return s.repo.ListCustomers(ctx, filters)
}

func (s *service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if id <= 0 {
		return Customer{}, errors.New("invalid customer ID")
	}
	return s.repo.GetCustomer(ctx, id)
}

func (s *service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if err := requireCodeName(c.Code, c.Name); err != nil {
		return Customer{}, err
	}
	return s.repo.CreateCustomer(ctx, c)
}

func (s *service) UpdateCustomer(ctx context.Context, id int64, c Customer) error {
	if id <= 0 {
		return errors.New("invalid customer ID")
	}
	if err := requireCodeName(c.Code, c.Name); err != nil {
		return err
	}
	return s.repo.UpdateCustomer(ctx, id, c)
}

func (s *service) DeleteCustomer(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid customer ID")
	}
	return s.repo.DeleteCustomer(ctx, id)
}

// Product operations

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("invalid product ID")
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	if err := requireCodeName(p.Code, p.Name); err != nil {
		return Product{}, err
	}
	if p.SellPrice < 0 {
		return Product{}, errors.New("sell price must be >= 0")
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *service) UpdateProduct(ctx context.Context, id int64, p Product) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	if err := requireCodeName(p.Code, p.Name); err != nil {
		return err
	}
	if p.SellPrice < 0 {
		return errors.New("sell price must be >= 0")
	}
	return s.repo.UpdateProduct(ctx, id, p)
}

func (s *service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	return s.repo.DeleteProduct(ctx, id)
}

// Equipment operations

func (s *service) ListEquipment(ctx context.Context, filters ListFilters) ([]Equipment, int, error) {
	return s.repo.ListEquipment(ctx, filters)
}

func (s *service) GetEquipment(ctx context.Context, id int64) (Equipment, error) {
	if id <= 0 {
		return Equipment{}, errors.New("invalid equipment ID")
	}
	return s.repo.GetEquipment(ctx, id)
}

func (s *service) CreateEquipment(ctx context.Context, e Equipment) (Equipment, error) {
	if err := requireCodeName(e.Code, e.Name); err != nil {
		return Equipment{}, err
	}
	if e.SellPrice < 0 {
		return Equipment{}, errors.New("sell price must be >= 0")
	}
	return s.repo.CreateEquipment(ctx, e)
}

func (s *service) UpdateEquipment(ctx context.Context, id int64, e Equipment) error {
	if id <= 0 {
		return errors.New("invalid equipment ID")
	}
	if err := requireCodeName(e.Code, e.Name); err != nil {
		return err
	}
	if e.SellPrice < 0 {
		return errors.New("sell price must be >= 0")
	}
	return s.repo.UpdateEquipment(ctx, id, e)
}

func (s *service) DeleteEquipment(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid equipment ID")
	}
	return s.repo.DeleteEquipment(ctx, id)
}
