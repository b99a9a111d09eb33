package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-spa/meridian-erp/internal/platform/httpx"
	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// Handler exposes master data endpoints.
type Handler struct {
	logger   *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
		r.Get("/{id}", h.getSupplier)
		r.Put("/{id}", h.updateSupplier)
		r.Delete("/{id}", h.deleteSupplier)
	})
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
		r.Delete("/{id}", h.deleteProduct)
	})
	r.Route("/equipment", func(r chi.Router) {
		r.Get("/", h.listEquipment)
		r.Post("/", h.createEquipment)
		r.Get("/{id}", h.getEquipment)
		r.Put("/{id}", h.updateEquipment)
		r.Delete("/{id}", h.deleteEquipment)
	})
}

type listResponse struct {
	Data       any               `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func parseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{Page: page, Limit: limit, Search: q.Get("q")}
	if v := q.Get("is_active"); v != "" {
		active := v == "true" || v == "1"
		filters.IsActive = &active
	}
	return filters
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

// Supplier handlers

type supplierRequest struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	filters := parseListFilters(r)
	suppliers, total, err := h.service.ListSuppliers(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list suppliers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: suppliers, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondError(w, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), Supplier{
		Code: req.Code, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address,
	})
	if err != nil {
		h.respondError(w, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req supplierRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.UpdateSupplier(r.Context(), id, Supplier{
		Code: req.Code, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address,
	}); err != nil {
		h.respondError(w, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
		h.respondError(w, "delete supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Customer handlers

type customerRequest struct {
	Code    string `json:"code" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
	Note    string `json:"note"`
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	filters := parseListFilters(r)
	customers, total, err := h.service.ListCustomers(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: customers, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.respondError(w, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	customer, err := h.service.CreateCustomer(r.Context(), Customer{
		Code: req.Code, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Note: req.Note,
	})
	if err != nil {
		h.respondError(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req customerRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.UpdateCustomer(r.Context(), id, Customer{
		Code: req.Code, Name: req.Name, Phone: req.Phone, Email: req.Email, Address: req.Address, Note: req.Note,
	}); err != nil {
		h.respondError(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.respondError(w, "delete customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Product handlers

type productRequest struct {
	Code      string  `json:"code" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Unit      string  `json:"unit"`
	SellPrice float64 `json:"sell_price" validate:"gte=0"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filters := parseListFilters(r)
	products, total, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: products, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	product, err := h.service.CreateProduct(r.Context(), Product{
		Code: req.Code, Name: req.Name, Unit: req.Unit, SellPrice: req.SellPrice,
	})
	if err != nil {
		h.respondError(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req productRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.UpdateProduct(r.Context(), id, Product{
		Code: req.Code, Name: req.Name, Unit: req.Unit, SellPrice: req.SellPrice,
	}); err != nil {
		h.respondError(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.respondError(w, "delete product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// Equipment handlers

type equipmentRequest struct {
	Code      string  `json:"code" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	SellPrice float64 `json:"sell_price" validate:"gte=0"`
}

func (h *Handler) listEquipment(w http.ResponseWriter, r *http.Request) {
	filters := parseListFilters(r)
	items, total, err := h.service.ListEquipment(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list equipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Data: items, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) getEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	item, err := h.service.GetEquipment(r.Context(), id)
	if err != nil {
		h.respondError(w, "get equipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) createEquipment(w http.ResponseWriter, r *http.Request) {
	var req equipmentRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	item, err := h.service.CreateEquipment(r.Context(), Equipment{
		Code: req.Code, Name: req.Name, SellPrice: req.SellPrice,
	})
	if err != nil {
		h.respondError(w, "create equipment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) updateEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var req equipmentRequest
	if ok := h.decode(w, r, &req); !ok {
		return
	}
	if err := h.service.UpdateEquipment(r.Context(), id, Equipment{
		Code: req.Code, Name: req.Name, SellPrice: req.SellPrice,
	}); err != nil {
		h.respondError(w, "update equipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteEquipment(r.Context(), id); err != nil {
		h.respondError(w, "delete equipment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}
