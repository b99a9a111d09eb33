package treatment

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-spa/meridian-erp/internal/platform/httpx"
)

// Handler exposes treatment plan and medicine order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers treatment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/plans", func(r chi.Router) {
		r.Post("/", h.createPlan)
		r.Get("/{id}", h.getPlan)
		r.Put("/{id}", h.updatePlan)
		r.Delete("/{id}", h.deletePlan)
	})
	r.Route("/medicine-orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
	})
	r.Get("/customers/{customerID}/plans", h.listPlans)
	r.Get("/customers/{customerID}/medicine-orders", h.listOrders)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidPrice), errors.Is(err, ErrInvalidDiscount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

type planRequest struct {
	CustomerID    int64   `json:"customer_id" validate:"required"`
	PackageName   string  `json:"package_name" validate:"required"`
	PackagePrice  float64 `json:"package_price" validate:"gte=0"`
	DiscountKind  string  `json:"discount_kind" validate:"omitempty,oneof=percent fixed"`
	DiscountValue float64 `json:"discount_value" validate:"gte=0"`
	Note          string  `json:"note"`
	ActorID       int64   `json:"actor_id"`
}

func (req planRequest) toInput() PlanInput {
	return PlanInput{
		CustomerID:    req.CustomerID,
		PackageName:   req.PackageName,
		PackagePrice:  req.PackagePrice,
		DiscountKind:  DiscountKind(req.DiscountKind),
		DiscountValue: req.DiscountValue,
		Note:          req.Note,
		ActorID:       req.ActorID,
	}
}

func (h *Handler) decodePlan(w http.ResponseWriter, r *http.Request) (PlanInput, bool) {
	var req planRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return PlanInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return PlanInput{}, false
	}
	return req.toInput(), true
}

func (h *Handler) createPlan(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodePlan(w, r)
	if !ok {
		return
	}
	plan, err := h.service.CreatePlan(r.Context(), input)
	if err != nil {
		h.respondError(w, "create plan", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *Handler) updatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	input, ok := h.decodePlan(w, r)
	if !ok {
		return
	}
	plan, err := h.service.UpdatePlan(r.Context(), id, input)
	if err != nil {
		h.respondError(w, "update plan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) deletePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeletePlan(r.Context(), id, 0); err != nil {
		h.respondError(w, "delete plan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) getPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	plan, err := h.service.GetPlan(r.Context(), id)
	if err != nil {
		h.respondError(w, "get plan", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *Handler) listPlans(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	plans, err := h.service.ListPlansForCustomer(r.Context(), customerID)
	if err != nil {
		h.respondError(w, "list plans", err)
		return
	}
	httpx.JSON(w, http.StatusOK, plans)
}

type orderRequest struct {
	CustomerID    int64   `json:"customer_id" validate:"required"`
	ItemsTotal    float64 `json:"items_total" validate:"gte=0"`
	DiscountKind  string  `json:"discount_kind" validate:"omitempty,oneof=percent fixed"`
	DiscountValue float64 `json:"discount_value" validate:"gte=0"`
	Note          string  `json:"note"`
	ActorID       int64   `json:"actor_id"`
}

func (h *Handler) decodeOrder(w http.ResponseWriter, r *http.Request) (OrderInput, bool) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return OrderInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return OrderInput{}, false
	}
	return OrderInput{
		CustomerID:    req.CustomerID,
		ItemsTotal:    req.ItemsTotal,
		DiscountKind:  DiscountKind(req.DiscountKind),
		DiscountValue: req.DiscountValue,
		Note:          req.Note,
		ActorID:       req.ActorID,
	}, true
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	input, ok := h.decodeOrder(w, r)
	if !ok {
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), id, input)
	if err != nil {
		h.respondError(w, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id, 0); err != nil {
		h.respondError(w, "delete order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	customerID, err := pathID(r, "customerID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	orders, err := h.service.ListOrdersForCustomer(r.Context(), customerID)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}
