package payables

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

// Handler exposes supplier debt endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, service: service, idem: idem, validate: validator.New()}
}

// MountRoutes registers payables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/debt-heads/{supplierID}/{kind}", h.getDebtHead)
	r.Get("/debt-heads", h.listDebtHeads)
	r.Get("/stock-ins/{stockInID}/payments", h.listPayments)
	r.Post("/payments", h.recordPayment)
	r.Delete("/payments/{id}", h.removePayment)
}

func (h *Handler) getDebtHead(w http.ResponseWriter, r *http.Request) {
	supplierID, err := strconv.ParseInt(chi.URLParam(r, "supplierID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid supplier id")
		return
	}
	kind := DebtKind(chi.URLParam(r, "kind"))

	head, err := h.service.GetDebtHead(r.Context(), supplierID, kind)
	if err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", "kind", err.Error())
		return
	}
	httpx.JSON(w, http.StatusOK, head)
}

func (h *Handler) listDebtHeads(w http.ResponseWriter, r *http.Request) {
	kind := DebtKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = DebtKindGoods
	}
	heads, err := h.service.ListDebtHeads(r.Context(), kind)
	if err != nil {
		h.logger.Error("list debt heads", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, heads)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	stockInID, err := strconv.ParseInt(chi.URLParam(r, "stockInID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid stock-in id")
		return
	}
	payments, err := h.service.ListPaymentsForStockIn(r.Context(), stockInID)
	if err != nil {
		h.logger.Error("list supplier payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

type recordPaymentRequest struct {
	StockInID int64   `json:"stock_in_id" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required,oneof=cash transfer"`
	Note      string  `json:"note"`
	ActorID   int64   `json:"actor_id"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if err := h.idem.CheckAndInsert(r.Context(), idemKey, "payables:payment"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Request", "payment already recorded for this idempotency key")
			return
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	payment, err := h.service.RecordPayment(r.Context(), SupplierPaymentInput{
		StockInID: req.StockInID,
		Amount:    req.Amount,
		Method:    req.Method,
		Note:      req.Note,
		ActorID:   req.ActorID,
	})
	if err != nil {
		if rerr := h.idem.Release(r.Context(), idemKey, "payables:payment"); rerr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", rerr))
		}
		switch {
		case errors.Is(err, ErrInvalidAmount):
			httpx.FieldProblem(w, http.StatusBadRequest, "Invalid Amount", "amount", err.Error())
		case errors.Is(err, ErrStockInNotFound):
			httpx.FieldProblem(w, http.StatusNotFound, "Not Found", "stock_in_id", err.Error())
		case errors.Is(err, shared.ErrConcurrencyConflict):
			httpx.Problem(w, http.StatusConflict, "Concurrency Conflict", "another payment touched this record, retry the request")
		default:
			h.logger.Error("record supplier payment", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) removePayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payment id")
		return
	}
	if err := h.service.RemovePayment(r.Context(), id, 0); err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("remove supplier payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
