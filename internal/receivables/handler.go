package receivables

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

// Handler exposes accounts-receivable endpoints.
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

// MountRoutes registers receivables routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entries/{id}", h.getEntry)
	r.Get("/entries/{id}/payments", h.listPayments)
	r.Get("/customers/{customerID}/entries", h.listForCustomer)
	r.Post("/payments", h.applyPayment)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	entry, err := h.service.GetEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get ar entry", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listForCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid customer id")
		return
	}
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusOpen, StatusPartial, StatusClosed:
	default:
		httpx.FieldProblem(w, http.StatusBadRequest, "Bad Request", "status", "status must be open, partial or closed")
		return
	}
	entries, err := h.service.ListForCustomer(r.Context(), customerID, status)
	if err != nil {
		h.logger.Error("list ar entries", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entry id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.logger.Error("list ar payments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

type applyPaymentRequest struct {
	EntryID    int64   `json:"entry_id" validate:"required"`
	CustomerID int64   `json:"customer_id"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Method     string  `json:"method" validate:"required,oneof=cash transfer card"`
	Note       string  `json:"note"`
	ActorID    int64   `json:"actor_id"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req applyPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if err := h.idem.CheckAndInsert(r.Context(), idemKey, "receivables:payment"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Duplicate Request", "payment already recorded for this idempotency key")
			return
		}
		h.logger.Error("idempotency check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	payment, err := h.service.ApplyPayment(r.Context(), PaymentInput{
		EntryID:    req.EntryID,
		CustomerID: req.CustomerID,
		Amount:     req.Amount,
		Method:     req.Method,
		Note:       req.Note,
		ActorID:    req.ActorID,
	})
	if err != nil {
		if rerr := h.idem.Release(r.Context(), idemKey, "receivables:payment"); rerr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", rerr))
		}
		switch {
		case errors.Is(err, ErrInvalidAmount):
			httpx.FieldProblem(w, http.StatusBadRequest, "Invalid Amount", "amount", err.Error())
		case errors.Is(err, ErrOverpayment):
			httpx.FieldProblem(w, http.StatusUnprocessableEntity, "Overpayment", "amount", err.Error())
		case errors.Is(err, ErrCustomerMismatch):
			httpx.FieldProblem(w, http.StatusUnprocessableEntity, "Customer Mismatch", "customer_id", err.Error())
		case errors.Is(err, ErrEntryNotFound):
			httpx.FieldProblem(w, http.StatusNotFound, "Not Found", "entry_id", err.Error())
		case errors.Is(err, shared.ErrConcurrencyConflict):
			httpx.Problem(w, http.StatusConflict, "Concurrency Conflict", "another payment touched this entry, retry the request")
		default:
			h.logger.Error("apply ar payment", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}
