package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-spa/meridian-erp/internal/platform/httpx"
)

// Handler exposes stock movement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock-ins", func(r chi.Router) {
		r.Get("/", h.listStockIns)
		r.Post("/", h.createStockIn)
		r.Get("/{id}", h.getStockIn)
		r.Put("/{id}", h.updateStockIn)
		r.Delete("/{id}", h.deleteStockIn)
	})
	r.Route("/stock-outs", func(r chi.Router) {
		r.Get("/", h.listStockOuts)
		r.Post("/", h.createStockOut)
		r.Get("/{id}", h.getStockOut)
		r.Put("/{id}", h.updateStockOut)
		r.Delete("/{id}", h.deleteStockOut)
	})
	r.Route("/equipment-exports", func(r chi.Router) {
		r.Get("/", h.listEquipmentExports)
		r.Post("/", h.createEquipmentExport)
		r.Get("/{id}", h.getEquipmentExport)
		r.Put("/{id}", h.updateEquipmentExport)
		r.Delete("/{id}", h.deleteEquipmentExport)
	})
	r.Get("/products/{id}/quantity", h.productQuantity)
	r.Get("/products/{id}/lots", h.listLots)
	r.Get("/equipment/{id}/quantity", h.equipmentQuantity)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) respondMovementError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidUnitPrice), errors.Is(err, ErrInconsistentReference):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrMovementNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

type stockInRequest struct {
	SupplierID  int64   `json:"supplier_id" validate:"required"`
	ProductID   int64   `json:"product_id"`
	EquipmentID int64   `json:"equipment_id"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	ImportDate  string  `json:"import_date" validate:"required"`
	Note        string  `json:"note"`
	ActorID     int64   `json:"actor_id"`
}

func (req stockInRequest) toInput() (StockInInput, error) {
	date, err := time.Parse("2006-01-02", req.ImportDate)
	if err != nil {
		return StockInInput{}, err
	}
	return StockInInput{
		SupplierID:  req.SupplierID,
		ProductID:   req.ProductID,
		EquipmentID: req.EquipmentID,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		ImportDate:  date,
		Note:        req.Note,
		ActorID:     req.ActorID,
	}, nil
}

func (h *Handler) decodeStockIn(w http.ResponseWriter, r *http.Request) (StockInInput, bool) {
	var req stockInRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return StockInInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return StockInInput{}, false
	}
	input, err := req.toInput()
	if err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "import_date", "expected YYYY-MM-DD")
		return StockInInput{}, false
	}
	return input, true
}

func (h *Handler) createStockIn(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeStockIn(w, r)
	if !ok {
		return
	}
	slip, err := h.service.CreateStockIn(r.Context(), input)
	if err != nil {
		h.respondMovementError(w, "create stock-in", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slip)
}

func (h *Handler) updateStockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	input, ok := h.decodeStockIn(w, r)
	if !ok {
		return
	}
	slip, err := h.service.UpdateStockIn(r.Context(), id, input)
	if err != nil {
		h.respondMovementError(w, "update stock-in", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) deleteStockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteStockIn(r.Context(), id, 0); err != nil {
		h.respondMovementError(w, "delete stock-in", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) getStockIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	slip, err := h.service.GetStockIn(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "get stock-in", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) listStockIns(w http.ResponseWriter, r *http.Request) {
	slips, err := h.service.ListStockIns(r.Context())
	if err != nil {
		h.respondMovementError(w, "list stock-ins", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slips)
}

type stockOutRequest struct {
	ProductID  int64   `json:"product_id" validate:"required"`
	CustomerID int64   `json:"customer_id"`
	Quantity   int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice  float64 `json:"unit_price" validate:"gte=0"`
	ExportDate string  `json:"export_date" validate:"required"`
	IssueType  string  `json:"issue_type" validate:"required,oneof=sale internal_use damage"`
	Note       string  `json:"note"`
	ActorID    int64   `json:"actor_id"`
}

func (h *Handler) decodeStockOut(w http.ResponseWriter, r *http.Request) (StockOutInput, bool) {
	var req stockOutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return StockOutInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return StockOutInput{}, false
	}
	date, err := time.Parse("2006-01-02", req.ExportDate)
	if err != nil {
		httpx.FieldProblem(w, http.StatusBadRequest, "Validation Failed", "export_date", "expected YYYY-MM-DD")
		return StockOutInput{}, false
	}
	return StockOutInput{
		ProductID:  req.ProductID,
		CustomerID: req.CustomerID,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		ExportDate: date,
		IssueType:  req.IssueType,
		Note:       req.Note,
		ActorID:    req.ActorID,
	}, true
}

func (h *Handler) createStockOut(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeStockOut(w, r)
	if !ok {
		return
	}
	slip, err := h.service.CreateStockOut(r.Context(), input)
	if err != nil {
		h.respondMovementError(w, "create stock-out", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, slip)
}

func (h *Handler) updateStockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	input, ok := h.decodeStockOut(w, r)
	if !ok {
		return
	}
	slip, err := h.service.UpdateStockOut(r.Context(), id, input)
	if err != nil {
		h.respondMovementError(w, "update stock-out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) deleteStockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteStockOut(r.Context(), id, 0); err != nil {
		h.respondMovementError(w, "delete stock-out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) getStockOut(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	slip, err := h.service.GetStockOut(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "get stock-out", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slip)
}

func (h *Handler) listStockOuts(w http.ResponseWriter, r *http.Request) {
	slips, err := h.service.ListStockOuts(r.Context())
	if err != nil {
		h.respondMovementError(w, "list stock-outs", err)
		return
	}
	httpx.JSON(w, http.StatusOK, slips)
}

type equipmentExportRequest struct {
	EquipmentID int64   `json:"equipment_id" validate:"required"`
	ExportType  string  `json:"export_type" validate:"required,oneof=sale disposal transfer"`
	Quantity    int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	CustomerID  int64   `json:"customer_id"`
	Note        string  `json:"note"`
	ActorID     int64   `json:"actor_id"`
}

func (h *Handler) decodeEquipmentExport(w http.ResponseWriter, r *http.Request) (EquipmentExportInput, bool) {
	var req equipmentExportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid payload")
		return EquipmentExportInput{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return EquipmentExportInput{}, false
	}
	return EquipmentExportInput{
		EquipmentID: req.EquipmentID,
		ExportType:  req.ExportType,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		CustomerID:  req.CustomerID,
		Note:        req.Note,
		ActorID:     req.ActorID,
	}, true
}

func (h *Handler) createEquipmentExport(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeEquipmentExport(w, r)
	if !ok {
		return
	}
	exp, err := h.service.CreateEquipmentExport(r.Context(), input)
	if err != nil {
		h.respondMovementError(w, "create equipment export", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exp)
}

func (h *Handler) updateEquipmentExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	input, ok := h.decodeEquipmentExport(w, r)
	if !ok {
		return
	}
	exp, err := h.service.UpdateEquipmentExport(r.Context(), id, input)
	if err != nil {
		h.respondMovementError(w, "update equipment export", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) deleteEquipmentExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.DeleteEquipmentExport(r.Context(), id, 0); err != nil {
		h.respondMovementError(w, "delete equipment export", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) getEquipmentExport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	exp, err := h.service.GetEquipmentExport(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "get equipment export", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exp)
}

func (h *Handler) listEquipmentExports(w http.ResponseWriter, r *http.Request) {
	exps, err := h.service.ListEquipmentExports(r.Context())
	if err != nil {
		h.respondMovementError(w, "list equipment exports", err)
		return
	}
	httpx.JSON(w, http.StatusOK, exps)
}

func (h *Handler) productQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	qty, err := h.service.ProductQuantity(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "product quantity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"product_id": id, "quantity": qty})
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	lots, err := h.service.ListLots(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "list lots", err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) equipmentQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	qty, err := h.service.EquipmentQuantity(r.Context(), id)
	if err != nil {
		h.respondMovementError(w, "equipment quantity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"equipment_id": id, "quantity": qty})
}
