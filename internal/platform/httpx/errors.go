package httpx

import (
	"errors"
	"net/http"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// Sentinel errors shared by handlers across modules.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Concurrency Conflict", "the record changed concurrently, retry the operation")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
