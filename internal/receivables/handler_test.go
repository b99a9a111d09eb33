package receivables

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/meridian-spa/meridian-erp/internal/shared"
)

// conflictRepo loses every transaction to a concurrent writer.
type conflictRepo struct {
	*memoryRepo
}

func (r *conflictRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fmt.Errorf("%w: could not serialize access due to concurrent update", shared.ErrConcurrencyConflict)
}

func TestApplyPaymentConcurrentLoserGets409(t *testing.T) {
	svc := NewService(slog.Default(), &conflictRepo{newMemoryRepo()}, nil, nil)
	h := NewHandler(slog.Default(), svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/payments",
		strings.NewReader(`{"entry_id":1,"amount":100,"method":"cash"}`))
	rec := httptest.NewRecorder()
	h.applyPayment(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "retry")
}

func TestListForCustomerRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	h := NewHandler(slog.Default(), svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/customers/9/entries?status=overdue", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("customerID", "9")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()
	h.listForCustomer(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "status must be open, partial or closed")
}
