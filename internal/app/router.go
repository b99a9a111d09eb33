package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-spa/meridian-erp/internal/inventory"
	"github.com/meridian-spa/meridian-erp/internal/masterdata"
	"github.com/meridian-spa/meridian-erp/internal/payables"
	"github.com/meridian-spa/meridian-erp/internal/receivables"
	"github.com/meridian-spa/meridian-erp/internal/treatment"
	"github.com/meridian-spa/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	MasterDataHandler  *masterdata.Handler
	InventoryHandler   *inventory.Handler
	PayablesHandler    *payables.Handler
	ReceivablesHandler *receivables.Handler
	TreatmentHandler   *treatment.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/masterdata", func(r chi.Router) {
		params.MasterDataHandler.MountRoutes(r)
	})
	r.Route("/inventory", func(r chi.Router) {
		params.InventoryHandler.MountRoutes(r)
	})
	r.Route("/payables", func(r chi.Router) {
		params.PayablesHandler.MountRoutes(r)
	})
	r.Route("/receivables", func(r chi.Router) {
		params.ReceivablesHandler.MountRoutes(r)
	})
	r.Route("/treatment", func(r chi.Router) {
		params.TreatmentHandler.MountRoutes(r)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
