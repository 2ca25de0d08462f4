package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sunmax/ledger/internal/customers"
	"github.com/sunmax/ledger/internal/invoicing"
	"github.com/sunmax/ledger/internal/observability"
	"github.com/sunmax/ledger/internal/quotations"
	"github.com/sunmax/ledger/internal/stats"
	"github.com/sunmax/ledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InvoiceHandler    *invoicing.Handler
	QuotationHandler  *quotations.Handler
	CustomerHandler   *customers.Handler
	StatsHandler      *stats.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	DisableRequestLog bool
}

// NewRouter constructs the chi.Router with ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if !params.DisableRequestLog {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.InvoiceHandler != nil {
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
	}
	if params.QuotationHandler != nil {
		r.Route("/quotations", params.QuotationHandler.MountRoutes)
	}
	if params.CustomerHandler != nil {
		r.Route("/customers", params.CustomerHandler.MountRoutes)
	}
	if params.StatsHandler != nil {
		r.Route("/stats", params.StatsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
