package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ostrovmarket/fulfillment/internal/courier"
	"github.com/ostrovmarket/fulfillment/internal/inventory"
	"github.com/ostrovmarket/fulfillment/internal/observability"
	"github.com/ostrovmarket/fulfillment/internal/orders"
	"github.com/ostrovmarket/fulfillment/internal/platform/httpx"
	"github.com/ostrovmarket/fulfillment/internal/scan"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
	"github.com/ostrovmarket/fulfillment/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Pool             *pgxpool.Pool
	InventoryHandler *inventory.Handler
	OrdersHandler    *orders.Handler
	TasksHandler     *tasks.Handler
	ScanHandler      *scan.Handler
	CourierHandler   *courier.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with fulfillment defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/orders", params.OrdersHandler.MountRoutes)
	r.Route("/tasks", func(r chi.Router) {
		params.TasksHandler.MountRoutes(r)
		params.ScanHandler.MountRoutes(r)
	})
	r.Route("/warehouses", params.TasksHandler.MountWarehouseRoutes)
	r.Route("/couriers", params.CourierHandler.MountRoutes)
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
