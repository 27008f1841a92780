package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/terrabook/terrabook/internal/auth"
	"github.com/terrabook/terrabook/internal/clients"
	"github.com/terrabook/terrabook/internal/finance"
	"github.com/terrabook/terrabook/internal/land"
	"github.com/terrabook/terrabook/internal/observability"
	"github.com/terrabook/terrabook/internal/rbac"
	"github.com/terrabook/terrabook/internal/roles"
	"github.com/terrabook/terrabook/internal/sales"
	"github.com/terrabook/terrabook/internal/shared"
	"github.com/terrabook/terrabook/internal/users"
	"github.com/terrabook/terrabook/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler        *auth.Handler
	ClientsHandler     *clients.Handler
	LandHandler        *land.Handler
	SalesHandler       *sales.Handler
	FinanceHandler     *finance.Handler
	UsersHandler       *users.Handler
	RolesHandler       *roles.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	if params.ClientsHandler != nil {
		r.Route("/clients", params.ClientsHandler.MountRoutes)
	}
	if params.LandHandler != nil {
		r.Route("/land", params.LandHandler.MountRoutes)
	}
	if params.SalesHandler != nil {
		r.Route("/sales", params.SalesHandler.MountRoutes)
	}
	if params.FinanceHandler != nil {
		r.Route("/finance", params.FinanceHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.PermissionsHandler != nil {
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
