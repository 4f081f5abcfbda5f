package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/atrium-pm/atrium/internal/audit"
	"github.com/atrium-pm/atrium/internal/auth"
	"github.com/atrium-pm/atrium/internal/billing"
	"github.com/atrium-pm/atrium/internal/billing/templates"
	"github.com/atrium-pm/atrium/internal/imports"
	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/meters"
	"github.com/atrium-pm/atrium/internal/property"
	"github.com/atrium-pm/atrium/internal/shared"
	"github.com/atrium-pm/atrium/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthMiddleware auth.Middleware

	AuthHandler     *auth.Handler
	PropertyHandler *property.Handler
	LeaseHandler    *leases.Handler
	MeterHandler    *meters.Handler
	BillingHandler  *billing.Handler
	TemplateHandler *templates.Handler
	ImportHandler   *imports.Handler
	JobHandler      *jobs.Handler
	AuditHandler    *audit.Handler
}

// NewRouter constructs the chi.Router with Atrium defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	requireRole := params.AuthMiddleware.RequireRole

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireRole(shared.RoleClerk))
		params.PropertyHandler.MountRoutes(r)
		params.LeaseHandler.MountRoutes(r)
		params.MeterHandler.MountRoutes(r)
	})

	r.Route("/billing", func(r chi.Router) {
		params.BillingHandler.MountRoutes(r, requireRole)
		params.TemplateHandler.MountRoutes(r, requireRole)
	})

	r.Route("/imports", func(r chi.Router) {
		r.Use(requireRole(shared.RoleClerk))
		params.ImportHandler.MountRoutes(r)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Use(requireRole(shared.RoleAdmin))
		params.JobHandler.MountRoutes(r)
	})

	r.Route("/audit", func(r chi.Router) {
		r.Use(requireRole(shared.RoleAdmin))
		params.AuditHandler.MountRoutes(r)
	})

	return r
}
