package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/conformia/conformia/internal/audit/http"
	"github.com/conformia/conformia/internal/auth"
	"github.com/conformia/conformia/internal/evidence"
	"github.com/conformia/conformia/internal/norms"
	"github.com/conformia/conformia/internal/observability"
	"github.com/conformia/conformia/internal/obligations"
	"github.com/conformia/conformia/internal/plans"
	"github.com/conformia/conformia/internal/shared"
	"github.com/conformia/conformia/internal/units"
	"github.com/conformia/conformia/internal/users"
	"github.com/conformia/conformia/jobs"
	"github.com/conformia/conformia/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Users          users.RepositoryPort

	AuthHandler        *auth.Handler
	NormsHandler       *norms.Handler
	UnitsHandler       *units.Handler
	UsersHandler       *users.Handler
	ObligationsHandler *obligations.Handler
	EvidenceHandler    *evidence.Handler
	PlansHandler       *plans.Handler
	AuditHandler       *audithttp.Handler
	ReportHandler      *report.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Conformia defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Users:          params.Users,
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

	r.Route("/api/v1", func(r chi.Router) {
		if params.NormsHandler != nil {
			r.Route("/norms", params.NormsHandler.MountRoutes)
		}
		if params.UnitsHandler != nil {
			r.Route("/units", params.UnitsHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.ObligationsHandler != nil {
			r.Route("/obligations", params.ObligationsHandler.MountRoutes)
			r.Route("/assignments", func(r chi.Router) {
				params.ObligationsHandler.MountAssignmentRoutes(r)
				if params.EvidenceHandler != nil {
					params.EvidenceHandler.MountAssignmentRoutes(r)
				}
				if params.PlansHandler != nil {
					params.PlansHandler.MountAssignmentRoutes(r)
				}
			})
		}
		if params.EvidenceHandler != nil {
			r.Route("/evidence", params.EvidenceHandler.MountRoutes)
		}
		if params.PlansHandler != nil {
			r.Route("/plans", params.PlansHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.ReportHandler != nil {
			r.Route("/reports", params.ReportHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
