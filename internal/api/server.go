// Package api implements the HTTP layer of the wellbeing risk assessment
// service. Handlers are methods on *Server. Each handler file is responsible
// for one resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nyashahama/wellbeing-risk-assessment/internal/catalog"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/intervention"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/store"
	"github.com/nyashahama/wellbeing-risk-assessment/internal/wizard"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AllowedOrigin is the frontend origin allowed by CORS in production.
	// e.g. "https://bienestar.colegio.example"
	AllowedOrigin string
}

// HistoryStore reads persisted assessments. *store.Store satisfies it.
type HistoryStore interface {
	GetAssessmentByID(ctx context.Context, id uuid.UUID) (store.AssessmentRecord, error)
	ListAssessmentsByStudent(ctx context.Context, studentID string) ([]store.AssessmentRecord, error)
}

// InterventionStore reads and updates interventions. *store.Store satisfies it.
type InterventionStore interface {
	CreateIntervention(ctx context.Context, iv intervention.Intervention) (intervention.Intervention, error)
	ListInterventions(ctx context.Context) ([]intervention.Intervention, error)
	GetIntervention(ctx context.Context, id uuid.UUID) (intervention.Intervention, error)
	UpdateInterventionProgress(ctx context.Context, id uuid.UUID, progress int, notes string) (intervention.Intervention, error)
	CompleteIntervention(ctx context.Context, id uuid.UUID) (intervention.Intervention, error)
}

// Deps groups the collaborators the Server needs.
type Deps struct {
	Catalog       *catalog.Catalog
	Registry      *wizard.Registry
	Wizard        wizard.Deps
	History       HistoryStore
	Interventions InterventionStore
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// catalog is the indicator catalog every new assessment walks through.
	catalog *catalog.Catalog

	// registry holds the in-progress wizards keyed by handle.
	registry *wizard.Registry

	// wizardDeps is handed to every new wizard.Controller.
	wizardDeps wizard.Deps

	history       HistoryStore
	interventions InterventionStore

	validate *validator.Validate
	cfg      Config
	logger   *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(deps Deps, cfg Config, logger *slog.Logger) http.Handler {
	s := &Server{
		catalog:       deps.Catalog,
		registry:      deps.Registry,
		wizardDeps:    deps.Wizard,
		history:       deps.History,
		interventions: deps.Interventions,
		validate:      newValidator(),
		cfg:           cfg,
		logger:        logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(30 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {

		r.Get("/catalog", s.handleGetCatalog)

		// Starting an assessment returns the handle and its token.
		r.Post("/assessments", s.handleStartAssessment)

		// Wizard routes require the X-Assessment-Token issued at start.
		r.Route("/assessments/{handle}", func(r chi.Router) {
			r.Use(s.requireAssessmentToken)
			r.Get("/", s.handleGetStep)
			r.Delete("/", s.handleCancel)
			r.Post("/toggle", s.handleToggle)
			r.Put("/notes", s.handleSetNotes)
			r.Put("/confidence", s.handleSetConfidence)
			r.Post("/next", s.handleNext)
			r.Post("/previous", s.handlePrevious)
			r.Post("/complete", s.handleComplete)
		})

		// Persisted history.
		r.Get("/records/{assessmentID}", s.handleGetRecord)
		r.Get("/students/{studentID}/assessments", s.handleListStudentRecords)

		// Intervention tracker.
		r.Get("/interventions", s.handleListInterventions)
		r.Post("/interventions", s.handleCreateIntervention)
		r.Get("/interventions/{interventionID}", s.handleGetIntervention)
		r.Patch("/interventions/{interventionID}/progress", s.handleUpdateProgress)
		r.Post("/interventions/{interventionID}/complete", s.handleCompleteIntervention)
	})

	return r
}
