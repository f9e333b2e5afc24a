// Package httpserver provides the HTTP API of the research repository
// service: paper submission and review, access-scoped listing, keyword
// search, the field/category taxonomy and the donation webhook.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/nubianresearch/research-repository-service/internal/auth"
	"github.com/nubianresearch/research-repository-service/internal/config"
	"github.com/nubianresearch/research-repository-service/internal/database"
	"github.com/nubianresearch/research-repository-service/internal/events"
	"github.com/nubianresearch/research-repository-service/internal/filestore"
	"github.com/nubianresearch/research-repository-service/internal/observability"
	"github.com/nubianresearch/research-repository-service/internal/repository"
)

// healthChecker reports database health. Satisfied by *database.DB.
type healthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// txRunner executes fn with paper and keyword repositories bound to a single
// transaction, committing on nil and rolling back on error.
type txRunner func(ctx context.Context, fn func(papers repository.PaperRepository, keywords repository.KeywordRepository) error) error

// Server is the HTTP server for the research repository API.
type Server struct {
	papers    repository.PaperRepository
	keywords  repository.KeywordRepository
	taxonomy  repository.TaxonomyRepository
	users     repository.UserRepository
	donations repository.DonationRepository

	db       healthChecker
	runTx    txRunner
	files    filestore.Store
	events   events.Publisher
	verifier *auth.Verifier
	metrics  *observability.Metrics
	validate *validator.Validate
	logger   zerolog.Logger

	development    bool
	maxUploadBytes int64
	paystackSecret string

	router     chi.Router
	httpServer *http.Server
}

// Dependencies bundles everything the server needs.
type Dependencies struct {
	DB       *database.DB
	Files    filestore.Store
	Events   events.Publisher
	Verifier *auth.Verifier
	Metrics  *observability.Metrics
	Logger   zerolog.Logger
}

// NewServer creates an HTTP server wired to pool-backed repositories.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	db := deps.DB

	s := &Server{
		papers:         repository.NewPgPaperRepository(db),
		keywords:       repository.NewPgKeywordRepository(db),
		taxonomy:       repository.NewPgTaxonomyRepository(db),
		users:          repository.NewPgUserRepository(db),
		donations:      repository.NewPgDonationRepository(db),
		db:             db,
		files:          deps.Files,
		events:         deps.Events,
		verifier:       deps.Verifier,
		metrics:        deps.Metrics,
		validate:       validator.New(),
		logger:         deps.Logger.With().Str("component", "http_server").Logger(),
		development:    cfg.Server.Development(),
		maxUploadBytes: cfg.Server.MaxUploadBytes,
		paystackSecret: cfg.Donations.PaystackSecret,
	}

	s.runTx = func(ctx context.Context, fn func(papers repository.PaperRepository, keywords repository.KeywordRepository) error) error {
		return db.WithTransaction(ctx, func(tx pgx.Tx) error {
			return fn(repository.NewPgPaperRepository(tx), repository.NewPgKeywordRepository(tx))
		})
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Server.HTTPAddress(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.principalMiddleware)
	r.Use(s.requestLogger)

	r.Get("/health", s.healthHandler)

	r.Route("/papers", func(r chi.Router) {
		r.Get("/", s.listPapersHandler)
		r.With(s.requireAuth).Post("/", s.createPaperHandler)

		r.Route("/{ref}", func(r chi.Router) {
			r.Get("/", s.getPaperHandler)
			r.With(s.requireAuth).Put("/", s.updatePaperHandler)
			r.With(s.requireAuth).Delete("/", s.deletePaperHandler)
		})
	})

	r.Get("/keywords", s.searchKeywordsHandler)

	r.Route("/fields", func(r chi.Router) {
		r.Get("/", s.listFieldsHandler)
		r.With(s.requireAuth).Post("/", s.createFieldHandler)
		r.With(s.requireAuth).Delete("/{fieldID}", s.deleteFieldHandler)
		r.Get("/{fieldID}/categories", s.listCategoriesHandler)
		r.With(s.requireAuth).Post("/{fieldID}/categories", s.createCategoryHandler)
	})
	r.With(s.requireAuth).Delete("/categories/{categoryID}", s.deleteCategoryHandler)

	r.Post("/donations/webhook", s.donationWebhookHandler)

	return r
}

// Start begins serving HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// healthResponse is the body of the health endpoint.
type healthResponse struct {
	Status        string                `json:"status"`
	Timestamp     time.Time             `json:"timestamp"`
	Authenticated bool                  `json:"authenticated"`
	Role          string                `json:"role"`
	Database      database.HealthStatus `json:"database"`
}

// healthHandler reports service health: database reachability plus whether
// the caller's credentials resolved to a principal. Degraded dependencies
// yield 503 so load balancers rotate the instance out.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	principal := observability.PrincipalFrom(r.Context())
	dbHealth := s.db.Health(r.Context())

	resp := healthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC(),
		Authenticated: principal.Authenticated(),
		Role:          string(principal.Role),
		Database:      dbHealth,
	}

	statusCode := http.StatusOK
	if dbHealth.Status != "healthy" {
		resp.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}
