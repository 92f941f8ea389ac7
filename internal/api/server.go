package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellarworks/cellar-intel/infrastructure/logging"
	"github.com/cellarworks/cellar-intel/infrastructure/metrics"
	"github.com/cellarworks/cellar-intel/infrastructure/middleware"
	"github.com/cellarworks/cellar-intel/internal/broadcaster"
	"github.com/cellarworks/cellar-intel/internal/dispatcher"
	"github.com/cellarworks/cellar-intel/internal/learning"
	"github.com/cellarworks/cellar-intel/internal/ledger"
	"github.com/cellarworks/cellar-intel/internal/observability"
	"github.com/cellarworks/cellar-intel/internal/pairing"
	"github.com/cellarworks/cellar-intel/internal/persistence"
)

// Server wires every CORE subsystem into a chi router. It holds no
// business logic of its own.
type Server struct {
	wines          *persistence.WineRepo
	ledgerRepo     *persistence.LedgerRepo
	pairingRepo    *persistence.PairingRepo
	experimentRepo *persistence.ExperimentRepo

	ledger        *ledger.Ledger
	pairingEngine *pairing.Engine
	experiments   *learning.ExperimentService
	analyzer      *learning.Analyzer
	tools         *dispatcher.Dispatcher
	realtime      *broadcaster.Hub
	rum           *observability.Buffer

	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewServer constructs a Server. Every dependency must be non-nil except
// where noted on the individual subsystem's own constructor.
func NewServer(
	wines *persistence.WineRepo,
	ledgerRepo *persistence.LedgerRepo,
	pairingRepo *persistence.PairingRepo,
	experimentRepo *persistence.ExperimentRepo,
	ledg *ledger.Ledger,
	pairingEngine *pairing.Engine,
	experiments *learning.ExperimentService,
	analyzer *learning.Analyzer,
	tools *dispatcher.Dispatcher,
	realtime *broadcaster.Hub,
	rum *observability.Buffer,
	m *metrics.Metrics,
) *Server {
	return &Server{
		wines:          wines,
		ledgerRepo:     ledgerRepo,
		pairingRepo:    pairingRepo,
		experimentRepo: experimentRepo,
		ledger:         ledg,
		pairingEngine:  pairingEngine,
		experiments:    experiments,
		analyzer:       analyzer,
		tools:          tools,
		realtime:       realtime,
		rum:            rum,
		metrics:        m,
		logger:         logging.NewFromEnv("cellar-intel-api"),
	}
}

// Routes builds the full chi router, including the ambient middleware
// stack (recovery, tracing, logging, metrics, CORS, security headers).
func (s *Server) Routes(serviceName string, corsCfg *middleware.CORSConfig) http.Handler {
	r := chi.NewRouter()

	recovery := middleware.NewRecoveryMiddleware(s.logger)
	tracing := middleware.NewTracingMiddleware(s.logger)
	cors := middleware.NewCORSMiddleware(corsCfg)
	security := middleware.NewSecurityHeadersMiddleware(middleware.DefaultSecurityHeaders())

	r.Use(recovery.Handler)
	r.Use(tracing.Handler)
	r.Use(middleware.LoggingMiddleware(s.logger))
	r.Use(middleware.MetricsMiddleware(serviceName, s.metrics))
	r.Use(cors.Handler)
	r.Use(security.Handler)

	health := middleware.NewHealthChecker("1.0.0")
	r.Get("/healthz", health.Handler())
	r.Get("/livez", middleware.LivenessHandler())

	r.Route("/wines", func(r chi.Router) {
		r.Get("/", s.listWines)
		r.Post("/", s.createWine)
		r.Get("/{wineID}", s.getWine)
		r.Post("/{wineID}/vintages", s.createVintage)
	})

	r.Route("/vintages", func(r chi.Router) {
		r.Get("/{vintageID}", s.getVintage)
		r.Get("/{vintageID}/stock", s.listStock)
		r.Get("/{vintageID}/ledger", s.listLedgerEntries)
		r.Post("/{vintageID}/consume", s.consume)
		r.Post("/{vintageID}/receive", s.receive)
		r.Post("/{vintageID}/move", s.move)
		r.Post("/{vintageID}/reserve", s.reserve)
		r.Post("/{vintageID}/unreserve", s.unreserve)
	})

	r.Route("/pairings", func(r chi.Router) {
		r.Post("/", s.generatePairings)
		r.Post("/quick", s.quickPairing)
		r.Post("/recommendations/{recommendationID}/feedback", s.submitFeedback)
	})

	r.Route("/experiments", func(r chi.Router) {
		r.Post("/", s.createExperiment)
		r.Get("/{experimentID}", s.getExperiment)
		r.Post("/{experimentID}/transition", s.transitionExperiment)
		r.Get("/{experimentID}/assignment", s.assignVariant)
		r.Post("/{experimentID}/events", s.ingestEvents)
		r.Post("/{experimentID}/analyze", s.analyzeExperiment)
	})

	r.Post("/tools/{name}/call", s.callTool)

	r.Get("/realtime/stream", s.streamEvents)

	r.Route("/rum", func(r chi.Router) {
		r.Post("/events", s.ingestRUM)
		r.Get("/events", s.recentRUM)
		r.Get("/events/{kind}", s.recentRUMByKind)
	})

	return r
}
