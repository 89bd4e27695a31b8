// Package http exposes the finance services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"contaae/internal/advisor"
	"contaae/internal/entitlements"
	"contaae/internal/log"
	"contaae/internal/middleware/ratelimit"
	"contaae/internal/middleware/security"
	"contaae/internal/middleware/trace"
	"contaae/internal/ports"
	"contaae/internal/services"
)

// PrincipalFunc resolves who is calling. Authentication itself happens
// upstream; this only turns the request into an entitlement set.
type PrincipalFunc func(*http.Request) (entitlements.Principal, error)

// Deps are the collaborators the API serves. Advisor and Ready are optional.
type Deps struct {
	Reports     *services.ReportService
	Ledger      *services.LedgerService
	Settlements *services.SettlementService
	Budgets     ports.BudgetWriter
	Recurring   ports.RecurringStore
	Advisor     advisor.Advisor
	Principal   PrincipalFunc
	Ready       func(context.Context) error

	Logger             *log.Logger
	RateLimitPerMinute int
	AllowedOrigins     []string
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.FromContext(context.Background())
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: security.NewDetector(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(deps.Logger, s.detector.ClientIP)
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.detector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit))
		api.Use(s.withPrincipal)

		api.Get("/entitlements", s.handleEntitlements)

		api.With(s.require(entitlements.Ledger)).Post("/ledger/entries", s.handleRecordEntry)

		api.Route("/reports", func(rep chi.Router) {
			rep.Use(s.require(entitlements.Reports))
			rep.Get("/cashflow", s.handleCashflow)
			rep.Get("/dre", s.handleDRE)
		})

		api.Route("/budgets", func(b chi.Router) {
			b.Use(s.require(entitlements.Budgeting))
			b.Get("/alerts", s.handleBudgetAlerts)
			b.Post("/", s.handleUpsertBudget)
		})

		api.Route("/installments", func(in chi.Router) {
			in.Use(s.requireAny(entitlements.Receivables, entitlements.Payables))
			in.Post("/", s.handleCreateSeries)
			in.Post("/{seriesID}/{sequence}/settle", s.handleSettle)
		})

		api.With(s.require(entitlements.RecurringBilling)).Post("/recurring", s.handleAddRecurring)
		api.With(s.require(entitlements.AIAdvisor)).Post("/advisor/chat", s.handleAdvisorChat)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, r, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	writeMessage(w, r, http.StatusTooManyRequests, "too many requests, try again shortly")
}
