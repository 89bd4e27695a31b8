package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"contaae/internal/advisor"
	"contaae/internal/cli"
	"contaae/internal/entitlements"
	apphttp "contaae/internal/http"
	"contaae/internal/log"
	"contaae/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	store, closeStore, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	publisher, closePublisher, err := cli.ConnectPublisher(logger, cfg)
	if err != nil {
		// the API keeps working without events; the worker just won't see them
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		publisher, closePublisher = nil, func() {}
	}
	defer closePublisher()

	principal, err := cli.ResolvePrincipal(cfg)
	if err != nil {
		logger.Error("Failed to resolve plan", log.FieldError, err, log.FieldPlan, cfg.Plan)
		os.Exit(1)
	}
	logger.Info("Resolved plan", log.FieldPlan, principal.Plan, "capabilities", principal.Capabilities.Enabled())

	reports, cacheManager := cli.NewReports(store, cfg.ReportCacheTTL)
	defer cacheManager.Stop()

	ledger := services.NewLedgerService(store, reports, publisher)
	settlements := services.NewSettlementService(store, ledger, publisher)

	var adv advisor.Advisor
	if cfg.AdvisorURL != "" {
		adv = advisor.NewClient(cfg.AdvisorURL, cfg.AdvisorToken)
		logger.Info("AI advisor enabled", "url", cfg.AdvisorURL)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Reports:     reports,
		Ledger:      ledger,
		Settlements: settlements,
		Budgets:     store,
		Recurring:   store,
		Advisor:     adv,
		Principal: func(*http.Request) (entitlements.Principal, error) {
			return principal, nil
		},
		Ready:              cli.ReadyCheck(store),
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     allowedOrigins(os.Getenv("ALLOWED_ORIGINS")),
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting contaae server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// allowedOrigins splits ALLOWED_ORIGINS; empty means any origin.
func allowedOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
