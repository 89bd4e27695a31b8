// Package cli provides the bootstrap shared by the contaae binaries:
// environment loading, logging, store selection and optional integrations.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contaae/internal/amqp"
	"contaae/internal/backend"
	"contaae/internal/cache"
	"contaae/internal/config"
	"contaae/internal/entitlements"
	"contaae/internal/finance"
	"contaae/internal/log"
	"contaae/internal/ports"
	"contaae/internal/services"
	"contaae/internal/sheets"
	"contaae/internal/sheets/google"
)

// dreCacheSize bounds the number of cached years.
const dreCacheSize = 16

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is fine in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore creates the backend selected by DATA_BACKEND. The returned
// cleanup is always safe to call.
func OpenStore(ctx context.Context, logger *log.Logger, cfg *config.Config) (ports.Store, func(), error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, func() {}, err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, func() {}, err
	}
	cleanup := func() {
		if result.Cleanup == nil {
			return
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Failed to close store", log.FieldError, err)
		}
	}
	return result.Store, cleanup, nil
}

// ReadyCheck pings stores that hold a connection. In-memory stores are always ready.
func ReadyCheck(store ports.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		if p, ok := store.(backend.Pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}

// NewReports builds the report service over an LRU cache of yearly DREs.
// The returned manager sweeps expired years until Stop is called.
func NewReports(store ports.Store, ttl time.Duration) (*services.ReportService, *cache.Manager) {
	dreCache := cache.NewLRUCache[[12]finance.DREResult](dreCacheSize, ttl)
	manager := cache.NewManager()
	manager.Register(dreCache)
	if ttl > 0 {
		manager.StartCleanup(ttl)
	}
	return services.NewReportService(store, store, dreCache), manager
}

// ConnectPublisher dials the broker when AMQP_URL is set. A nil Publisher
// means events are not published.
func ConnectPublisher(logger *log.Logger, cfg *config.Config) (services.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, finance events will not be published")
		return nil, func() {}, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to AMQP: %w", err)
	}
	logger.Info("Connected to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
	}, nil
}

// NewExporter returns the Google Sheets exporter, or nil when no
// spreadsheet is configured.
func NewExporter(ctx context.Context, cfg *config.Config) (sheets.ReportExporter, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	client, err := google.New(ctx, google.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ResolvePrincipal turns the configured PLAN into the principal every
// request runs as. PLAN=admin yields a super admin.
func ResolvePrincipal(cfg *config.Config) (entitlements.Principal, error) {
	catalog := entitlements.DefaultCatalog()
	if cfg.PlanCatalogFile != "" {
		loaded, err := entitlements.LoadCatalog(cfg.PlanCatalogFile)
		if err != nil {
			return entitlements.Principal{}, err
		}
		catalog = loaded
	}

	plan := strings.ToLower(strings.TrimSpace(cfg.Plan))
	if plan == "admin" {
		return entitlements.Principal{UserID: "owner", Plan: plan, SuperAdmin: true, Capabilities: entitlements.All()}, nil
	}
	caps, err := catalog.Resolve(plan, nil)
	if err != nil {
		return entitlements.Principal{}, err
	}
	return entitlements.Principal{UserID: "owner", Plan: plan, Capabilities: caps}, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// The returned context is cancelled after cleanup ran on SIGINT or SIGTERM;
// done is closed once shutdown finished or timed out.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func()) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup()
			}
			close(finished)
		}()

		cancel()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-time.After(timeout):
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and shutdown finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
