package main

import (
	"context"
	"os"
	"time"

	"contaae/internal/cli"
	"contaae/internal/core"
	"contaae/internal/log"
	"contaae/internal/services"
)

type jobs struct {
	processor   *services.RecurringProcessor
	settlements *services.SettlementService
	logger      *log.Logger
}

// run books due recurring charges and marks late installments overdue.
func (j jobs) run(ctx context.Context, now time.Time) {
	count, err := j.processor.ProcessDue(ctx, now)
	if err != nil {
		j.logger.Error("Recurring processing failed", log.FieldError, err)
	} else {
		j.logger.Info("Recurring processing complete", "entries_created", count)
	}

	overdue, err := j.settlements.SweepOverdue(ctx, core.DateOf(now))
	if err != nil {
		j.logger.Error("Overdue sweep failed", log.FieldError, err)
	} else if overdue > 0 {
		j.logger.Info("Marked installments overdue", "count", overdue)
	}
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	store, closeStore, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	publisher, closePublisher, err := cli.ConnectPublisher(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		publisher, closePublisher = nil, func() {}
	}
	defer closePublisher()

	reports, cacheManager := cli.NewReports(store, cfg.ReportCacheTTL)
	defer cacheManager.Stop()

	ledger := services.NewLedgerService(store, reports, publisher)
	j := jobs{
		processor:   services.NewRecurringProcessor(store, ledger),
		settlements: services.NewSettlementService(store, ledger, publisher),
		logger:      logger,
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"backend", cfg.DataBackend)

	ticker := time.NewTicker(cfg.RecurringInterval)
	defer ticker.Stop()

	j.run(ctx, time.Now())

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case now := <-ticker.C:
			j.run(ctx, now)
			logger.Info("Next check scheduled", "at", now.Add(cfg.RecurringInterval).Format("15:04:05"))
		}
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("recurring-worker stopped")
}
