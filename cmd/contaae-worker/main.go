package main

import (
	"context"
	"errors"
	"os"
	"time"

	"contaae/internal/amqp"
	"contaae/internal/cli"
	"contaae/internal/log"
	"contaae/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting contaae-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the event worker")
		os.Exit(1)
	}

	store, closeStore, err := cli.OpenStore(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer closeStore()

	reports, cacheManager := cli.NewReports(store, cfg.ReportCacheTTL)
	defer cacheManager.Stop()

	exporter, err := cli.NewExporter(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets exporter", log.FieldError, err)
		os.Exit(1)
	}
	if exporter == nil {
		logger.Info("Google Sheets not configured, reports will only be logged")
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		if err := consumer.Close(); err != nil {
			logger.Error("Failed to close AMQP client", log.FieldError, err)
		}
	})

	w := worker.NewEventWorker(reports, exporter)

	// catch up on events missed while the worker was down
	if err := w.ExportYear(ctx, time.Now().Year()); err != nil {
		logger.Error("Initial DRE export failed", log.FieldError, err)
	}

	logger.Info("Consuming finance events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	if err := consumer.Consume(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("contaae-worker stopped")
}
