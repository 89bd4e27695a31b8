// Package worker reacts to finance events published on the message bus.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contaae/internal/amqp"
	"contaae/internal/core"
	"contaae/internal/finance"
	"contaae/internal/log"
	"contaae/internal/services"
	"contaae/internal/sheets"
)

// EventWorker recomputes derived reports when the ledger or an installment
// series changes and pushes them to the spreadsheet when one is configured.
type EventWorker struct {
	reports  *services.ReportService
	exporter sheets.ReportExporter
}

var _ amqp.Handler = (*EventWorker)(nil)

// NewEventWorker wires the report service. exporter may be nil.
func NewEventWorker(reports *services.ReportService, exporter sheets.ReportExporter) *EventWorker {
	return &EventWorker{reports: reports, exporter: exporter}
}

// HandleLedgerChanged re-evaluates the budgets of the entry's month.
func (w *EventWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"entry_id", msg.EntryID,
		"year", msg.Year,
		"month", msg.Month)

	w.reports.Invalidate(msg.Year)

	alerts, err := w.reports.BudgetAlerts(ctx, msg.Year, msg.Month)
	if err != nil {
		return fmt.Errorf("evaluate budgets: %w", err)
	}
	logAlerts(ctx, alerts)

	if w.exporter == nil {
		return nil
	}
	ref, err := w.exporter.ExportAlerts(ctx, msg.Year, msg.Month, alerts)
	if err != nil {
		return fmt.Errorf("export alerts: %w", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogExport(ctx, "budget alerts", msg.Year, msg.Month, ref)
	return nil
}

// HandleInstallmentSettled warns about unresolved residuals and refreshes the
// yearly DRE of the payment date.
func (w *EventWorker) HandleInstallmentSettled(ctx context.Context, msg *amqp.InstallmentSettledMessage) error {
	if msg.ResidualCents != 0 {
		slog.WarnContext(ctx, "Settlement left an unresolved residual",
			"series_id", msg.SeriesID,
			"sequence", msg.Sequence,
			"strategy", msg.Strategy,
			"residual_cents", msg.ResidualCents)
	}
	if w.exporter == nil {
		return nil
	}

	year := time.Now().Year()
	if paidOn, err := core.ParseDate(msg.PaidOn); err == nil {
		year = paidOn.Year()
	}
	w.reports.Invalidate(year)
	return w.ExportYear(ctx, year)
}

// ExportYear pushes the yearly DRE to the spreadsheet. The worker runs it at
// startup to recover from events missed while it was down.
func (w *EventWorker) ExportYear(ctx context.Context, year int) error {
	if w.exporter == nil {
		return nil
	}
	months, err := w.reports.YearlyDRE(ctx, year)
	if err != nil {
		return fmt.Errorf("build DRE: %w", err)
	}
	ref, err := w.exporter.ExportDRE(ctx, year, months)
	if err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "DRE export failed", err, log.ComponentSheets, log.NewFields().WithPeriod(year, 0))
		return fmt.Errorf("export DRE: %w", err)
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogExport(ctx, "DRE", year, 0, ref)
	return nil
}

func logAlerts(ctx context.Context, alerts []finance.Alert) {
	for _, a := range alerts {
		level := slog.LevelInfo
		if a.Level == finance.Exceeded {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "Budget alert",
			"category", a.CategoryID,
			"level", a.Level,
			"ratio", a.Ratio.String(),
			"planned_cents", a.Planned.Cents,
			"realized_cents", a.Realized.Cents)
	}
}
