// Package sheets declares the spreadsheet export port.
package sheets

import (
	"context"

	"contaae/internal/finance"
)

// Ports for outbound adapters.
type (
	// ReportExporter writes finished reports to a spreadsheet. Each export
	// replaces the previous content of its sheet and returns the written range.
	ReportExporter interface {
		ExportDRE(ctx context.Context, year int, months [12]finance.DREResult) (rangeRef string, err error)
		ExportCashflow(ctx context.Context, report finance.CashflowReport) (rangeRef string, err error)
		ExportAlerts(ctx context.Context, year, month int, alerts []finance.Alert) (rangeRef string, err error)
	}
)
