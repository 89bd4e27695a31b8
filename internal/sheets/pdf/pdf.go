// Package pdf renders finance reports as PDF files. It implements the same
// export port as the Google Sheets adapter so the CLI can use either.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"

	"contaae/internal/finance"
	ports "contaae/internal/sheets"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var (
	headerColor    = [3]int{40, 40, 40}
	headerText     = [3]int{255, 255, 255}
	bodyTextColor  = [3]int{50, 50, 50}
	lineColor      = [3]int{200, 200, 200}
	exceededColor  = [3]int{200, 30, 30}
	nearLimitColor = [3]int{200, 130, 0}
)

// Exporter writes one PDF per report into dir and returns its absolute path.
type Exporter struct {
	dir string
	now func() time.Time
}

var _ ports.ReportExporter = (*Exporter)(nil)

func New(dir string) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir, now: time.Now}
}

type table struct {
	title  string
	header []string
	widths []float64
	rows   [][]string
	// colors optionally tints a row's text
	colors map[int][3]int
}

func (e *Exporter) ExportDRE(ctx context.Context, year int, months [12]finance.DREResult) (string, error) {
	t := table{
		title:  fmt.Sprintf("DRE %d", year),
		header: []string{"Month", "Revenue", "Expense", "Result"},
		widths: []float64{40, 50, 50, 50},
	}
	for i, m := range months {
		t.rows = append(t.rows, []string{monthNames[i], m.Revenue.FormatBRL(), m.Expense.FormatBRL(), m.Result.FormatBRL()})
	}
	total := finance.YearTotal(months)
	t.rows = append(t.rows, []string{"Total", total.Revenue.FormatBRL(), total.Expense.FormatBRL(), total.Result.FormatBRL()})
	return e.write(ctx, fmt.Sprintf("dre-%d.pdf", year), t)
}

func (e *Exporter) ExportCashflow(ctx context.Context, report finance.CashflowReport) (string, error) {
	t := table{
		title:  fmt.Sprintf("Cashflow %s to %s (%s)", report.Start, report.End, report.Granularity),
		header: []string{"Start", "End", "Income", "Expense", "Net", "Balance"},
		widths: []float64{25, 25, 35, 35, 35, 35},
	}
	for _, b := range report.Buckets {
		t.rows = append(t.rows, []string{
			b.Start.String(), b.End.String(),
			b.Income.FormatBRL(), b.Expense.FormatBRL(), b.Net.FormatBRL(), b.Cumulative.FormatBRL(),
		})
	}
	t.rows = append(t.rows, []string{"Total", "", report.TotalIncome.FormatBRL(), report.TotalExpense.FormatBRL(), report.FinalBalance.FormatBRL(), report.FinalBalance.FormatBRL()})
	name := fmt.Sprintf("cashflow-%s-%s.pdf", report.Start, report.End)
	return e.write(ctx, name, t)
}

func (e *Exporter) ExportAlerts(ctx context.Context, year, month int, alerts []finance.Alert) (string, error) {
	if month < 1 || month > 12 {
		return "", fmt.Errorf("invalid month: %d", month)
	}
	t := table{
		title:  fmt.Sprintf("Budget alerts %d-%02d", year, month),
		header: []string{"Category", "Planned", "Realized", "Ratio", "Over"},
		widths: []float64{55, 35, 35, 30, 35},
		colors: map[int][3]int{},
	}
	for i, a := range alerts {
		name := a.CategoryName
		if name == "" {
			name = a.CategoryID
		}
		t.rows = append(t.rows, []string{name, a.Planned.FormatBRL(), a.Realized.FormatBRL(), a.Ratio.StringFixed(2), a.Over.FormatBRL()})
		switch a.Level {
		case finance.Exceeded:
			t.colors[i] = exceededColor
		case finance.NearLimit:
			t.colors[i] = nearLimitColor
		}
	}
	return e.write(ctx, fmt.Sprintf("alerts-%d-%02d.pdf", year, month), t)
}

func (e *Exporter) write(ctx context.Context, name string, t table) (string, error) {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(e.dir, name))
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(headerText[0], headerText[1], headerText[2])
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, tr("  "+t.title), "", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated "+e.now().Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
	for i, h := range t.header {
		pdf.CellFormat(t.widths[i], 7, tr(h), "B", 0, align(i), false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for r, row := range t.rows {
		c, tinted := t.colors[r]
		if tinted {
			pdf.SetTextColor(c[0], c[1], c[2])
		}
		for i, cell := range row {
			pdf.CellFormat(t.widths[i], 6, tr(cell), "", 0, align(i), false, 0, "")
		}
		pdf.Ln(-1)
		if tinted {
			pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		}
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Exported report to PDF", "path", path, "rows", len(t.rows))
	return path, nil
}

// align keeps the label column left-aligned and numbers right-aligned.
func align(col int) string {
	if col == 0 {
		return "L"
	}
	return "R"
}
