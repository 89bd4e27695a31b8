package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"contaae/internal/core"
	"contaae/internal/entitlements"
	"contaae/internal/migration"
	"contaae/internal/sheets"
	"contaae/internal/sheets/pdf"
)

func (a *cliApp) migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-legacy",
		Short: "Import transactions from a legacy JSON export (runs once)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			statePath, _ := cmd.Flags().GetString("state")
			return a.runMigration(cmd.Context(), file, statePath)
		},
	}
	cmd.Flags().String("file", "", "Legacy export file")
	cmd.Flags().String("state", ".contaae-migration.json", "File recording whether the import already ran")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *cliApp) runMigration(ctx context.Context, file, statePath string) error {
	state, err := migration.LoadState(statePath)
	if err != nil {
		return err
	}
	src, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open legacy export: %w", err)
	}
	defer src.Close()

	next, report, err := migration.Run(ctx, src, a.store, state)
	if err != nil {
		return err
	}
	if report.AlreadyMigrated {
		a.println(warning("Legacy data was already imported on " + state.MigratedAt.Format("2006-01-02") + ", nothing to do"))
		return nil
	}
	if err := migration.SaveState(statePath, next); err != nil {
		return err
	}

	a.println(headline("Legacy import complete"))
	a.println(fmt.Sprintf("Imported: %s  Skipped: %d", positive(report.Imported), report.Skipped))
	for _, p := range report.Problems {
		a.println(warning("  - " + p))
	}
	return nil
}

func (a *cliApp) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print cashflow, DRE or budget alerts",
	}

	cashflow := &cobra.Command{
		Use:   "cashflow",
		Short: "Cashflow between two dates (defaults to the current month)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := a.periodFlags(cmd)
			if err != nil {
				return err
			}
			report, err := a.reports.Cashflow(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			a.printCashflow(report)
			return nil
		},
	}
	cashflow.Flags().String("from", "", "First day, YYYY-MM-DD")
	cashflow.Flags().String("to", "", "Last day, YYYY-MM-DD")

	dre := &cobra.Command{
		Use:   "dre",
		Short: "Cash-basis income statement for a year or one month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := a.yearMonthFlags(cmd, true)
			if err != nil {
				return err
			}
			if month != 0 {
				r, err := a.reports.MonthlyDRE(cmd.Context(), year, month)
				if err != nil {
					return err
				}
				a.printMonthlyDRE(r)
				return nil
			}
			months, err := a.reports.YearlyDRE(cmd.Context(), year)
			if err != nil {
				return err
			}
			a.printYearlyDRE(year, months)
			return nil
		},
	}
	addYearMonthFlags(dre)

	alerts := &cobra.Command{
		Use:   "alerts",
		Short: "Budget categories near or over their planned amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			year, month, err := a.yearMonthFlags(cmd, false)
			if err != nil {
				return err
			}
			list, err := a.reports.BudgetAlerts(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			a.printAlerts(year, month, list)
			return nil
		},
	}
	addYearMonthFlags(alerts)

	cmd.AddCommand(cashflow, dre, alerts)
	return cmd
}

func (a *cliApp) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "export [dre|cashflow|alerts]",
		Short:     "Write a report to Google Sheets or a PDF file",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"dre", "cashflow", "alerts"},
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, err := a.exporter(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			var ref string
			switch args[0] {
			case "dre":
				year, _, err := a.yearMonthFlags(cmd, true)
				if err != nil {
					return err
				}
				months, err := a.reports.YearlyDRE(ctx, year)
				if err != nil {
					return err
				}
				ref, err = exporter.ExportDRE(ctx, year, months)
				if err != nil {
					return err
				}
			case "cashflow":
				start, end, err := a.periodFlags(cmd)
				if err != nil {
					return err
				}
				report, err := a.reports.Cashflow(ctx, start, end)
				if err != nil {
					return err
				}
				ref, err = exporter.ExportCashflow(ctx, report)
				if err != nil {
					return err
				}
			case "alerts":
				year, month, err := a.yearMonthFlags(cmd, false)
				if err != nil {
					return err
				}
				list, err := a.reports.BudgetAlerts(ctx, year, month)
				if err != nil {
					return err
				}
				ref, err = exporter.ExportAlerts(ctx, year, month, list)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown report %q: use dre, cashflow or alerts", args[0])
			}
			a.println(positive("Exported"), ref)
			return nil
		},
	}
	addYearMonthFlags(cmd)
	cmd.Flags().String("from", "", "First day of a cashflow export, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Last day of a cashflow export, YYYY-MM-DD")
	cmd.Flags().String("format", "pdf", "Destination: pdf or sheets")
	cmd.Flags().String("dir", ".", "Output directory for PDF files")
	return cmd
}

func (a *cliApp) exporter(cmd *cobra.Command) (sheets.ReportExporter, error) {
	format, _ := cmd.Flags().GetString("format")
	switch strings.ToLower(format) {
	case "pdf":
		dir, _ := cmd.Flags().GetString("dir")
		return pdf.New(dir), nil
	case "sheets":
		exp, err := a.newSheetsExporter(cmd.Context(), a.cfg)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			return nil, fmt.Errorf("google sheets is not configured: set GOOGLE_SPREADSHEET_ID and service account credentials")
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported format %q: use pdf or sheets", format)
	}
}

func (a *cliApp) plansCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans and the capabilities they include",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := entitlements.DefaultCatalog()
			if a.cfg.PlanCatalogFile != "" {
				loaded, err := entitlements.LoadCatalog(a.cfg.PlanCatalogFile)
				if err != nil {
					return err
				}
				catalog = loaded
			}
			data := pterm.TableData{{"Plan", "Capabilities"}}
			for _, name := range catalog.Plans() {
				caps, err := catalog.Resolve(name, nil)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(entitlements.AllCapabilities))
				for _, c := range caps.Enabled() {
					names = append(names, string(c))
				}
				data = append(data, []string{name, strings.Join(names, ", ")})
			}
			a.printTable(data)
			return nil
		},
	}
}

func addYearMonthFlags(cmd *cobra.Command) {
	cmd.Flags().Int("year", 0, "Year (defaults to the current year)")
	cmd.Flags().Int("month", 0, "Month 1-12")
}

// yearMonthFlags reads --year and --month. When monthOptional is false a
// missing month means the current one.
func (a *cliApp) yearMonthFlags(cmd *cobra.Command, monthOptional bool) (int, int, error) {
	now := a.now()
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	if year == 0 {
		year = now.Year()
	}
	if year < 1900 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year %d", year)
	}
	if month == 0 && !monthOptional {
		month = int(now.Month())
	}
	if month < 0 || month > 12 {
		return 0, 0, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	return year, month, nil
}

// periodFlags reads --from/--to, defaulting to the current month.
func (a *cliApp) periodFlags(cmd *cobra.Command) (core.Date, core.Date, error) {
	today := core.DateOf(a.now())
	start := core.NewDate(today.Year(), int(today.Month()), 1)
	end := core.NewDate(today.Year(), int(today.Month())+1, 0)

	if raw, _ := cmd.Flags().GetString("from"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		start = d
	}
	if raw, _ := cmd.Flags().GetString("to"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		end = d
	}
	return start, end, nil
}
