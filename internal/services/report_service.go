// Package services orchestrates the stores, the pure finance functions, the
// report cache and event publishing.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"contaae/internal/cache"
	"contaae/internal/core"
	"contaae/internal/finance"
	"contaae/internal/log"
	"contaae/internal/ports"
)

// ReportService fetches ledger snapshots and feeds them to the aggregators.
type ReportService struct {
	ledger  ports.LedgerReader
	budgets ports.BudgetReader
	dre     cache.Cache[[12]finance.DREResult] // nil disables caching
}

func NewReportService(ledger ports.LedgerReader, budgets ports.BudgetReader, dreCache cache.Cache[[12]finance.DREResult]) *ReportService {
	return &ReportService{ledger: ledger, budgets: budgets, dre: dreCache}
}

// Cashflow buckets the entries dated inside [start, end].
func (s *ReportService) Cashflow(ctx context.Context, start, end core.Date) (finance.CashflowReport, error) {
	if start.After(end) {
		return finance.CashflowReport{}, fmt.Errorf("%w: %s after %s", core.ErrInvalidRange, start, end)
	}
	entries, err := s.ledger.ListEntries(ctx, start, end)
	if err != nil {
		return finance.CashflowReport{}, fmt.Errorf("list entries: %w", err)
	}
	report, err := finance.Aggregate(entries, start, end)
	if err != nil {
		return finance.CashflowReport{}, err
	}
	slog.DebugContext(ctx, "Cash flow aggregated",
		"start", start.String(),
		"end", end.String(),
		log.FieldGranularity, report.Granularity,
		log.FieldBuckets, len(report.Buckets))
	return report, nil
}

// YearlyDRE returns the twelve monthly statements of year, January first.
func (s *ReportService) YearlyDRE(ctx context.Context, year int) ([12]finance.DREResult, error) {
	key := dreKey(year)
	if s.dre != nil {
		if months, ok := s.dre.Get(key); ok {
			return months, nil
		}
	}

	entries, err := s.ledger.ListEntries(ctx, core.NewDate(year, 1, 1), core.NewDate(year, 12, 31))
	if err != nil {
		return [12]finance.DREResult{}, fmt.Errorf("list entries: %w", err)
	}
	months := finance.Yearly(entries, year)
	if s.dre != nil {
		s.dre.Set(key, months)
	}
	return months, nil
}

// MonthlyDRE returns the statement of one month, served from the yearly rollup.
func (s *ReportService) MonthlyDRE(ctx context.Context, year, month int) (finance.DREResult, error) {
	if month < 1 || month > 12 {
		return finance.DREResult{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	months, err := s.YearlyDRE(ctx, year)
	if err != nil {
		return finance.DREResult{}, err
	}
	return months[month-1], nil
}

// BudgetAlerts evaluates the budgets of one month against realized expense.
func (s *ReportService) BudgetAlerts(ctx context.Context, year, month int) ([]finance.Alert, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	start := core.NewDate(year, month, 1)
	end := start.AddDays(start.Time.AddDate(0, 1, -1).Day() - 1)

	var (
		budgets []core.CategoryBudget
		entries []core.LedgerEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = s.budgets.ListBudgets(gctx, year, month)
		if err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		entries, err = s.ledger.ListEntries(gctx, start, end)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return finance.EvaluateBudgets(budgets, finance.RealizedByCategory(entries, year, month)), nil
}

// Invalidate drops cached reports of year.
func (s *ReportService) Invalidate(year int) {
	if s.dre == nil {
		return
	}
	s.dre.DeletePrefix(dreKey(year))
}

func dreKey(year int) string {
	return fmt.Sprintf("dre:%04d", year)
}
