// Package finance holds the pure aggregation and settlement logic: cash-flow
// bucketing, DRE rollups, budget alerts and installment settlement.
//
// Every function reads its arguments and returns freshly allocated values; none
// of them perform I/O or keep state between calls.
package finance

import (
	"fmt"

	"contaae/internal/core"
)

// Granularity is the width of a cash-flow bucket.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

const (
	monthlySpanDays = 90
	weeklySpanDays  = 15
)

// Bucket is one period slice of aggregated cash-flow totals.
type Bucket struct {
	Start      core.Date
	End        core.Date
	Income     core.Money
	Expense    core.Money
	Net        core.Money
	Cumulative core.Money
}

// CashflowReport is the result of Aggregate.
type CashflowReport struct {
	Start        core.Date
	End          core.Date
	Granularity  Granularity
	Buckets      []Bucket
	TotalIncome  core.Money
	TotalExpense core.Money
	FinalBalance core.Money
}

// GranularityFor picks the bucket width from the span between start and end:
// more than 90 days is monthly, more than 15 weekly, otherwise daily.
func GranularityFor(start, end core.Date) Granularity {
	span := start.DaysUntil(end)
	switch {
	case span > monthlySpanDays:
		return Month
	case span > weeklySpanDays:
		return Week
	default:
		return Day
	}
}

// Aggregate buckets entries dated inside [start, end] into a dense,
// chronologically ordered sequence of periods and computes the running balance.
func Aggregate(entries []core.LedgerEntry, start, end core.Date) (CashflowReport, error) {
	if start.IsZero() || end.IsZero() {
		return CashflowReport{}, fmt.Errorf("%w: start and end are required", core.ErrInvalidRange)
	}
	start, end = core.DateOf(start.Time), core.DateOf(end.Time)
	if start.After(end) {
		return CashflowReport{}, fmt.Errorf("%w: start %s is after end %s", core.ErrInvalidRange, start, end)
	}

	g := GranularityFor(start, end)
	report := CashflowReport{
		Start:       start,
		End:         end,
		Granularity: g,
		Buckets:     emptyBuckets(g, start, end),
	}

	for _, e := range entries {
		if e.Date.IsZero() {
			continue
		}
		d := core.DateOf(e.Date.Time)
		if !d.Within(start, end) {
			continue
		}
		b := &report.Buckets[bucketIndex(g, start, d)]
		switch e.Direction {
		case core.Income:
			b.Income = b.Income.Add(e.Amount)
		case core.Expense:
			b.Expense = b.Expense.Add(e.Amount)
		}
	}

	var running core.Money
	for i := range report.Buckets {
		b := &report.Buckets[i]
		b.Net = b.Income.Sub(b.Expense)
		running = running.Add(b.Net)
		b.Cumulative = running
		report.TotalIncome = report.TotalIncome.Add(b.Income)
		report.TotalExpense = report.TotalExpense.Add(b.Expense)
	}
	report.FinalBalance = report.TotalIncome.Sub(report.TotalExpense)
	return report, nil
}

func emptyBuckets(g Granularity, start, end core.Date) []Bucket {
	var out []Bucket
	for p := periodStart(g, start); !p.After(end); p = nextPeriod(g, p) {
		out = append(out, Bucket{Start: p, End: periodEnd(g, p)})
	}
	return out
}

func bucketIndex(g Granularity, start, d core.Date) int {
	switch g {
	case Month:
		return (d.Year()-start.Year())*12 + d.Month() - start.Month()
	case Week:
		return weekStart(start).DaysUntil(weekStart(d)) / 7
	default:
		return start.DaysUntil(d)
	}
}

func periodStart(g Granularity, d core.Date) core.Date {
	switch g {
	case Month:
		return core.NewDate(d.Year(), d.Month(), 1)
	case Week:
		return weekStart(d)
	default:
		return d
	}
}

func periodEnd(g Granularity, p core.Date) core.Date {
	return nextPeriod(g, p).AddDays(-1)
}

func nextPeriod(g Granularity, p core.Date) core.Date {
	switch g {
	case Month:
		return core.NewDate(p.Year(), p.Month()+1, 1)
	case Week:
		return p.AddDays(7)
	default:
		return p.AddDays(1)
	}
}

// weekStart returns the Monday on or before d.
func weekStart(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}
