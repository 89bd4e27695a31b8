package finance

import (
	"sort"

	"github.com/shopspring/decimal"

	"contaae/internal/core"
)

// AlertLevel classifies how far a category is into its budget.
type AlertLevel string

const (
	NearLimit AlertLevel = "near_limit"
	Exceeded  AlertLevel = "exceeded"
)

// Alert thresholds, as percentages of the planned expense.
const (
	alertThresholdPct = 80
	fullBudgetPct     = 100
)

// Realized is the income and expense actually recorded for a category.
type Realized struct {
	Income  core.Money
	Expense core.Money
}

// Alert flags a category whose realized spend reached 80% of its plan.
type Alert struct {
	CategoryID   string
	CategoryName string
	Year         int
	Month        int
	Planned      core.Money
	Realized     core.Money
	Ratio        decimal.Decimal
	Level        AlertLevel
	Over         core.Money // realized - planned, exceeded alerts only
}

// EvaluateBudgets compares realized expense per category with the planned
// expense and returns the categories at or above the 80% threshold, worst first.
func EvaluateBudgets(budgets []core.CategoryBudget, realized map[string]Realized) []Alert {
	var alerts []Alert
	for _, b := range budgets {
		planned := b.PlannedExpense.Cents
		if planned <= 0 {
			continue
		}
		r, ok := realized[b.CategoryID]
		if !ok {
			continue
		}
		spent := r.Expense.Cents
		if spent*fullBudgetPct < planned*alertThresholdPct {
			continue
		}
		a := Alert{
			CategoryID:   b.CategoryID,
			CategoryName: b.CategoryName,
			Year:         b.Year,
			Month:        b.Month,
			Planned:      b.PlannedExpense,
			Realized:     r.Expense,
			Ratio:        decimal.NewFromInt(spent).DivRound(decimal.NewFromInt(planned), 4),
			Level:        NearLimit,
		}
		if spent > planned {
			a.Level = Exceeded
			a.Over = core.Money{Cents: spent - planned}
		}
		alerts = append(alerts, a)
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if c := alerts[i].Ratio.Cmp(alerts[j].Ratio); c != 0 {
			return c > 0
		}
		return alerts[i].CategoryID < alerts[j].CategoryID
	})
	return alerts
}

// RealizedByCategory sums the entries of one calendar month per category.
func RealizedByCategory(entries []core.LedgerEntry, year, month int) map[string]Realized {
	out := make(map[string]Realized)
	for _, e := range entries {
		if e.Date.IsZero() || e.Date.Year() != year || e.Date.Month() != month {
			continue
		}
		r := out[e.Category()]
		switch e.Direction {
		case core.Income:
			r.Income = r.Income.Add(e.Amount)
		case core.Expense:
			r.Expense = r.Expense.Add(e.Amount)
		default:
			continue
		}
		out[e.Category()] = r
	}
	return out
}
