package finance

import (
	"testing"

	"github.com/shopspring/decimal"

	"contaae/internal/core"
)

func TestEvaluateBudgets_Thresholds(t *testing.T) {
	tests := []struct {
		name      string
		planned   int64
		spent     int64
		wantAlert bool
		wantLevel AlertLevel
		wantRatio string
	}{
		{"below threshold", 100000, 79900, false, "", ""},
		{"exactly 80%", 100000, 80000, true, NearLimit, "0.8"},
		{"exactly 100%", 100000, 100000, true, NearLimit, "1"},
		{"exceeded", 100000, 120000, true, Exceeded, "1.2"},
		{"no plan", 0, 50000, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets := []core.CategoryBudget{{
				CategoryID:     "ops",
				Year:           2024,
				Month:          3,
				PlannedExpense: core.Money{Cents: tt.planned},
			}}
			realized := map[string]Realized{"ops": {Expense: core.Money{Cents: tt.spent}}}

			got := EvaluateBudgets(budgets, realized)
			if !tt.wantAlert {
				if len(got) != 0 {
					t.Errorf("EvaluateBudgets() = %+v, want no alerts", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("len = %d, want 1", len(got))
			}
			if got[0].Level != tt.wantLevel {
				t.Errorf("Level = %s, want %s", got[0].Level, tt.wantLevel)
			}
			if !got[0].Ratio.Equal(decimal.RequireFromString(tt.wantRatio)) {
				t.Errorf("Ratio = %s, want %s", got[0].Ratio, tt.wantRatio)
			}
		})
	}
}

func TestEvaluateBudgets_OverAndOrder(t *testing.T) {
	budgets := []core.CategoryBudget{
		{CategoryID: "b", Year: 2024, Month: 3, PlannedExpense: core.Money{Cents: 1000}},
		{CategoryID: "a", Year: 2024, Month: 3, PlannedExpense: core.Money{Cents: 1000}},
		{CategoryID: "c", Year: 2024, Month: 3, PlannedExpense: core.Money{Cents: 1000}},
		{CategoryID: "missing", Year: 2024, Month: 3, PlannedExpense: core.Money{Cents: 1000}},
	}
	realized := map[string]Realized{
		"a": {Expense: core.Money{Cents: 900}},
		"b": {Expense: core.Money{Cents: 900}},
		"c": {Expense: core.Money{Cents: 1500}},
	}

	got := EvaluateBudgets(budgets, realized)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	order := []string{got[0].CategoryID, got[1].CategoryID, got[2].CategoryID}
	if order[0] != "c" || order[1] != "a" || order[2] != "b" {
		t.Errorf("order = %v, want [c a b]", order)
	}
	if got[0].Over.Cents != 500 {
		t.Errorf("Over = %d, want 500", got[0].Over.Cents)
	}
	if !got[1].Over.IsZero() {
		t.Errorf("near-limit alert has Over = %d", got[1].Over.Cents)
	}
}

func TestRealizedByCategory(t *testing.T) {
	entries := []core.LedgerEntry{
		entry(core.Expense, 100, core.NewDate(2024, 3, 1), "ops"),
		entry(core.Expense, 250, core.NewDate(2024, 3, 31), "ops"),
		entry(core.Income, 900, core.NewDate(2024, 3, 15), "ops"),
		entry(core.Expense, 40, core.NewDate(2024, 3, 2), ""),
		entry(core.Expense, 9999, core.NewDate(2024, 4, 1), "ops"),
	}
	got := RealizedByCategory(entries, 2024, 3)

	if ops := got["ops"]; ops.Expense.Cents != 350 || ops.Income.Cents != 900 {
		t.Errorf("ops = %+v, want expense 350 income 900", ops)
	}
	if u := got[core.Uncategorized]; u.Expense.Cents != 40 {
		t.Errorf("uncategorized expense = %d, want 40", u.Expense.Cents)
	}
}
