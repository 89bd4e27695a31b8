package google

import (
	"contaae/internal/core"
	"contaae/internal/finance"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// amount renders money as a number the sheet can sum.
func amount(m core.Money) any {
	return m.Decimal().InexactFloat64()
}

// dreRows lays out one row per month plus a year total.
func dreRows(months [12]finance.DREResult) [][]any {
	rows := [][]any{{"Month", "Revenue", "Expense", "Result"}}
	for i, m := range months {
		rows = append(rows, []any{monthNames[i], amount(m.Revenue), amount(m.Expense), amount(m.Result)})
	}
	total := finance.YearTotal(months)
	rows = append(rows, []any{"Total", amount(total.Revenue), amount(total.Expense), amount(total.Result)})
	return rows
}

func cashflowRows(r finance.CashflowReport) [][]any {
	rows := [][]any{{"Start", "End", "Income", "Expense", "Net", "Cumulative"}}
	for _, b := range r.Buckets {
		rows = append(rows, []any{b.Start.String(), b.End.String(), amount(b.Income), amount(b.Expense), amount(b.Net), amount(b.Cumulative)})
	}
	rows = append(rows, []any{"Total", "", amount(r.TotalIncome), amount(r.TotalExpense), amount(r.FinalBalance), amount(r.FinalBalance)})
	return rows
}

func alertRows(alerts []finance.Alert) [][]any {
	rows := [][]any{{"Category", "Planned", "Realized", "Ratio", "Level", "Over"}}
	for _, a := range alerts {
		name := a.CategoryName
		if name == "" {
			name = a.CategoryID
		}
		rows = append(rows, []any{name, amount(a.Planned), amount(a.Realized), a.Ratio.InexactFloat64(), string(a.Level), amount(a.Over)})
	}
	return rows
}
