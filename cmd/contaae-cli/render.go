package main

import (
	"fmt"

	"github.com/pterm/pterm"

	"contaae/internal/finance"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func (a *cliApp) printTable(data pterm.TableData) {
	table := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data)
	rendered, err := table.Srender()
	if err != nil {
		a.println(negative("render table: " + err.Error()))
		return
	}
	a.println(rendered)
}

func (a *cliApp) printCashflow(r finance.CashflowReport) {
	a.println(headline(fmt.Sprintf("Cashflow %s to %s (%s)", r.Start, r.End, r.Granularity)))
	data := pterm.TableData{{"Start", "End", "Income", "Expense", "Net", "Balance"}}
	for _, b := range r.Buckets {
		data = append(data, []string{
			b.Start.String(), b.End.String(),
			b.Income.FormatBRL(), b.Expense.FormatBRL(), b.Net.FormatBRL(), b.Cumulative.FormatBRL(),
		})
	}
	a.printTable(data)
	a.println(fmt.Sprintf("Income %s  Expense %s  Final balance %s",
		r.TotalIncome.FormatBRL(), r.TotalExpense.FormatBRL(), signed(r.FinalBalance)))
}

func (a *cliApp) printMonthlyDRE(r finance.DREResult) {
	a.println(headline(fmt.Sprintf("DRE %d-%02d", r.Year, r.Month)))
	a.printTable(pterm.TableData{
		{"Revenue", "Expense", "Result"},
		{r.Revenue.FormatBRL(), r.Expense.FormatBRL(), signed(r.Result)},
	})
}

func (a *cliApp) printYearlyDRE(year int, months [12]finance.DREResult) {
	a.println(headline(fmt.Sprintf("DRE %d", year)))
	data := pterm.TableData{{"Month", "Revenue", "Expense", "Result"}}
	for i, m := range months {
		data = append(data, []string{monthNames[i], m.Revenue.FormatBRL(), m.Expense.FormatBRL(), m.Result.FormatBRL()})
	}
	total := finance.YearTotal(months)
	data = append(data, []string{"Total", total.Revenue.FormatBRL(), total.Expense.FormatBRL(), signed(total.Result)})
	a.printTable(data)
}

func (a *cliApp) printAlerts(year, month int, alerts []finance.Alert) {
	a.println(headline(fmt.Sprintf("Budget alerts %d-%02d", year, month)))
	if len(alerts) == 0 {
		a.println(positive("All categories are within budget"))
		return
	}
	data := pterm.TableData{{"Category", "Planned", "Realized", "Ratio", "Level", "Over"}}
	for _, al := range alerts {
		name := al.CategoryName
		if name == "" {
			name = al.CategoryID
		}
		level := warning(string(al.Level))
		if al.Level == finance.Exceeded {
			level = negative(string(al.Level))
		}
		data = append(data, []string{name, al.Planned.FormatBRL(), al.Realized.FormatBRL(), al.Ratio.StringFixed(2), level, al.Over.FormatBRL()})
	}
	a.printTable(data)
}
