package finance

import (
	"sort"

	"contaae/internal/core"
)

// CategoryLine is the revenue or expense of one category inside a DRE period.
type CategoryLine struct {
	CategoryID   string
	CategoryName string
	Direction    core.Direction
	Amount       core.Money
}

// DREResult is the cash-basis income statement of one month.
type DREResult struct {
	Year    int
	Month   int // 1-12; 0 for a yearly total
	Revenue core.Money
	Expense core.Money
	Result  core.Money
	Lines   []CategoryLine
}

// Monthly sums the entries dated inside the given calendar month.
func Monthly(entries []core.LedgerEntry, month, year int) DREResult {
	r := DREResult{Year: year, Month: month}
	lines := make(map[lineKey]*CategoryLine)
	for _, e := range entries {
		if e.Date.IsZero() || e.Date.Year() != year || e.Date.Month() != month {
			continue
		}
		switch e.Direction {
		case core.Income:
			r.Revenue = r.Revenue.Add(e.Amount)
		case core.Expense:
			r.Expense = r.Expense.Add(e.Amount)
		default:
			continue
		}
		key := lineKey{category: e.Category(), direction: e.Direction}
		line, ok := lines[key]
		if !ok {
			line = &CategoryLine{CategoryID: key.category, CategoryName: e.CategoryName, Direction: e.Direction}
			lines[key] = line
		}
		if line.CategoryName == "" {
			line.CategoryName = e.CategoryName
		}
		line.Amount = line.Amount.Add(e.Amount)
	}
	r.Result = r.Revenue.Sub(r.Expense)
	r.Lines = sortedLines(lines)
	return r
}

// Yearly returns the twelve monthly results of year, January first.
func Yearly(entries []core.LedgerEntry, year int) [12]DREResult {
	var out [12]DREResult
	byMonth := make([][]core.LedgerEntry, 12)
	for _, e := range entries {
		if e.Date.IsZero() || e.Date.Year() != year {
			continue
		}
		m := e.Date.Month() - 1
		byMonth[m] = append(byMonth[m], e)
	}
	for i := range out {
		out[i] = Monthly(byMonth[i], i+1, year)
	}
	return out
}

// YearTotal sums twelve monthly results into a single yearly result.
func YearTotal(months [12]DREResult) DREResult {
	total := DREResult{Year: months[0].Year}
	lines := make(map[lineKey]*CategoryLine)
	for _, m := range months {
		total.Revenue = total.Revenue.Add(m.Revenue)
		total.Expense = total.Expense.Add(m.Expense)
		for _, l := range m.Lines {
			key := lineKey{category: l.CategoryID, direction: l.Direction}
			acc, ok := lines[key]
			if !ok {
				cp := l
				cp.Amount = core.Money{}
				acc = &cp
				lines[key] = acc
			}
			acc.Amount = acc.Amount.Add(l.Amount)
		}
	}
	total.Result = total.Revenue.Sub(total.Expense)
	total.Lines = sortedLines(lines)
	return total
}

type lineKey struct {
	category  string
	direction core.Direction
}

func sortedLines(lines map[lineKey]*CategoryLine) []CategoryLine {
	out := make([]CategoryLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Direction != out[j].Direction {
			return out[i].Direction == core.Income
		}
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}
