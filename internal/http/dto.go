package http

import (
	"contaae/internal/core"
	"contaae/internal/finance"
)

type moneyJSON struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func money(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Display: m.FormatBRL()}
}

type entryJSON struct {
	ID             string    `json:"id"`
	Direction      string    `json:"direction"`
	Amount         moneyJSON `json:"amount"`
	Date           string    `json:"date"`
	Description    string    `json:"description,omitempty"`
	CategoryID     string    `json:"category_id,omitempty"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
}

func toEntryJSON(e core.LedgerEntry) entryJSON {
	return entryJSON{
		ID:             e.ID,
		Direction:      string(e.Direction),
		Amount:         money(e.Amount),
		Date:           e.Date.String(),
		Description:    e.Description,
		CategoryID:     e.CategoryID,
		CounterpartyID: e.CounterpartyID,
	}
}

type bucketJSON struct {
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Income     moneyJSON `json:"income"`
	Expense    moneyJSON `json:"expense"`
	Net        moneyJSON `json:"net"`
	Cumulative moneyJSON `json:"cumulative"`
}

type cashflowJSON struct {
	Start        string       `json:"start"`
	End          string       `json:"end"`
	Granularity  string       `json:"granularity"`
	Buckets      []bucketJSON `json:"buckets"`
	TotalIncome  moneyJSON    `json:"total_income"`
	TotalExpense moneyJSON    `json:"total_expense"`
	FinalBalance moneyJSON    `json:"final_balance"`
}

func toCashflowJSON(r finance.CashflowReport) cashflowJSON {
	out := cashflowJSON{
		Start:        r.Start.String(),
		End:          r.End.String(),
		Granularity:  string(r.Granularity),
		Buckets:      make([]bucketJSON, 0, len(r.Buckets)),
		TotalIncome:  money(r.TotalIncome),
		TotalExpense: money(r.TotalExpense),
		FinalBalance: money(r.FinalBalance),
	}
	for _, b := range r.Buckets {
		out.Buckets = append(out.Buckets, bucketJSON{
			Start:      b.Start.String(),
			End:        b.End.String(),
			Income:     money(b.Income),
			Expense:    money(b.Expense),
			Net:        money(b.Net),
			Cumulative: money(b.Cumulative),
		})
	}
	return out
}

type lineJSON struct {
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	Direction    string    `json:"direction"`
	Amount       moneyJSON `json:"amount"`
}

type dreJSON struct {
	Year    int        `json:"year"`
	Month   int        `json:"month,omitempty"`
	Revenue moneyJSON  `json:"revenue"`
	Expense moneyJSON  `json:"expense"`
	Result  moneyJSON  `json:"result"`
	Lines   []lineJSON `json:"lines"`
}

func toDREJSON(d finance.DREResult) dreJSON {
	out := dreJSON{
		Year:    d.Year,
		Month:   d.Month,
		Revenue: money(d.Revenue),
		Expense: money(d.Expense),
		Result:  money(d.Result),
		Lines:   make([]lineJSON, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		out.Lines = append(out.Lines, lineJSON{
			CategoryID:   l.CategoryID,
			CategoryName: l.CategoryName,
			Direction:    string(l.Direction),
			Amount:       money(l.Amount),
		})
	}
	return out
}

type yearlyDREJSON struct {
	Year   int       `json:"year"`
	Months []dreJSON `json:"months"`
	Total  dreJSON   `json:"total"`
}

type alertJSON struct {
	CategoryID   string    `json:"category_id"`
	CategoryName string    `json:"category_name,omitempty"`
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	Planned      moneyJSON `json:"planned"`
	Realized     moneyJSON `json:"realized"`
	Ratio        string    `json:"ratio"`
	Level        string    `json:"level"`
	Over         moneyJSON `json:"over"`
}

func toAlertsJSON(alerts []finance.Alert) []alertJSON {
	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, alertJSON{
			CategoryID:   a.CategoryID,
			CategoryName: a.CategoryName,
			Year:         a.Year,
			Month:        a.Month,
			Planned:      money(a.Planned),
			Realized:     money(a.Realized),
			Ratio:        a.Ratio.StringFixed(4),
			Level:        string(a.Level),
			Over:         money(a.Over),
		})
	}
	return out
}

type installmentJSON struct {
	SeriesID    string    `json:"series_id"`
	Kind        string    `json:"kind"`
	Sequence    int       `json:"sequence"`
	Description string    `json:"description,omitempty"`
	Amount      moneyJSON `json:"amount"`
	DueDate     string    `json:"due_date"`
	Status      string    `json:"status"`
	PaidAmount  moneyJSON `json:"paid_amount"`
	PaidDate    string    `json:"paid_date,omitempty"`
}

func toInstallmentJSON(in core.Installment) installmentJSON {
	out := installmentJSON{
		SeriesID:    in.SeriesID,
		Kind:        string(in.Kind),
		Sequence:    in.Sequence,
		Description: in.Description,
		Amount:      money(in.Amount),
		DueDate:     in.DueDate.String(),
		Status:      string(in.Status),
		PaidAmount:  money(in.PaidAmount),
	}
	if !in.PaidDate.IsZero() {
		out.PaidDate = in.PaidDate.String()
	}
	return out
}

func toInstallmentsJSON(in []core.Installment) []installmentJSON {
	out := make([]installmentJSON, 0, len(in))
	for _, i := range in {
		out = append(out, toInstallmentJSON(i))
	}
	return out
}

type settlementJSON struct {
	Settled    installmentJSON   `json:"settled"`
	Adjusted   []installmentJSON `json:"adjusted"`
	Difference moneyJSON         `json:"difference"`
	Residual   moneyJSON         `json:"residual"`
	Warning    string            `json:"warning,omitempty"`
}
