package http

import (
	"net/http"

	"github.com/go-chi/render"

	"contaae/internal/core"
	"contaae/internal/finance"
)

func (s *Server) handleCashflow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	defStart, defEnd := monthBounds(s.now())

	start, err := parseDateParam(q, "start", defStart)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDateParam(q, "end", defEnd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.deps.Reports.Cashflow(r.Context(), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, toCashflowJSON(report))
}

// handleDRE returns one month when month is given, otherwise the whole year
// with its total.
func (s *Server) handleDRE(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()
	year, err := parseYear(q, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseMonth(q, now, true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if month != 0 {
		res, err := s.deps.Reports.MonthlyDRE(r.Context(), year, month)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, toDREJSON(res))
		return
	}

	months, err := s.deps.Reports.YearlyDRE(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := yearlyDREJSON{Year: year, Total: toDREJSON(finance.YearTotal(months))}
	for _, m := range months {
		out.Months = append(out.Months, toDREJSON(m))
	}
	render.JSON(w, r, out)
}

func (s *Server) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := s.now()
	year, err := parseYear(q, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := parseMonth(q, now, false)
	if err != nil {
		writeError(w, r, err)
		return
	}

	alerts, err := s.deps.Reports.BudgetAlerts(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"year":   year,
		"month":  month,
		"alerts": toAlertsJSON(alerts),
	})
}

type budgetRequest struct {
	CategoryID     string      `json:"category_id"`
	CategoryName   string      `json:"category_name"`
	Year           int         `json:"year"`
	Month          int         `json:"month"`
	PlannedExpense amountField `json:"planned_expense"`
	PlannedIncome  amountField `json:"planned_income"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Budgets == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "budgets are not available")
		return
	}
	var req budgetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := req.PlannedExpense.OptionalMoney()
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	income, err := req.PlannedIncome.OptionalMoney()
	if err != nil {
		writeInputError(w, r, err)
		return
	}

	b := core.CategoryBudget{
		CategoryID:     sanitizeInput(req.CategoryID),
		CategoryName:   sanitizeInput(req.CategoryName),
		Year:           req.Year,
		Month:          req.Month,
		PlannedExpense: expense,
		PlannedIncome:  income,
	}
	if err := b.Validate(); err != nil {
		writeInputError(w, r, err)
		return
	}
	if err := s.deps.Budgets.UpsertBudget(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]any{
		"category_id":     b.CategoryID,
		"category_name":   b.CategoryName,
		"year":            b.Year,
		"month":           b.Month,
		"planned_expense": money(b.PlannedExpense),
		"planned_income":  money(b.PlannedIncome),
	})
}
