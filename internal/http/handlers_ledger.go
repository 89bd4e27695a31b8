package http

import (
	"net/http"

	"github.com/go-chi/render"

	"contaae/internal/core"
)

type recordEntryRequest struct {
	Direction      string      `json:"direction"`
	Amount         amountField `json:"amount"`
	Date           string      `json:"date"`
	Description    string      `json:"description"`
	CategoryID     string      `json:"category_id"`
	CategoryName   string      `json:"category_name"`
	CounterpartyID string      `json:"counterparty_id"`
	BankAccountID  string      `json:"bank_account_id"`
}

func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	var req recordEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := req.Amount.Money()
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	date := core.DateOf(s.now())
	if req.Date != "" {
		if date, err = core.ParseDate(req.Date); err != nil {
			writeInputError(w, r, err)
			return
		}
	}

	e := core.LedgerEntry{
		Direction:      core.Direction(sanitizeInput(req.Direction)),
		Amount:         amount,
		Date:           date,
		Description:    sanitizeInput(req.Description),
		CategoryID:     sanitizeInput(req.CategoryID),
		CategoryName:   sanitizeInput(req.CategoryName),
		CounterpartyID: sanitizeInput(req.CounterpartyID),
		BankAccountID:  sanitizeInput(req.BankAccountID),
	}
	if err := e.Validate(); err != nil {
		writeInputError(w, r, err)
		return
	}

	saved, err := s.deps.Ledger.RecordEntry(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toEntryJSON(saved))
}

type recurringRequest struct {
	Description    string      `json:"description"`
	Direction      string      `json:"direction"`
	Amount         amountField `json:"amount"`
	CategoryID     string      `json:"category_id"`
	CounterpartyID string      `json:"counterparty_id"`
	StartDate      string      `json:"start_date"`
	EndDate        string      `json:"end_date"`
	Every          string      `json:"every"`
}

func (s *Server) handleAddRecurring(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recurring == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "recurring billing is not available")
		return
	}
	var req recurringRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	amount, err := req.Amount.Money()
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	start, err := core.ParseDate(req.StartDate)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	var end core.Date
	if req.EndDate != "" {
		if end, err = core.ParseDate(req.EndDate); err != nil {
			writeInputError(w, r, err)
			return
		}
	}

	rc := core.RecurringCharge{
		ID:             core.NewID(),
		Description:    sanitizeInput(req.Description),
		Direction:      core.Direction(sanitizeInput(req.Direction)),
		Amount:         amount,
		CategoryID:     sanitizeInput(req.CategoryID),
		CounterpartyID: sanitizeInput(req.CounterpartyID),
		StartDate:      start,
		EndDate:        end,
		Every:          core.RepetitionTypes(sanitizeInput(req.Every)),
	}
	if err := rc.Validate(); err != nil {
		writeInputError(w, r, err)
		return
	}
	if err := s.deps.Recurring.AddRecurring(r.Context(), rc); err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"id":          rc.ID,
		"description": rc.Description,
		"direction":   rc.Direction,
		"amount":      money(rc.Amount),
		"start_date":  rc.StartDate.String(),
		"end_date":    rc.EndDate.String(),
		"every":       rc.Every,
	})
}
