package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"contaae/internal/core"
	"contaae/internal/entitlements"
	"contaae/internal/finance"
	"contaae/internal/services"
)

type createSeriesRequest struct {
	SeriesID    string      `json:"series_id"`
	Kind        string      `json:"kind"`
	Description string      `json:"description"`
	Total       amountField `json:"total"`
	Count       int         `json:"count"`
	FirstDue    string      `json:"first_due"`
	Every       string      `json:"every"`
}

var errKindDenied = errors.New("installment kind not in plan")

var kindCapability = map[core.InstallmentKind]entitlements.Capability{
	core.Receivable: entitlements.Receivables,
	core.Payable:    entitlements.Payables,
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, r *http.Request) {
	var req createSeriesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	kind := core.InstallmentKind(sanitizeInput(req.Kind))
	if !kind.Valid() {
		writeMessage(w, r, http.StatusUnprocessableEntity, "kind must be receivable or payable")
		return
	}
	if p, _ := principalFrom(r.Context()); !p.Allows(kindCapability[kind]) {
		forbidden(w, r, kindCapability[kind])
		return
	}

	total, err := req.Total.Money()
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	if req.Count < 1 || req.Count > 360 {
		writeMessage(w, r, http.StatusUnprocessableEntity, "count must be between 1 and 360")
		return
	}
	firstDue, err := core.ParseDate(req.FirstDue)
	if err != nil {
		writeInputError(w, r, err)
		return
	}
	every := core.RepetitionTypes(sanitizeInput(req.Every))
	if every == "" {
		every = core.Monthly
	}
	if _, err := finance.DueDate(firstDue, every, 0); err != nil {
		writeMessage(w, r, http.StatusUnprocessableEntity, "every must be daily, weekly, monthly or yearly")
		return
	}

	series, err := s.deps.Settlements.CreateSeries(r.Context(), finance.SeriesSpec{
		SeriesID:    sanitizeInput(req.SeriesID),
		Kind:        kind,
		Description: sanitizeInput(req.Description),
		Total:       total,
		Count:       req.Count,
		FirstDue:    firstDue,
		Every:       every,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]any{
		"series_id":    series[0].SeriesID,
		"installments": toInstallmentsJSON(series),
	})
}

type settleRequest struct {
	AmountPaid amountField `json:"amount_paid"`
	PaidOn     string      `json:"paid_on"`
	Strategy   string      `json:"strategy"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	seriesID := chi.URLParam(r, "seriesID")
	sequence, err := strconv.Atoi(chi.URLParam(r, "sequence"))
	if err != nil || sequence < 1 {
		writeError(w, r, fmt.Errorf("%w: %q", core.ErrInvalidSequence, chi.URLParam(r, "sequence")))
		return
	}

	var req settleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := req.AmountPaid.Money()
	if err != nil {
		writeMessage(w, r, http.StatusUnprocessableEntity, "payment amount must be positive")
		return
	}
	paidOn := core.DateOf(s.now())
	if req.PaidOn != "" {
		if paidOn, err = core.ParseDate(req.PaidOn); err != nil {
			writeError(w, r, err)
			return
		}
	}
	strategy := finance.Strategy(sanitizeInput(req.Strategy))
	if strategy == "" {
		strategy = finance.DeductNext
	}

	p, _ := principalFrom(r.Context())
	var denied entitlements.Capability
	res, err := s.deps.Settlements.Settle(r.Context(), services.SettleRequest{
		SeriesID:   seriesID,
		Sequence:   sequence,
		AmountPaid: amount,
		PaidOn:     paidOn,
		Strategy:   strategy,
		Authorize: func(kind core.InstallmentKind) error {
			if c := kindCapability[kind]; !p.Allows(c) {
				denied = c
				return errKindDenied
			}
			return nil
		},
	})
	if errors.Is(err, errKindDenied) {
		forbidden(w, r, denied)
		return
	}
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			writeMessage(w, r, http.StatusUnprocessableEntity, "payment amount must be positive")
			return
		}
		writeError(w, r, err)
		return
	}

	out := settlementJSON{
		Settled:    toInstallmentJSON(res.Settled),
		Adjusted:   toInstallmentsJSON(res.Adjusted),
		Difference: money(res.Difference),
		Residual:   money(res.Residual),
	}
	if err := res.ResidualErr(); err != nil {
		out.Warning = fmt.Sprintf("%s could not be absorbed by later installments", res.Residual.FormatBRL())
	}
	render.JSON(w, r, out)
}
