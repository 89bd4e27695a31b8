package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"contaae/internal/amqp"
	"contaae/internal/core"
	"contaae/internal/finance"
	"contaae/internal/log"
	"contaae/internal/ports"
)

// SettleRequest is a payment against one installment.
type SettleRequest struct {
	SeriesID   string
	Sequence   int
	AmountPaid core.Money
	PaidOn     core.Date
	Strategy   finance.Strategy
	// Authorize, when set, vets the series kind before anything is written.
	Authorize  func(core.InstallmentKind) error
}

// SettlementService loads installment series, settles them and writes the
// changed installments back as one compare-and-set store call.
type SettlementService struct {
	store     ports.InstallmentStore
	ledger    *LedgerService
	publisher Publisher
}

// NewSettlementService wires the installment store. When ledger is set every
// settlement also books the payment as a ledger entry.
func NewSettlementService(store ports.InstallmentStore, ledger *LedgerService, publisher Publisher) *SettlementService {
	return &SettlementService{store: store, ledger: ledger, publisher: publisher}
}

// Settle applies req. An unresolved residual does not fail the call; it is
// returned on the result and logged as a warning.
func (s *SettlementService) Settle(ctx context.Context, req SettleRequest) (finance.SettlementResult, error) {
	series, err := s.store.ListSeries(ctx, req.SeriesID)
	if errors.Is(err, ports.ErrNotFound) {
		return finance.SettlementResult{}, fmt.Errorf("%w: series %s", core.ErrInstallmentNotFound, req.SeriesID)
	}
	if err != nil {
		return finance.SettlementResult{}, fmt.Errorf("load series: %w", err)
	}
	if req.Authorize != nil && len(series) > 0 {
		if err := req.Authorize(series[0].Kind); err != nil {
			return finance.SettlementResult{}, err
		}
	}

	res, err := finance.Settle(series, req.Sequence, req.AmountPaid, req.PaidOn, req.Strategy)
	if err != nil {
		return finance.SettlementResult{}, err
	}
	if err := s.store.SaveSettlement(ctx, series, res.Series); err != nil {
		return finance.SettlementResult{}, fmt.Errorf("save settlement: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogSettlement(ctx, req.SeriesID, req.Sequence, string(req.Strategy), res.Difference.Cents, res.Residual.Cents)

	if s.ledger != nil {
		if _, err := s.ledger.RecordEntry(ctx, paymentEntry(res.Settled)); err != nil {
			slog.ErrorContext(ctx, "Failed to book settlement in ledger",
				"series_id", req.SeriesID,
				"sequence", req.Sequence,
				"error", err)
		}
	}

	if s.publisher != nil {
		msg := amqp.InstallmentSettledMessage{
			SeriesID:        req.SeriesID,
			Sequence:        req.Sequence,
			Strategy:        string(req.Strategy),
			PaidOn:          res.Settled.PaidDate.String(),
			DifferenceCents: res.Difference.Cents,
			ResidualCents:   res.Residual.Cents,
		}
		if err := s.publisher.PublishInstallmentSettled(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish settlement",
				"series_id", req.SeriesID,
				"error", err)
		}
	}
	return res, nil
}

func paymentEntry(in core.Installment) core.LedgerEntry {
	dir := core.Income
	if in.Kind == core.Payable {
		dir = core.Expense
	}
	desc := in.Description
	if desc == "" {
		desc = fmt.Sprintf("Installment %d of %s", in.Sequence, in.SeriesID)
	}
	return core.LedgerEntry{
		Direction:   dir,
		Amount:      in.PaidAmount,
		Date:        in.PaidDate,
		Description: desc,
	}
}

// CreateSeries generates and stores a new installment series.
func (s *SettlementService) CreateSeries(ctx context.Context, spec finance.SeriesSpec) ([]core.Installment, error) {
	if spec.SeriesID == "" {
		spec.SeriesID = core.NewID()
	}
	series, err := finance.GenerateSeries(spec)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSeries(ctx, series); err != nil {
		return nil, fmt.Errorf("save series: %w", err)
	}
	slog.InfoContext(ctx, "Installment series created",
		"series_id", spec.SeriesID,
		"kind", spec.Kind,
		"count", len(series),
		"total_cents", spec.Total.Cents)
	return series, nil
}

// SweepOverdue moves pending installments due before today to overdue and
// returns how many changed.
func (s *SettlementService) SweepOverdue(ctx context.Context, today core.Date) (int, error) {
	open, err := s.store.ListOpenInstallments(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list open installments: %w", err)
	}
	_, changed := finance.MarkOverdue(open, today)
	if len(changed) == 0 {
		return 0, nil
	}
	if err := s.store.UpdateStatuses(ctx, changed); err != nil {
		return 0, fmt.Errorf("update statuses: %w", err)
	}
	slog.InfoContext(ctx, "Marked installments overdue", "count", len(changed))
	return len(changed), nil
}
