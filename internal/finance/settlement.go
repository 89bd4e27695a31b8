package finance

import (
	"fmt"

	"contaae/internal/core"
)

// Strategy decides where the difference between paid and scheduled goes.
type Strategy string

const (
	// Distribute spreads the difference over every later open installment.
	Distribute Strategy = "distribute"
	// DeductNext applies the whole difference to the next open installment.
	DeductNext Strategy = "deduct_next"
)

func (s Strategy) Valid() bool {
	return s == Distribute || s == DeductNext
}

// SettlementResult is the outcome of settling one installment. All
// installments in it are copies; the input series is never modified.
type SettlementResult struct {
	Settled    core.Installment
	Adjusted   []core.Installment
	Series     []core.Installment
	Difference core.Money // amount paid - scheduled amount
	Residual   core.Money // part of Difference no installment absorbed
}

// ResidualErr reports an unresolved residual without failing the settlement.
func (r SettlementResult) ResidualErr() error {
	if r.Residual.IsZero() {
		return nil
	}
	return fmt.Errorf("%w: %s on %s #%d", core.ErrUnresolvedResidual, r.Residual, r.Settled.SeriesID, r.Settled.Sequence)
}

// Settle records a payment against the installment with the given sequence
// and redistributes any difference according to strategy.
//
// Distribute adds difference/n to each later open installment, split to the
// cent by largest remainder so the earliest installments carry the extra
// cents (+50.00 over 3 gives 16.67, 16.67, 16.66; +0.02 over 4 gives 0.01,
// 0.01, 0.00, 0.00). DeductNext
// applies the whole difference to the next open installment, raising it after
// a short payment and lowering it after an overpayment. No scheduled amount
// drops below zero; what cannot be absorbed is reported as Residual.
func Settle(series []core.Installment, sequence int, amountPaid core.Money, paidOn core.Date, strategy Strategy) (SettlementResult, error) {
	sorted := core.SortSeries(series)
	if err := core.ValidateSeries(sorted); err != nil {
		return SettlementResult{}, err
	}

	idx := -1
	for i, in := range sorted {
		if in.Sequence == sequence {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SettlementResult{}, fmt.Errorf("%w: sequence %d", core.ErrInstallmentNotFound, sequence)
	}
	if sorted[idx].Status == core.StatusPaid {
		return SettlementResult{}, fmt.Errorf("%w: %s #%d", core.ErrAlreadySettled, sorted[idx].SeriesID, sequence)
	}
	if amountPaid.Cents <= 0 {
		return SettlementResult{}, fmt.Errorf("%w: payment must be positive", core.ErrInvalidAmount)
	}
	if paidOn.IsZero() {
		return SettlementResult{}, fmt.Errorf("%w: payment date is required", core.ErrInvalidDate)
	}
	if !strategy.Valid() {
		return SettlementResult{}, fmt.Errorf("%w: %q", core.ErrInvalidStrategy, strategy)
	}

	settled := sorted[idx]
	diff := amountPaid.Cents - settled.Amount.Cents
	settled.Status = core.StatusPaid
	settled.PaidAmount = amountPaid
	settled.PaidDate = core.DateOf(paidOn.Time)
	sorted[idx] = settled

	res := SettlementResult{Settled: settled, Difference: core.Money{Cents: diff}}
	if diff != 0 {
		var open []int
		for j := idx + 1; j < len(sorted); j++ {
			if sorted[j].Status.Open() {
				open = append(open, j)
			}
		}

		var adjustments []int64
		switch {
		case len(open) == 0:
			res.Residual = core.Money{Cents: diff}
		case strategy == DeductNext:
			open = open[:1]
			adjustments = []int64{-diff}
		default:
			adjustments = splitEven(diff, len(open))
		}

		var unapplied int64
		for k, j := range open {
			in := sorted[j]
			next := in.Amount.Cents + adjustments[k]
			if next < 0 {
				unapplied += next
				next = 0
			}
			if next == in.Amount.Cents {
				continue
			}
			in.Amount = core.Money{Cents: next}
			sorted[j] = in
			res.Adjusted = append(res.Adjusted, in)
		}
		if unapplied != 0 {
			// unapplied is in adjustment terms; convert back to difference terms
			if strategy == DeductNext {
				unapplied = -unapplied
			}
			res.Residual = core.Money{Cents: unapplied}
		}
	}

	res.Series = sorted
	return res, nil
}

// MarkOverdue moves pending installments whose due date is before today to
// overdue. It returns the updated series and the installments that changed.
func MarkOverdue(series []core.Installment, today core.Date) (updated, changed []core.Installment) {
	updated = append([]core.Installment(nil), series...)
	today = core.DateOf(today.Time)
	for i, in := range updated {
		if in.Status != core.StatusPending || in.DueDate.IsZero() {
			continue
		}
		if core.DateOf(in.DueDate.Time).Before(today) {
			in.Status = core.StatusOverdue
			updated[i] = in
			changed = append(changed, in)
		}
	}
	return updated, changed
}

// SeriesSpec describes an installment series to generate.
type SeriesSpec struct {
	SeriesID    string
	Kind        core.InstallmentKind
	Description string
	Total       core.Money
	Count       int
	FirstDue    core.Date
	Every       core.RepetitionTypes
}

// GenerateSeries splits a total into Count pending installments using the
// same rounding rule as Distribute, stepping due dates by Every.
func GenerateSeries(spec SeriesSpec) ([]core.Installment, error) {
	if spec.Count < 1 {
		return nil, fmt.Errorf("%w: count must be at least 1", core.ErrInvalidSequence)
	}
	if err := spec.Total.Validate(); err != nil {
		return nil, err
	}
	if !spec.Kind.Valid() {
		return nil, fmt.Errorf("invalid installment kind %q", spec.Kind)
	}
	if err := spec.FirstDue.Validate(); err != nil {
		return nil, err
	}

	shares := splitEven(spec.Total.Cents, spec.Count)
	out := make([]core.Installment, spec.Count)
	for i := range out {
		due, err := DueDate(spec.FirstDue, spec.Every, i)
		if err != nil {
			return nil, err
		}
		out[i] = core.Installment{
			SeriesID:    spec.SeriesID,
			Kind:        spec.Kind,
			Sequence:    i + 1,
			Description: spec.Description,
			Amount:      core.Money{Cents: shares[i]},
			DueDate:     due,
			Status:      core.StatusPending,
		}
	}
	return out, nil
}

// splitEven divides amount into n cent shares by largest remainder: every
// share is amount/n truncated toward zero, and the leftover cents go one each
// to the earliest shares. Shares never differ by more than one cent and never
// take the opposite sign of amount.
func splitEven(amount int64, n int) []int64 {
	sign := int64(1)
	if amount < 0 {
		sign, amount = -1, -amount
	}
	share, rest := amount/int64(n), amount%int64(n)
	out := make([]int64, n)
	for i := range out {
		out[i] = share
		if int64(i) < rest {
			out[i]++
		}
		out[i] *= sign
	}
	return out
}
