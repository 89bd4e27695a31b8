package finance

import (
	"errors"
	"testing"

	"contaae/internal/core"
)

func series(amounts ...int64) []core.Installment {
	out := make([]core.Installment, len(amounts))
	for i, a := range amounts {
		out[i] = core.Installment{
			SeriesID: "s1",
			Kind:     core.Receivable,
			Sequence: i + 1,
			Amount:   core.Money{Cents: a},
			DueDate:  core.NewDate(2024, i+1, 10),
			Status:   core.StatusPending,
		}
	}
	return out
}

func amounts(in []core.Installment) []int64 {
	out := make([]int64, len(in))
	for i, x := range in {
		out[i] = x.Amount.Cents
	}
	return out
}

func equalInts(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSettle_Errors(t *testing.T) {
	paid := series(10000, 10000)
	paid[0].Status = core.StatusPaid
	paidOn := core.NewDate(2024, 1, 10)

	tests := []struct {
		name     string
		series   []core.Installment
		sequence int
		amount   int64
		strategy Strategy
		want     error
	}{
		{"unknown sequence", series(10000), 7, 10000, Distribute, core.ErrInstallmentNotFound},
		{"already paid", paid, 1, 10000, Distribute, core.ErrAlreadySettled},
		{"already paid wins over bad amount", paid, 1, 0, Distribute, core.ErrAlreadySettled},
		{"zero amount", series(10000), 1, 0, Distribute, core.ErrInvalidAmount},
		{"negative amount", series(10000), 1, -5, DeductNext, core.ErrInvalidAmount},
		{"bad strategy", series(10000), 1, 10000, Strategy("split"), core.ErrInvalidStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := amounts(tt.series)
			_, err := Settle(tt.series, tt.sequence, core.Money{Cents: tt.amount}, paidOn, tt.strategy)
			if !errors.Is(err, tt.want) {
				t.Errorf("Settle() error = %v, want %v", err, tt.want)
			}
			if !equalInts(before, amounts(tt.series)) {
				t.Error("input series was modified")
			}
		})
	}
}

func TestSettle_ExactPayment(t *testing.T) {
	in := series(10000, 10000, 10000)
	res, err := Settle(in, 1, core.Money{Cents: 10000}, core.NewDate(2024, 1, 9), Distribute)
	if err != nil {
		t.Fatal(err)
	}
	if res.Settled.Status != core.StatusPaid || res.Settled.PaidAmount.Cents != 10000 {
		t.Errorf("Settled = %+v", res.Settled)
	}
	if len(res.Adjusted) != 0 || !res.Residual.IsZero() || !res.Difference.IsZero() {
		t.Errorf("exact payment produced side effects: %+v", res)
	}
	if res.ResidualErr() != nil {
		t.Errorf("ResidualErr() = %v", res.ResidualErr())
	}
}

func TestSettle_Distribute(t *testing.T) {
	tests := []struct {
		name      string
		series    []core.Installment
		paid      int64
		want      []int64
		wantDiff  int64
		wantResid int64
	}{
		{
			name:     "overpayment of 50.00 over three",
			series:   series(10000, 10000, 10000, 10000),
			paid:     15000,
			want:     []int64{10000, 11667, 11667, 11666},
			wantDiff: 5000,
		},
		{
			name:     "underpayment of 50.00 over three",
			series:   series(10000, 10000, 10000, 10000),
			paid:     5000,
			want:     []int64{10000, 8333, 8333, 8334},
			wantDiff: -5000,
		},
		{
			name:     "even split",
			series:   series(10000, 10000, 10000),
			paid:     10200,
			want:     []int64{10000, 10100, 10100},
			wantDiff: 200,
		},
		{
			name:     "two cents over four never lowers one",
			series:   series(1000, 1000, 1000, 1000, 1000),
			paid:     1002,
			want:     []int64{1000, 1001, 1001, 1000, 1000},
			wantDiff: 2,
		},
		{
			name:     "three cents short over four",
			series:   series(1000, 1000, 1000, 1000, 1000),
			paid:     997,
			want:     []int64{1000, 999, 999, 999, 1000},
			wantDiff: -3,
		},
		{
			name:      "clamped at zero",
			series:    series(10000, 1000, 1000),
			paid:      4000,
			want:      []int64{10000, 0, 0},
			wantDiff:  -6000,
			wantResid: -4000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Settle(tt.series, 1, core.Money{Cents: tt.paid}, core.NewDate(2024, 1, 10), Distribute)
			if err != nil {
				t.Fatal(err)
			}
			if got := amounts(res.Series); !equalInts(got, tt.want) {
				t.Errorf("amounts = %v, want %v", got, tt.want)
			}
			if res.Difference.Cents != tt.wantDiff {
				t.Errorf("Difference = %d, want %d", res.Difference.Cents, tt.wantDiff)
			}
			if res.Residual.Cents != tt.wantResid {
				t.Errorf("Residual = %d, want %d", res.Residual.Cents, tt.wantResid)
			}
			if res.Series[0].Amount.Cents != tt.series[0].Amount.Cents {
				t.Error("settled installment keeps its scheduled amount")
			}
		})
	}
}

func TestSettle_DistributeSkipsPaidAndEarlier(t *testing.T) {
	in := series(10000, 10000, 10000, 10000)
	in[0].Status = core.StatusOverdue
	in[2].Status = core.StatusPaid

	res, err := Settle(in, 2, core.Money{Cents: 12000}, core.NewDate(2024, 2, 10), Distribute)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10000, 10000, 10000, 12000}
	if got := amounts(res.Series); !equalInts(got, want) {
		t.Errorf("amounts = %v, want %v", got, want)
	}
	if len(res.Adjusted) != 1 || res.Adjusted[0].Sequence != 4 {
		t.Errorf("Adjusted = %+v, want only #4", res.Adjusted)
	}
}

func TestSettle_DeductNext(t *testing.T) {
	tests := []struct {
		name      string
		series    []core.Installment
		paid      int64
		want      []int64
		wantResid int64
	}{
		{"short payment raises next", series(10000, 10000, 10000), 7000, []int64{10000, 13000, 10000}, 0},
		{"overpayment lowers next", series(10000, 10000, 10000), 12500, []int64{10000, 7500, 10000}, 0},
		{"overpayment beyond next is residual", series(10000, 2000, 10000), 15000, []int64{10000, 0, 10000}, 3000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Settle(tt.series, 1, core.Money{Cents: tt.paid}, core.NewDate(2024, 1, 10), DeductNext)
			if err != nil {
				t.Fatal(err)
			}
			if got := amounts(res.Series); !equalInts(got, tt.want) {
				t.Errorf("amounts = %v, want %v", got, tt.want)
			}
			if res.Residual.Cents != tt.wantResid {
				t.Errorf("Residual = %d, want %d", res.Residual.Cents, tt.wantResid)
			}
		})
	}
}

func TestSettle_LastInstallmentResidual(t *testing.T) {
	for _, strategy := range []Strategy{Distribute, DeductNext} {
		t.Run(string(strategy), func(t *testing.T) {
			in := series(10000, 10000)
			in[0].Status = core.StatusPaid
			res, err := Settle(in, 2, core.Money{Cents: 9900}, core.NewDate(2024, 2, 10), strategy)
			if err != nil {
				t.Fatalf("residual must not fail the settlement: %v", err)
			}
			if res.Residual.Cents != -100 {
				t.Errorf("Residual = %d, want -100", res.Residual.Cents)
			}
			if !errors.Is(res.ResidualErr(), core.ErrUnresolvedResidual) {
				t.Errorf("ResidualErr() = %v", res.ResidualErr())
			}
			if res.Settled.Status != core.StatusPaid {
				t.Error("installment should be paid even with residual")
			}
		})
	}
}

func TestSettle_DoesNotMutateInput(t *testing.T) {
	in := series(10000, 10000, 10000)
	if _, err := Settle(in, 1, core.Money{Cents: 1}, core.NewDate(2024, 1, 10), Distribute); err != nil {
		t.Fatal(err)
	}
	for _, x := range in {
		if x.Status != core.StatusPending || x.Amount.Cents != 10000 {
			t.Errorf("input installment changed: %+v", x)
		}
	}
}

func TestMarkOverdue(t *testing.T) {
	in := series(100, 100, 100)
	in[0].Status = core.StatusPaid
	updated, changed := MarkOverdue(in, core.NewDate(2024, 2, 11))

	if updated[0].Status != core.StatusPaid {
		t.Error("paid installment must not become overdue")
	}
	if updated[1].Status != core.StatusOverdue {
		t.Errorf("#2 status = %s, want overdue", updated[1].Status)
	}
	if updated[2].Status != core.StatusPending {
		t.Errorf("#3 status = %s, want pending", updated[2].Status)
	}
	if len(changed) != 1 || changed[0].Sequence != 2 {
		t.Errorf("changed = %+v", changed)
	}
	if in[1].Status != core.StatusPending {
		t.Error("input modified")
	}
}

func TestGenerateSeries(t *testing.T) {
	got, err := GenerateSeries(SeriesSpec{
		SeriesID: "s9",
		Kind:     core.Payable,
		Total:    core.Money{Cents: 100000},
		Count:    3,
		FirstDue: core.NewDate(2024, 1, 31),
		Every:    core.Monthly,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []int64{33334, 33333, 33333}; !equalInts(amounts(got), want) {
		t.Errorf("amounts = %v, want %v", amounts(got), want)
	}
	wantDue := []core.Date{core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29), core.NewDate(2024, 3, 31)}
	for i, in := range got {
		if in.DueDate != wantDue[i] {
			t.Errorf("#%d due %s, want %s", in.Sequence, in.DueDate, wantDue[i])
		}
	}

	if _, err := GenerateSeries(SeriesSpec{Kind: core.Payable, Total: core.Money{Cents: 1}, FirstDue: core.NewDate(2024, 1, 1), Every: core.Monthly}); !errors.Is(err, core.ErrInvalidSequence) {
		t.Errorf("zero count error = %v", err)
	}
}

func TestSplitEven(t *testing.T) {
	tests := []struct {
		amount int64
		n      int
	}{
		{60, 40},
		{2, 4},
		{-2, 4},
		{-5000, 3},
		{100000, 3},
		{1, 12},
		{0, 5},
		{-7, 7},
	}
	for _, tt := range tests {
		shares := splitEven(tt.amount, tt.n)
		var sum, lo, hi int64
		lo, hi = shares[0], shares[0]
		for _, s := range shares {
			sum += s
			if (tt.amount > 0 && s < 0) || (tt.amount < 0 && s > 0) {
				t.Errorf("splitEven(%d, %d) share %d has the wrong sign", tt.amount, tt.n, s)
			}
			lo, hi = min(lo, s), max(hi, s)
		}
		if sum != tt.amount {
			t.Errorf("splitEven(%d, %d) sums to %d", tt.amount, tt.n, sum)
		}
		if hi-lo > 1 {
			t.Errorf("splitEven(%d, %d) = %v, shares differ by more than a cent", tt.amount, tt.n, shares)
		}
	}
}

func TestGenerateSeries_SmallTotalOverManyInstallments(t *testing.T) {
	got, err := GenerateSeries(SeriesSpec{
		Kind:     core.Receivable,
		Total:    core.Money{Cents: 60},
		Count:    40,
		FirstDue: core.NewDate(2024, 1, 5),
		Every:    core.Weekly,
	})
	if err != nil {
		t.Fatal(err)
	}
	var ones, zeros int
	for _, in := range got {
		switch in.Amount.Cents {
		case 1:
			ones++
		case 0:
			zeros++
		default:
			t.Errorf("#%d amount = %d, want 0 or 1", in.Sequence, in.Amount.Cents)
		}
	}
	if ones != 20 || zeros != 20 {
		t.Errorf("ones = %d zeros = %d, want 20 each", ones, zeros)
	}
	if got[0].Amount.Cents != 1 || got[39].Amount.Cents != 0 {
		t.Error("extra cents belong to the earliest installments")
	}
}

func TestDueDate(t *testing.T) {
	anchor := core.NewDate(2023, 2, 28)
	tests := []struct {
		every core.RepetitionTypes
		n     int
		want  core.Date
	}{
		{core.Daily, 3, core.NewDate(2023, 3, 3)},
		{core.Weekly, 2, core.NewDate(2023, 3, 14)},
		{core.Monthly, 1, core.NewDate(2023, 3, 28)},
		{core.Yearly, 1, core.NewDate(2024, 2, 28)},
	}
	for _, tt := range tests {
		t.Run(string(tt.every), func(t *testing.T) {
			got, err := DueDate(anchor, tt.every, tt.n)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DueDate() = %s, want %s", got, tt.want)
			}
		})
	}
	if _, err := DueDate(anchor, "hourly", 1); err == nil {
		t.Error("expected error for unknown repetition")
	}
}
