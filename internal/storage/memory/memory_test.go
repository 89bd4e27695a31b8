package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"contaae/internal/core"
	"contaae/internal/ports"
)

func TestMemoryStoreEntries(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, d := range []core.Date{core.NewDate(2024, 1, 20), core.NewDate(2024, 1, 5), core.NewDate(2024, 2, 1)} {
		if err := s.AppendEntry(ctx, core.LedgerEntry{Direction: core.Expense, Amount: core.Money{Cents: 100}, Date: d}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.AppendEntry(ctx, core.LedgerEntry{Direction: "sideways", Date: core.NewDate(2024, 1, 1)}); err == nil {
		t.Fatal("expected validation error")
	}

	got, err := s.ListEntries(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Date.Day() != 5 || got[1].Date.Day() != 20 {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[0].ID == "" {
		t.Error("id should be assigned")
	}
}

func TestMemoryStoreBudgetUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := core.CategoryBudget{CategoryID: "ops", Year: 2024, Month: 3, PlannedExpense: core.Money{Cents: 100}}
	if err := s.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	b.PlannedExpense = core.Money{Cents: 200}
	if err := s.UpsertBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListBudgets(ctx, 2024, 3)
	if len(got) != 1 || got[0].PlannedExpense.Cents != 200 {
		t.Fatalf("unexpected budgets: %+v", got)
	}
	if other, _ := s.ListBudgets(ctx, 2024, 4); len(other) != 0 {
		t.Errorf("april budgets = %+v", other)
	}
}

func TestMemoryStoreSeries(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, err := s.ListSeries(ctx, "nope"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("ListSeries(missing) error = %v", err)
	}

	series := []core.Installment{
		{SeriesID: "s", Sequence: 2, Amount: core.Money{Cents: 10}, DueDate: core.NewDate(2024, 2, 1), Status: core.StatusPending},
		{SeriesID: "s", Sequence: 1, Amount: core.Money{Cents: 10}, DueDate: core.NewDate(2024, 1, 1), Status: core.StatusPending},
	}
	if err := s.SaveSeries(ctx, series); err != nil {
		t.Fatal(err)
	}

	open, _ := s.ListOpenInstallments(ctx, core.NewDate(2024, 1, 15))
	if len(open) != 1 || open[0].Sequence != 1 {
		t.Fatalf("open = %+v", open)
	}

	open[0].Status = core.StatusOverdue
	if err := s.UpdateStatuses(ctx, open); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListSeries(ctx, "s")
	if got[0].Sequence != 1 || got[0].Status != core.StatusOverdue {
		t.Errorf("series = %+v", got)
	}
}

func TestMemoryStoreRecurring(t *testing.T) {
	ctx := context.Background()
	s := New()
	rc := core.RecurringCharge{
		ID:          "r1",
		Description: "hosting",
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 5000},
		StartDate:   core.NewDate(2024, 1, 1),
		EndDate:     core.NewDate(2024, 6, 30),
		Every:       core.Monthly,
	}
	if err := s.AddRecurring(ctx, rc); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.ListActiveRecurring(ctx, core.NewDate(2024, 7, 1)); len(got) != 0 {
		t.Errorf("expired template listed: %+v", got)
	}
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	if err := s.UpdateRecurringLastExecution(ctx, "r1", now); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListActiveRecurring(ctx, core.NewDate(2024, 3, 1))
	if len(got) != 1 || !got[0].LastExecution.Equal(now) {
		t.Errorf("active = %+v", got)
	}
	if err := s.UpdateRecurringLastExecution(ctx, "missing", now); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("missing id error = %v", err)
	}
}

func TestMemoryStore_PaidIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := New()

	before := []core.Installment{
		{SeriesID: "s2", Kind: core.Receivable, Sequence: 1, Amount: core.Money{Cents: 5000}, DueDate: core.NewDate(2024, 1, 10), Status: core.StatusPending},
		{SeriesID: "s2", Kind: core.Receivable, Sequence: 2, Amount: core.Money{Cents: 5000}, DueDate: core.NewDate(2024, 2, 10), Status: core.StatusPending},
		{SeriesID: "s2", Kind: core.Receivable, Sequence: 3, Amount: core.Money{Cents: 5000}, DueDate: core.NewDate(2024, 3, 10), Status: core.StatusPending},
	}
	if err := s.SaveSeries(ctx, before); err != nil {
		t.Fatal(err)
	}

	// the overdue sweep reads before the settlement lands
	stale, err := s.ListOpenInstallments(ctx, core.NewDate(2024, 3, 1))
	if err != nil || len(stale) != 2 {
		t.Fatalf("open = %+v, %v", stale, err)
	}

	after := append([]core.Installment(nil), before...)
	after[0].Status = core.StatusPaid
	after[0].PaidAmount = core.Money{Cents: 6000}
	after[0].PaidDate = core.NewDate(2024, 1, 9)
	after[1].Amount = core.Money{Cents: 4000}
	if err := s.SaveSettlement(ctx, before, after); err != nil {
		t.Fatalf("SaveSettlement: %v", err)
	}

	for i := range stale {
		stale[i].Status = core.StatusOverdue
	}
	if err := s.UpdateStatuses(ctx, stale); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListSeries(ctx, "s2")
	if got[0].Status != core.StatusPaid || got[0].PaidAmount.Cents != 6000 {
		t.Errorf("paid installment rewritten by sweep: %+v", got[0])
	}
	if got[1].Status != core.StatusOverdue || got[1].Amount.Cents != 4000 {
		t.Errorf("second = %+v, want overdue at 4000", got[1])
	}

	if err := s.SaveSettlement(ctx, before, after); !errors.Is(err, core.ErrAlreadySettled) {
		t.Errorf("second settlement error = %v, want ErrAlreadySettled", err)
	}

	// settling #2 from a snapshot that predates the adjustment
	late := append([]core.Installment(nil), before...)
	late[1].Status = core.StatusPaid
	late[1].PaidAmount = core.Money{Cents: 5000}
	late[1].PaidDate = core.NewDate(2024, 2, 10)
	late[2].Amount = core.Money{Cents: 6000}
	if err := s.SaveSettlement(ctx, before, late); !errors.Is(err, core.ErrSeriesChanged) {
		t.Errorf("stale settlement error = %v, want ErrSeriesChanged", err)
	}
	got, _ = s.ListSeries(ctx, "s2")
	if got[1].Status == core.StatusPaid || got[2].Amount.Cents != 5000 {
		t.Errorf("rejected settlement left writes behind: %+v", got)
	}

	if err := s.SaveSeries(ctx, before); err != nil {
		t.Fatal(err)
	}
	got, _ = s.ListSeries(ctx, "s2")
	if got[0].Status != core.StatusPaid {
		t.Errorf("SaveSeries reopened a paid installment: %+v", got[0])
	}
}
