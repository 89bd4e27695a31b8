package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"contaae/internal/amqp"
	"contaae/internal/cache"
	"contaae/internal/core"
	"contaae/internal/finance"
	"contaae/internal/storage/memory"
)

type fakePublisher struct {
	mu      sync.Mutex
	ledger  []amqp.LedgerChangedMessage
	settled []amqp.InstallmentSettledMessage
	err     error
}

func (p *fakePublisher) PublishLedgerChanged(_ context.Context, msg amqp.LedgerChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledger = append(p.ledger, msg)
	return p.err
}

func (p *fakePublisher) PublishInstallmentSettled(_ context.Context, msg amqp.InstallmentSettledMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, msg)
	return p.err
}

type countingReader struct {
	*memory.Store
	calls int
}

func (c *countingReader) ListEntries(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	c.calls++
	return c.Store.ListEntries(ctx, start, end)
}

func newEntry(dir core.Direction, cents int64, d core.Date, category string) core.LedgerEntry {
	return core.LedgerEntry{Direction: dir, Amount: core.Money{Cents: cents}, Date: d, CategoryID: category, Description: "test"}
}

func seed(t *testing.T, s *memory.Store, entries ...core.LedgerEntry) {
	t.Helper()
	for _, e := range entries {
		if err := s.AppendEntry(context.Background(), e); err != nil {
			t.Fatalf("AppendEntry: %v", err)
		}
	}
}

func TestReportService_Cashflow(t *testing.T) {
	store := memory.New()
	seed(t, store,
		newEntry(core.Income, 10000, core.NewDate(2024, 1, 2), "sales"),
		newEntry(core.Expense, 4000, core.NewDate(2024, 1, 5), "rent"),
		newEntry(core.Income, 999, core.NewDate(2024, 2, 1), "sales"),
	)
	svc := NewReportService(store, store, nil)

	report, err := svc.Cashflow(context.Background(), core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 10))
	if err != nil {
		t.Fatalf("Cashflow() error = %v", err)
	}
	if report.Granularity != finance.Day || len(report.Buckets) != 10 {
		t.Errorf("granularity = %s, buckets = %d", report.Granularity, len(report.Buckets))
	}
	if report.FinalBalance.Cents != 6000 {
		t.Errorf("FinalBalance = %d, want 6000", report.FinalBalance.Cents)
	}

	_, err = svc.Cashflow(context.Background(), core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))
	if !errors.Is(err, core.ErrInvalidRange) {
		t.Errorf("reversed range error = %v, want ErrInvalidRange", err)
	}
}

func TestReportService_DRECaching(t *testing.T) {
	store := memory.New()
	seed(t, store,
		newEntry(core.Income, 50000, core.NewDate(2024, 3, 10), "sales"),
		newEntry(core.Expense, 20000, core.NewDate(2024, 3, 12), "rent"),
	)
	reader := &countingReader{Store: store}
	svc := NewReportService(reader, store, cache.NewLRUCache[[12]finance.DREResult](10, time.Minute))
	ctx := context.Background()

	march, err := svc.MonthlyDRE(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("MonthlyDRE() error = %v", err)
	}
	if march.Revenue.Cents != 50000 || march.Expense.Cents != 20000 || march.Result.Cents != 30000 {
		t.Errorf("March DRE = %+v", march)
	}
	if _, err := svc.YearlyDRE(ctx, 2024); err != nil {
		t.Fatalf("YearlyDRE() error = %v", err)
	}
	if reader.calls != 1 {
		t.Errorf("store calls = %d, want 1 (second read cached)", reader.calls)
	}

	svc.Invalidate(2024)
	if _, err := svc.YearlyDRE(ctx, 2024); err != nil {
		t.Fatalf("YearlyDRE() error = %v", err)
	}
	if reader.calls != 2 {
		t.Errorf("store calls = %d, want 2 after invalidation", reader.calls)
	}

	if _, err := svc.MonthlyDRE(ctx, 2024, 13); !errors.Is(err, core.ErrInvalidMonth) {
		t.Errorf("month 13 error = %v, want ErrInvalidMonth", err)
	}
}

func TestReportService_BudgetAlerts(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, b := range []core.CategoryBudget{
		{CategoryID: "rent", Year: 2024, Month: 5, PlannedExpense: core.Money{Cents: 10000}},
		{CategoryID: "food", Year: 2024, Month: 5, PlannedExpense: core.Money{Cents: 10000}},
		{CategoryID: "travel", Year: 2024, Month: 5, PlannedExpense: core.Money{Cents: 10000}},
	} {
		if err := store.UpsertBudget(ctx, b); err != nil {
			t.Fatalf("UpsertBudget: %v", err)
		}
	}
	seed(t, store,
		newEntry(core.Expense, 12000, core.NewDate(2024, 5, 3), "rent"),
		newEntry(core.Expense, 8000, core.NewDate(2024, 5, 31), "food"),
		newEntry(core.Expense, 7999, core.NewDate(2024, 5, 20), "travel"),
		newEntry(core.Expense, 5000, core.NewDate(2024, 6, 1), "travel"),
	)
	svc := NewReportService(store, store, nil)

	alerts, err := svc.BudgetAlerts(ctx, 2024, 5)
	if err != nil {
		t.Fatalf("BudgetAlerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2: %+v", len(alerts), alerts)
	}
	if alerts[0].CategoryID != "rent" || alerts[0].Level != finance.Exceeded || alerts[0].Over.Cents != 2000 {
		t.Errorf("first alert = %+v", alerts[0])
	}
	if alerts[1].CategoryID != "food" || alerts[1].Level != finance.NearLimit {
		t.Errorf("second alert = %+v", alerts[1])
	}
}

func TestLedgerService_RecordEntry(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	reader := &countingReader{Store: store}
	reports := NewReportService(reader, store, cache.NewLRUCache[[12]finance.DREResult](10, time.Minute))
	svc := NewLedgerService(store, reports, pub)
	ctx := context.Background()

	if _, err := reports.YearlyDRE(ctx, 2024); err != nil {
		t.Fatalf("YearlyDRE() error = %v", err)
	}

	e, err := svc.RecordEntry(ctx, newEntry(core.Income, 1500, core.NewDate(2024, 4, 2), ""))
	if err != nil {
		t.Fatalf("RecordEntry() error = %v", err)
	}
	if e.ID == "" {
		t.Error("RecordEntry() should assign an id")
	}
	if len(pub.ledger) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.ledger))
	}
	if msg := pub.ledger[0]; msg.EntryID != e.ID || msg.Year != 2024 || msg.Month != 4 || msg.AmountCents != 1500 {
		t.Errorf("message = %+v", msg)
	}

	months, err := reports.YearlyDRE(ctx, 2024)
	if err != nil {
		t.Fatalf("YearlyDRE() error = %v", err)
	}
	if months[3].Revenue.Cents != 1500 {
		t.Errorf("April revenue = %d, want 1500 (cache should be invalidated)", months[3].Revenue.Cents)
	}

	t.Run("invalid entry is rejected before publishing", func(t *testing.T) {
		_, err := svc.RecordEntry(ctx, newEntry("transfer", 100, core.NewDate(2024, 4, 2), ""))
		if !errors.Is(err, core.ErrInvalidDirection) {
			t.Errorf("error = %v, want ErrInvalidDirection", err)
		}
		if len(pub.ledger) != 1 {
			t.Errorf("published %d messages, want 1", len(pub.ledger))
		}
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		failing := NewLedgerService(store, nil, &fakePublisher{err: errors.New("broker down")})
		if _, err := failing.RecordEntry(ctx, newEntry(core.Expense, 100, core.NewDate(2024, 4, 3), "")); err != nil {
			t.Errorf("RecordEntry() error = %v", err)
		}
	})
}

func newSettlementFixture(t *testing.T) (*memory.Store, *fakePublisher, *SettlementService, string) {
	t.Helper()
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewSettlementService(store, NewLedgerService(store, nil, nil), pub)
	series, err := svc.CreateSeries(context.Background(), finance.SeriesSpec{
		Kind:        core.Receivable,
		Description: "Consulting contract",
		Total:       core.Money{Cents: 30000},
		Count:       3,
		FirstDue:    core.NewDate(2024, 1, 10),
		Every:       core.Monthly,
	})
	if err != nil {
		t.Fatalf("CreateSeries() error = %v", err)
	}
	return store, pub, svc, series[0].SeriesID
}

func TestSettlementService_Settle(t *testing.T) {
	store, pub, svc, seriesID := newSettlementFixture(t)
	ctx := context.Background()

	res, err := svc.Settle(ctx, SettleRequest{
		SeriesID:   seriesID,
		Sequence:   1,
		AmountPaid: core.Money{Cents: 8000},
		PaidOn:     core.NewDate(2024, 1, 9),
		Strategy:   finance.DeductNext,
	})
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if res.Difference.Cents != -2000 || !res.Residual.IsZero() {
		t.Errorf("difference = %d, residual = %d", res.Difference.Cents, res.Residual.Cents)
	}

	stored, err := store.ListSeries(ctx, seriesID)
	if err != nil {
		t.Fatalf("ListSeries() error = %v", err)
	}
	if stored[0].Status != core.StatusPaid || stored[1].Amount.Cents != 12000 || stored[2].Amount.Cents != 10000 {
		t.Errorf("stored series = %+v", stored)
	}

	entries, _ := store.ListEntries(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	if len(entries) != 1 || entries[0].Direction != core.Income || entries[0].Amount.Cents != 8000 {
		t.Errorf("booked entries = %+v", entries)
	}

	if len(pub.settled) != 1 || pub.settled[0].DifferenceCents != -2000 || pub.settled[0].PaidOn != "2024-01-09" {
		t.Errorf("published = %+v", pub.settled)
	}

	t.Run("already settled", func(t *testing.T) {
		_, err := svc.Settle(ctx, SettleRequest{SeriesID: seriesID, Sequence: 1, AmountPaid: core.Money{Cents: 1}, PaidOn: core.NewDate(2024, 1, 9), Strategy: finance.Distribute})
		if !errors.Is(err, core.ErrAlreadySettled) {
			t.Errorf("error = %v, want ErrAlreadySettled", err)
		}
	})

	t.Run("last installment leaves residual", func(t *testing.T) {
		res, err := svc.Settle(ctx, SettleRequest{SeriesID: seriesID, Sequence: 3, AmountPaid: core.Money{Cents: 9000}, PaidOn: core.NewDate(2024, 3, 10), Strategy: finance.Distribute})
		if err != nil {
			t.Fatalf("Settle() error = %v", err)
		}
		if res.Residual.Cents != -1000 || !errors.Is(res.ResidualErr(), core.ErrUnresolvedResidual) {
			t.Errorf("residual = %d", res.Residual.Cents)
		}
	})
}

// interleavingStore runs afterList once, after a ListSeries snapshot is taken,
// to land a competing write before the caller saves.
type interleavingStore struct {
	*memory.Store
	afterList func()
}

func (s *interleavingStore) ListSeries(ctx context.Context, seriesID string) ([]core.Installment, error) {
	series, err := s.Store.ListSeries(ctx, seriesID)
	if hook := s.afterList; hook != nil {
		s.afterList = nil
		hook()
	}
	return series, err
}

func TestSettlementService_ConcurrentSettleBooksOnce(t *testing.T) {
	store, pub, plain, seriesID := newSettlementFixture(t)
	ctx := context.Background()
	racing := &interleavingStore{Store: store}
	svc := NewSettlementService(racing, NewLedgerService(store, nil, pub), pub)
	req := SettleRequest{SeriesID: seriesID, Sequence: 1, AmountPaid: core.Money{Cents: 10000}, PaidOn: core.NewDate(2024, 1, 9), Strategy: finance.Distribute}

	racing.afterList = func() {
		if _, err := plain.Settle(ctx, req); err != nil {
			t.Errorf("competing Settle() error = %v", err)
		}
	}
	if _, err := svc.Settle(ctx, req); !errors.Is(err, core.ErrAlreadySettled) {
		t.Errorf("late Settle() error = %v, want ErrAlreadySettled", err)
	}
	entries, _ := store.ListEntries(ctx, core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	if len(entries) != 1 {
		t.Errorf("ledger entries = %d, want the payment booked once", len(entries))
	}
}

func TestSettlementService_SweepDoesNotReopenPaid(t *testing.T) {
	store, _, svc, seriesID := newSettlementFixture(t)
	ctx := context.Background()
	// the sweep snapshot is taken, then the installment is settled
	stale, err := store.ListOpenInstallments(ctx, core.NewDate(2024, 2, 10))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Settle(ctx, SettleRequest{SeriesID: seriesID, Sequence: 1, AmountPaid: core.Money{Cents: 10000}, PaidOn: core.NewDate(2024, 1, 20), Strategy: finance.DeductNext}); err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	_, changed := finance.MarkOverdue(stale, core.NewDate(2024, 2, 10))
	if err := store.UpdateStatuses(ctx, changed); err != nil {
		t.Fatal(err)
	}
	if n, err := svc.SweepOverdue(ctx, core.NewDate(2024, 2, 10)); err != nil || n != 0 {
		t.Errorf("SweepOverdue() = %d, %v; nothing pending is past due", n, err)
	}

	stored, _ := store.ListSeries(ctx, seriesID)
	if stored[0].Status != core.StatusPaid {
		t.Errorf("paid installment became %s", stored[0].Status)
	}
	if _, err := svc.Settle(ctx, SettleRequest{SeriesID: seriesID, Sequence: 1, AmountPaid: core.Money{Cents: 10000}, PaidOn: core.NewDate(2024, 2, 11), Strategy: finance.DeductNext}); !errors.Is(err, core.ErrAlreadySettled) {
		t.Errorf("second Settle() error = %v, want ErrAlreadySettled", err)
	}
}

func TestSettlementService_UnknownSeries(t *testing.T) {
	_, _, svc, _ := newSettlementFixture(t)
	_, err := svc.Settle(context.Background(), SettleRequest{SeriesID: "missing", Sequence: 1, AmountPaid: core.Money{Cents: 100}, PaidOn: core.NewDate(2024, 1, 1), Strategy: finance.Distribute})
	if !errors.Is(err, core.ErrInstallmentNotFound) {
		t.Errorf("error = %v, want ErrInstallmentNotFound", err)
	}
}

func TestSettlementService_SweepOverdue(t *testing.T) {
	store, _, svc, seriesID := newSettlementFixture(t)
	ctx := context.Background()

	n, err := svc.SweepOverdue(ctx, core.NewDate(2024, 2, 10))
	if err != nil {
		t.Fatalf("SweepOverdue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("changed = %d, want 1 (due today is not overdue)", n)
	}
	stored, _ := store.ListSeries(ctx, seriesID)
	if stored[0].Status != core.StatusOverdue || stored[1].Status != core.StatusPending {
		t.Errorf("statuses = %s, %s", stored[0].Status, stored[1].Status)
	}
}

func TestRecurringProcessor_ProcessDue(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.AddRecurring(ctx, core.RecurringCharge{
		ID:          "r1",
		Description: "Hosting",
		Direction:   core.Expense,
		Amount:      core.Money{Cents: 9900},
		CategoryID:  "infra",
		StartDate:   core.NewDate(2024, 1, 10),
		Every:       core.Monthly,
	}); err != nil {
		t.Fatalf("AddRecurring: %v", err)
	}
	pub := &fakePublisher{}
	proc := NewRecurringProcessor(store, NewLedgerService(store, nil, pub))
	now := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)

	n, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue() error = %v", err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	entries, _ := store.ListEntries(ctx, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))
	if len(entries) != 1 || entries[0].Date != core.NewDate(2024, 3, 10) || entries[0].CategoryID != "infra" {
		t.Errorf("entries = %+v", entries)
	}
	if len(pub.ledger) != 1 {
		t.Errorf("published %d, want 1", len(pub.ledger))
	}

	n, err = proc.ProcessDue(ctx, now.Add(time.Hour))
	if err != nil || n != 0 {
		t.Errorf("second run = %d, %v; want 0, nil", n, err)
	}

	if _, err := NewRecurringProcessor(nil, nil).ProcessDue(ctx, now); err == nil {
		t.Error("uninitialized processor should fail")
	}
}
