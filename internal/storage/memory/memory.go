package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"contaae/internal/core"
	"contaae/internal/ports"
)

// Store keeps every record in process memory. It backs local development and
// the service tests.
type Store struct {
	mu        sync.Mutex
	entries   []core.LedgerEntry
	budgets   map[budgetKey]core.CategoryBudget
	series    map[string][]core.Installment
	recurring []core.RecurringCharge
}

type budgetKey struct {
	category    string
	year, month int
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		budgets: make(map[budgetKey]core.CategoryBudget),
		series:  make(map[string][]core.Installment),
	}
}

// AppendEntry stores the entry, assigning an id when missing.
func (s *Store) AppendEntry(_ context.Context, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) ListEntries(_ context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LedgerEntry
	for _, e := range s.entries {
		if e.Date.Within(start, end) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpsertBudget(_ context.Context, b core.CategoryBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[budgetKey{b.CategoryID, b.Year, b.Month}] = b
	return nil
}

func (s *Store) ListBudgets(_ context.Context, year, month int) ([]core.CategoryBudget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CategoryBudget
	for k, b := range s.budgets {
		if k.year == year && k.month == month {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out, nil
}

func (s *Store) ListSeries(_ context.Context, seriesID string) ([]core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	series, ok := s.series[seriesID]
	if !ok {
		return nil, fmt.Errorf("series %s: %w", seriesID, ports.ErrNotFound)
	}
	return core.SortSeries(series), nil
}

func (s *Store) SaveSeries(_ context.Context, series []core.Installment) error {
	if len(series) == 0 {
		return nil
	}
	sorted := core.SortSeries(series)
	if err := core.ValidateSeries(sorted); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, in := range sorted {
		if cur, ok := s.find(in.SeriesID, in.Sequence); ok && cur.Status == core.StatusPaid {
			sorted[i] = cur
		}
	}
	s.series[sorted[0].SeriesID] = sorted
	return nil
}

func (s *Store) SaveSettlement(_ context.Context, before, after []core.Installment) error {
	changes := core.DiffSeries(before, after)
	if len(changes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range changes {
		cur, ok := s.find(c.Next.SeriesID, c.Next.Sequence)
		if !ok {
			return fmt.Errorf("%w: %s #%d", core.ErrInstallmentNotFound, c.Next.SeriesID, c.Next.Sequence)
		}
		switch {
		case c.Settles && cur.Status == core.StatusPaid:
			return fmt.Errorf("%w: %s #%d", core.ErrAlreadySettled, cur.SeriesID, cur.Sequence)
		case cur.Status == core.StatusPaid || cur.Amount != c.PrevAmount:
			return fmt.Errorf("%w: %s #%d", core.ErrSeriesChanged, cur.SeriesID, cur.Sequence)
		}
	}

	series := s.series[changes[0].Next.SeriesID]
	for _, c := range changes {
		for i := range series {
			if series[i].Sequence != c.Next.Sequence {
				continue
			}
			if c.Settles {
				series[i].Status = core.StatusPaid
				series[i].PaidAmount = c.Next.PaidAmount
				series[i].PaidDate = c.Next.PaidDate
			} else {
				series[i].Amount = c.Next.Amount
			}
		}
	}
	return nil
}

func (s *Store) find(seriesID string, sequence int) (core.Installment, bool) {
	for _, in := range s.series[seriesID] {
		if in.Sequence == sequence {
			return in, true
		}
	}
	return core.Installment{}, false
}

func (s *Store) ListOpenInstallments(_ context.Context, dueBy core.Date) ([]core.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Installment
	for _, series := range s.series {
		for _, in := range series {
			if in.Status.Open() && !in.DueDate.After(dueBy) {
				out = append(out, in)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeriesID != out[j].SeriesID {
			return out[i].SeriesID < out[j].SeriesID
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, nil
}

func (s *Store) UpdateStatuses(_ context.Context, changed []core.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range changed {
		series := s.series[c.SeriesID]
		for i := range series {
			if series[i].Sequence == c.Sequence && series[i].Status == core.StatusPending {
				series[i].Status = c.Status
			}
		}
	}
	return nil
}

func (s *Store) AddRecurring(_ context.Context, rc core.RecurringCharge) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if rc.ID == "" {
		rc.ID = core.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recurring = append(s.recurring, rc)
	return nil
}

func (s *Store) ListActiveRecurring(_ context.Context, on core.Date) ([]core.RecurringCharge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurringCharge
	for _, rc := range s.recurring {
		if rc.Active(on) {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (s *Store) UpdateRecurringLastExecution(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recurring {
		if s.recurring[i].ID == id {
			s.recurring[i].LastExecution = at
			return nil
		}
	}
	return fmt.Errorf("recurring %s: %w", id, ports.ErrNotFound)
}

func (s *Store) Close() error { return nil }
