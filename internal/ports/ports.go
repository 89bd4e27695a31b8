// Package ports declares the persistence collaborators the services depend on.
package ports

import (
	"context"
	"errors"
	"time"

	"contaae/internal/core"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Ports for outbound adapters.
type (
	LedgerReader interface {
		// ListEntries returns entries dated inside [start, end], oldest first.
		ListEntries(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error)
	}

	LedgerWriter interface {
		AppendEntry(ctx context.Context, e core.LedgerEntry) error
	}

	BudgetReader interface {
		ListBudgets(ctx context.Context, year, month int) ([]core.CategoryBudget, error)
	}

	BudgetWriter interface {
		// UpsertBudget replaces the budget of the same (category, year, month).
		UpsertBudget(ctx context.Context, b core.CategoryBudget) error
	}

	InstallmentStore interface {
		// ListSeries returns the installments of a series ordered by sequence,
		// or ErrNotFound.
		ListSeries(ctx context.Context, seriesID string) ([]core.Installment, error)
		// SaveSeries writes every installment of the series atomically.
		// Installments already paid in the store are left as they are.
		SaveSeries(ctx context.Context, series []core.Installment) error
		// SaveSettlement writes the installments of after that differ from
		// before in one transaction, provided the store still holds them as in
		// before. It returns core.ErrAlreadySettled when the settled
		// installment is already paid and core.ErrSeriesChanged when another
		// installment moved underneath.
		SaveSettlement(ctx context.Context, before, after []core.Installment) error
		// ListOpenInstallments returns pending and overdue installments due on
		// or before the given date.
		ListOpenInstallments(ctx context.Context, dueBy core.Date) ([]core.Installment, error)
		// UpdateStatuses moves pending installments to the given status;
		// installments no longer pending are skipped.
		UpdateStatuses(ctx context.Context, changed []core.Installment) error
	}

	RecurringStore interface {
		ListActiveRecurring(ctx context.Context, on core.Date) ([]core.RecurringCharge, error)
		AddRecurring(ctx context.Context, rc core.RecurringCharge) error
		UpdateRecurringLastExecution(ctx context.Context, id string, at time.Time) error
	}

	// Store is the full set of persistence ports a backend provides.
	Store interface {
		LedgerReader
		LedgerWriter
		BudgetReader
		BudgetWriter
		InstallmentStore
		RecurringStore
		Close() error
	}
)
