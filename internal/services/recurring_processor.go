package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contaae/internal/core"
	"contaae/internal/log"
	"contaae/internal/ports"
)

// RecurringProcessor books ledger entries for recurring billing templates
// whose next occurrence has arrived.
type RecurringProcessor struct {
	store  ports.RecurringStore
	ledger *LedgerService
}

func NewRecurringProcessor(store ports.RecurringStore, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{store: store, ledger: ledger}
}

// ProcessDue creates one entry per due template and returns how many were
// booked. Failures on a single template are logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.ledger == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	today := core.DateOf(now)

	charges, err := p.store.ListActiveRecurring(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list active recurring charges: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring charges",
		"total_active", len(charges),
		"processing_date", today.String())

	sl := log.NewStructuredLogger(log.FromContext(ctx))
	processed := 0
	for _, rc := range charges {
		occurrence, due, err := IsDue(rc, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check if charge is due",
				"recurring_id", rc.ID,
				"error", err)
			continue
		}
		if !due {
			continue
		}

		entry := core.LedgerEntry{
			Direction:      rc.Direction,
			Amount:         rc.Amount,
			Date:           occurrence,
			Description:    rc.Description,
			CategoryID:     rc.CategoryID,
			CounterpartyID: rc.CounterpartyID,
		}
		if _, err := p.ledger.RecordEntry(ctx, entry); err != nil {
			sl.LogError(ctx, "Failed to create entry from recurring template", err, log.ComponentRecurring,
				log.LogFields{log.FieldRecurringID: rc.ID, log.FieldOccurrence: occurrence.String()})
			continue
		}

		if err := p.store.UpdateRecurringLastExecution(ctx, rc.ID, now); err != nil {
			// the entry exists; the next run would book it twice
			slog.ErrorContext(ctx, "Failed to update last execution date",
				"recurring_id", rc.ID,
				"error", err)
		}

		processed++
		sl.LogRecurringBooked(ctx, rc.ID, occurrence.String(), rc.Amount.Cents)
	}

	slog.InfoContext(ctx, "Recurring charge processing complete",
		"processed", processed,
		"total_checked", len(charges))

	return processed, nil
}
