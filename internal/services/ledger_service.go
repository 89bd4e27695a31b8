package services

import (
	"context"
	"fmt"
	"log/slog"

	"contaae/internal/amqp"
	"contaae/internal/core"
	"contaae/internal/log"
	"contaae/internal/ports"
)

// Publisher announces domain events. *amqp.Client implements it.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg amqp.LedgerChangedMessage) error
	PublishInstallmentSettled(ctx context.Context, msg amqp.InstallmentSettledMessage) error
}

// LedgerService records ledger entries and keeps derived reports fresh.
type LedgerService struct {
	writer    ports.LedgerWriter
	reports   *ReportService
	publisher Publisher
}

// NewLedgerService wires the ledger writer. reports and publisher may be nil.
func NewLedgerService(writer ports.LedgerWriter, reports *ReportService, publisher Publisher) *LedgerService {
	return &LedgerService{writer: writer, reports: reports, publisher: publisher}
}

// RecordEntry validates and stores e, then publishes ledger.changed.
// A publish failure is logged; the entry is already stored.
func (s *LedgerService) RecordEntry(ctx context.Context, e core.LedgerEntry) (core.LedgerEntry, error) {
	if err := e.Validate(); err != nil {
		return core.LedgerEntry{}, err
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	e.Date = core.DateOf(e.Date.Time)

	if err := s.writer.AppendEntry(ctx, e); err != nil {
		return core.LedgerEntry{}, fmt.Errorf("append entry: %w", err)
	}
	if s.reports != nil {
		s.reports.Invalidate(e.Date.Year())
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogEntryRecorded(ctx, e.ID, string(e.Direction), e.Amount.Cents, e.Category())

	if s.publisher == nil {
		return e, nil
	}
	msg := amqp.LedgerChangedMessage{
		EntryID:     e.ID,
		Direction:   string(e.Direction),
		AmountCents: e.Amount.Cents,
		Year:        e.Date.Year(),
		Month:       e.Date.Month(),
	}
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"entry_id", e.ID,
			"error", err)
	}
	return e, nil
}
