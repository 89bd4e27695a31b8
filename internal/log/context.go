package log

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the request-scoped logger, or one over slog.Default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger writes the domain events every binary logs the same way.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPEnd logs a finished request; 4xx is a warning and 5xx an error.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogEntryRecorded(ctx context.Context, id, direction string, amountCents int64, category string) {
	fields := NewFields().
		WithEntry(id, direction, amountCents, category).
		WithOperation(OpCreate).
		WithComponent(ComponentLedger)

	sl.logger.Logger.InfoContext(ctx, "Ledger entry recorded", fields.ToSlice()...)
}

// LogSettlement logs an installment settlement; a residual raises the level to warn.
func (sl *StructuredLogger) LogSettlement(ctx context.Context, seriesID string, sequence int, strategy string, differenceCents, residualCents int64) {
	fields := NewFields().
		WithSettlement(seriesID, sequence, strategy, differenceCents, residualCents).
		WithOperation(OpSettle).
		WithComponent(ComponentSettlement)

	if residualCents != 0 {
		sl.logger.Logger.WarnContext(ctx, "Installment settled with unresolved residual", fields.ToSlice()...)
		return
	}
	sl.logger.Logger.InfoContext(ctx, "Installment settled", fields.ToSlice()...)
}

// LogRecurringBooked logs the entry created for one recurring occurrence.
func (sl *StructuredLogger) LogRecurringBooked(ctx context.Context, recurringID, occurrence string, amountCents int64) {
	fields := NewFields().
		WithComponent(ComponentRecurring).
		WithOperation(OpBook)
	fields[FieldRecurringID] = recurringID
	fields[FieldOccurrence] = occurrence
	fields[FieldAmountCents] = amountCents

	sl.logger.Logger.InfoContext(ctx, "Recurring charge booked", fields.ToSlice()...)
}

// LogExport logs a report written to the spreadsheet or a file.
func (sl *StructuredLogger) LogExport(ctx context.Context, report string, year, month int, rangeRef string) {
	fields := NewFields().
		WithPeriod(year, month).
		WithOperation(OpExport).
		WithComponent(ComponentWorker)
	fields[FieldRange] = rangeRef

	sl.logger.Logger.InfoContext(ctx, "Exported "+report, fields.ToSlice()...)
}

// LogError logs err with the component and any extra fields.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields.WithError(err).WithComponent(component)
	sl.logger.Logger.ErrorContext(ctx, msg, fields.ToSlice()...)
}
