package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"contaae/internal/core"
	"contaae/internal/ports"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) AppendEntry(ctx context.Context, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	err := r.queries.CreateEntry(ctx, CreateEntryParams{
		ID:             e.ID,
		Direction:      string(e.Direction),
		AmountCents:    e.Amount.Cents,
		EntryDate:      e.Date.String(),
		Description:    e.Description,
		CategoryID:     e.CategoryID,
		CategoryName:   e.CategoryName,
		CounterpartyID: e.CounterpartyID,
		BankAccountID:  e.BankAccountID,
	})
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}

	slog.DebugContext(ctx, "Ledger entry saved to SQLite",
		"id", e.ID,
		"direction", e.Direction,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.String())
	return nil
}

func (r *SQLiteRepository) ListEntries(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	rows, err := r.queries.ListEntriesBetween(ctx, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]core.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		d, err := core.ParseDate(row.EntryDate)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", row.ID, err)
		}
		out = append(out, core.LedgerEntry{
			ID:             row.ID,
			Direction:      core.Direction(row.Direction),
			Amount:         core.Money{Cents: row.AmountCents},
			Date:           d,
			Description:    row.Description,
			CategoryID:     row.CategoryID,
			CategoryName:   row.CategoryName,
			CounterpartyID: row.CounterpartyID,
			BankAccountID:  row.BankAccountID,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.CategoryBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	err := r.queries.UpsertBudget(ctx, BudgetRow{
		CategoryID:          b.CategoryID,
		CategoryName:        b.CategoryName,
		Year:                int64(b.Year),
		Month:               int64(b.Month),
		PlannedExpenseCents: b.PlannedExpense.Cents,
		PlannedIncomeCents:  b.PlannedIncome.Cents,
	})
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, year, month int) ([]core.CategoryBudget, error) {
	rows, err := r.queries.ListBudgets(ctx, int64(year), int64(month))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.CategoryBudget, len(rows))
	for i, row := range rows {
		out[i] = core.CategoryBudget{
			CategoryID:     row.CategoryID,
			CategoryName:   row.CategoryName,
			Year:           int(row.Year),
			Month:          int(row.Month),
			PlannedExpense: core.Money{Cents: row.PlannedExpenseCents},
			PlannedIncome:  core.Money{Cents: row.PlannedIncomeCents},
		}
	}
	return out, nil
}

func (r *SQLiteRepository) ListSeries(ctx context.Context, seriesID string) ([]core.Installment, error) {
	rows, err := r.queries.ListSeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, ports.ErrNotFound)
	}
	return installmentsFromRows(rows)
}

// SaveSeries writes the whole series in a single transaction.
func (r *SQLiteRepository) SaveSeries(ctx context.Context, series []core.Installment) error {
	if len(series) == 0 {
		return nil
	}
	if err := core.ValidateSeries(core.SortSeries(series)); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, in := range series {
		row := InstallmentRow{
			SeriesID:        in.SeriesID,
			Sequence:        int64(in.Sequence),
			Kind:            string(in.Kind),
			Description:     in.Description,
			AmountCents:     in.Amount.Cents,
			DueDate:         in.DueDate.String(),
			Status:          string(in.Status),
			PaidAmountCents: in.PaidAmount.Cents,
		}
		if !in.PaidDate.IsZero() {
			row.PaidDate = sql.NullString{String: in.PaidDate.String(), Valid: true}
		}
		if err := q.UpsertInstallment(ctx, row); err != nil {
			return fmt.Errorf("save installment %s #%d: %w", in.SeriesID, in.Sequence, err)
		}
	}
	return tx.Commit()
}

// SaveSettlement applies a settlement as compare-and-set writes in one
// transaction; nothing is written when any installment moved since before.
func (r *SQLiteRepository) SaveSettlement(ctx context.Context, before, after []core.Installment) error {
	changes := core.DiffSeries(before, after)
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, c := range changes {
		in := c.Next
		var n int64
		if c.Settles {
			n, err = q.MarkInstallmentPaid(ctx, in.PaidAmount.Cents, in.PaidDate.String(), in.SeriesID, int64(in.Sequence), c.PrevAmount.Cents)
		} else {
			n, err = q.AdjustInstallmentAmount(ctx, in.Amount.Cents, in.SeriesID, int64(in.Sequence), c.PrevAmount.Cents)
		}
		if err != nil {
			return fmt.Errorf("save installment %s #%d: %w", in.SeriesID, in.Sequence, err)
		}
		if n == 1 {
			continue
		}
		if c.Settles {
			status, err := q.GetInstallmentStatus(ctx, in.SeriesID, int64(in.Sequence))
			if err == nil && status == string(core.StatusPaid) {
				return fmt.Errorf("%w: %s #%d", core.ErrAlreadySettled, in.SeriesID, in.Sequence)
			}
		}
		return fmt.Errorf("%w: %s #%d", core.ErrSeriesChanged, in.SeriesID, in.Sequence)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) ListOpenInstallments(ctx context.Context, dueBy core.Date) ([]core.Installment, error) {
	rows, err := r.queries.ListOpenInstallments(ctx, dueBy.String())
	if err != nil {
		return nil, fmt.Errorf("list open installments: %w", err)
	}
	return installmentsFromRows(rows)
}

func (r *SQLiteRepository) UpdateStatuses(ctx context.Context, changed []core.Installment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	for _, in := range changed {
		if err := q.UpdateInstallmentStatus(ctx, string(in.Status), in.SeriesID, int64(in.Sequence)); err != nil {
			return fmt.Errorf("update status %s #%d: %w", in.SeriesID, in.Sequence, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRepository) AddRecurring(ctx context.Context, rc core.RecurringCharge) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if rc.ID == "" {
		rc.ID = core.NewID()
	}
	row := RecurringRow{
		ID:             rc.ID,
		Description:    rc.Description,
		Direction:      string(rc.Direction),
		AmountCents:    rc.Amount.Cents,
		CategoryID:     rc.CategoryID,
		CounterpartyID: rc.CounterpartyID,
		StartDate:      rc.StartDate.String(),
		Every:          string(rc.Every),
	}
	if !rc.EndDate.IsZero() {
		row.EndDate = sql.NullString{String: rc.EndDate.String(), Valid: true}
	}
	if !rc.LastExecution.IsZero() {
		row.LastExecution = sql.NullTime{Time: rc.LastExecution, Valid: true}
	}
	if err := r.queries.CreateRecurring(ctx, row); err != nil {
		return fmt.Errorf("create recurring: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListActiveRecurring(ctx context.Context, on core.Date) ([]core.RecurringCharge, error) {
	rows, err := r.queries.ListActiveRecurring(ctx, on.String())
	if err != nil {
		return nil, fmt.Errorf("list active recurring: %w", err)
	}
	out := make([]core.RecurringCharge, 0, len(rows))
	for _, row := range rows {
		start, err := core.ParseDate(row.StartDate)
		if err != nil {
			return nil, fmt.Errorf("recurring %s start: %w", row.ID, err)
		}
		rc := core.RecurringCharge{
			ID:             row.ID,
			Description:    row.Description,
			Direction:      core.Direction(row.Direction),
			Amount:         core.Money{Cents: row.AmountCents},
			CategoryID:     row.CategoryID,
			CounterpartyID: row.CounterpartyID,
			StartDate:      start,
			Every:          core.RepetitionTypes(row.Every),
		}
		if row.EndDate.Valid {
			if rc.EndDate, err = core.ParseDate(row.EndDate.String); err != nil {
				return nil, fmt.Errorf("recurring %s end: %w", row.ID, err)
			}
		}
		if row.LastExecution.Valid {
			rc.LastExecution = row.LastExecution.Time
		}
		out = append(out, rc)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateRecurringLastExecution(ctx context.Context, id string, at time.Time) error {
	n, err := r.queries.UpdateRecurringLastExecution(ctx, sql.NullTime{Time: at, Valid: true}, id)
	if err != nil {
		return fmt.Errorf("update last execution: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recurring %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func installmentsFromRows(rows []InstallmentRow) ([]core.Installment, error) {
	out := make([]core.Installment, 0, len(rows))
	for _, row := range rows {
		due, err := time.Parse(dateLayout, row.DueDate)
		if err != nil {
			return nil, fmt.Errorf("installment %s #%d due date: %w", row.SeriesID, row.Sequence, err)
		}
		in := core.Installment{
			SeriesID:    row.SeriesID,
			Kind:        core.InstallmentKind(row.Kind),
			Sequence:    int(row.Sequence),
			Description: row.Description,
			Amount:      core.Money{Cents: row.AmountCents},
			DueDate:     core.DateOf(due),
			Status:      core.InstallmentStatus(row.Status),
			PaidAmount:  core.Money{Cents: row.PaidAmountCents},
		}
		if row.PaidDate.Valid {
			if in.PaidDate, err = core.ParseDate(row.PaidDate.String); err != nil {
				return nil, err
			}
		}
		out = append(out, in)
	}
	return out, nil
}
