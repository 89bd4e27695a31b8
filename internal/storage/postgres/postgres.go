// Package postgres is the PostgreSQL backend of the finance store.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"contaae/internal/core"
	"contaae/internal/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Store)(nil)

// New connects to databaseURL, applies pending migrations and returns a store.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	cfg.ConnConfig.ConnectTimeout = 10 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// RunMigrations applies the embedded migrations through the pgx/v5 driver.
func RunMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	if version, dirty, err := m.Version(); err == nil {
		slog.Debug("Postgres schema ready", "version", version, "dirty", dirty)
	}
	return nil
}

// migrateURL rewrites a postgres:// url to the scheme the pgx/v5 migrate driver registers.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) AppendEntry(ctx context.Context, e core.LedgerEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_entries (id, direction, amount_cents, entry_date, description, category_id, category_name, counterparty_id, bank_account_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, string(e.Direction), e.Amount.Cents, e.Date.Time, e.Description,
		e.CategoryID, e.CategoryName, e.CounterpartyID, e.BankAccountID)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func (s *Store) ListEntries(ctx context.Context, start, end core.Date) ([]core.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, direction, amount_cents, entry_date, description, category_id, category_name, counterparty_id, bank_account_id
		FROM ledger_entries
		WHERE entry_date BETWEEN $1 AND $2
		ORDER BY entry_date, created_at, id`, start.Time, end.Time)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.LedgerEntry, error) {
		var (
			e   core.LedgerEntry
			dir string
			on  time.Time
		)
		err := row.Scan(&e.ID, &dir, &e.Amount.Cents, &on, &e.Description,
			&e.CategoryID, &e.CategoryName, &e.CounterpartyID, &e.BankAccountID)
		e.Direction = core.Direction(dir)
		e.Date = core.DateOf(on)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}
	return entries, nil
}

func (s *Store) UpsertBudget(ctx context.Context, b core.CategoryBudget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO category_budgets (category_id, category_name, year, month, planned_expense_cents, planned_income_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (category_id, year, month) DO UPDATE SET
			category_name = EXCLUDED.category_name,
			planned_expense_cents = EXCLUDED.planned_expense_cents,
			planned_income_cents = EXCLUDED.planned_income_cents`,
		b.CategoryID, b.CategoryName, b.Year, b.Month, b.PlannedExpense.Cents, b.PlannedIncome.Cents)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, year, month int) ([]core.CategoryBudget, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category_id, category_name, year, month, planned_expense_cents, planned_income_cents
		FROM category_budgets
		WHERE year = $1 AND month = $2
		ORDER BY category_id`, year, month)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	budgets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.CategoryBudget, error) {
		var (
			b core.CategoryBudget
			y int32
			m int16
		)
		err := row.Scan(&b.CategoryID, &b.CategoryName, &y, &m, &b.PlannedExpense.Cents, &b.PlannedIncome.Cents)
		b.Year, b.Month = int(y), int(m)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan budgets: %w", err)
	}
	return budgets, nil
}

const installmentColumns = `series_id, sequence, kind, description, amount_cents, due_date, status, paid_amount_cents, paid_date`

func (s *Store) ListSeries(ctx context.Context, seriesID string) ([]core.Installment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+installmentColumns+` FROM installments WHERE series_id = $1 ORDER BY sequence`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	series, err := pgx.CollectRows(rows, scanInstallment)
	if err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("series %s: %w", seriesID, ports.ErrNotFound)
	}
	return series, nil
}

// SaveSeries upserts every installment of the series in one transaction.
func (s *Store) SaveSeries(ctx context.Context, series []core.Installment) error {
	if len(series) == 0 {
		return nil
	}
	if err := core.ValidateSeries(core.SortSeries(series)); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, in := range series {
		var paid *time.Time
		if !in.PaidDate.IsZero() {
			t := in.PaidDate.Time
			paid = &t
		}
		batch.Queue(`
			INSERT INTO installments (`+installmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (series_id, sequence) DO UPDATE SET
				kind = EXCLUDED.kind,
				description = EXCLUDED.description,
				amount_cents = EXCLUDED.amount_cents,
				due_date = EXCLUDED.due_date,
				status = EXCLUDED.status,
				paid_amount_cents = EXCLUDED.paid_amount_cents,
				paid_date = EXCLUDED.paid_date
			WHERE installments.status <> 'paid'`,
			in.SeriesID, in.Sequence, string(in.Kind), in.Description, in.Amount.Cents,
			in.DueDate.Time, string(in.Status), in.PaidAmount.Cents, paid)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save series %s: %w", series[0].SeriesID, err)
	}
	return tx.Commit(ctx)
}

// SaveSettlement applies a settlement as compare-and-set updates in one
// transaction; nothing is written when any installment moved since before.
func (s *Store) SaveSettlement(ctx context.Context, before, after []core.Installment) error {
	changes := core.DiffSeries(before, after)
	if len(changes) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range changes {
		in := c.Next
		var tag pgconn.CommandTag
		if c.Settles {
			tag, err = tx.Exec(ctx, `
				UPDATE installments SET status = 'paid', paid_amount_cents = $1, paid_date = $2
				WHERE series_id = $3 AND sequence = $4 AND status <> 'paid' AND amount_cents = $5`,
				in.PaidAmount.Cents, in.PaidDate.Time, in.SeriesID, in.Sequence, c.PrevAmount.Cents)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE installments SET amount_cents = $1
				WHERE series_id = $2 AND sequence = $3 AND status <> 'paid' AND amount_cents = $4`,
				in.Amount.Cents, in.SeriesID, in.Sequence, c.PrevAmount.Cents)
		}
		if err != nil {
			return fmt.Errorf("save installment %s #%d: %w", in.SeriesID, in.Sequence, err)
		}
		if tag.RowsAffected() == 1 {
			continue
		}
		if c.Settles {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM installments WHERE series_id = $1 AND sequence = $2`,
				in.SeriesID, in.Sequence).Scan(&status)
			if err == nil && status == string(core.StatusPaid) {
				return fmt.Errorf("%w: %s #%d", core.ErrAlreadySettled, in.SeriesID, in.Sequence)
			}
		}
		return fmt.Errorf("%w: %s #%d", core.ErrSeriesChanged, in.SeriesID, in.Sequence)
	}
	return tx.Commit(ctx)
}

func (s *Store) ListOpenInstallments(ctx context.Context, dueBy core.Date) ([]core.Installment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+installmentColumns+` FROM installments
		WHERE status IN ('pending', 'overdue') AND due_date <= $1
		ORDER BY series_id, sequence`, dueBy.Time)
	if err != nil {
		return nil, fmt.Errorf("list open installments: %w", err)
	}
	open, err := pgx.CollectRows(rows, scanInstallment)
	if err != nil {
		return nil, fmt.Errorf("scan open installments: %w", err)
	}
	return open, nil
}

func (s *Store) UpdateStatuses(ctx context.Context, changed []core.Installment) error {
	if len(changed) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, in := range changed {
		batch.Queue(`UPDATE installments SET status = $1 WHERE series_id = $2 AND sequence = $3 AND status = 'pending'`,
			string(in.Status), in.SeriesID, in.Sequence)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("update statuses: %w", err)
	}
	return nil
}

func (s *Store) AddRecurring(ctx context.Context, rc core.RecurringCharge) error {
	if err := rc.Validate(); err != nil {
		return err
	}
	if rc.ID == "" {
		rc.ID = core.NewID()
	}
	var end, last *time.Time
	if !rc.EndDate.IsZero() {
		t := rc.EndDate.Time
		end = &t
	}
	if !rc.LastExecution.IsZero() {
		t := rc.LastExecution
		last = &t
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO recurring_charges (id, description, direction, amount_cents, category_id, counterparty_id, start_date, end_date, every, last_execution)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rc.ID, rc.Description, string(rc.Direction), rc.Amount.Cents, rc.CategoryID,
		rc.CounterpartyID, rc.StartDate.Time, end, string(rc.Every), last)
	if err != nil {
		return fmt.Errorf("insert recurring: %w", err)
	}
	return nil
}

func (s *Store) ListActiveRecurring(ctx context.Context, on core.Date) ([]core.RecurringCharge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, description, direction, amount_cents, category_id, counterparty_id, start_date, end_date, every, last_execution
		FROM recurring_charges
		WHERE start_date <= $1 AND (end_date IS NULL OR end_date >= $1)
		ORDER BY start_date, id`, on.Time)
	if err != nil {
		return nil, fmt.Errorf("list active recurring: %w", err)
	}
	charges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.RecurringCharge, error) {
		var (
			rc         core.RecurringCharge
			dir, every string
			start      time.Time
			end, last  *time.Time
		)
		err := row.Scan(&rc.ID, &rc.Description, &dir, &rc.Amount.Cents, &rc.CategoryID,
			&rc.CounterpartyID, &start, &end, &every, &last)
		rc.Direction = core.Direction(dir)
		rc.Every = core.RepetitionTypes(every)
		rc.StartDate = core.DateOf(start)
		if end != nil {
			rc.EndDate = core.DateOf(*end)
		}
		if last != nil {
			rc.LastExecution = *last
		}
		return rc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan recurring: %w", err)
	}
	return charges, nil
}

func (s *Store) UpdateRecurringLastExecution(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE recurring_charges SET last_execution = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("update last execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recurring %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func scanInstallment(row pgx.CollectableRow) (core.Installment, error) {
	var (
		in           core.Installment
		seq          int32
		kind, status string
		due          time.Time
		paid         *time.Time
	)
	err := row.Scan(&in.SeriesID, &seq, &kind, &in.Description, &in.Amount.Cents,
		&due, &status, &in.PaidAmount.Cents, &paid)
	in.Sequence = int(seq)
	in.Kind = core.InstallmentKind(kind)
	in.Status = core.InstallmentStatus(status)
	in.DueDate = core.DateOf(due)
	if paid != nil {
		in.PaidDate = core.DateOf(*paid)
	}
	return in, err
}
