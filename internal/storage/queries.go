package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so the same queries run inside
// and outside a transaction.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const createEntry = `
INSERT INTO ledger_entries (id, direction, amount_cents, entry_date, description, category_id, category_name, counterparty_id, bank_account_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

type CreateEntryParams struct {
	ID             string
	Direction      string
	AmountCents    int64
	EntryDate      string
	Description    string
	CategoryID     string
	CategoryName   string
	CounterpartyID string
	BankAccountID  string
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) error {
	_, err := q.db.ExecContext(ctx, createEntry,
		arg.ID, arg.Direction, arg.AmountCents, arg.EntryDate, arg.Description,
		arg.CategoryID, arg.CategoryName, arg.CounterpartyID, arg.BankAccountID)
	return err
}

const listEntriesBetween = `
SELECT id, direction, amount_cents, entry_date, description, category_id, category_name, counterparty_id, bank_account_id
FROM ledger_entries
WHERE entry_date BETWEEN ? AND ?
ORDER BY entry_date, created_at, id`

type EntryRow struct {
	ID             string
	Direction      string
	AmountCents    int64
	EntryDate      string
	Description    string
	CategoryID     string
	CategoryName   string
	CounterpartyID string
	BankAccountID  string
}

func (q *Queries) ListEntriesBetween(ctx context.Context, start, end string) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, listEntriesBetween, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EntryRow
	for rows.Next() {
		var i EntryRow
		if err := rows.Scan(&i.ID, &i.Direction, &i.AmountCents, &i.EntryDate, &i.Description,
			&i.CategoryID, &i.CategoryName, &i.CounterpartyID, &i.BankAccountID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const upsertBudget = `
INSERT INTO category_budgets (category_id, category_name, year, month, planned_expense_cents, planned_income_cents)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (category_id, year, month) DO UPDATE SET
    category_name = excluded.category_name,
    planned_expense_cents = excluded.planned_expense_cents,
    planned_income_cents = excluded.planned_income_cents`

type BudgetRow struct {
	CategoryID          string
	CategoryName        string
	Year                int64
	Month               int64
	PlannedExpenseCents int64
	PlannedIncomeCents  int64
}

func (q *Queries) UpsertBudget(ctx context.Context, arg BudgetRow) error {
	_, err := q.db.ExecContext(ctx, upsertBudget,
		arg.CategoryID, arg.CategoryName, arg.Year, arg.Month, arg.PlannedExpenseCents, arg.PlannedIncomeCents)
	return err
}

const listBudgets = `
SELECT category_id, category_name, year, month, planned_expense_cents, planned_income_cents
FROM category_budgets
WHERE year = ? AND month = ?
ORDER BY category_id`

func (q *Queries) ListBudgets(ctx context.Context, year, month int64) ([]BudgetRow, error) {
	rows, err := q.db.QueryContext(ctx, listBudgets, year, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetRow
	for rows.Next() {
		var i BudgetRow
		if err := rows.Scan(&i.CategoryID, &i.CategoryName, &i.Year, &i.Month, &i.PlannedExpenseCents, &i.PlannedIncomeCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type InstallmentRow struct {
	SeriesID        string
	Sequence        int64
	Kind            string
	Description     string
	AmountCents     int64
	DueDate         string
	Status          string
	PaidAmountCents int64
	PaidDate        sql.NullString
}

const installmentColumns = `series_id, sequence, kind, description, amount_cents, due_date, status, paid_amount_cents, paid_date`

const upsertInstallment = `
INSERT INTO installments (` + installmentColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (series_id, sequence) DO UPDATE SET
    kind = excluded.kind,
    description = excluded.description,
    amount_cents = excluded.amount_cents,
    due_date = excluded.due_date,
    status = excluded.status,
    paid_amount_cents = excluded.paid_amount_cents,
    paid_date = excluded.paid_date
WHERE installments.status <> 'paid'`

func (q *Queries) UpsertInstallment(ctx context.Context, arg InstallmentRow) error {
	_, err := q.db.ExecContext(ctx, upsertInstallment,
		arg.SeriesID, arg.Sequence, arg.Kind, arg.Description, arg.AmountCents,
		arg.DueDate, arg.Status, arg.PaidAmountCents, arg.PaidDate)
	return err
}

const listSeries = `
SELECT ` + installmentColumns + `
FROM installments
WHERE series_id = ?
ORDER BY sequence`

func (q *Queries) ListSeries(ctx context.Context, seriesID string) ([]InstallmentRow, error) {
	return q.queryInstallments(ctx, listSeries, seriesID)
}

const listOpenInstallments = `
SELECT ` + installmentColumns + `
FROM installments
WHERE status IN ('pending', 'overdue') AND due_date <= ?
ORDER BY series_id, sequence`

func (q *Queries) ListOpenInstallments(ctx context.Context, dueBy string) ([]InstallmentRow, error) {
	return q.queryInstallments(ctx, listOpenInstallments, dueBy)
}

func (q *Queries) queryInstallments(ctx context.Context, query string, args ...interface{}) ([]InstallmentRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InstallmentRow
	for rows.Next() {
		var i InstallmentRow
		if err := rows.Scan(&i.SeriesID, &i.Sequence, &i.Kind, &i.Description, &i.AmountCents,
			&i.DueDate, &i.Status, &i.PaidAmountCents, &i.PaidDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateInstallmentStatus = `
UPDATE installments SET status = ?
WHERE series_id = ? AND sequence = ? AND status = 'pending'`

func (q *Queries) UpdateInstallmentStatus(ctx context.Context, status, seriesID string, sequence int64) error {
	_, err := q.db.ExecContext(ctx, updateInstallmentStatus, status, seriesID, sequence)
	return err
}

const markInstallmentPaid = `
UPDATE installments SET status = 'paid', paid_amount_cents = ?, paid_date = ?
WHERE series_id = ? AND sequence = ? AND status <> 'paid' AND amount_cents = ?`

// MarkInstallmentPaid returns the number of rows it changed: zero when the
// installment is already paid or its amount moved.
func (q *Queries) MarkInstallmentPaid(ctx context.Context, paidAmountCents int64, paidDate, seriesID string, sequence, amountCents int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, markInstallmentPaid, paidAmountCents, paidDate, seriesID, sequence, amountCents)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const adjustInstallmentAmount = `
UPDATE installments SET amount_cents = ?
WHERE series_id = ? AND sequence = ? AND status <> 'paid' AND amount_cents = ?`

func (q *Queries) AdjustInstallmentAmount(ctx context.Context, amountCents int64, seriesID string, sequence, prevAmountCents int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, adjustInstallmentAmount, amountCents, seriesID, sequence, prevAmountCents)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getInstallmentStatus = `
SELECT status FROM installments WHERE series_id = ? AND sequence = ?`

func (q *Queries) GetInstallmentStatus(ctx context.Context, seriesID string, sequence int64) (string, error) {
	var status string
	err := q.db.QueryRowContext(ctx, getInstallmentStatus, seriesID, sequence).Scan(&status)
	return status, err
}

type RecurringRow struct {
	ID             string
	Description    string
	Direction      string
	AmountCents    int64
	CategoryID     string
	CounterpartyID string
	StartDate      string
	EndDate        sql.NullString
	Every          string
	LastExecution  sql.NullTime
}

const createRecurring = `
INSERT INTO recurring_charges (id, description, direction, amount_cents, category_id, counterparty_id, start_date, end_date, every, last_execution)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRecurring(ctx context.Context, arg RecurringRow) error {
	_, err := q.db.ExecContext(ctx, createRecurring,
		arg.ID, arg.Description, arg.Direction, arg.AmountCents, arg.CategoryID,
		arg.CounterpartyID, arg.StartDate, arg.EndDate, arg.Every, arg.LastExecution)
	return err
}

const listActiveRecurring = `
SELECT id, description, direction, amount_cents, category_id, counterparty_id, start_date, end_date, every, last_execution
FROM recurring_charges
WHERE start_date <= ?1 AND (end_date IS NULL OR end_date >= ?1)
ORDER BY start_date, id`

func (q *Queries) ListActiveRecurring(ctx context.Context, on string) ([]RecurringRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveRecurring, on)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringRow
	for rows.Next() {
		var i RecurringRow
		if err := rows.Scan(&i.ID, &i.Description, &i.Direction, &i.AmountCents, &i.CategoryID,
			&i.CounterpartyID, &i.StartDate, &i.EndDate, &i.Every, &i.LastExecution); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateRecurringLastExecution = `
UPDATE recurring_charges SET last_execution = ? WHERE id = ?`

func (q *Queries) UpdateRecurringLastExecution(ctx context.Context, at sql.NullTime, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecurringLastExecution, at, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
