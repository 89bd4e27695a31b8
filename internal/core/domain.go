package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	Receivable InstallmentKind = "receivable"
	Payable    InstallmentKind = "payable"
)

const (
	StatusPending InstallmentStatus = "pending"
	StatusOverdue InstallmentStatus = "overdue"
	StatusPaid    InstallmentStatus = "paid"
)

// Uncategorized is the category id used for entries without a category.
const Uncategorized = "uncategorized"

type (
	RepetitionTypes   string
	Direction         string
	InstallmentKind   string
	InstallmentStatus string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// LedgerEntry is a single income or expense movement.
	LedgerEntry struct {
		ID             string
		Direction      Direction
		Amount         Money
		Date           Date
		Description    string
		CategoryID     string // empty when uncategorized
		CategoryName   string
		CounterpartyID string // client or supplier
		BankAccountID  string
	}

	// CategoryBudget is the planned target of one category for one month.
	CategoryBudget struct {
		CategoryID     string
		CategoryName   string
		Year           int
		Month          int // 1-12
		PlannedExpense Money
		PlannedIncome  Money
	}

	// Installment is one scheduled unit of a receivable or payable series.
	Installment struct {
		SeriesID    string
		Kind        InstallmentKind
		Sequence    int
		Description string
		Amount      Money // scheduled amount
		DueDate     Date
		Status      InstallmentStatus
		PaidAmount  Money
		PaidDate    Date
	}

	// RecurringCharge is a recurring billing template that produces ledger entries.
	RecurringCharge struct {
		ID             string
		Description    string
		Direction      Direction
		Amount         Money
		CategoryID     string
		CounterpartyID string
		StartDate      Date
		EndDate        Date
		Every          RepetitionTypes
		LastExecution  time.Time
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidRange        = errors.New("invalid date range")
	ErrInvalidDirection    = errors.New("invalid direction")
	ErrEmptyDescription    = errors.New("empty description")
	ErrAlreadySettled      = errors.New("installment already settled")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrInvalidStrategy     = errors.New("invalid difference strategy")
	ErrUnresolvedResidual  = errors.New("unresolved settlement residual")
	ErrInvalidSequence     = errors.New("invalid installment sequence")
	ErrDuplicateBudget     = errors.New("duplicate category budget")
	ErrSeriesChanged       = errors.New("installment series changed concurrently")
)

// NewID returns a random identifier for entries, series and templates.
func NewID() string {
	return uuid.NewString()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Within reports whether d falls in [start, end].
func (d Date) Within(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// IsEmpty returns true if the date is zero (optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Direction) Valid() bool {
	return d == Income || d == Expense
}

func (k InstallmentKind) Valid() bool {
	return k == Receivable || k == Payable
}

// Open reports whether the installment can still be settled.
func (s InstallmentStatus) Open() bool {
	return s == StatusPending || s == StatusOverdue
}

// Category returns the category id, falling back to Uncategorized.
func (e LedgerEntry) Category() string {
	if strings.TrimSpace(e.CategoryID) == "" {
		return Uncategorized
	}
	return e.CategoryID
}

func (e LedgerEntry) Validate() error {
	if !e.Direction.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, e.Direction)
	}
	if e.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (b CategoryBudget) Validate() error {
	if strings.TrimSpace(b.CategoryID) == "" {
		return errors.New("empty category")
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.PlannedExpense.Cents < 0 || b.PlannedIncome.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateBudgets enforces at most one budget per (category, month).
func ValidateBudgets(budgets []CategoryBudget) error {
	seen := make(map[string]struct{}, len(budgets))
	for _, b := range budgets {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("budget %s %04d-%02d: %w", b.CategoryID, b.Year, b.Month, err)
		}
		key := fmt.Sprintf("%s|%04d-%02d", b.CategoryID, b.Year, b.Month)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateBudget, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateSeries checks that sequences are unique and strictly increasing
// and that every installment belongs to the same series.
func ValidateSeries(series []Installment) error {
	for i, in := range series {
		if in.Sequence < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidSequence, in.Sequence)
		}
		if i == 0 {
			continue
		}
		if in.SeriesID != series[0].SeriesID {
			return fmt.Errorf("%w: mixed series %q and %q", ErrInvalidSequence, series[0].SeriesID, in.SeriesID)
		}
		if in.Sequence <= series[i-1].Sequence {
			return fmt.Errorf("%w: %d after %d", ErrInvalidSequence, in.Sequence, series[i-1].Sequence)
		}
	}
	return nil
}

// SortSeries returns a copy of series ordered by sequence.
func SortSeries(series []Installment) []Installment {
	out := append([]Installment(nil), series...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// SeriesChange is one installment rewritten by a settlement together with
// the scheduled amount the store must still hold for the write to apply.
type SeriesChange struct {
	Next       Installment
	PrevAmount Money
	Settles    bool
}

// DiffSeries lists the installments of after that differ from before,
// matched by sequence. The settled installment comes first.
func DiffSeries(before, after []Installment) []SeriesChange {
	prev := make(map[int]Installment, len(before))
	for _, in := range before {
		prev[in.Sequence] = in
	}
	var settles, adjusts []SeriesChange
	for _, in := range after {
		old, ok := prev[in.Sequence]
		if ok && old.Amount == in.Amount && old.Status == in.Status && old.PaidAmount == in.PaidAmount {
			continue
		}
		c := SeriesChange{Next: in, PrevAmount: old.Amount}
		if in.Status == StatusPaid && old.Status != StatusPaid {
			c.Settles = true
			settles = append(settles, c)
			continue
		}
		adjusts = append(adjusts, c)
	}
	return append(settles, adjusts...)
}

func (rc RecurringCharge) Validate() error {
	if err := rc.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}
	if !rc.EndDate.IsZero() && rc.EndDate.Before(rc.StartDate) {
		return errors.New("end date must be after start date")
	}
	switch rc.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return errors.New("invalid repetition type")
	}
	if !rc.Direction.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, rc.Direction)
	}
	if len(strings.TrimSpace(rc.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(rc.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return rc.Amount.Validate()
}

// Active reports whether the template applies on the given day.
func (rc RecurringCharge) Active(on Date) bool {
	if on.Before(rc.StartDate) {
		return false
	}
	return rc.EndDate.IsZero() || !on.After(rc.EndDate)
}
