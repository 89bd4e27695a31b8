// Package migration imports ledger data exported from the legacy browser
// storage. It runs once per tenant; the caller owns the State that records it.
package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"contaae/internal/core"
	"contaae/internal/ports"
)

// State records whether the legacy import already ran.
type State struct {
	Migrated   bool      `json:"migrated"`
	MigratedAt time.Time `json:"migrated_at,omitempty"`
}

// Report summarises one run.
type Report struct {
	AlreadyMigrated bool
	Imported        int
	Skipped         int
	Problems        []string
}

type legacyExport struct {
	Transactions []legacyTransaction `json:"transactions"`
}

type legacyTransaction struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Client      string          `json:"client"`
}

var directions = map[string]core.Direction{
	"income":  core.Income,
	"receita": core.Income,
	"entrada": core.Income,
	"expense": core.Expense,
	"despesa": core.Expense,
	"saida":   core.Expense,
}

// Run imports the legacy export read from src through w and returns the
// updated state. When state says the import already ran it does nothing.
// Rows that cannot be converted are skipped and listed in the report; a
// store failure aborts the run and leaves state untouched.
func Run(ctx context.Context, src io.Reader, w ports.LedgerWriter, state State) (State, Report, error) {
	if state.Migrated {
		slog.InfoContext(ctx, "Legacy data already migrated", "migrated_at", state.MigratedAt)
		return state, Report{AlreadyMigrated: true}, nil
	}

	var export legacyExport
	if err := json.NewDecoder(src).Decode(&export); err != nil {
		return state, Report{}, fmt.Errorf("decode legacy export: %w", err)
	}

	var rep Report
	for i, tx := range export.Transactions {
		entry, err := tx.toEntry()
		if err != nil {
			rep.Skipped++
			rep.Problems = append(rep.Problems, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if err := w.AppendEntry(ctx, entry); err != nil {
			return state, rep, fmt.Errorf("import row %d: %w", i+1, err)
		}
		rep.Imported++
	}

	slog.InfoContext(ctx, "Legacy migration finished",
		"imported", rep.Imported,
		"skipped", rep.Skipped)

	return State{Migrated: true, MigratedAt: time.Now().UTC()}, rep, nil
}

func (tx legacyTransaction) toEntry() (core.LedgerEntry, error) {
	dir, ok := directions[strings.ToLower(strings.TrimSpace(tx.Type))]
	if !ok {
		return core.LedgerEntry{}, fmt.Errorf("%w: %q", core.ErrInvalidDirection, tx.Type)
	}
	amount, err := core.ParseAmount(strings.Trim(string(tx.Amount), `"`))
	if err != nil {
		return core.LedgerEntry{}, err
	}
	date, err := core.ParseDate(datePart(tx.Date))
	if err != nil {
		return core.LedgerEntry{}, err
	}
	e := core.LedgerEntry{
		Direction:      dir,
		Amount:         amount,
		Date:           date,
		Description:    strings.TrimSpace(tx.Description),
		CategoryID:     strings.TrimSpace(tx.Category),
		CounterpartyID: strings.TrimSpace(tx.Client),
	}
	if id := strings.TrimSpace(tx.ID); id != "" {
		e.ID = "legacy-" + id
	}
	return e, e.Validate()
}

// datePart keeps the date part of an ISO timestamp.
func datePart(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		return s[:10]
	}
	return s
}

// LoadState reads a state file. A missing file is a fresh state.
func LoadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read migration state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("parse migration state: %w", err)
	}
	return s, nil
}

// SaveState writes s to path.
func SaveState(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
