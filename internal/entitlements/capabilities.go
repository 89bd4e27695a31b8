// Package entitlements resolves which product modules a subscriber may use.
//
// The set of capabilities is closed: settings maps coming from the store are
// parsed once at the boundary and unknown keys are rejected there, so the
// rest of the code only ever sees the Capabilities struct.
package entitlements

import (
	"errors"
	"fmt"
	"sort"
)

// Capability names one product module.
type Capability string

const (
	Ledger           Capability = "ledger"
	Receivables      Capability = "receivables"
	Payables         Capability = "payables"
	RecurringBilling Capability = "recurring_billing"
	Inventory        Capability = "inventory"
	Budgeting        Capability = "budgeting"
	BankAccounts     Capability = "bank_accounts"
	Reports          Capability = "reports"
	AIAdvisor        Capability = "ai_advisor"
)

// AllCapabilities lists every known capability in display order.
var AllCapabilities = []Capability{
	Ledger, Receivables, Payables, RecurringBilling, Inventory,
	Budgeting, BankAccounts, Reports, AIAdvisor,
}

var (
	ErrUnknownCapability = errors.New("unknown capability")
	ErrUnknownPlan       = errors.New("unknown plan")
)

// Capabilities is the resolved entitlement set of a subscriber.
type Capabilities struct {
	Ledger           bool `json:"ledger"`
	Receivables      bool `json:"receivables"`
	Payables         bool `json:"payables"`
	RecurringBilling bool `json:"recurring_billing"`
	Inventory        bool `json:"inventory"`
	Budgeting        bool `json:"budgeting"`
	BankAccounts     bool `json:"bank_accounts"`
	Reports          bool `json:"reports"`
	AIAdvisor        bool `json:"ai_advisor"`
}

func (c Capability) Valid() bool {
	_, ok := (&Capabilities{}).field(c)
	return ok
}

func (c *Capabilities) field(cap Capability) (*bool, bool) {
	switch cap {
	case Ledger:
		return &c.Ledger, true
	case Receivables:
		return &c.Receivables, true
	case Payables:
		return &c.Payables, true
	case RecurringBilling:
		return &c.RecurringBilling, true
	case Inventory:
		return &c.Inventory, true
	case Budgeting:
		return &c.Budgeting, true
	case BankAccounts:
		return &c.BankAccounts, true
	case Reports:
		return &c.Reports, true
	case AIAdvisor:
		return &c.AIAdvisor, true
	}
	return nil, false
}

// Has reports whether cap is enabled. Unknown capabilities are never enabled.
func (c Capabilities) Has(cap Capability) bool {
	f, ok := c.field(cap)
	return ok && *f
}

// Set enables or disables cap.
func (c *Capabilities) Set(cap Capability, enabled bool) error {
	f, ok := c.field(cap)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCapability, cap)
	}
	*f = enabled
	return nil
}

// Enabled returns the enabled capabilities in display order.
func (c Capabilities) Enabled() []Capability {
	var out []Capability
	for _, cap := range AllCapabilities {
		if c.Has(cap) {
			out = append(out, cap)
		}
	}
	return out
}

// All returns a set with every capability enabled.
func All() Capabilities {
	var c Capabilities
	for _, cap := range AllCapabilities {
		c.Set(cap, true)
	}
	return c
}

// ParseCapabilities converts a raw settings map. Every key must be a known
// capability; missing keys stay disabled.
func ParseCapabilities(raw map[string]bool) (Capabilities, error) {
	var c Capabilities
	if err := c.apply(raw); err != nil {
		return Capabilities{}, err
	}
	return c, nil
}

func (c *Capabilities) apply(raw map[string]bool) error {
	var unknown []string
	for k, v := range raw {
		if err := c.Set(Capability(k), v); err != nil {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %v", ErrUnknownCapability, unknown)
	}
	return nil
}

// Principal is the caller an operation runs for. SuperAdmin is carried
// explicitly instead of being read from ambient session state.
type Principal struct {
	UserID       string
	Plan         string
	SuperAdmin   bool
	Capabilities Capabilities
}

// Allows reports whether the principal may use cap.
func (p Principal) Allows(cap Capability) bool {
	return p.SuperAdmin || p.Capabilities.Has(cap)
}
