package entitlements

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Catalog maps plan names to the capabilities they grant.
type Catalog struct {
	plans map[string]Capabilities
}

type catalogFile struct {
	Plans map[string][]string `json:"plans" yaml:"plans" toml:"plans"`
}

// DefaultCatalog is used when no catalog file is configured.
func DefaultCatalog() *Catalog {
	free := Capabilities{Ledger: true, Reports: true}
	pro := free
	pro.Receivables = true
	pro.Payables = true
	pro.RecurringBilling = true
	pro.Budgeting = true
	pro.BankAccounts = true
	return &Catalog{plans: map[string]Capabilities{
		"free":     free,
		"pro":      pro,
		"business": All(),
	}}
}

// LoadCatalog reads a YAML, TOML or JSON catalog file, chosen by extension.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}

	var file catalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	case ".json":
		err = json.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("unsupported plan catalog format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse plan catalog %s: %w", path, err)
	}
	return newCatalog(file)
}

// ParseCatalogYAML builds a catalog from YAML of the form
//
//	plans:
//	  free: [ledger, reports]
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	return newCatalog(file)
}

func newCatalog(file catalogFile) (*Catalog, error) {
	if len(file.Plans) == 0 {
		return nil, fmt.Errorf("plan catalog defines no plans")
	}
	c := &Catalog{plans: make(map[string]Capabilities, len(file.Plans))}
	for name, caps := range file.Plans {
		var set Capabilities
		for _, cap := range caps {
			if err := set.Set(Capability(strings.TrimSpace(cap)), true); err != nil {
				return nil, fmt.Errorf("plan %s: %w", name, err)
			}
		}
		c.plans[strings.ToLower(strings.TrimSpace(name))] = set
	}
	return c, nil
}

// Plans returns the plan names in alphabetical order.
func (c *Catalog) Plans() []string {
	names := make([]string, 0, len(c.plans))
	for name := range c.plans {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the capabilities of plan with per-subscriber overrides
// applied on top. Overrides may both grant and revoke.
func (c *Catalog) Resolve(plan string, overrides map[string]bool) (Capabilities, error) {
	caps, ok := c.plans[strings.ToLower(strings.TrimSpace(plan))]
	if !ok {
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	if err := caps.apply(overrides); err != nil {
		return Capabilities{}, err
	}
	return caps, nil
}
