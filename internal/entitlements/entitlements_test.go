package entitlements

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseCapabilities(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]bool
		want    Capabilities
		wantErr bool
	}{
		{
			name: "known keys",
			raw:  map[string]bool{"ledger": true, "ai_advisor": true, "inventory": false},
			want: Capabilities{Ledger: true, AIAdvisor: true},
		},
		{
			name: "empty map",
			raw:  nil,
			want: Capabilities{},
		},
		{
			name:    "unknown key rejected",
			raw:     map[string]bool{"ledger": true, "crypto_wallet": true},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCapabilities(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCapability) {
					t.Errorf("ParseCapabilities() error = %v, want ErrUnknownCapability", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCapabilities() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseCapabilities() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCapabilities_HasAndEnabled(t *testing.T) {
	c := Capabilities{Budgeting: true, Reports: true}
	if !c.Has(Budgeting) || c.Has(Ledger) || c.Has("unknown") {
		t.Errorf("Has() mismatch for %+v", c)
	}
	if got := c.Enabled(); !reflect.DeepEqual(got, []Capability{Budgeting, Reports}) {
		t.Errorf("Enabled() = %v", got)
	}
	if got := All().Enabled(); len(got) != len(AllCapabilities) {
		t.Errorf("All() enables %d capabilities, want %d", len(got), len(AllCapabilities))
	}
	if !RecurringBilling.Valid() || Capability("teleport").Valid() {
		t.Error("Valid() mismatch")
	}
}

func TestPrincipal_Allows(t *testing.T) {
	user := Principal{UserID: "u1", Capabilities: Capabilities{Ledger: true}}
	if !user.Allows(Ledger) || user.Allows(AIAdvisor) {
		t.Errorf("user allows mismatch")
	}
	admin := Principal{UserID: "root", SuperAdmin: true}
	if !admin.Allows(AIAdvisor) {
		t.Error("super admin should be allowed everything")
	}
}

func TestDefaultCatalog_Resolve(t *testing.T) {
	cat := DefaultCatalog()

	free, err := cat.Resolve("free", nil)
	if err != nil {
		t.Fatalf("Resolve(free) error = %v", err)
	}
	if !free.Ledger || free.Budgeting {
		t.Errorf("free = %+v", free)
	}

	pro, err := cat.Resolve(" PRO ", map[string]bool{"ai_advisor": true, "bank_accounts": false})
	if err != nil {
		t.Fatalf("Resolve(pro) error = %v", err)
	}
	if !pro.AIAdvisor || pro.BankAccounts || !pro.Budgeting {
		t.Errorf("pro with overrides = %+v", pro)
	}

	if _, err := cat.Resolve("platinum", nil); !errors.Is(err, ErrUnknownPlan) {
		t.Errorf("unknown plan error = %v", err)
	}
	if _, err := cat.Resolve("free", map[string]bool{"bogus": true}); !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("bad override error = %v", err)
	}
	if got := cat.Plans(); !reflect.DeepEqual(got, []string{"business", "free", "pro"}) {
		t.Errorf("Plans() = %v", got)
	}
}

func TestParseCatalogYAML(t *testing.T) {
	cat, err := ParseCatalogYAML([]byte(`
plans:
  starter: [ledger, reports]
  Growth:
    - ledger
    - budgeting
    - ai_advisor
`))
	if err != nil {
		t.Fatalf("ParseCatalogYAML() error = %v", err)
	}
	growth, err := cat.Resolve("growth", nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if want := (Capabilities{Ledger: true, Budgeting: true, AIAdvisor: true}); growth != want {
		t.Errorf("growth = %+v, want %+v", growth, want)
	}

	if _, err := ParseCatalogYAML([]byte("plans:\n  x: [ledger, mining]\n")); !errors.Is(err, ErrUnknownCapability) {
		t.Errorf("unknown capability error = %v", err)
	}
	if _, err := ParseCatalogYAML([]byte("plans: {}\n")); err == nil {
		t.Error("empty catalog should fail")
	}
}

func TestLoadCatalog_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"plans.yaml": "plans:\n  basic: [ledger]\n",
		"plans.toml": "[plans]\nbasic = [\"ledger\"]\n",
		"plans.json": `{"plans":{"basic":["ledger"]}}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			cat, err := LoadCatalog(path)
			if err != nil {
				t.Fatalf("LoadCatalog() error = %v", err)
			}
			caps, err := cat.Resolve("basic", nil)
			if err != nil || !caps.Ledger {
				t.Errorf("Resolve(basic) = %+v, %v", caps, err)
			}
		})
	}

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "plans.ini")
		os.WriteFile(path, []byte("x"), 0644)
		if _, err := LoadCatalog(path); err == nil {
			t.Error("expected error")
		}
	})
}
