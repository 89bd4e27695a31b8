package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"contaae/internal/core"
	"contaae/internal/finance"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{ServiceAccountJSON: `{}`})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("New() error = %v", err)
	}
}

func TestNew_CredentialErrors(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name:    "no credentials",
			opts:    Options{SpreadsheetID: "sheet-1"},
			wantErr: "missing service account credentials",
		},
		{
			name:    "unreadable file",
			opts:    Options{SpreadsheetID: "sheet-1", ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")},
			wantErr: "read service account file",
		},
		{
			name:    "not a service account",
			opts:    Options{SpreadsheetID: "sheet-1", ServiceAccountJSON: `invalid-json`},
			wantErr: "parse service account",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestServiceAccountCredentials_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := serviceAccountCredentials(Options{ServiceAccountFile: path})
	if err != nil {
		t.Fatalf("serviceAccountCredentials() error = %v", err)
	}
	if string(got) != `{"type":"service_account"}` {
		t.Errorf("credentials = %s", got)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"DRE", 2024, "2024 DRE"},
		{"  DRE  ", 2025, "2025 DRE"},
		{"2023 DRE", 2025, "2023 DRE"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestColumnName(t *testing.T) {
	tests := map[int]string{0: "A", 1: "A", 4: "D", 26: "Z", 27: "AA", 52: "AZ", 53: "BA"}
	for n, want := range tests {
		if got := columnName(n); got != want {
			t.Errorf("columnName(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestQuoteSheet(t *testing.T) {
	if got := quoteSheet("Bob's 2024"); got != "'Bob''s 2024'" {
		t.Errorf("quoteSheet() = %q", got)
	}
}

func TestDRERows(t *testing.T) {
	var months [12]finance.DREResult
	months[2] = finance.DREResult{Year: 2024, Month: 3, Revenue: core.Money{Cents: 50000}, Expense: core.Money{Cents: 12345}, Result: core.Money{Cents: 37655}}

	rows := dreRows(months)
	if len(rows) != 14 {
		t.Fatalf("rows = %d, want 14", len(rows))
	}
	if rows[3][0] != "Mar" || rows[3][1] != 500.0 || rows[3][2] != 123.45 {
		t.Errorf("March row = %v", rows[3])
	}
	if last := rows[13]; last[0] != "Total" || last[3] != 376.55 {
		t.Errorf("total row = %v", last)
	}
}

func TestCashflowAndAlertRows(t *testing.T) {
	report := finance.CashflowReport{
		Buckets: []finance.Bucket{
			{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 1), Income: core.Money{Cents: 1000}, Net: core.Money{Cents: 1000}, Cumulative: core.Money{Cents: 1000}},
			{Start: core.NewDate(2024, 1, 2), End: core.NewDate(2024, 1, 2), Expense: core.Money{Cents: 250}, Net: core.Money{Cents: -250}, Cumulative: core.Money{Cents: 750}},
		},
		TotalIncome:  core.Money{Cents: 1000},
		TotalExpense: core.Money{Cents: 250},
		FinalBalance: core.Money{Cents: 750},
	}
	rows := cashflowRows(report)
	if len(rows) != 4 || rows[2][0] != "2024-01-02" || rows[2][4] != -2.5 || rows[3][5] != 7.5 {
		t.Errorf("cashflow rows = %v", rows)
	}

	alerts := []finance.Alert{{CategoryID: "rent", Planned: core.Money{Cents: 10000}, Realized: core.Money{Cents: 12000}, Ratio: decimal.RequireFromString("1.2"), Level: finance.Exceeded, Over: core.Money{Cents: 2000}}}
	arows := alertRows(alerts)
	if len(arows) != 2 || arows[1][0] != "rent" || arows[1][3] != 1.2 || arows[1][4] != "exceeded" {
		t.Errorf("alert rows = %v", arows)
	}
}

type fakeSheetsAPI struct {
	mu       sync.Mutex
	existing []string
	calls    []string
	written  map[string][][]any
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		var sheets []string
		for _, title := range f.existing {
			sheets = append(sheets, fmt.Sprintf(`{"properties":{"title":%q}}`, title))
		}
		fmt.Fprintf(w, `{"sheets":[%s]}`, strings.Join(sheets, ","))
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.existing = append(f.existing, rq.AddSheet.Properties.Title)
			}
		}
		fmt.Fprint(w, `{}`)
	case strings.HasSuffix(r.URL.Path, ":clear"):
		fmt.Fprint(w, `{}`)
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		rng := r.URL.Path[strings.LastIndex(r.URL.Path, "/values/")+len("/values/"):]
		f.written[rng] = vr.Values
		fmt.Fprintf(w, `{"updatedRows":%d}`, len(vr.Values))
	default:
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithHTTPClient(srv.Client()),
		goption.WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, Options{SpreadsheetID: "sheet-1"})
}

func TestClient_ExportDRE(t *testing.T) {
	api := &fakeSheetsAPI{existing: []string{"2024 DRE"}, written: map[string][][]any{}}
	c := newTestClient(t, api)

	var months [12]finance.DREResult
	months[0].Revenue = core.Money{Cents: 100000}
	months[0].Result = core.Money{Cents: 100000}

	rng, err := c.ExportDRE(context.Background(), 2024, months)
	if err != nil {
		t.Fatalf("ExportDRE() error = %v", err)
	}
	if rng != "'2024 DRE'!A1:D14" {
		t.Errorf("range = %q", rng)
	}
	rows, ok := api.written[rng]
	if !ok || len(rows) != 14 {
		t.Fatalf("written = %v", api.written)
	}
	if rows[1][1] != 1000.0 {
		t.Errorf("January revenue cell = %v", rows[1][1])
	}
	for _, call := range api.calls {
		if strings.HasSuffix(call, ":batchUpdate") {
			t.Error("existing sheet should not be re-created")
		}
	}
}

func TestClient_ExportAlertsCreatesSheet(t *testing.T) {
	api := &fakeSheetsAPI{written: map[string][][]any{}}
	c := newTestClient(t, api)

	rng, err := c.ExportAlerts(context.Background(), 2024, 5, nil)
	if err != nil {
		t.Fatalf("ExportAlerts() error = %v", err)
	}
	if rng != "'2024-05 Budget Alerts'!A1:F1" {
		t.Errorf("range = %q", rng)
	}
	if len(api.existing) != 1 || api.existing[0] != "2024-05 Budget Alerts" {
		t.Errorf("sheets = %v", api.existing)
	}

	if _, err := c.ExportAlerts(context.Background(), 2024, 0, nil); err == nil {
		t.Error("month 0 should be rejected")
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "sheet-1"}
	if _, err := c.ExportCashflow(context.Background(), finance.CashflowReport{}); err == nil {
		t.Error("expected error with nil service")
	}
}
