package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"conti/internal/services"
	"conti/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo, nil)
	reports := services.NewReportService(repo)
	fixed := services.NewFixedExpenseService(repo, nil)

	s := NewServer("127.0.0.1:0", ledger, reports, fixed, repo, 50)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func createAccount(t *testing.T, s *Server, name, accountType string, isCash bool) string {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/accounts", accountRequest{
		Name:        name,
		AccountType: accountType,
		IsCash:      isCash,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account %s: status %d, body %s", name, rec.Code, rec.Body.String())
	}
	return decodeBody[accountResponse](t, rec).GUID
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestTransactionLifecycle(t *testing.T) {
	s := newTestServer(t)
	bank := createAccount(t, s, "Checking", "BANK", true)
	rent := createAccount(t, s, "Rent", "EXPENSE", false)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", transactionRequest{
		PostDate:    "2026-03-05",
		Description: "March rent",
		Lines: []entryLineRequest{
			{AccountGUID: rent, Amount: "800.00"},
			{AccountGUID: bank, Amount: "800.00", Side: "credit"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[transactionResponse](t, rec)
	if created.GUID == "" {
		t.Fatal("created transaction has no guid")
	}
	if len(created.Lines) != 2 {
		t.Fatalf("created transaction has %d lines, want 2", len(created.Lines))
	}
	if created.PostDate != "2026-03-05" {
		t.Errorf("post_date = %q", created.PostDate)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions/"+created.GUID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get transaction: status %d", rec.Code)
	}
	fetched := decodeBody[transactionResponse](t, rec)
	if fetched.Description != "March rent" {
		t.Errorf("description = %q", fetched.Description)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list transactions: status %d", rec.Code)
	}
	if list := decodeBody[[]transactionResponse](t, rec); len(list) != 1 {
		t.Fatalf("listed %d transactions, want 1", len(list))
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/transactions/"+created.GUID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete transaction: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/transactions/"+created.GUID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted transaction: status %d, want 404", rec.Code)
	}
}

func TestCreateTransactionRejectsImbalance(t *testing.T) {
	s := newTestServer(t)
	bank := createAccount(t, s, "Checking", "BANK", true)
	rent := createAccount(t, s, "Rent", "EXPENSE", false)

	tests := []struct {
		name  string
		lines []entryLineRequest
		want  int
	}{
		{
			name: "imbalanced",
			lines: []entryLineRequest{
				{AccountGUID: rent, Amount: "800.00"},
				{AccountGUID: bank, Amount: "799.99", Side: "credit"},
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "single line",
			lines: []entryLineRequest{
				{AccountGUID: rent, Amount: "800.00"},
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown account",
			lines: []entryLineRequest{
				{AccountGUID: "nope", Amount: "800.00"},
				{AccountGUID: bank, Amount: "800.00", Side: "credit"},
			},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "bad amount",
			lines: []entryLineRequest{
				{AccountGUID: rent, Amount: "eight hundred"},
				{AccountGUID: bank, Amount: "800.00", Side: "credit"},
			},
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/transactions", transactionRequest{
				PostDate:    "2026-03-05",
				Description: "bad voucher",
				Lines:       tt.lines,
			})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAccountBalanceEndpoint(t *testing.T) {
	s := newTestServer(t)
	bank := createAccount(t, s, "Checking", "BANK", true)
	salary := createAccount(t, s, "Salary", "INCOME", false)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", transactionRequest{
		PostDate:    "2026-03-01",
		Description: "salary",
		Lines: []entryLineRequest{
			{AccountGUID: bank, Amount: "2500.00"},
			{AccountGUID: salary, Amount: "2500.00", Side: "credit"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post salary: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+salary+"/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: status %d", rec.Code)
	}
	balance := decodeBody[balanceResponse](t, rec)
	if balance.Category != "revenue" {
		t.Errorf("category = %q", balance.Category)
	}
	if balance.Signed != "-2500.00" {
		t.Errorf("signed = %q, want -2500.00", balance.Signed)
	}
	if balance.Natural != "2500.00" {
		t.Errorf("natural = %q, want 2500.00", balance.Natural)
	}

	// Range excluding the posting sees zero.
	rec = doJSON(t, s, http.MethodGet, "/api/accounts/"+salary+"/balance?from=2026-04-01&to=2026-04-30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ranged balance: status %d", rec.Code)
	}
	if got := decodeBody[balanceResponse](t, rec).Natural; got != "0.00" {
		t.Errorf("out-of-range natural = %q, want 0.00", got)
	}
}

func TestStatementEndpoints(t *testing.T) {
	s := newTestServer(t)
	bank := createAccount(t, s, "Checking", "BANK", true)
	salary := createAccount(t, s, "Salary", "INCOME", false)

	rec := doJSON(t, s, http.MethodPost, "/api/transactions", transactionRequest{
		PostDate:    "2026-02-10",
		Description: "salary",
		Lines: []entryLineRequest{
			{AccountGUID: bank, Amount: "2500.00"},
			{AccountGUID: salary, Amount: "2500.00", Side: "credit"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post salary: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/reports/balance-sheet?start=2026-02-01&end=2026-02-28", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance sheet: status %d, body %s", rec.Code, rec.Body.String())
	}
	var stmt struct {
		Kind         string `json:"kind"`
		BalanceSheet *struct {
			AssetTotal string `json:"asset_total"`
			Balanced   bool   `json:"balanced"`
		} `json:"balance_sheet"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stmt); err != nil {
		t.Fatalf("decode statement: %v", err)
	}
	if stmt.Kind != "balance_sheet" || stmt.BalanceSheet == nil {
		t.Fatalf("unexpected statement payload: %s", rec.Body.String())
	}
	if !stmt.BalanceSheet.Balanced {
		t.Error("balance sheet not balanced")
	}
	if stmt.BalanceSheet.AssetTotal != "2500" && stmt.BalanceSheet.AssetTotal != "2500.00" {
		t.Errorf("asset_total = %q", stmt.BalanceSheet.AssetTotal)
	}

	// Identical query again is served from cache.
	before := s.statementCache.Size()
	if before == 0 {
		t.Fatal("statement not cached")
	}
	rec = doJSON(t, s, http.MethodGet, "/api/reports/balance-sheet?start=2026-02-01&end=2026-02-28", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached balance sheet: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/reports/monthly/income-statement?month=2026-02", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("monthly income statement: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/reports/monthly/rebuild", rebuildRequest{Month: "2026-02"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rebuild: status %d, body %s", rec.Code, rec.Body.String())
	}
	if rebuilt := decodeBody[[]json.RawMessage](t, rec); len(rebuilt) != 3 {
		t.Fatalf("rebuilt %d statements, want 3", len(rebuilt))
	}
}

func TestCashflowTypesEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/cashflow-types", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cashflow types: status %d", rec.Code)
	}
	types := decodeBody[[]cashflowTypeResponse](t, rec)
	if len(types) == 0 {
		t.Fatal("no seeded cashflow types returned")
	}
	for _, ct := range types {
		if !ct.Active {
			t.Errorf("inactive type %q in active-only listing", ct.Code)
		}
	}
}

func TestFixedExpenseLifecycle(t *testing.T) {
	s := newTestServer(t)
	bank := createAccount(t, s, "Checking", "BANK", true)
	equity := createAccount(t, s, "Opening Balances", "EQUITY", false)
	rent := createAccount(t, s, "Rent", "EXPENSE", false)

	// Fund the account so execution can draw from it.
	rec := doJSON(t, s, http.MethodPost, "/api/transactions", transactionRequest{
		PostDate:    "2026-01-01",
		Description: "opening balance",
		Lines: []entryLineRequest{
			{AccountGUID: bank, Amount: "5000.00"},
			{AccountGUID: equity, Amount: "5000.00", Side: "credit"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("opening balance: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodPost, "/api/fixed-expenses", fixedExpenseRequest{
		Name:               "Rent",
		Amount:             "800.00",
		ExpenseAccountGUID: rent,
		PrimaryAccountGUID: bank,
		DayOfMonth:         1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create fixed expense: status %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[fixedExpenseResponse](t, rec)
	if created.ID == 0 {
		t.Fatal("fixed expense has no id")
	}

	rec = doJSON(t, s, http.MethodPost, "/api/fixed-expenses/"+itoa64(created.ID)+"/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute: status %d, body %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[executionResponse](t, rec)
	if result.Status != "executed" {
		t.Fatalf("status = %q, want executed (error %q)", result.Status, result.Error)
	}
	if result.TransactionGUID == "" {
		t.Error("executed result has no transaction guid")
	}

	// Same period again is idempotent.
	rec = doJSON(t, s, http.MethodPost, "/api/fixed-expenses/"+itoa64(created.ID)+"/execute", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("re-execute: status %d", rec.Code)
	}
	if result := decodeBody[executionResponse](t, rec); result.Status != "skipped" {
		t.Errorf("re-execute status = %q, want skipped", result.Status)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/fixed-expenses", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list fixed expenses: status %d", rec.Code)
	}
	list := decodeBody[[]fixedExpenseResponse](t, rec)
	if len(list) != 1 || list[0].LastRunMonth == "" {
		t.Fatalf("listing = %+v, want one entry with last_run_month set", list)
	}
}

func itoa64(v int64) string {
	return strconv.FormatInt(v, 10)
}
