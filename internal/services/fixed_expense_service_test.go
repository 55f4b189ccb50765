package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"conti/internal/core"

	"github.com/shopspring/decimal"
)

// fundAccount posts a capital contribution so the account has a usable
// signed balance.
func fundAccount(t *testing.T, ledger *LedgerService, guid, capital string, amount decimal.Decimal) {
	t.Helper()
	mustPost(t, ledger, date(2026, time.January, 2), "Funding",
		core.EntryLineDraft{AccountGUID: guid, Amount: amount, Side: core.SideDebit},
		core.EntryLineDraft{AccountGUID: capital, Amount: amount, Side: core.SideCredit},
	)
}

func mustFixedExpense(t *testing.T, fixed *FixedExpenseService, f *core.FixedExpense) *core.FixedExpense {
	t.Helper()
	if err := fixed.CreateFixedExpense(context.Background(), f); err != nil {
		t.Fatalf("create fixed expense %s: %v", f.Name, err)
	}
	return f
}

func TestExecuteFixedExpense(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	fixed := NewFixedExpenseService(repo, nil)
	ctx := context.Background()

	bank := mustAccount(t, ledger, "Checking", "BANK", true)
	capital := mustAccount(t, ledger, "Owner capital", "EQUITY", false)
	rent := mustAccount(t, ledger, "Rent", "EXPENSE", false)
	fundAccount(t, ledger, bank, capital, amt("5000"))

	f := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name:               "Office rent",
		Amount:             amt("800"),
		ExpenseAccountGUID: rent,
		PrimaryAccountGUID: bank,
		DayOfMonth:         1,
		Active:             true,
	})

	res, err := fixed.Execute(ctx, f.ID, date(2026, time.February, 5))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusExecuted {
		t.Fatalf("status = %s (%v), want executed", res.Status, res.Err)
	}
	if res.FundingGUID != bank {
		t.Errorf("funding = %s, want primary %s", res.FundingGUID, bank)
	}
	if res.Advisory != "" {
		t.Errorf("advisory = %q, want empty", res.Advisory)
	}

	tx, err := ledger.GetTransaction(ctx, res.TransactionGUID)
	if err != nil {
		t.Fatalf("voucher not posted: %v", err)
	}
	if !tx.PostDate.Equal(date(2026, time.February, 1)) {
		t.Errorf("voucher post date = %v, want scheduled day", tx.PostDate)
	}
	if len(tx.Lines) != 2 {
		t.Fatalf("voucher has %d lines, want 2", len(tx.Lines))
	}

	stored, err := fixed.GetFixedExpense(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFixedExpense: %v", err)
	}
	if !stored.LastRunMonth.Equal(date(2026, time.February, 1)) {
		t.Errorf("LastRunMonth = %v, want 2026-02-01", stored.LastRunMonth)
	}

	// Same period again is a skip, not a second voucher.
	res, err = fixed.Execute(ctx, f.ID, date(2026, time.February, 20))
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if res.Status != StatusSkipped {
		t.Errorf("second execution status = %s, want skipped", res.Status)
	}

	// The next period executes again.
	res, err = fixed.Execute(ctx, f.ID, date(2026, time.March, 3))
	if err != nil {
		t.Fatalf("March Execute: %v", err)
	}
	if res.Status != StatusExecuted {
		t.Errorf("March execution status = %s (%v), want executed", res.Status, res.Err)
	}
}

func TestExecuteFallbackFunding(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	fixed := NewFixedExpenseService(repo, nil)
	ctx := context.Background()

	primary := mustAccount(t, ledger, "Checking", "BANK", true)
	fallback := mustAccount(t, ledger, "Savings", "BANK", true)
	capital := mustAccount(t, ledger, "Owner capital", "EQUITY", false)
	rent := mustAccount(t, ledger, "Rent", "EXPENSE", false)
	fundAccount(t, ledger, primary, capital, amt("100"))
	fundAccount(t, ledger, fallback, capital, amt("5000"))

	f := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name:                "Office rent",
		Amount:              amt("800"),
		ExpenseAccountGUID:  rent,
		PrimaryAccountGUID:  primary,
		FallbackAccountGUID: fallback,
		DayOfMonth:          1,
		Active:              true,
	})

	res, err := fixed.Execute(ctx, f.ID, date(2026, time.February, 1))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusExecuted {
		t.Fatalf("status = %s (%v), want executed", res.Status, res.Err)
	}
	if res.FundingGUID != fallback {
		t.Errorf("funding = %s, want fallback %s", res.FundingGUID, fallback)
	}
	if res.Advisory == "" {
		t.Error("fallback execution carries no low-funding advisory")
	}
}

func TestExecuteNoFundingAccount(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	fixed := NewFixedExpenseService(repo, nil)
	ctx := context.Background()

	primary := mustAccount(t, ledger, "Checking", "BANK", true)
	capital := mustAccount(t, ledger, "Owner capital", "EQUITY", false)
	rent := mustAccount(t, ledger, "Rent", "EXPENSE", false)
	fundAccount(t, ledger, primary, capital, amt("100"))

	f := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name:               "Office rent",
		Amount:             amt("800"),
		ExpenseAccountGUID: rent,
		PrimaryAccountGUID: primary,
		DayOfMonth:         1,
		Active:             true,
	})

	res, err := fixed.Execute(ctx, f.ID, date(2026, time.February, 1))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if !errors.Is(res.Err, core.ErrNoFundingAccount) {
		t.Errorf("result error = %v, want ErrNoFundingAccount", res.Err)
	}
	if res.TransactionGUID != "" {
		t.Error("failed execution posted a voucher")
	}

	// A failed attempt leaves the period marker untouched.
	stored, err := fixed.GetFixedExpense(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFixedExpense: %v", err)
	}
	if !stored.LastRunMonth.IsZero() {
		t.Errorf("LastRunMonth = %v after failure, want zero", stored.LastRunMonth)
	}
}

func TestExecuteAllDue(t *testing.T) {
	repo := newTestRepo(t)
	ledger := NewLedgerService(repo, nil)
	fixed := NewFixedExpenseService(repo, nil)
	ctx := context.Background()

	bank := mustAccount(t, ledger, "Checking", "BANK", true)
	capital := mustAccount(t, ledger, "Owner capital", "EQUITY", false)
	rent := mustAccount(t, ledger, "Rent", "EXPENSE", false)
	insurance := mustAccount(t, ledger, "Insurance", "EXPENSE", false)
	hosting := mustAccount(t, ledger, "Hosting", "EXPENSE", false)
	fundAccount(t, ledger, bank, capital, amt("5000"))

	due := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name: "Rent", Amount: amt("800"),
		ExpenseAccountGUID: rent, PrimaryAccountGUID: bank,
		DayOfMonth: 1, Active: true,
	})
	inactive := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name: "Insurance", Amount: amt("120"),
		ExpenseAccountGUID: insurance, PrimaryAccountGUID: bank,
		DayOfMonth: 1, Active: false,
	})
	notYet := mustFixedExpense(t, fixed, &core.FixedExpense{
		Name: "Hosting", Amount: amt("30"),
		ExpenseAccountGUID: hosting, PrimaryAccountGUID: bank,
		DayOfMonth: 28, Active: true,
	})

	results, err := fixed.ExecuteAllDue(ctx, date(2026, time.February, 10))
	if err != nil {
		t.Fatalf("ExecuteAllDue: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want one per config", len(results))
	}

	byID := make(map[int64]ExecutionResult, len(results))
	for _, r := range results {
		byID[r.FixedExpenseID] = r
	}
	if got := byID[due.ID].Status; got != StatusExecuted {
		t.Errorf("due config status = %s (%v)", got, byID[due.ID].Err)
	}
	if got := byID[inactive.ID].Status; got != StatusSkipped {
		t.Errorf("inactive config status = %s, want skipped", got)
	}
	if got := byID[notYet.ID].Status; got != StatusSkipped {
		t.Errorf("not-yet-due config status = %s, want skipped", got)
	}

	// A second sweep in the same period executes nothing new.
	results, err = fixed.ExecuteAllDue(ctx, date(2026, time.February, 11))
	if err != nil {
		t.Fatalf("second ExecuteAllDue: %v", err)
	}
	for _, r := range results {
		if r.Status == StatusExecuted {
			t.Errorf("config %d executed twice in one period", r.FixedExpenseID)
		}
	}
}
