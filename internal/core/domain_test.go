package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestClassifyAccountType(t *testing.T) {
	cases := []struct {
		raw      string
		category AccountCategory
		ok       bool
	}{
		{"CASH", CategoryAsset, true},
		{"bank", CategoryAsset, true},
		{" Receivable ", CategoryAsset, true},
		{"PAYABLE", CategoryLiability, true},
		{"RETAINED_EARNINGS", CategoryEquity, true},
		{"SALES", CategoryRevenue, true},
		{"COGS", CategoryExpense, true},
		{"CRYPTO", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ClassifyAccountType(tc.raw)
		if ok != tc.ok || got != tc.category {
			t.Fatalf("%q expected (%s,%v), got (%s,%v)", tc.raw, tc.category, tc.ok, got, ok)
		}
	}
}

func TestNaturalBalance(t *testing.T) {
	hundred := decimal.NewFromInt(100)
	cases := []struct {
		category AccountCategory
		signed   decimal.Decimal
		want     decimal.Decimal
	}{
		{CategoryAsset, hundred, hundred},
		{CategoryExpense, hundred, hundred},
		{CategoryLiability, hundred.Neg(), hundred},
		{CategoryEquity, hundred.Neg(), hundred},
		{CategoryRevenue, hundred.Neg(), hundred},
	}
	for _, tc := range cases {
		if got := NaturalBalance(tc.category, tc.signed); !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.category, tc.want, got)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	base := Account{GUID: NewGUID(), Name: "Cassa", AccountType: "CASH"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}

	noName := base
	noName.Name = "  "
	if err := noName.Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}

	badType := base
	badType.AccountType = "SOMETHING_ELSE"
	if err := badType.Validate(); !errors.Is(err, ErrUnknownAccountType) {
		t.Fatalf("expected ErrUnknownAccountType, got %v", err)
	}
}

func TestFixedExpenseValidate(t *testing.T) {
	base := FixedExpense{
		Name:               "Affitto",
		Amount:             decimal.NewFromInt(800),
		ExpenseAccountGUID: NewGUID(),
		PrimaryAccountGUID: NewGUID(),
		DayOfMonth:         5,
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*FixedExpense)
		want   error
	}{
		{"zero amount", func(f *FixedExpense) { f.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(f *FixedExpense) { f.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"missing expense account", func(f *FixedExpense) { f.ExpenseAccountGUID = "" }, ErrUnknownAccount},
		{"missing primary account", func(f *FixedExpense) { f.PrimaryAccountGUID = "" }, ErrUnknownAccount},
		{"day too low", func(f *FixedExpense) { f.DayOfMonth = 0 }, ErrInvalidDayOfMonth},
		{"day too high", func(f *FixedExpense) { f.DayOfMonth = 29 }, ErrInvalidDayOfMonth},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := base
			tc.mutate(&f)
			if err := f.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTransactionDraftValidate(t *testing.T) {
	draft := TransactionDraft{
		PostDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Lines: []EntryLineDraft{
			{AccountGUID: "a", Amount: decimal.NewFromInt(10)},
			{AccountGUID: "b", Amount: decimal.NewFromInt(-10)},
		},
	}
	if err := draft.Validate(); err != nil {
		t.Fatalf("valid draft rejected: %v", err)
	}

	noDate := draft
	noDate.PostDate = time.Time{}
	if err := noDate.Validate(); err == nil {
		t.Fatal("expected error for zero post date")
	}

	noAccount := draft
	noAccount.Lines = []EntryLineDraft{{Amount: decimal.NewFromInt(10)}}
	if err := noAccount.Validate(); !errors.Is(err, ErrUnknownAccount) {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}
}

func TestNewGUID(t *testing.T) {
	g := NewGUID()
	if len(g) != 32 {
		t.Fatalf("expected 32 hex chars, got %d (%q)", len(g), g)
	}
	if g == NewGUID() {
		t.Fatal("two GUIDs should not collide")
	}
}

func TestParseStatementKind(t *testing.T) {
	for _, in := range []string{"balance_sheet", "balance-sheet"} {
		kind, err := ParseStatementKind(in)
		if err != nil || kind != KindBalanceSheet {
			t.Fatalf("%q expected balance sheet, got %s (%v)", in, kind, err)
		}
	}
	if _, err := ParseStatementKind("trial-balance"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
