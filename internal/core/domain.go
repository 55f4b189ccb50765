package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountCategory is one of the five report categories every account
// type maps into.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryEquity    AccountCategory = "equity"
	CategoryRevenue   AccountCategory = "revenue"
	CategoryExpense   AccountCategory = "expense"
)

// accountTypeMapping folds the raw account types used in the chart of
// accounts into the five report categories.
var accountTypeMapping = map[string]AccountCategory{
	// assets
	"ASSET":             CategoryAsset,
	"CURRENT_ASSET":     CategoryAsset,
	"FIXED_ASSET":       CategoryAsset,
	"NON_CURRENT_ASSET": CategoryAsset,
	"CASH":              CategoryAsset,
	"BANK":              CategoryAsset,
	"RECEIVABLE":        CategoryAsset,
	"INVENTORY":         CategoryAsset,
	// liabilities
	"LIABILITY":             CategoryLiability,
	"CURRENT_LIABILITY":     CategoryLiability,
	"NON_CURRENT_LIABILITY": CategoryLiability,
	"PAYABLE":               CategoryLiability,
	// equity
	"EQUITY":            CategoryEquity,
	"CAPITAL":           CategoryEquity,
	"RETAINED_EARNINGS": CategoryEquity,
	// revenue
	"INCOME":  CategoryRevenue,
	"REVENUE": CategoryRevenue,
	"SALES":   CategoryRevenue,
	// expenses
	"EXPENSE":           CategoryExpense,
	"COST":              CategoryExpense,
	"OPERATING_EXPENSE": CategoryExpense,
	"COGS":              CategoryExpense,
}

// ClassifyAccountType maps a raw account type (e.g. "BANK") to its
// report category. The second return is false for unknown types.
func ClassifyAccountType(accountType string) (AccountCategory, bool) {
	c, ok := accountTypeMapping[strings.ToUpper(strings.TrimSpace(accountType))]
	return c, ok
}

// naturalSign is the single place the debit/credit-normal convention
// lives. Stored amounts are debit-positive; multiplying by this sign
// yields the natural balance of the category.
var naturalSign = map[AccountCategory]int64{
	CategoryAsset:     1,
	CategoryExpense:   1,
	CategoryLiability: -1,
	CategoryEquity:    -1,
	CategoryRevenue:   -1,
}

// NaturalBalance converts a debit-positive signed sum into the natural
// balance of the given category (liabilities, equity and revenue are
// credit-normal).
func NaturalBalance(category AccountCategory, signed decimal.Decimal) decimal.Decimal {
	if naturalSign[category] < 0 {
		return signed.Neg()
	}
	return signed
}

// Side tags an entry line as debit or credit when the caller does not
// want to encode the direction in the amount's sign.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

type (
	// Account is one node of the chart of accounts. CurrentBalance is
	// advisory: it is maintained incrementally on every posting, but
	// the entry-line sum stays the source of truth.
	Account struct {
		GUID           string
		Name           string
		AccountType    string // raw type, see accountTypeMapping
		ParentGUID     string
		Code           string
		Description    string
		Hidden         bool
		Placeholder    bool
		IsCash         bool
		CurrentBalance decimal.Decimal
		CreatedAt      time.Time
		UpdatedAt      time.Time
	}

	// EntryLine is one side of a posted double-entry voucher. Amount
	// is signed, debit-positive.
	EntryLine struct {
		GUID           string
		TxGUID         string
		AccountGUID    string
		Memo           string
		Amount         decimal.Decimal
		CashflowTypeID int64 // 0 = unclassified
		CreatedAt      time.Time
	}

	// Transaction is an accounting voucher owning at least two entry
	// lines that sum to exactly zero.
	Transaction struct {
		GUID         string
		Num          string
		PostDate     time.Time
		EnterDate    time.Time
		Description  string
		BusinessType string
		ReferenceNo  string
		Lines        []EntryLine
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// EntryLineDraft is the boundary representation of a line before
	// validation. Either the amount carries the sign (Side empty) or
	// Side is set and Amount is a non-negative magnitude.
	EntryLineDraft struct {
		AccountGUID    string
		Amount         decimal.Decimal
		Side           Side
		CashflowTypeID int64
		Memo           string
	}

	// TransactionDraft is a proposed voucher, not yet validated.
	TransactionDraft struct {
		PostDate     time.Time
		Num          string
		Description  string
		BusinessType string
		ReferenceNo  string
		Lines        []EntryLineDraft
	}

	// CashflowType buckets cash movements into the three cash-flow
	// statement activities.
	CashflowType struct {
		ID        int64
		Code      string
		Name      string
		FlowType  FlowType
		Direction FlowDirection
		SortOrder int
		Active    bool
		CreatedAt time.Time
	}

	// FixedExpense is a recurring monthly deduction with a primary and
	// an optional fallback funding account. LastRunMonth is the
	// idempotency marker: the first day of the last executed period.
	FixedExpense struct {
		ID                  int64
		Name                string
		Amount              decimal.Decimal
		ExpenseAccountGUID  string
		PrimaryAccountGUID  string
		FallbackAccountGUID string
		DayOfMonth          int
		Active              bool
		LastRunMonth        time.Time // zero = never executed
		LastRunAt           time.Time
		CreatedAt           time.Time
		UpdatedAt           time.Time
	}
)

// FlowType is a cash-flow statement activity.
type FlowType string

const (
	FlowOperating FlowType = "OPERATING"
	FlowInvesting FlowType = "INVESTING"
	FlowFinancing FlowType = "FINANCING"
)

// FlowDirection marks a cashflow classification as an inflow or an
// outflow category.
type FlowDirection string

const (
	FlowInflow  FlowDirection = "INFLOW"
	FlowOutflow FlowDirection = "OUTFLOW"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientLines  = errors.New("transaction needs at least two entry lines")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrUnknownAccountType = errors.New("unknown account type")
	ErrEmptyName          = errors.New("empty name")
	ErrAccountReferenced  = errors.New("account is referenced by entry lines or fixed expenses")
	ErrNotFound           = errors.New("not found")
	ErrSideMismatch       = errors.New("explicit side does not reconcile with amount sign")
	ErrNoFundingAccount   = errors.New("no usable funding account configured")
	ErrInvalidDayOfMonth  = errors.New("day of month must be between 1 and 28")
)

// ImbalancedError reports a voucher whose entry lines do not sum to
// zero. Residual is the non-zero signed remainder.
type ImbalancedError struct {
	Residual decimal.Decimal
}

func (e *ImbalancedError) Error() string {
	return fmt.Sprintf("entry lines do not balance: residual %s", e.Residual.String())
}

// Signed normalizes the draft line to the canonical debit-positive
// signed value. With an explicit side the amount must be a magnitude;
// a signed magnitude is rejected instead of silently re-signed.
func (d EntryLineDraft) Signed() (decimal.Decimal, error) {
	switch d.Side {
	case "":
		return d.Amount, nil
	case SideDebit:
		if d.Amount.IsNegative() {
			return decimal.Zero, ErrSideMismatch
		}
		return d.Amount, nil
	case SideCredit:
		if d.Amount.IsNegative() {
			return decimal.Zero, ErrSideMismatch
		}
		return d.Amount.Neg(), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown side %q", d.Side)
	}
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if len(a.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if _, ok := ClassifyAccountType(a.AccountType); !ok {
		return ErrUnknownAccountType
	}
	return nil
}

func (d TransactionDraft) Validate() error {
	if d.PostDate.IsZero() {
		return errors.New("post date cannot be zero")
	}
	if len(d.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	for _, line := range d.Lines {
		if strings.TrimSpace(line.AccountGUID) == "" {
			return ErrUnknownAccount
		}
		if _, err := line.Signed(); err != nil {
			return err
		}
	}
	return nil
}

func (f FixedExpense) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if !f.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(f.ExpenseAccountGUID) == "" || strings.TrimSpace(f.PrimaryAccountGUID) == "" {
		return ErrUnknownAccount
	}
	if f.DayOfMonth < 1 || f.DayOfMonth > 28 {
		return ErrInvalidDayOfMonth
	}
	return nil
}
