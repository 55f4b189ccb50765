package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatementKind identifies one of the three financial statements.
type StatementKind string

const (
	KindBalanceSheet      StatementKind = "balance_sheet"
	KindIncomeStatement   StatementKind = "income_statement"
	KindCashflowStatement StatementKind = "cashflow_statement"
)

// ParseStatementKind accepts the canonical kind names and the dashed
// URL variants used by the HTTP layer.
func ParseStatementKind(s string) (StatementKind, error) {
	switch s {
	case string(KindBalanceSheet), "balance-sheet":
		return KindBalanceSheet, nil
	case string(KindIncomeStatement), "income-statement":
		return KindIncomeStatement, nil
	case string(KindCashflowStatement), "cashflow-statement":
		return KindCashflowStatement, nil
	}
	return "", fmt.Errorf("unknown statement kind %q", s)
}

// DateOnly is the wire format for statement period boundaries.
const DateOnly = "2006-01-02"

type (
	// StatementLine is one account row of a statement section. Amount
	// is the natural balance of the account's category.
	StatementLine struct {
		AccountGUID string          `json:"account_guid"`
		Code        string          `json:"code,omitempty"`
		Name        string          `json:"name"`
		ParentGUID  string          `json:"parent_guid,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
	}

	// BalanceSheet holds cumulative natural balances as of a date.
	// Residual is assets − (liabilities + equity incl. net income); a
	// non-zero value signals an upstream invariant violation and is
	// reported as-is, never corrected.
	BalanceSheet struct {
		AsOf                 string          `json:"as_of"`
		Assets               []StatementLine `json:"assets"`
		Liabilities          []StatementLine `json:"liabilities"`
		Equity               []StatementLine `json:"equity"`
		AssetTotal           decimal.Decimal `json:"asset_total"`
		LiabilityTotal       decimal.Decimal `json:"liability_total"`
		EquityTotal          decimal.Decimal `json:"equity_total"`
		NetIncome            decimal.Decimal `json:"net_income"`
		EquityWithIncome     decimal.Decimal `json:"equity_with_income"`
		TotalLiabilityEquity decimal.Decimal `json:"total_liability_equity"`
		Residual             decimal.Decimal `json:"residual"`
		Balanced             bool            `json:"balanced"`
	}

	// IncomeStatement is period-bounded, never cumulative.
	IncomeStatement struct {
		Start        string          `json:"start"`
		End          string          `json:"end"`
		Revenues     []StatementLine `json:"revenues"`
		Expenses     []StatementLine `json:"expenses"`
		RevenueTotal decimal.Decimal `json:"revenue_total"`
		ExpenseTotal decimal.Decimal `json:"expense_total"`
		NetIncome    decimal.Decimal `json:"net_income"`
	}

	// CashflowItem is one classification row inside a bucket.
	CashflowItem struct {
		CashflowTypeID int64           `json:"cashflow_type_id,omitempty"`
		CategoryName   string          `json:"category_name"`
		Amount         decimal.Decimal `json:"amount"`
	}

	// CashflowBucket groups cash movements of one activity. Inflow and
	// Outflow are non-negative magnitudes; Net is inflow − outflow.
	CashflowBucket struct {
		Items   []CashflowItem  `json:"item_list"`
		Inflow  decimal.Decimal `json:"inflow"`
		Outflow decimal.Decimal `json:"outflow"`
		Net     decimal.Decimal `json:"net"`
	}

	// CashflowStatement buckets period cash movements by activity.
	// Lines on cash accounts without a classification land in
	// Uncategorized; they are reported, never dropped. TotalNet equals
	// the period's net change across all cash accounts.
	CashflowStatement struct {
		Start         string          `json:"start"`
		End           string          `json:"end"`
		Operating     CashflowBucket  `json:"operating"`
		Investing     CashflowBucket  `json:"investing"`
		Financing     CashflowBucket  `json:"financing"`
		Uncategorized CashflowBucket  `json:"uncategorized"`
		TotalNet      decimal.Decimal `json:"total_net"`
	}
)

// BucketFor maps a flow type to the statement's bucket. Unknown flow
// types fold into Uncategorized rather than being dropped.
func (c *CashflowStatement) BucketFor(ft FlowType) *CashflowBucket {
	switch ft {
	case FlowOperating:
		return &c.Operating
	case FlowInvesting:
		return &c.Investing
	case FlowFinancing:
		return &c.Financing
	}
	return &c.Uncategorized
}

type (
	// Statement is the serialized payload contract between the
	// generator and the monthly snapshot cache. Exactly one of the
	// three sections is set, matching Kind. GeneratedAt is zero on
	// freshly generated statements and set when a snapshot is
	// persisted, so regeneration stays byte-identical.
	Statement struct {
		Kind              StatementKind      `json:"kind"`
		PeriodStart       string             `json:"period_start"`
		PeriodEnd         string             `json:"period_end"`
		GeneratedAt       time.Time          `json:"generated_at"`
		BalanceSheet      *BalanceSheet      `json:"balance_sheet,omitempty"`
		IncomeStatement   *IncomeStatement   `json:"income_statement,omitempty"`
		CashflowStatement *CashflowStatement `json:"cashflow_statement,omitempty"`
	}
)
