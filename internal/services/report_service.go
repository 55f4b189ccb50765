package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"conti/internal/core"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReportService generates financial statements and maintains the monthly
// snapshot cache. Statement generation is pure: the same ledger data
// always produces a byte-identical payload.
type ReportService struct {
	storage *storage.SQLiteRepository
}

func NewReportService(storage *storage.SQLiteRepository) *ReportService {
	return &ReportService{storage: storage}
}

// Generate builds one statement of the given kind over [start, end].
// The balance sheet ignores start and reports cumulative balances as of
// end.
func (s *ReportService) Generate(ctx context.Context, kind core.StatementKind, start, end time.Time) (*core.Statement, error) {
	stmt := &core.Statement{
		Kind:        kind,
		PeriodStart: start.Format(core.DateOnly),
		PeriodEnd:   end.Format(core.DateOnly),
	}

	switch kind {
	case core.KindBalanceSheet:
		sheet, err := s.buildBalanceSheet(ctx, end)
		if err != nil {
			return nil, err
		}
		stmt.BalanceSheet = sheet
	case core.KindIncomeStatement:
		income, err := s.buildIncomeStatement(ctx, start, end)
		if err != nil {
			return nil, err
		}
		stmt.IncomeStatement = income
	case core.KindCashflowStatement:
		cashflow, err := s.buildCashflowStatement(ctx, start, end)
		if err != nil {
			return nil, err
		}
		stmt.CashflowStatement = cashflow
	default:
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
	return stmt, nil
}

// buildBalanceSheet reports cumulative natural balances as of a date,
// with the period's net income folded into equity. A non-zero residual
// between the two sides is reported, never corrected.
func (s *ReportService) buildBalanceSheet(ctx context.Context, asOf time.Time) (*core.BalanceSheet, error) {
	accounts, balances, err := s.accountBalances(ctx, time.Time{}, asOf)
	if err != nil {
		return nil, err
	}

	sheet := &core.BalanceSheet{AsOf: asOf.Format(core.DateOnly)}
	var revenueSigned, expenseSigned decimal.Decimal

	for _, a := range accounts {
		signed := balances[a.GUID]
		category, ok := core.ClassifyAccountType(a.AccountType)
		if !ok {
			continue
		}
		switch category {
		case core.CategoryRevenue:
			revenueSigned = revenueSigned.Add(signed)
			continue
		case core.CategoryExpense:
			expenseSigned = expenseSigned.Add(signed)
			continue
		}
		if signed.IsZero() {
			continue
		}
		line := statementLine(a, core.NaturalBalance(category, signed))
		switch category {
		case core.CategoryAsset:
			sheet.Assets = append(sheet.Assets, line)
			sheet.AssetTotal = sheet.AssetTotal.Add(line.Amount)
		case core.CategoryLiability:
			sheet.Liabilities = append(sheet.Liabilities, line)
			sheet.LiabilityTotal = sheet.LiabilityTotal.Add(line.Amount)
		case core.CategoryEquity:
			sheet.Equity = append(sheet.Equity, line)
			sheet.EquityTotal = sheet.EquityTotal.Add(line.Amount)
		}
	}

	// Net income = revenues (credit-normal) minus expenses (debit-normal).
	sheet.NetIncome = revenueSigned.Neg().Sub(expenseSigned)
	sheet.EquityWithIncome = sheet.EquityTotal.Add(sheet.NetIncome)
	sheet.TotalLiabilityEquity = sheet.LiabilityTotal.Add(sheet.EquityWithIncome)
	sheet.Residual = sheet.AssetTotal.Sub(sheet.TotalLiabilityEquity)
	sheet.Balanced = sheet.Residual.IsZero()
	return sheet, nil
}

func (s *ReportService) buildIncomeStatement(ctx context.Context, start, end time.Time) (*core.IncomeStatement, error) {
	accounts, balances, err := s.accountBalances(ctx, start, end)
	if err != nil {
		return nil, err
	}

	income := &core.IncomeStatement{
		Start: start.Format(core.DateOnly),
		End:   end.Format(core.DateOnly),
	}
	for _, a := range accounts {
		signed := balances[a.GUID]
		if signed.IsZero() {
			continue
		}
		category, ok := core.ClassifyAccountType(a.AccountType)
		if !ok {
			continue
		}
		line := statementLine(a, core.NaturalBalance(category, signed))
		switch category {
		case core.CategoryRevenue:
			income.Revenues = append(income.Revenues, line)
			income.RevenueTotal = income.RevenueTotal.Add(line.Amount)
		case core.CategoryExpense:
			income.Expenses = append(income.Expenses, line)
			income.ExpenseTotal = income.ExpenseTotal.Add(line.Amount)
		}
	}
	income.NetIncome = income.RevenueTotal.Sub(income.ExpenseTotal)
	return income, nil
}

// buildCashflowStatement buckets the period's cash-account movements by
// activity. Unclassified lines land in the mandatory uncategorized
// bucket; the bucket totals reconcile with the net change in cash.
func (s *ReportService) buildCashflowStatement(ctx context.Context, start, end time.Time) (*core.CashflowStatement, error) {
	movements, err := s.storage.Queries().CashMovements(ctx, start, end)
	if err != nil {
		return nil, err
	}
	types, err := s.storage.Queries().ListCashflowTypes(ctx, false)
	if err != nil {
		return nil, err
	}
	totalNet, err := s.storage.Queries().CashDelta(ctx, start, end)
	if err != nil {
		return nil, err
	}

	cashflow := &core.CashflowStatement{
		Start:    start.Format(core.DateOnly),
		End:      end.Format(core.DateOnly),
		TotalNet: totalNet,
	}

	for _, ct := range types {
		amount, ok := movements[ct.ID]
		if !ok || amount.IsZero() {
			continue
		}
		bucket := cashflow.BucketFor(ct.FlowType)
		addCashflowItem(bucket, core.CashflowItem{
			CashflowTypeID: ct.ID,
			CategoryName:   ct.Name,
			Amount:         amount,
		})
	}
	if unclassified, ok := movements[0]; ok && !unclassified.IsZero() {
		addCashflowItem(&cashflow.Uncategorized, core.CashflowItem{
			CategoryName: "Uncategorized",
			Amount:       unclassified,
		})
	}
	return cashflow, nil
}

// addCashflowItem appends the item and folds its signed amount into the
// bucket totals. Positive amounts are cash inflows (debits to cash).
func addCashflowItem(b *core.CashflowBucket, item core.CashflowItem) {
	b.Items = append(b.Items, item)
	if item.Amount.IsNegative() {
		b.Outflow = b.Outflow.Add(item.Amount.Neg())
	} else {
		b.Inflow = b.Inflow.Add(item.Amount)
	}
	b.Net = b.Inflow.Sub(b.Outflow)
}

// accountBalances loads every account plus its signed sum over the
// range, sorted for deterministic statement output.
func (s *ReportService) accountBalances(ctx context.Context, from, to time.Time) ([]core.Account, map[string]decimal.Decimal, error) {
	accounts, err := s.storage.Queries().ListAccounts(ctx, true)
	if err != nil {
		return nil, nil, err
	}
	balances, err := s.storage.Queries().AccountBalances(ctx, from, to)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Code != accounts[j].Code {
			return accounts[i].Code < accounts[j].Code
		}
		if accounts[i].Name != accounts[j].Name {
			return accounts[i].Name < accounts[j].Name
		}
		return accounts[i].GUID < accounts[j].GUID
	})
	return accounts, balances, nil
}

func statementLine(a core.Account, amount decimal.Decimal) core.StatementLine {
	return core.StatementLine{
		AccountGUID: a.GUID,
		Code:        a.Code,
		Name:        a.Name,
		ParentGUID:  a.ParentGUID,
		Amount:      amount,
	}
}

// GetOrBuildMonthlyReport returns the frozen snapshot for the month,
// building and persisting it on first access. A stored snapshot is
// returned unchanged; it is never regenerated on read. Concurrent first
// builds race through the unique key and the stored winner is returned.
func (s *ReportService) GetOrBuildMonthlyReport(ctx context.Context, month time.Time, kind core.StatementKind) (*core.Statement, error) {
	month = PeriodMonth(month)

	row, err := s.storage.Queries().GetMonthlyReport(ctx, month, kind)
	if err == nil {
		return decodeSnapshot(row.Payload)
	}
	if err != core.ErrNotFound {
		return nil, err
	}

	if err := s.buildAndStoreSnapshot(ctx, month, kind); err != nil {
		return nil, err
	}

	// Re-read so every racing caller observes the same stored payload.
	row, err = s.storage.Queries().GetMonthlyReport(ctx, month, kind)
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(row.Payload)
}

// RebuildMonthlyReport discards the stored snapshot for the month and
// builds a fresh one. This is the only path that replaces frozen data.
func (s *ReportService) RebuildMonthlyReport(ctx context.Context, month time.Time, kind core.StatementKind) (*core.Statement, error) {
	month = PeriodMonth(month)

	if err := s.storage.Queries().DeleteMonthlyReport(ctx, month, kind); err != nil {
		return nil, err
	}
	if err := s.buildAndStoreSnapshot(ctx, month, kind); err != nil {
		return nil, err
	}

	row, err := s.storage.Queries().GetMonthlyReport(ctx, month, kind)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Monthly report rebuilt",
		"month", month.Format(core.DateOnly), "kind", string(kind))
	return decodeSnapshot(row.Payload)
}

// MaterializeMonth ensures all three statement snapshots exist for the
// month, building them concurrently.
func (s *ReportService) MaterializeMonth(ctx context.Context, month time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range []core.StatementKind{
		core.KindBalanceSheet,
		core.KindIncomeStatement,
		core.KindCashflowStatement,
	} {
		g.Go(func() error {
			_, err := s.GetOrBuildMonthlyReport(ctx, month, kind)
			return err
		})
	}
	return g.Wait()
}

// buildAndStoreSnapshot generates the statement for the month and
// stores it; a concurrent builder that got there first wins. The
// generation timestamp is stamped here, at persist time, so the
// generator itself stays deterministic.
func (s *ReportService) buildAndStoreSnapshot(ctx context.Context, month time.Time, kind core.StatementKind) error {
	start := month
	end := month.AddDate(0, 1, -1) // last day of the month

	stmt, err := s.Generate(ctx, kind, start, end)
	if err != nil {
		return err
	}
	stmt.GeneratedAt = time.Now().UTC()

	payload, err := json.Marshal(stmt)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.storage.Queries().InsertMonthlyReport(ctx, &storage.MonthlyReportRow{
		ReportMonth: month,
		ReportType:  kind,
		Payload:     payload,
		CreatedAt:   stmt.GeneratedAt,
	})
}

func decodeSnapshot(payload []byte) (*core.Statement, error) {
	var stmt core.Statement
	if err := json.Unmarshal(payload, &stmt); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &stmt, nil
}
