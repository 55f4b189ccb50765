package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/storage"
)

// ExecutionStatus is the outcome of one fixed-expense execution attempt.
type ExecutionStatus string

const (
	StatusExecuted ExecutionStatus = "executed"
	StatusSkipped  ExecutionStatus = "skipped"
	StatusFailed   ExecutionStatus = "failed"
)

// ExecutionResult reports what happened to one fixed expense for one
// period. Err is set only for StatusFailed.
type ExecutionResult struct {
	FixedExpenseID  int64
	Name            string
	Status          ExecutionStatus
	TransactionGUID string
	FundingGUID     string
	Advisory        string
	Err             error
}

// FixedExpenseService executes recurring monthly deductions as regular
// balanced vouchers. The per-period idempotency marker and the voucher
// share one SQL transaction, so a crash between the two is impossible.
type FixedExpenseService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewFixedExpenseService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *FixedExpenseService {
	return &FixedExpenseService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

func (s *FixedExpenseService) CreateFixedExpense(ctx context.Context, f *core.FixedExpense) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.checkAccounts(ctx, f); err != nil {
		return err
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	id, err := s.storage.Queries().InsertFixedExpense(ctx, f)
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (s *FixedExpenseService) UpdateFixedExpense(ctx context.Context, f *core.FixedExpense) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := s.checkAccounts(ctx, f); err != nil {
		return err
	}
	f.UpdatedAt = time.Now().UTC()
	return s.storage.Queries().UpdateFixedExpense(ctx, f)
}

func (s *FixedExpenseService) DeleteFixedExpense(ctx context.Context, id int64) error {
	return s.storage.Queries().DeleteFixedExpense(ctx, id)
}

func (s *FixedExpenseService) GetFixedExpense(ctx context.Context, id int64) (*core.FixedExpense, error) {
	return s.storage.Queries().GetFixedExpense(ctx, id)
}

func (s *FixedExpenseService) ListFixedExpenses(ctx context.Context) ([]core.FixedExpense, error) {
	return s.storage.Queries().ListFixedExpenses(ctx)
}

func (s *FixedExpenseService) checkAccounts(ctx context.Context, f *core.FixedExpense) error {
	guids := []string{f.ExpenseAccountGUID, f.PrimaryAccountGUID}
	if f.FallbackAccountGUID != "" {
		guids = append(guids, f.FallbackAccountGUID)
	}
	for _, guid := range guids {
		if _, err := s.storage.Queries().GetAccount(ctx, guid); err != nil {
			return fmt.Errorf("fixed expense account %s: %w", guid, err)
		}
	}
	return nil
}

// Execute runs one fixed expense for the period containing now. Already
// executed periods and not-yet-due schedules come back as skips; funding
// problems come back as failures. The returned error is reserved for
// infrastructure faults.
func (s *FixedExpenseService) Execute(ctx context.Context, id int64, now time.Time) (*ExecutionResult, error) {
	period := PeriodMonth(now)

	var result *ExecutionResult
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		f, err := q.GetFixedExpense(ctx, id)
		if err != nil {
			return err
		}
		result = &ExecutionResult{FixedExpenseID: f.ID, Name: f.Name}

		if !f.Active {
			result.Status = StatusSkipped
			result.Advisory = "inactive"
			return nil
		}
		if !f.LastRunMonth.IsZero() && !period.After(PeriodMonth(f.LastRunMonth)) {
			result.Status = StatusSkipped
			result.Advisory = "already executed for period"
			return nil
		}

		// The funding decision and the voucher share this transaction:
		// the balance read cannot go stale before the write lands.
		funding, advisory, err := s.selectFunding(ctx, q, f)
		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			return nil
		}
		result.FundingGUID = funding
		result.Advisory = advisory

		t, err := s.buildVoucher(f, funding, now)
		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			return nil
		}
		if err := q.PostTransaction(ctx, t); err != nil {
			return err
		}
		if err := q.MarkFixedExpenseRun(ctx, f.ID, period, now.UTC()); err != nil {
			return err
		}
		result.Status = StatusExecuted
		result.TransactionGUID = t.GUID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logResult(ctx, result, period)
	if result.Status == StatusExecuted {
		s.publishExecuted(ctx, result, now)
	}
	return result, nil
}

// ExecuteAllDue runs every due fixed expense for the period containing
// now. Execution is best-effort per item: one failing config never
// aborts the batch, and each config gets exactly one result.
func (s *FixedExpenseService) ExecuteAllDue(ctx context.Context, now time.Time) ([]ExecutionResult, error) {
	expenses, err := s.storage.Queries().ListFixedExpenses(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ExecutionResult, 0, len(expenses))
	for _, f := range expenses {
		if !FixedExpenseDue(f, now) {
			results = append(results, ExecutionResult{
				FixedExpenseID: f.ID,
				Name:           f.Name,
				Status:         StatusSkipped,
				Advisory:       "not due",
			})
			continue
		}
		res, err := s.Execute(ctx, f.ID, now)
		if err != nil {
			results = append(results, ExecutionResult{
				FixedExpenseID: f.ID,
				Name:           f.Name,
				Status:         StatusFailed,
				Err:            err,
			})
			continue
		}
		results = append(results, *res)
	}
	return results, nil
}

// selectFunding picks the funding account for one execution: the primary
// when it covers the amount, otherwise the fallback with a low-funding
// advisory. No usable account is a (non-fatal) failure.
func (s *FixedExpenseService) selectFunding(ctx context.Context, q *storage.Queries, f *core.FixedExpense) (guid, advisory string, err error) {
	primary, err := q.AccountBalance(ctx, f.PrimaryAccountGUID, time.Time{}, time.Time{})
	if err != nil {
		return "", "", err
	}
	if primary.GreaterThanOrEqual(f.Amount) {
		return f.PrimaryAccountGUID, "", nil
	}

	if f.FallbackAccountGUID == "" {
		return "", "", fmt.Errorf("%w: primary balance %s below %s",
			core.ErrNoFundingAccount, core.FormatAmount(primary), core.FormatAmount(f.Amount))
	}
	fallback, err := q.AccountBalance(ctx, f.FallbackAccountGUID, time.Time{}, time.Time{})
	if err != nil {
		return "", "", err
	}
	if fallback.GreaterThanOrEqual(f.Amount) {
		advisory = fmt.Sprintf("low funding: primary %s below %s, used fallback",
			core.FormatAmount(primary), core.FormatAmount(f.Amount))
		return f.FallbackAccountGUID, advisory, nil
	}

	return "", "", fmt.Errorf("%w: primary %s and fallback %s both below %s",
		core.ErrNoFundingAccount, core.FormatAmount(primary),
		core.FormatAmount(fallback), core.FormatAmount(f.Amount))
}

// buildVoucher assembles the two-line deduction voucher and runs it
// through the same validation pipeline as any user-posted transaction.
func (s *FixedExpenseService) buildVoucher(f *core.FixedExpense, fundingGUID string, now time.Time) (*core.Transaction, error) {
	draft := core.TransactionDraft{
		PostDate:    time.Date(now.Year(), now.Month(), scheduledDay(f.DayOfMonth, now), 0, 0, 0, 0, time.UTC),
		Description: fmt.Sprintf("Fixed expense: %s", f.Name),
		Lines: []core.EntryLineDraft{
			{AccountGUID: f.ExpenseAccountGUID, Amount: f.Amount, Side: core.SideDebit},
			{AccountGUID: fundingGUID, Amount: f.Amount, Side: core.SideCredit},
		},
	}
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if err := core.CheckBalanced(draft.Lines); err != nil {
		return nil, err
	}
	lines, err := core.NormalizeLines(draft.Lines)
	if err != nil {
		return nil, err
	}

	created := now.UTC()
	for i := range lines {
		lines[i].GUID = core.NewGUID()
		lines[i].CreatedAt = created
	}
	return &core.Transaction{
		GUID:        core.NewGUID(),
		PostDate:    draft.PostDate,
		EnterDate:   created,
		Description: draft.Description,
		Lines:       lines,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, nil
}

func (s *FixedExpenseService) logResult(ctx context.Context, r *ExecutionResult, period time.Time) {
	attrs := []any{
		"fixed_expense_id", r.FixedExpenseID,
		"name", r.Name,
		"status", string(r.Status),
		"period", period.Format("2006-01"),
	}
	switch r.Status {
	case StatusExecuted:
		if r.Advisory != "" {
			attrs = append(attrs, "advisory", r.Advisory)
		}
		slog.InfoContext(ctx, "Fixed expense executed", attrs...)
	case StatusSkipped:
		slog.DebugContext(ctx, "Fixed expense skipped", append(attrs, "reason", r.Advisory)...)
	case StatusFailed:
		slog.WarnContext(ctx, "Fixed expense failed", append(attrs, "error", r.Err)...)
	}
}

func (s *FixedExpenseService) publishExecuted(ctx context.Context, r *ExecutionResult, now time.Time) {
	if s.amqpClient == nil {
		return
	}
	msg := amqp.NewFixedExpenseExecutedMessage(r.FixedExpenseID, r.TransactionGUID, now.Format(core.DateOnly))
	if err := s.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish fixed expense event",
			"fixed_expense_id", r.FixedExpenseID, "error", err)
	}
}
