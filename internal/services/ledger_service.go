package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/storage"

	"github.com/shopspring/decimal"
)

// LedgerService orchestrates account and voucher operations across SQLite
// and AMQP.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateAccount validates and persists a new account node.
func (s *LedgerService) CreateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.GUID == "" {
		a.GUID = core.NewGUID()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	a.CurrentBalance = decimal.Zero

	if a.ParentGUID != "" {
		if _, err := s.storage.Queries().GetAccount(ctx, a.ParentGUID); err != nil {
			return fmt.Errorf("parent account: %w", err)
		}
	}
	return s.storage.Queries().InsertAccount(ctx, a)
}

// UpdateAccount validates and persists changes to an existing account.
// Reparenting that would create a cycle in the account tree is rejected.
func (s *LedgerService) UpdateAccount(ctx context.Context, a *core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.ParentGUID != "" {
		if err := s.checkParentCycle(ctx, a.GUID, a.ParentGUID); err != nil {
			return err
		}
	}
	a.UpdatedAt = time.Now().UTC()
	return s.storage.Queries().UpdateAccount(ctx, a)
}

// checkParentCycle walks up from the proposed parent and fails if the
// chain reaches the account being updated.
func (s *LedgerService) checkParentCycle(ctx context.Context, guid, parentGUID string) error {
	seen := make(map[string]bool)
	for cur := parentGUID; cur != ""; {
		if cur == guid {
			return fmt.Errorf("account %s: parent chain forms a cycle", guid)
		}
		if seen[cur] {
			return fmt.Errorf("account %s: parent chain forms a cycle", cur)
		}
		seen[cur] = true
		parent, err := s.storage.Queries().GetAccount(ctx, cur)
		if err != nil {
			return fmt.Errorf("parent account %s: %w", cur, err)
		}
		cur = parent.ParentGUID
	}
	return nil
}

func (s *LedgerService) GetAccount(ctx context.Context, guid string) (*core.Account, error) {
	return s.storage.Queries().GetAccount(ctx, guid)
}

func (s *LedgerService) ListAccounts(ctx context.Context, includeHidden bool) ([]core.Account, error) {
	return s.storage.Queries().ListAccounts(ctx, includeHidden)
}

func (s *LedgerService) DeleteAccount(ctx context.Context, guid string) error {
	return s.storage.DeleteAccount(ctx, guid)
}

// BalanceReport carries both the raw signed (debit-positive) sum of an
// account over a date range and its natural balance.
type BalanceReport struct {
	AccountGUID string
	Category    core.AccountCategory
	Signed      decimal.Decimal
	Natural     decimal.Decimal
	From        time.Time
	To          time.Time
}

// AccountBalance sums the entry lines of an account over an optional
// date range. Zero time bounds mean unbounded; an account with no lines
// in range reports zero.
func (s *LedgerService) AccountBalance(ctx context.Context, guid string, from, to time.Time) (*BalanceReport, error) {
	account, err := s.storage.Queries().GetAccount(ctx, guid)
	if err != nil {
		return nil, err
	}
	category, ok := core.ClassifyAccountType(account.AccountType)
	if !ok {
		return nil, core.ErrUnknownAccountType
	}

	signed, err := s.storage.Queries().AccountBalance(ctx, guid, from, to)
	if err != nil {
		return nil, err
	}

	return &BalanceReport{
		AccountGUID: guid,
		Category:    category,
		Signed:      signed,
		Natural:     core.NaturalBalance(category, signed),
		From:        from,
		To:          to,
	}, nil
}

// CreateTransaction validates a draft voucher, posts it and publishes a
// ledger event. The balance check runs before any write.
func (s *LedgerService) CreateTransaction(ctx context.Context, draft core.TransactionDraft) (*core.Transaction, error) {
	t, err := s.buildTransaction(draft)
	if err != nil {
		return nil, err
	}
	t.GUID = core.NewGUID()

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return nil, err
	}

	s.publishLedgerEvent(ctx, amqp.NewTransactionPostedMessage(t.GUID, t.PostDate.Format(core.DateOnly)))
	return t, nil
}

// UpdateTransaction re-validates the replacement draft and swaps the
// voucher's lines atomically.
func (s *LedgerService) UpdateTransaction(ctx context.Context, guid string, draft core.TransactionDraft) (*core.Transaction, error) {
	t, err := s.buildTransaction(draft)
	if err != nil {
		return nil, err
	}
	t.GUID = guid

	if err := s.storage.UpdateTransaction(ctx, t); err != nil {
		return nil, err
	}

	s.publishLedgerEvent(ctx, amqp.NewTransactionPostedMessage(guid, t.PostDate.Format(core.DateOnly)))
	return t, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, guid string) error {
	t, err := s.storage.Queries().GetTransaction(ctx, guid)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, guid, time.Now().UTC()); err != nil {
		return err
	}
	s.publishLedgerEvent(ctx, amqp.NewTransactionPostedMessage(guid, t.PostDate.Format(core.DateOnly)))
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, guid string) (*core.Transaction, error) {
	return s.storage.Queries().GetTransaction(ctx, guid)
}

func (s *LedgerService) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.storage.Queries().ListTransactions(ctx, limit)
}

func (s *LedgerService) ListCashflowTypes(ctx context.Context, activeOnly bool) ([]core.CashflowType, error) {
	return s.storage.Queries().ListCashflowTypes(ctx, activeOnly)
}

// buildTransaction runs the full validation pipeline on a draft and
// produces the voucher to persist: structural checks, balance check,
// then normalization to signed debit-positive lines.
func (s *LedgerService) buildTransaction(draft core.TransactionDraft) (*core.Transaction, error) {
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

	now := time.Now().UTC()
	for i := range lines {
		lines[i].GUID = core.NewGUID()
		lines[i].CreatedAt = now
	}
	return &core.Transaction{
		Num:          draft.Num,
		PostDate:     draft.PostDate,
		EnterDate:    now,
		Description:  draft.Description,
		BusinessType: draft.BusinessType,
		ReferenceNo:  draft.ReferenceNo,
		Lines:        lines,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *LedgerService) publishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) {
	if s.amqpClient == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "kind", msg.Kind)
		return
	}
	if err := s.amqpClient.PublishLedgerEvent(ctx, msg); err != nil {
		// Non-fatal: the voucher is committed locally.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", msg.Kind, "tx_guid", msg.TxGUID, "error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *LedgerService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
