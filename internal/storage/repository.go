package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"conti/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// DSN pragmas apply to every pooled connection. busy_timeout makes
	// concurrent writers wait instead of failing with SQLITE_BUSY,
	// which snapshot materialization hits when it builds the three
	// statement kinds in parallel.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Queries returns the plain query layer bound to the connection pool, for
// reads that do not need a transaction.
func (r *SQLiteRepository) Queries() *Queries {
	return r.queries
}

// WithTx runs fn inside a database transaction. The transaction is rolled
// back if fn returns an error and committed otherwise.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateTransaction persists a validated voucher and its entry lines in a
// single transaction, updating the cached balance of every touched account.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	err := r.WithTx(ctx, func(q *Queries) error {
		return q.PostTransaction(ctx, t)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction created",
		"guid", t.GUID,
		"lines", len(t.Lines),
		"post_date", t.PostDate.Format(core.DateOnly))
	return nil
}

// PostTransaction does the voucher insert inside an already open
// transaction, so callers with their own transactional scope (the fixed
// expense executor) can compose it with other writes.
func (q *Queries) PostTransaction(ctx context.Context, t *core.Transaction) error {
	for _, line := range t.Lines {
		if _, err := q.GetAccount(ctx, line.AccountGUID); err != nil {
			return fmt.Errorf("line account %s: %w", line.AccountGUID, err)
		}
	}

	if err := q.InsertTransaction(ctx, t); err != nil {
		return err
	}
	for i := range t.Lines {
		t.Lines[i].TxGUID = t.GUID
		if err := q.InsertEntryLine(ctx, &t.Lines[i]); err != nil {
			return err
		}
	}
	return applyLineDeltas(ctx, q, t.Lines, 1, t.UpdatedAt)
}

// UpdateTransaction replaces the voucher header and all of its entry lines.
// Old line amounts are reverted from account balances before the new lines
// are applied.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	err := r.WithTx(ctx, func(q *Queries) error {
		oldLines, err := q.GetEntryLines(ctx, t.GUID)
		if err != nil {
			return err
		}
		if err := applyLineDeltas(ctx, q, oldLines, -1, t.UpdatedAt); err != nil {
			return err
		}
		if err := q.DeleteEntryLinesByTx(ctx, t.GUID); err != nil {
			return err
		}
		if err := q.UpdateTransactionRow(ctx, t); err != nil {
			return err
		}
		for _, line := range t.Lines {
			if _, err := q.GetAccount(ctx, line.AccountGUID); err != nil {
				return fmt.Errorf("line account %s: %w", line.AccountGUID, err)
			}
		}
		for i := range t.Lines {
			t.Lines[i].TxGUID = t.GUID
			if err := q.InsertEntryLine(ctx, &t.Lines[i]); err != nil {
				return err
			}
		}
		return applyLineDeltas(ctx, q, t.Lines, 1, t.UpdatedAt)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction updated", "guid", t.GUID, "lines", len(t.Lines))
	return nil
}

// DeleteTransaction removes a voucher and reverts its effect on account
// balances.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, guid string, at time.Time) error {
	err := r.WithTx(ctx, func(q *Queries) error {
		lines, err := q.GetEntryLines(ctx, guid)
		if err != nil {
			return err
		}
		if err := applyLineDeltas(ctx, q, lines, -1, at); err != nil {
			return err
		}
		return q.DeleteTransactionRow(ctx, guid)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "guid", guid)
	return nil
}

// DeleteAccount removes an account unless entry lines, fixed expenses or
// child accounts still reference it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, guid string) error {
	return r.WithTx(ctx, func(q *Queries) error {
		referenced, err := q.AccountReferenced(ctx, guid)
		if err != nil {
			return err
		}
		if referenced {
			return core.ErrAccountReferenced
		}
		return q.DeleteAccount(ctx, guid)
	})
}

// applyLineDeltas folds the lines into one delta per account and applies
// them in first-seen order, so an account repeated across lines hits the
// row exactly once.
func applyLineDeltas(ctx context.Context, q *Queries, lines []core.EntryLine, sign int64, at time.Time) error {
	deltas := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := deltas[line.AccountGUID]; !ok {
			order = append(order, line.AccountGUID)
		}
		amount := line.Amount
		if sign < 0 {
			amount = amount.Neg()
		}
		deltas[line.AccountGUID] = deltas[line.AccountGUID].Add(amount)
	}
	for _, guid := range order {
		if err := q.ApplyBalanceDelta(ctx, guid, deltas[guid], at); err != nil {
			return err
		}
	}
	return nil
}
