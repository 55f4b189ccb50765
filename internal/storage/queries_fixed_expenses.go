package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"conti/internal/core"
)

const fixedExpenseColumns = `id, name, amount_num, amount_denom, expense_account_guid,
	primary_account_guid, fallback_account_guid, day_of_month, is_active,
	last_run_month, last_run_at, created_at, updated_at`

func (q *Queries) InsertFixedExpense(ctx context.Context, f *core.FixedExpense) (int64, error) {
	num, denom, err := core.FractionOf(f.Amount)
	if err != nil {
		return 0, fmt.Errorf("encode amount: %w", err)
	}
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO fixed_expenses (name, amount_num, amount_denom, expense_account_guid,
			primary_account_guid, fallback_account_guid, day_of_month, is_active,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, num, denom, f.ExpenseAccountGUID,
		f.PrimaryAccountGUID, nullString(f.FallbackAccountGUID), f.DayOfMonth, f.Active,
		timeString(f.CreatedAt), timeString(f.UpdatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert fixed expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert fixed expense: id: %w", err)
	}
	return id, nil
}

func (q *Queries) UpdateFixedExpense(ctx context.Context, f *core.FixedExpense) error {
	num, denom, err := core.FractionOf(f.Amount)
	if err != nil {
		return fmt.Errorf("encode amount: %w", err)
	}
	res, err := q.db.ExecContext(ctx,
		`UPDATE fixed_expenses SET name = ?, amount_num = ?, amount_denom = ?,
			expense_account_guid = ?, primary_account_guid = ?, fallback_account_guid = ?,
			day_of_month = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		f.Name, num, denom,
		f.ExpenseAccountGUID, f.PrimaryAccountGUID, nullString(f.FallbackAccountGUID),
		f.DayOfMonth, f.Active, timeString(f.UpdatedAt),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("update fixed expense: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) DeleteFixedExpense(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM fixed_expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete fixed expense: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) GetFixedExpense(ctx context.Context, id int64) (*core.FixedExpense, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+fixedExpenseColumns+` FROM fixed_expenses WHERE id = ?`, id)
	f, err := scanFixedExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get fixed expense: %w", err)
	}
	return f, nil
}

func (q *Queries) ListFixedExpenses(ctx context.Context) ([]core.FixedExpense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+fixedExpenseColumns+` FROM fixed_expenses ORDER BY day_of_month, id`)
	if err != nil {
		return nil, fmt.Errorf("list fixed expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.FixedExpense
	for rows.Next() {
		f, err := scanFixedExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list fixed expenses: scan: %w", err)
		}
		expenses = append(expenses, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fixed expenses: rows: %w", err)
	}
	return expenses, nil
}

// MarkFixedExpenseRun sets the idempotency marker for the period. It
// must run in the same transaction as the voucher insert so a crash
// cannot separate the two.
func (q *Queries) MarkFixedExpenseRun(ctx context.Context, id int64, periodMonth time.Time, at time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE fixed_expenses SET last_run_month = ?, last_run_at = ?, updated_at = ?
		WHERE id = ?`,
		dateString(periodMonth), timeString(at), timeString(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark fixed expense run: %w", err)
	}
	return requireRow(res)
}

func scanFixedExpense(s scanner) (*core.FixedExpense, error) {
	var f core.FixedExpense
	var num, denom int64
	var fallback, lastRunMonth, lastRunAt sql.NullString
	var createdAt, updatedAt string
	err := s.Scan(
		&f.ID, &f.Name, &num, &denom, &f.ExpenseAccountGUID,
		&f.PrimaryAccountGUID, &fallback, &f.DayOfMonth, &f.Active,
		&lastRunMonth, &lastRunAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if f.Amount, err = core.AmountFromFraction(num, denom); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	f.FallbackAccountGUID = fallback.String
	if f.LastRunMonth, err = parseDate(lastRunMonth.String); err != nil {
		return nil, fmt.Errorf("parse last_run_month: %w", err)
	}
	if f.LastRunAt, err = parseTime(lastRunAt.String); err != nil {
		return nil, fmt.Errorf("parse last_run_at: %w", err)
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &f, nil
}
