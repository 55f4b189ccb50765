package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

const accountColumns = `guid, name, account_type, parent_guid, code, description,
	hidden, placeholder, is_cash, current_balance_num, current_balance_denom,
	created_at, updated_at`

// balanceScale rescales every stored fraction to a common 10^6
// denominator so SQL can sum entry lines with exact integer math.
// Valid because value_denom is always a power of ten dividing 10^6.
const balanceScale = 1000000

func (q *Queries) InsertAccount(ctx context.Context, a *core.Account) error {
	balNum, balDenom, err := core.FractionOf(a.CurrentBalance)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.GUID, a.Name, a.AccountType, nullString(a.ParentGUID), a.Code, a.Description,
		a.Hidden, a.Placeholder, a.IsCash, balNum, balDenom,
		timeString(a.CreatedAt), timeString(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (q *Queries) UpdateAccount(ctx context.Context, a *core.Account) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, account_type = ?, parent_guid = ?, code = ?,
			description = ?, hidden = ?, placeholder = ?, is_cash = ?, updated_at = ?
		WHERE guid = ?`,
		a.Name, a.AccountType, nullString(a.ParentGUID), a.Code,
		a.Description, a.Hidden, a.Placeholder, a.IsCash, timeString(a.UpdatedAt),
		a.GUID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) GetAccount(ctx context.Context, guid string) (*core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE guid = ?`, guid)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrUnknownAccount
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAccounts(ctx context.Context, includeHidden bool) ([]core.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if !includeHidden {
		query += ` WHERE hidden = 0`
	}
	query += ` ORDER BY code, name, guid`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: scan: %w", err)
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: rows: %w", err)
	}
	return accounts, nil
}

// AccountReferenced reports whether entry lines or fixed expense
// configurations point at the account. Referenced accounts must not be
// deleted.
func (q *Queries) AccountReferenced(ctx context.Context, guid string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM entry_lines WHERE account_guid = ?) +
			(SELECT COUNT(*) FROM fixed_expenses
				WHERE expense_account_guid = ? OR primary_account_guid = ? OR fallback_account_guid = ?) +
			(SELECT COUNT(*) FROM accounts WHERE parent_guid = ?)`,
		guid, guid, guid, guid, guid,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("account referenced: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) DeleteAccount(ctx context.Context, guid string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return requireRow(res)
}

// AccountBalance sums the account's entry lines as an exact signed
// (debit-positive) amount. Zero time bounds mean unbounded; an account
// without lines yields zero.
func (q *Queries) AccountBalance(ctx context.Context, guid string, from, to time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(l.value_num * (` + fmt.Sprint(balanceScale) + ` / l.value_denom)), 0)
		FROM entry_lines l
		JOIN transactions t ON t.guid = l.tx_guid
		WHERE l.account_guid = ?`
	args := []any{guid}
	if !from.IsZero() {
		query += ` AND t.post_date >= ?`
		args = append(args, dateString(from))
	}
	if !to.IsZero() {
		query += ` AND t.post_date <= ?`
		args = append(args, dateString(to))
	}

	var scaled int64
	if err := q.db.QueryRowContext(ctx, query, args...).Scan(&scaled); err != nil {
		return decimal.Zero, fmt.Errorf("account balance: %w", err)
	}
	return decimal.New(scaled, -6), nil
}

// AccountBalances returns the signed sum per account over the given
// bounds, for every account that has at least one line in range.
func (q *Queries) AccountBalances(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	query := `SELECT l.account_guid, COALESCE(SUM(l.value_num * (` + fmt.Sprint(balanceScale) + ` / l.value_denom)), 0)
		FROM entry_lines l
		JOIN transactions t ON t.guid = l.tx_guid`
	var args []any
	var conds []string
	if !from.IsZero() {
		conds = append(conds, `t.post_date >= ?`)
		args = append(args, dateString(from))
	}
	if !to.IsZero() {
		conds = append(conds, `t.post_date <= ?`)
		args = append(args, dateString(to))
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` GROUP BY l.account_guid`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}
	defer rows.Close()

	balances := make(map[string]decimal.Decimal)
	for rows.Next() {
		var guid string
		var scaled int64
		if err := rows.Scan(&guid, &scaled); err != nil {
			return nil, fmt.Errorf("account balances: scan: %w", err)
		}
		balances[guid] = decimal.New(scaled, -6)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("account balances: rows: %w", err)
	}
	return balances, nil
}

// ApplyBalanceDelta shifts the advisory current_balance of an account.
// Must run inside the same transaction as the entry line write.
func (q *Queries) ApplyBalanceDelta(ctx context.Context, guid string, delta decimal.Decimal, at time.Time) error {
	var num, denom int64
	err := q.db.QueryRowContext(ctx,
		`SELECT current_balance_num, current_balance_denom FROM accounts WHERE guid = ?`,
		guid,
	).Scan(&num, &denom)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrUnknownAccount
	}
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	current, err := core.AmountFromFraction(num, denom)
	if err != nil {
		return fmt.Errorf("decode balance: %w", err)
	}
	newNum, newDenom, err := core.FractionOf(current.Add(delta))
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE accounts SET current_balance_num = ?, current_balance_denom = ?, updated_at = ?
		WHERE guid = ?`,
		newNum, newDenom, timeString(at), guid,
	)
	if err != nil {
		return fmt.Errorf("write balance: %w", err)
	}
	return nil
}

func scanAccount(s scanner) (*core.Account, error) {
	var a core.Account
	var parent sql.NullString
	var balNum, balDenom int64
	var createdAt, updatedAt string
	err := s.Scan(
		&a.GUID, &a.Name, &a.AccountType, &parent, &a.Code, &a.Description,
		&a.Hidden, &a.Placeholder, &a.IsCash, &balNum, &balDenom,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.ParentGUID = parent.String
	if a.CurrentBalance, err = core.AmountFromFraction(balNum, balDenom); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
