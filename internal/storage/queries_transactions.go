package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"conti/internal/core"
)

const transactionColumns = `guid, num, post_date, enter_date, description,
	business_type, reference_no, created_at, updated_at`

const entryLineColumns = `guid, tx_guid, account_guid, memo, value_num, value_denom,
	cashflow_type_id, created_at`

func (q *Queries) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.GUID, t.Num, dateString(t.PostDate), timeString(t.EnterDate), t.Description,
		t.BusinessType, t.ReferenceNo, timeString(t.CreatedAt), timeString(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *Queries) UpdateTransactionRow(ctx context.Context, t *core.Transaction) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET num = ?, post_date = ?, description = ?,
			business_type = ?, reference_no = ?, updated_at = ?
		WHERE guid = ?`,
		t.Num, dateString(t.PostDate), t.Description,
		t.BusinessType, t.ReferenceNo, timeString(t.UpdatedAt),
		t.GUID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) DeleteTransactionRow(ctx context.Context, guid string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

func (q *Queries) InsertEntryLine(ctx context.Context, l *core.EntryLine) error {
	num, denom, err := core.FractionOf(l.Amount)
	if err != nil {
		return fmt.Errorf("encode amount: %w", err)
	}
	var cashflowID sql.NullInt64
	if l.CashflowTypeID != 0 {
		cashflowID = sql.NullInt64{Int64: l.CashflowTypeID, Valid: true}
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO entry_lines (`+entryLineColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.GUID, l.TxGUID, l.AccountGUID, l.Memo, num, denom,
		cashflowID, timeString(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry line: %w", err)
	}
	return nil
}

func (q *Queries) DeleteEntryLinesByTx(ctx context.Context, txGUID string) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM entry_lines WHERE tx_guid = ?`, txGUID); err != nil {
		return fmt.Errorf("delete entry lines: %w", err)
	}
	return nil
}

func (q *Queries) GetEntryLines(ctx context.Context, txGUID string) ([]core.EntryLine, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+entryLineColumns+` FROM entry_lines
		WHERE tx_guid = ? ORDER BY rowid`, txGUID)
	if err != nil {
		return nil, fmt.Errorf("get entry lines: %w", err)
	}
	defer rows.Close()

	var lines []core.EntryLine
	for rows.Next() {
		l, err := scanEntryLine(rows)
		if err != nil {
			return nil, fmt.Errorf("get entry lines: scan: %w", err)
		}
		lines = append(lines, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get entry lines: rows: %w", err)
	}
	return lines, nil
}

func (q *Queries) GetTransaction(ctx context.Context, guid string) (*core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE guid = ?`, guid)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if t.Lines, err = q.GetEntryLines(ctx, guid); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns the most recent vouchers, lines included.
func (q *Queries) ListTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		ORDER BY post_date DESC, created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: scan: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: rows: %w", err)
	}
	for i := range txs {
		if txs[i].Lines, err = q.GetEntryLines(ctx, txs[i].GUID); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

func scanTransaction(s scanner) (*core.Transaction, error) {
	var t core.Transaction
	var postDate, enterDate, createdAt, updatedAt string
	err := s.Scan(
		&t.GUID, &t.Num, &postDate, &enterDate, &t.Description,
		&t.BusinessType, &t.ReferenceNo, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.PostDate, err = parseDate(postDate); err != nil {
		return nil, fmt.Errorf("parse post_date: %w", err)
	}
	if t.EnterDate, err = parseTime(enterDate); err != nil {
		return nil, fmt.Errorf("parse enter_date: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &t, nil
}

func scanEntryLine(s scanner) (*core.EntryLine, error) {
	var l core.EntryLine
	var num, denom int64
	var cashflowID sql.NullInt64
	var createdAt string
	err := s.Scan(
		&l.GUID, &l.TxGUID, &l.AccountGUID, &l.Memo, &num, &denom,
		&cashflowID, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if l.Amount, err = core.AmountFromFraction(num, denom); err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	l.CashflowTypeID = cashflowID.Int64
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &l, nil
}
