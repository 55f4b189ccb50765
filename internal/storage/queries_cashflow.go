package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"conti/internal/core"
)

func (q *Queries) ListCashflowTypes(ctx context.Context, activeOnly bool) ([]core.CashflowType, error) {
	query := `SELECT id, code, name, flow_type, direction, is_active, sort_order, created_at
		FROM cashflow_types`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY sort_order, id`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cashflow types: %w", err)
	}
	defer rows.Close()

	var types []core.CashflowType
	for rows.Next() {
		var ct core.CashflowType
		var createdAt string
		if err := rows.Scan(&ct.ID, &ct.Code, &ct.Name, &ct.FlowType, &ct.Direction,
			&ct.Active, &ct.SortOrder, &createdAt); err != nil {
			return nil, fmt.Errorf("list cashflow types: scan: %w", err)
		}
		if ct.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		types = append(types, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cashflow types: rows: %w", err)
	}
	return types, nil
}

// CashMovements sums entry lines on cash accounts within the period,
// grouped by cashflow classification. Unclassified lines group under
// id 0; they feed the mandatory "uncategorized" statement bucket.
func (q *Queries) CashMovements(ctx context.Context, from, to time.Time) (map[int64]decimal.Decimal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT COALESCE(l.cashflow_type_id, 0),
			COALESCE(SUM(l.value_num * (`+fmt.Sprint(balanceScale)+` / l.value_denom)), 0)
		FROM entry_lines l
		JOIN transactions t ON t.guid = l.tx_guid
		JOIN accounts a ON a.guid = l.account_guid
		WHERE a.is_cash = 1 AND t.post_date >= ? AND t.post_date <= ?
		GROUP BY COALESCE(l.cashflow_type_id, 0)`,
		dateString(from), dateString(to),
	)
	if err != nil {
		return nil, fmt.Errorf("cash movements: %w", err)
	}
	defer rows.Close()

	movements := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var id, scaled int64
		if err := rows.Scan(&id, &scaled); err != nil {
			return nil, fmt.Errorf("cash movements: scan: %w", err)
		}
		movements[id] = decimal.New(scaled, -6)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cash movements: rows: %w", err)
	}
	return movements, nil
}

// CashDelta is the net signed change across all cash accounts in the
// period. The cash-flow statement total must reconcile with it.
func (q *Queries) CashDelta(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var scaled int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(l.value_num * (`+fmt.Sprint(balanceScale)+` / l.value_denom)), 0)
		FROM entry_lines l
		JOIN transactions t ON t.guid = l.tx_guid
		JOIN accounts a ON a.guid = l.account_guid
		WHERE a.is_cash = 1 AND t.post_date >= ? AND t.post_date <= ?`,
		dateString(from), dateString(to),
	).Scan(&scaled)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cash delta: %w", err)
	}
	return decimal.New(scaled, -6), nil
}
