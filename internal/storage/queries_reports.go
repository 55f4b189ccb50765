package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"conti/internal/core"
)

// MonthlyReportRow is one persisted snapshot: a frozen statement
// payload for a (month, kind) pair.
type MonthlyReportRow struct {
	ReportMonth time.Time
	ReportType  core.StatementKind
	Payload     []byte
	CreatedAt   time.Time
}

func (q *Queries) GetMonthlyReport(ctx context.Context, month time.Time, kind core.StatementKind) (*MonthlyReportRow, error) {
	var r MonthlyReportRow
	var monthStr, createdAt string
	err := q.db.QueryRowContext(ctx,
		`SELECT report_month, report_type, payload, created_at
		FROM monthly_reports WHERE report_month = ? AND report_type = ?`,
		dateString(month), string(kind),
	).Scan(&monthStr, &r.ReportType, &r.Payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get monthly report: %w", err)
	}
	if r.ReportMonth, err = parseDate(monthStr); err != nil {
		return nil, fmt.Errorf("parse report_month: %w", err)
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &r, nil
}

// InsertMonthlyReport stores a snapshot, relying on the unique
// (report_month, report_type) key to resolve concurrent builds: the
// first writer wins and a losing writer's insert is ignored. Callers
// re-read after inserting, so every racer sees the stored row. A
// single conditional statement, no read-then-write window.
func (q *Queries) InsertMonthlyReport(ctx context.Context, r *MonthlyReportRow) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO monthly_reports (report_month, report_type, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (report_month, report_type) DO NOTHING`,
		dateString(r.ReportMonth), string(r.ReportType), r.Payload, timeString(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert monthly report: %w", err)
	}
	return nil
}

func (q *Queries) DeleteMonthlyReport(ctx context.Context, month time.Time, kind core.StatementKind) error {
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM monthly_reports WHERE report_month = ? AND report_type = ?`,
		dateString(month), string(kind)); err != nil {
		return fmt.Errorf("delete monthly report: %w", err)
	}
	return nil
}
