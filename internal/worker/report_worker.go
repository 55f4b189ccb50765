package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"conti/internal/amqp"
	"conti/internal/core"
	"conti/internal/export"
	"conti/internal/services"

	"golang.org/x/sync/errgroup"
)

// ReportWorker keeps monthly statement snapshots materialized. It
// consumes ledger events and rebuilds the snapshots of any already
// frozen month a backdated voucher lands in; current-month events are
// ignored because that month is not frozen yet.
type ReportWorker struct {
	reports  *services.ReportService
	exporter export.SnapshotExporter
}

func NewReportWorker(reports *services.ReportService, exporter export.SnapshotExporter) *ReportWorker {
	return &ReportWorker{
		reports:  reports,
		exporter: exporter,
	}
}

// HandleLedgerEvent processes a single ledger event from AMQP.
func (w *ReportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	postDate, err := time.Parse(core.DateOnly, msg.PostDate)
	if err != nil {
		return fmt.Errorf("parse post date %q: %w", msg.PostDate, err)
	}

	now := time.Now().UTC()
	month := services.PeriodMonth(postDate)
	if !month.Before(services.PeriodMonth(now)) {
		slog.DebugContext(ctx, "Event in current month, no snapshot to refresh",
			"kind", msg.Kind, "post_date", msg.PostDate)
		return nil
	}

	slog.InfoContext(ctx, "Rebuilding snapshots for backdated change",
		"kind", msg.Kind,
		"tx_guid", msg.TxGUID,
		"month", month.Format("2006-01"))
	return w.rebuildMonth(ctx, month)
}

// StartupCheck makes sure the previous full month is materialized when
// the worker boots, recovering from missed events or downtime.
func (w *ReportWorker) StartupCheck(ctx context.Context) error {
	month := services.PreviousFullMonth(time.Now().UTC())

	if err := w.reports.MaterializeMonth(ctx, month); err != nil {
		return fmt.Errorf("materialize month %s: %w", month.Format("2006-01"), err)
	}
	slog.InfoContext(ctx, "Previous month snapshots materialized",
		"month", month.Format("2006-01"))

	return w.exportMonth(ctx, month)
}

// rebuildMonth regenerates all three snapshots for a month concurrently
// and re-exports them.
func (w *ReportWorker) rebuildMonth(ctx context.Context, month time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, kind := range []core.StatementKind{
		core.KindBalanceSheet,
		core.KindIncomeStatement,
		core.KindCashflowStatement,
	} {
		g.Go(func() error {
			_, err := w.reports.RebuildMonthlyReport(gctx, month, kind)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return w.exportMonth(ctx, month)
}

// exportMonth pushes the month's snapshots through the exporter.
// Export failures are logged, not returned: the snapshots themselves
// are already persisted and a redelivery loop would rebuild them for
// nothing.
func (w *ReportWorker) exportMonth(ctx context.Context, month time.Time) error {
	if w.exporter == nil {
		return nil
	}

	for _, kind := range []core.StatementKind{
		core.KindBalanceSheet,
		core.KindIncomeStatement,
		core.KindCashflowStatement,
	} {
		stmt, err := w.reports.GetOrBuildMonthlyReport(ctx, month, kind)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load snapshot for export",
				"month", month.Format("2006-01"), "kind", string(kind), "error", err)
			continue
		}
		ref, err := w.exporter.ExportSnapshot(ctx, stmt)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export snapshot",
				"month", month.Format("2006-01"), "kind", string(kind), "error", err)
			continue
		}
		slog.InfoContext(ctx, "Snapshot exported",
			"month", month.Format("2006-01"), "kind", string(kind), "ref", ref)
	}
	return nil
}
