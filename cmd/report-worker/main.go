package main

import (
	"context"
	"os"
	"time"

	"conti/internal/amqp"
	"conti/internal/cli"
	"conti/internal/services"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting report-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("Report worker requires AMQP; set AMQP_URL")
		os.Exit(1)
	}
	defer amqpClient.Close()

	exporter := cli.InitExporter(context.Background(), logger, cfg)

	reports := services.NewReportService(sqliteRepo)
	reportWorker := worker.NewReportWorker(reports, exporter)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	// Materialize the previous full month up front so missed events
	// while the worker was down do not leave stale snapshots.
	if err := reportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup snapshot check failed", "error", err)
	}

	logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	err := amqpClient.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
		return reportWorker.HandleLedgerEvent(ctx, msg)
	})
	if err != nil && ctx.Err() == nil {
		logger.Error("Ledger event consumer stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Report worker stopped gracefully")
}
