package main

import (
	"context"
	"log/slog"
	"time"

	"conti/internal/cli"
	"conti/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()

	logger.Info("Starting fixed-expense-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		defer amqpClient.Close()
	}

	fixed := services.NewFixedExpenseService(sqliteRepo, amqpClient)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	// Execute once at startup, then on every tick. Dueness and the
	// per-period marker make repeated runs harmless.
	runOnce(ctx, logger, fixed)

	ticker := time.NewTicker(cfg.FixedExpenseInterval)
	defer ticker.Stop()

	logger.Info("Fixed expense scheduler running", "interval", cfg.FixedExpenseInterval.String())
	for {
		select {
		case <-ticker.C:
			runOnce(ctx, logger, fixed)
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Fixed expense worker stopped gracefully")
			return
		}
	}
}

func runOnce(ctx context.Context, logger *slog.Logger, fixed *services.FixedExpenseService) {
	results, err := fixed.ExecuteAllDue(ctx, time.Now())
	if err != nil {
		logger.Error("Fixed expense run failed", "error", err)
		return
	}

	var executed, skipped, failed int
	for _, r := range results {
		switch r.Status {
		case services.StatusExecuted:
			executed++
		case services.StatusSkipped:
			skipped++
		case services.StatusFailed:
			failed++
		}
	}
	logger.Info("Fixed expense run completed",
		"executed", executed, "skipped", skipped, "failed", failed)
}
