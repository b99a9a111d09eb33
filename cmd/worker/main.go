package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-spa/meridian-erp/internal/app"
	"github.com/meridian-spa/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := pgxpool.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLedgerIntegrity, Handler: jobs.NewLedgerIntegrityHandler(pool, logger)},
			{Type: jobs.TaskReceiptNotify, Handler: jobs.NewReceiptNotifyHandler(logger)},
			{Type: jobs.TaskIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(pool, logger)},
		},
		Cron: []jobs.CronRegistration{
			{
				Spec:    "0 2 * * *",
				Task:    jobs.NewLedgerIntegrityTask(),
				Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
			},
			{
				Spec:    "30 3 * * *",
				Task:    jobs.NewIdempotencyCleanupTask(),
				Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)},
			},
		},
	})
	if err != nil {
		logger.Error("configure worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
