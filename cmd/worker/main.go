package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/pflag"

	"github.com/ostrovmarket/fulfillment/internal/app"
	"github.com/ostrovmarket/fulfillment/internal/inventory"
	"github.com/ostrovmarket/fulfillment/internal/orders"
	"github.com/ostrovmarket/fulfillment/internal/planner"
	"github.com/ostrovmarket/fulfillment/internal/platform/db"
	"github.com/ostrovmarket/fulfillment/internal/scan"
	"github.com/ostrovmarket/fulfillment/internal/shared"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
	"github.com/ostrovmarket/fulfillment/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	concurrency := pflag.Int("concurrency", 0, "override worker concurrency")
	queue := pflag.String("queue", "", "override worker queue name")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	if *concurrency > 0 {
		cfg.WorkerConcurrency = *concurrency
	}
	if *queue != "" {
		cfg.WorkerQueue = *queue
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	inventoryRepo := inventory.NewRepository(pool)

	plannerRepo := planner.NewRepository(pool)
	plannerService := planner.NewService(plannerRepo, logger)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, plannerService, idempotencyStore, auditLogger, logger)

	scanRepo := scan.NewRepository(pool)
	scanService := scan.NewService(scanRepo, inventoryRepo, logger)

	tasksRepo := tasks.NewRepository(pool)
	tasksService := tasks.NewService(tasksRepo, scanService, ordersService, logger)

	sweepJob := jobs.NewDelaySweepJob(tasksService, logger)
	cleanupJob := jobs.NewIdempotencyCleanupJob(idempotencyStore, logger)

	sweepTask, err := jobs.NewDelaySweepTask(jobs.DelaySweepPayload{GraceMinutes: 30})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.IdempotencyCleanupPayload{
		RetentionHours: int(cfg.IdempotencyRetention.Hours()),
	})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Queue:       cfg.WorkerQueue,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeDelaySweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/30 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
