package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ostrovmarket/fulfillment/internal/app"
	"github.com/ostrovmarket/fulfillment/internal/courier"
	"github.com/ostrovmarket/fulfillment/internal/inventory"
	"github.com/ostrovmarket/fulfillment/internal/observability"
	"github.com/ostrovmarket/fulfillment/internal/orders"
	"github.com/ostrovmarket/fulfillment/internal/planner"
	"github.com/ostrovmarket/fulfillment/internal/platform/cache"
	"github.com/ostrovmarket/fulfillment/internal/platform/db"
	"github.com/ostrovmarket/fulfillment/internal/scan"
	"github.com/ostrovmarket/fulfillment/internal/shared"
	"github.com/ostrovmarket/fulfillment/internal/tasks"
	"github.com/ostrovmarket/fulfillment/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	plannerRepo := planner.NewRepository(pool)
	plannerService := planner.NewService(plannerRepo, logger)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, plannerService, idempotencyStore, auditLogger, logger)
	ordersHandler := orders.NewHandler(logger, ordersService, metrics)

	scanRepo := scan.NewRepository(pool)
	scanService := scan.NewService(scanRepo, inventoryRepo, logger)
	scanHandler := scan.NewHandler(logger, scanService, metrics)

	tasksRepo := tasks.NewRepository(pool)
	tasksService := tasks.NewService(tasksRepo, scanService, ordersService, logger)
	tasksHandler := tasks.NewHandler(logger, tasksService, metrics)

	courierRepo := courier.NewRepository(pool)
	locationStore := courier.NewLocationStore(redisClient, cfg.LocationTTL)
	courierService := courier.NewService(courierRepo, locationStore, inventoryService, logger)
	courierHandler := courier.NewHandler(logger, courierService, metrics)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Pool:             pool,
		InventoryHandler: inventoryHandler,
		OrdersHandler:    ordersHandler,
		TasksHandler:     tasksHandler,
		ScanHandler:      scanHandler,
		CourierHandler:   courierHandler,
		JobsHandler:      jobsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
