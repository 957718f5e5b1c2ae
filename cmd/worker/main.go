package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

const idempotencyRetention = 30 * 24 * time.Hour

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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.Postgres("odyssey-ledger-worker")...)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	reportService := reports.NewService(reports.NewRepository(pool))
	inventoryRepo := inventory.NewRepository(pool)
	inventoryService := inventory.NewService(
		inventoryRepo,
		inventory.NewLayerCache(redisClient, cfg.ValuationCacheTTL),
		shared.NewAuditLogger(pool),
		inventory.ServiceConfig{DefaultMethod: cfg.Method()},
		logger,
	)

	integrityJob := jobs.NewGLIntegrityJob(accounting.NewRepository(pool), reportService, logger, metrics.Jobs)
	inventoryJob := jobs.NewInventoryJob(inventoryService, inventoryRepo, logger, metrics.Jobs)

	cron := make([]jobs.CronRegistration, 0, 3)
	for _, entry := range []struct {
		spec     string
		taskType string
	}{
		{"0 1 * * *", jobs.TaskGLIntegrity},
		{"30 1 * * *", jobs.TaskInventoryRevaluation},
		{"*/30 * * * *", jobs.TaskLayerWarmup},
	} {
		task, err := jobs.NewScanTask(entry.taskType, jobs.ScanPayload{})
		if err != nil {
			logger.Error("build cron task", slog.String("task", entry.taskType), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: entry.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: cfg.Queue(),
		Logger:    logger,
		Handlers:  jobs.Handlers(integrityJob, inventoryJob),
		Cron:      cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	go pruneIdempotencyKeys(ctx, shared.NewIdempotencyStore(pool), logger)

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func pruneIdempotencyKeys(ctx context.Context, store *shared.IdempotencyStore, logger *slog.Logger) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		removed, err := store.Cleanup(ctx, idempotencyRetention)
		if err != nil {
			logger.Warn("prune idempotency keys", slog.Any("error", err))
		} else if removed > 0 {
			logger.Info("pruned idempotency keys", slog.Int64("removed", removed))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
