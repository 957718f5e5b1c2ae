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

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/integration"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/events"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.Postgres("odyssey-ledger-api")...)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	ledgerRepo := accounting.NewRepository(dbpool)
	ledgerService := accounting.NewService(ledgerRepo, auditLogger, logger).WithObserver(metrics)
	if cfg.EventsEnabled() {
		publisher, err := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("init event publisher", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("event publisher close", slog.Any("error", err))
			}
		}()
		ledgerService.WithEvents(publisher)
	}

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo, auditLogger, logger)
	resolver := accounts.ChainResolver{
		mappings.NewResolver(mappings.NewRepository(dbpool), accountsRepo),
		accounts.NewPatternResolver(accountsRepo),
		accounts.NewCodeResolver(accountsRepo),
	}

	journalService := journals.NewService(journals.NewRepository(dbpool), ledgerService, auditLogger, logger)
	reportService := reports.NewService(reports.NewRepository(dbpool))

	inventoryService := inventory.NewService(
		inventory.NewRepository(dbpool),
		inventory.NewLayerCache(redisClient, cfg.ValuationCacheTTL),
		auditLogger,
		inventory.ServiceConfig{DefaultMethod: cfg.Method()},
		logger,
	).WithIdempotency(idempotencyStore)

	rules := integration.NewRules(ledgerService, resolver, accountsRepo, logger).
		WithValuation(inventoryService, cfg.Method()).
		WithSequencer(integration.NewSequences(dbpool)).
		WithStatements(reportService)

	inspector := asynq.NewInspector(cfg.Queue())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		LedgerHandler:    accounting.NewHandler(logger, ledgerService),
		AccountsHandler:  accounts.NewHandler(logger, accountsService),
		JournalsHandler:  journals.NewHandler(logger, journalService),
		ReportsHandler:   reports.NewHandler(reportService),
		InventoryHandler: inventory.NewHandler(logger, inventoryService),
		PostingsHandler:  integration.NewHandler(logger, rules),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
		Ready: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    app.PingFunc(cache.Probe(redisClient)),
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("valuation", string(cfg.Method())))
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
