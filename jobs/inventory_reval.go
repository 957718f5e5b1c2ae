package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Valuer is the slice of the inventory service the jobs use.
type Valuer interface {
	ValuationReport(ctx context.Context, scope shared.Scope, filter inventory.ReportFilter) (inventory.ValuationReport, error)
	Warm(ctx context.Context, scope shared.Scope, asOf time.Time) (int, error)
}

// BusinessLister lists businesses holding stock.
type BusinessLister interface {
	ListBusinesses(ctx context.Context) ([]int64, error)
}

// InventoryJob revalues stock and warms the layer cache per business.
type InventoryJob struct {
	Inventory  Valuer
	Businesses BusinessLister
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	// ScopeTimeout bounds the work done for one business.
	ScopeTimeout time.Duration
	clock        func() time.Time
}

// NewInventoryJob wires dependencies for the inventory handlers.
func NewInventoryJob(valuer Valuer, lister BusinessLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryJob {
	return &InventoryJob{
		Inventory:    valuer,
		Businesses:   lister,
		Logger:       logger,
		Metrics:      metrics,
		ScopeTimeout: time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleRevaluation processes TaskInventoryRevaluation tasks.
func (j *InventoryJob) HandleRevaluation(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("inventory revaluation: handler not configured")
	}
	payload, err := decodeScan(t)
	if err != nil {
		return err
	}
	_, err = j.Revalue(ctx, payload)
	return err
}

// HandleWarmup processes TaskLayerWarmup tasks.
func (j *InventoryJob) HandleWarmup(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("layer warmup: handler not configured")
	}
	payload, err := decodeScan(t)
	if err != nil {
		return err
	}
	_, err = j.Warm(ctx, payload)
	return err
}

// Revalue computes the valuation report of each business and logs its totals.
func (j *InventoryJob) Revalue(ctx context.Context, payload ScanPayload) (reports []inventory.ValuationReport, err error) {
	err = j.each(ctx, TaskInventoryRevaluation, payload, func(ctx context.Context, scope shared.Scope, asOf time.Time, logger *slog.Logger) error {
		report, err := j.Inventory.ValuationReport(ctx, scope, inventory.ReportFilter{AsOf: asOf})
		if err != nil {
			return err
		}
		logger.Info("inventory revalued",
			slog.Int64("business_id", scope.BusinessID),
			slog.String("method", string(report.Method)),
			slog.Int("products", report.Summary.Products),
			slog.String("quantity", report.Summary.Quantity.String()),
			slog.String("total_value", report.Summary.TotalValue.String()))
		j.metrics().SetStockValue(scope.BusinessID, string(report.Method), report.Summary.TotalValue.InexactFloat64())
		reports = append(reports, report)
		return nil
	})
	return reports, err
}

// Warm fills the layer cache for every active product and returns how many
// products were warmed.
func (j *InventoryJob) Warm(ctx context.Context, payload ScanPayload) (warmed int, err error) {
	err = j.each(ctx, TaskLayerWarmup, payload, func(ctx context.Context, scope shared.Scope, asOf time.Time, logger *slog.Logger) error {
		n, err := j.Inventory.Warm(ctx, scope, asOf)
		if err != nil {
			return err
		}
		logger.Debug("layers warmed", slog.Int64("business_id", scope.BusinessID), slog.Int("products", n))
		j.metrics().AddWarmed(n)
		warmed += n
		return nil
	})
	return warmed, err
}

func (j *InventoryJob) each(ctx context.Context, job string, payload ScanPayload, fn func(context.Context, shared.Scope, time.Time, *slog.Logger) error) (err error) {
	if j.Inventory == nil || j.Businesses == nil {
		return errors.New("inventory job: service not configured")
	}
	tracker := j.metrics().Track(job)
	defer func() {
		err = tracker.End(err)
	}()
	logger := j.logger(job)
	start := j.now()
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = start
	}
	ids, err := businesses(payload, func() ([]int64, error) { return j.Businesses.ListBusinesses(ctx) })
	if err != nil {
		logger.Error("list businesses", slog.Any("error", err))
		return err
	}
	for _, id := range ids {
		scopeCtx, cancel := j.scopeContext(ctx)
		err := fn(scopeCtx, shared.NewScope(id, 0), asOf, logger)
		cancel()
		if err != nil {
			logger.Error("business failed", slog.Int64("business_id", id), slog.Any("error", err))
			return err
		}
	}
	logger.Info("completed", slog.Int("businesses", len(ids)), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *InventoryJob) scopeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if j.ScopeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, j.ScopeTimeout)
}

func (j *InventoryJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *InventoryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *InventoryJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
