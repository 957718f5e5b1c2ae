package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/odyssey-ledger/internal/jobs"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Violation kinds counted by the integrity scan.
const (
	ViolationUnbalancedBatch = "unbalanced_batch"
	ViolationTrialBalance    = "trial_balance"
)

// IntegrityStore reads raw batch totals.
type IntegrityStore interface {
	ListBusinesses(ctx context.Context) ([]int64, error)
	FindUnbalancedBatches(ctx context.Context, businessID int64) ([]accounting.UnbalancedBatch, error)
}

// TrialBalancer builds the trial balance of one business.
type TrialBalancer interface {
	TrialBalance(ctx context.Context, scope shared.Scope, asOf time.Time) (reports.TrialBalance, error)
}

// TrialBalanceGap is a business whose trial balance does not net to zero.
type TrialBalanceGap struct {
	BusinessID int64
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

// IntegrityReport is the outcome of one scan.
type IntegrityReport struct {
	AsOf       time.Time
	Businesses int
	Batches    []accounting.UnbalancedBatch
	Gaps       []TrialBalanceGap
}

// Clean reports whether no violation was found.
func (r IntegrityReport) Clean() bool {
	return len(r.Batches) == 0 && len(r.Gaps) == 0
}

// GLIntegrityJob detects half-committed batches and trial balances that do
// not net to zero. Both are storage-level bugs; the job reports them and
// never repairs anything.
type GLIntegrityJob struct {
	Store   IntegrityStore
	Reports TrialBalancer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewGLIntegrityJob wires dependencies for the integrity handler.
func NewGLIntegrityJob(store IntegrityStore, reports TrialBalancer, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Store:   store,
		Reports: reports,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("gl integrity: handler not configured")
	}
	payload, err := decodeScan(t)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, payload)
	return err
}

// Run scans the requested businesses. Violations are logged and counted but
// do not fail the run.
func (j *GLIntegrityJob) Run(ctx context.Context, payload ScanPayload) (report IntegrityReport, err error) {
	if j.Store == nil || j.Reports == nil {
		return IntegrityReport{}, errors.New("gl integrity: store not configured")
	}
	tracker := j.metrics().Track(TaskGLIntegrity)
	defer func() {
		err = tracker.End(err)
	}()

	start := j.now()
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = start
	}
	logger := j.logger()
	report.AsOf = asOf

	ids, err := businesses(payload, func() ([]int64, error) { return j.Store.ListBusinesses(ctx) })
	if err != nil {
		logger.Error("list businesses", slog.Any("error", err))
		return report, err
	}
	for _, id := range ids {
		batches, err := j.Store.FindUnbalancedBatches(ctx, id)
		if err != nil {
			return report, err
		}
		for _, b := range batches {
			logger.Error("partial posting invariant violated",
				slog.Int64("business_id", b.BusinessID),
				slog.String("batch_id", b.BatchID.String()),
				slog.Int("lines", b.Lines),
				slog.String("debit", b.Debit.String()),
				slog.String("credit", b.Credit.String()))
		}
		j.metrics().AddViolations(ViolationUnbalancedBatch, id, len(batches))
		report.Batches = append(report.Batches, batches...)

		tb, err := j.Reports.TrialBalance(ctx, shared.NewScope(id, 0), asOf)
		if err != nil {
			return report, err
		}
		if !tb.IsBalanced {
			logger.Error("trial balance does not net to zero",
				slog.Int64("business_id", id),
				slog.String("debit", tb.TotalDebit.String()),
				slog.String("credit", tb.TotalCredit.String()))
			j.metrics().AddViolations(ViolationTrialBalance, id, 1)
			report.Gaps = append(report.Gaps, TrialBalanceGap{BusinessID: id, Debit: tb.TotalDebit, Credit: tb.TotalCredit})
		}
		report.Businesses++
	}

	logger.Info("completed gl integrity scan",
		slog.Int("businesses", report.Businesses),
		slog.Int("unbalanced_batches", len(report.Batches)),
		slog.Int("trial_balance_gaps", len(report.Gaps)),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskGLIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskGLIntegrity))
}

func (j *GLIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *GLIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
