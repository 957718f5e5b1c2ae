package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	violations  *prometheus.CounterVec
	stockValue  *prometheus.GaugeVec
	warmed      prometheus.Counter
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer. When the
// registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker times one job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given job name.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records the run outcome and returns err unchanged.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	status := "success"
	if err != nil {
		status = "failure"
		m.failures.WithLabelValues(t.job).Inc()
	} else {
		m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	}
	m.runs.WithLabelValues(t.job, status).Inc()
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddViolations counts ledger invariant violations of one kind for a business.
func (m *Metrics) AddViolations(kind string, businessID int64, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.violations.WithLabelValues(kind, businessLabel(businessID)).Add(float64(count))
}

// SetStockValue publishes the latest inventory valuation of a business.
func (m *Metrics) SetStockValue(businessID int64, method string, value float64) {
	if m == nil {
		return
	}
	m.stockValue.WithLabelValues(businessLabel(businessID), method).Set(value)
}

// AddWarmed counts products whose cost layers were preloaded.
func (m *Metrics) AddWarmed(products int) {
	if m == nil || products <= 0 {
		return
	}
	m.warmed.Add(float64(products))
}

func businessLabel(id int64) string {
	if id <= 0 {
		return "0"
	}
	return strconv.FormatInt(id, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_total",
			Help: "Total job executions partitioned by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_jobs_failures_total",
			Help: "Total failures observed for background jobs.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "odyssey_job_duration_seconds",
			Help:    "Duration in seconds of background job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Ledger invariant violations found by integrity scans, by kind and business.",
		}, []string{"kind", "business"}),
		stockValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inventory_stock_value",
			Help: "Inventory value from the last revaluation, by business and costing method.",
		}, []string{"business", "method"}),
		warmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_layer_warmups_total",
			Help: "Products whose cost layers were preloaded into the cache.",
		}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.lastSuccess, m.violations, m.stockValue, m.warmed)
	return m
}
