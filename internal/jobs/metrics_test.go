package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	boom := errors.New("boom")

	require.NoError(t, m.Track("job").End(nil))
	require.ErrorIs(t, m.Track("job").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("job", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("job", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("job")))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("job")), 0.0)
}

func TestAddViolations(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddViolations("unbalanced_batch", 7, 2)
	m.AddViolations("unbalanced_batch", 7, 0)
	m.AddViolations("trial_balance", 0, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("unbalanced_batch", "7")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.violations.WithLabelValues("trial_balance", "0")))
}

func TestInventoryCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetStockValue(3, "FIFO", 1250.5)
	m.SetStockValue(3, "FIFO", 900)
	m.AddWarmed(4)
	m.AddWarmed(0)

	assert.Equal(t, 900.0, testutil.ToFloat64(m.stockValue.WithLabelValues("3", "FIFO")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.warmed))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.AddViolations("x", 1, 1)
	m.SetStockValue(1, "FIFO", 1)
	m.AddWarmed(1)
	assert.NoError(t, m.Track("noop").End(nil))
}
