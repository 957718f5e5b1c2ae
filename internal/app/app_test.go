package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	_ "github.com/odyssey-erp/odyssey-ledger/testing"
)

func TestRuntimeTestMode(t *testing.T) {
	assert.True(t, InTestMode())
	t.Setenv("ODYSSEY_TEST_MODE", "0")
	RefreshTestMode()
	assert.False(t, InTestMode())
	t.Setenv("ODYSSEY_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VALUATION_METHOD", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, inventory.MethodFIFO, cfg.Method())
	assert.False(t, cfg.EventsEnabled())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("VALUATION_METHOD", "weighted_average")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("LOG_FORMAT", "json")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, inventory.MethodWeightedAverage, cfg.Method())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
	assert.True(t, cfg.IsProduction())
}

func TestConfigConnectionOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("PG_MAX_CONNS", "4")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, cache.Options{Addr: "redis:6380", Password: "secret", DB: 2}, cfg.Redis())
	queue := cfg.Queue()
	assert.Equal(t, "redis:6380", queue.Addr)
	assert.Equal(t, 2, queue.DB)
	assert.Len(t, cfg.Postgres("api"), 2)

	t.Setenv("PG_MAX_CONNS", "-1")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("VALUATION_METHOD", "LIFO")
	_, err := LoadConfig()
	require.ErrorIs(t, err, inventory.ErrInvalidMethod)

	t.Setenv("VALUATION_METHOD", "FIFO")
	t.Setenv("LOG_FORMAT", "xml")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"}).Info("posted", "batch", "b-1")
	assert.Contains(t, buf.String(), `"msg":"posted"`)

	buf.Reset()
	newLogger(&buf, &Config{LogFormat: "pretty"}).Debug("warm")
	assert.Contains(t, buf.String(), "service=odyssey-ledger")

	buf.Reset()
	newLogger(&buf, &Config{LogFormat: "text", AppEnv: "production"}).Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestScopeMiddleware(t *testing.T) {
	var got shared.Scope
	var actor int64
	h := ScopeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = shared.ScopeFromContext(r.Context())
		actor = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderBusinessID, "3")
	req.Header.Set(HeaderBranchID, "9")
	req.Header.Set(HeaderActorID, "11")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, shared.NewScope(3, 9), got)
	assert.Equal(t, int64(11), actor)

	for _, headers := range []map[string]string{
		{},
		{HeaderBusinessID: "abc"},
		{HeaderBusinessID: "1", HeaderBranchID: "-2"},
		{HeaderBusinessID: "1", HeaderActorID: "x"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", headers)
	}
}

func TestRouterProbesAndMetrics(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:  &Config{AppEnv: "test"},
		Metrics: observability.NewMetrics(),
		Ready: map[string]Pinger{
			"postgres": PingFunc(func(context.Context) error { return nil }),
			"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
		},
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"connection refused"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "odyssey_http_requests_total")
}
