package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistered(t *testing.T) {
	ObserveScriptRun("success", 3*time.Millisecond)
	ObserveRender("png", time.Now())
	RequestsTotal.WithLabelValues("GET", "2xx").Add(0)
	RequestDuration.WithLabelValues("GET").Observe(0.01)
	RenderCacheTotal.WithLabelValues("miss").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{
		"turtle_script_runs_total",
		"turtle_script_duration_seconds",
		"turtle_render_duration_seconds",
		"turtle_requests_total",
		"turtle_request_duration_seconds",
		"turtle_animation_connections_active",
		"turtle_render_cache_total",
	} {
		assert.True(t, found[name], name)
	}
}

func TestObserveScriptRunCountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(ScriptRunsTotal.WithLabelValues("timeout"))
	ObserveScriptRun("timeout", 500*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(ScriptRunsTotal.WithLabelValues("timeout")))
}

func TestMiddlewareRecordsStatusClass(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "4xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/run", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "4xx")))
}

func TestMiddlewareDefaultsToOK(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "2xx"))

	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/docs", nil))

	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("GET", "2xx")))
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, _, err := sw.Hijack()
	assert.Error(t, err)
}
