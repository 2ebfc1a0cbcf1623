package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("fmp", 3, 1)
	m.StoreError("rotation")
	m.ObservePass("ok", 10, 1.02)
}

func TestMetrics_CountsCycles(t *testing.T) {
	m := New()
	m.ObserveCycle("fmp", 4, 1)
	m.ObserveCycle("fmp", 5, 0)
	m.ObservePass("ok", 42, 1.05)
	m.ObservePass("awaiting_data", 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("fmp")))
	assert.Equal(t, 9.0, testutil.ToFloat64(m.quotesAppended.WithLabelValues("fmp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailures.WithLabelValues("fmp")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.windowSize))
	assert.Equal(t, 1.05, testutil.ToFloat64(m.portfolioIndex))
}

func TestServer_Endpoints(t *testing.T) {
	m := New()
	m.ObserveCycle("yahoo", 1, 0)
	srv := NewServer(":0", m)

	rr := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, "OK", rr.Body.String())

	rr = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `portfolio_tracker_cycles_total{provider="yahoo"} 1`))
}
