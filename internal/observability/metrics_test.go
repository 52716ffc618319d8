package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc, err := InitMetrics(reg, reg)
	require.NoError(t, err)

	mc.ObserveUpload(ResultSuccess, 2, 1024)
	mc.ObserveUpload(ResultFailure, 3, 99)
	mc.ObserveEmail(ResultFailure)
	mc.ObserveHTTP(http.MethodPost, "/upload", "200", 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.uploads.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.uploads.WithLabelValues(ResultFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(mc.uploadedFiles))
	assert.Equal(t, 1024.0, testutil.ToFloat64(mc.uploadedBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.emails.WithLabelValues(ResultFailure)))
}

func TestInitMetricsTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := InitMetrics(reg, reg)
	require.NoError(t, err)
	second, err := InitMetrics(reg, reg)
	require.NoError(t, err)

	first.ObserveEmail(ResultSuccess)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.emails.WithLabelValues(ResultSuccess)))
}

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	mc, err := InitMetrics(reg, reg)
	require.NoError(t, err)
	mc.ObserveUpload(ResultSuccess, 1, 1)

	srv := httptest.NewServer(NewMetricsServer(":0", mc).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `weshare_uploads_total{result="success"} 1`)
}
