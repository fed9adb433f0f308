package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func startHealth(t *testing.T) *HealthServer {
	t.Helper()

	h := NewHealthServer(testLog(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestHealthServer_StartStop(t *testing.T) {
	h := startHealth(t)
	assert.NotEmpty(t, h.Addr())

	status, _ := get(t, fmt.Sprintf("http://%s/healthz", h.Addr()))
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, h.Stop())

	_, err := http.Get(fmt.Sprintf("http://%s/healthz", h.Addr()))
	assert.Error(t, err)
}

func TestHealthServer_ExposesPipelineMetrics(t *testing.T) {
	h := startHealth(t)
	m := NewPipelineMetrics(h.Registry())

	m.Observations.WithLabelValues("counter").Add(3)
	m.ObserveSkipped()
	m.ObserveFlush(time.Now(), 7, "")
	m.ObserveFlush(time.Now(), 2, "status")
	m.PendingKeys.Set(5)

	status, body := get(t, fmt.Sprintf("http://%s/metrics", h.Addr()))

	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `nrmetrics_observations_total{kind="counter"} 3`)
	assert.Contains(t, body, "nrmetrics_flushes_total 2")
	assert.Contains(t, body, "nrmetrics_flushes_skipped_total 1")
	assert.Contains(t, body, "nrmetrics_metrics_exported_total 7")
	assert.Contains(t, body, `nrmetrics_export_errors_total{error_type="status"} 1`)
	assert.Contains(t, body, "nrmetrics_pending_keys 5")
	assert.Contains(t, body, "go_goroutines")
}

func TestHealthServer_HealthzResponse(t *testing.T) {
	h := startHealth(t)

	status, body := get(t, fmt.Sprintf("http://%s/healthz", h.Addr()))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestHealthServer_StopIdempotent(t *testing.T) {
	h := NewHealthServer(testLog(), HealthConfig{})

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Stop())
}

func TestHealthServer_AddrBeforeStart(t *testing.T) {
	h := NewHealthServer(testLog(), HealthConfig{
		Addr: ":9999",
	})

	assert.Equal(t, ":9999", h.Addr())
}

func TestPipelineMetrics_ObserveFlush(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveFlush(time.Now(), 10, "")
	m.ObserveFlush(time.Now(), 10, "transport")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flushes))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.MetricsExported))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportErrors.WithLabelValues("transport")))
}

func TestPipelineMetrics_ObserveSkipped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics(reg)

	m.ObserveSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlushesSkipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Flushes))
	assert.InDelta(t, float64(time.Now().Unix()), testutil.ToFloat64(m.LastFlushTimestamp), 5)
}

func TestHealthConfig_IsEnabled(t *testing.T) {
	disabled := false

	assert.True(t, (&HealthConfig{}).IsEnabled())
	assert.False(t, (&HealthConfig{Enabled: &disabled}).IsEnabled())
}
