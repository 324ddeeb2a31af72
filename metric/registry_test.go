package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndUnregister(t *testing.T) {
	r := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test",
	})
	require.NoError(t, r.RegisterCounter("svc", "test_counter_total", counter))

	// Duplicate key is rejected
	err := r.RegisterCounter("svc", "test_counter_total", counter)
	require.Error(t, err)

	assert.True(t, r.Unregister("svc", "test_counter_total"))
	assert.False(t, r.Unregister("svc", "test_counter_total"))

	// Re-registration works after unregister
	require.NoError(t, r.RegisterCounter("svc", "test_counter_total", counter))
}

func TestRegistry_GaugeAndVecs(t *testing.T) {
	r := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "test"})
	require.NoError(t, r.RegisterGauge("svc", "test_gauge", gauge))

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_vec_total", Help: "test"},
		[]string{"label"})
	require.NoError(t, r.RegisterCounterVec("svc", "test_vec_total", vec))

	hist := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_hist_seconds", Help: "test"},
		[]string{"label"})
	require.NoError(t, r.RegisterHistogramVec("svc", "test_hist_seconds", hist))
}

func TestRegistry_CoreMetricsExposed(t *testing.T) {
	r := NewMetricsRegistry()

	r.Metrics.RecordConsumed("t1")
	r.Metrics.RecordFlowState("funnel", 2)
	r.Metrics.RecordQueueDepth("domain", 7)
	r.Metrics.RecordBackPressure("domain", true)
	r.Metrics.RecordError("source", "t1")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["streambridge_messages_consumed_total"])
	assert.True(t, names["streambridge_flow_state"])
	assert.True(t, names["streambridge_queue_depth"])
	assert.True(t, names["streambridge_backpressure_engaged"])
	assert.True(t, names["streambridge_errors_total"])
}
