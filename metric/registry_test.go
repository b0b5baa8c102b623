package metric

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hs-jenkins-bot/mesos-stream/errors"
)

func TestRegisterAndGather(t *testing.T) {
	reg := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mesosstream",
		Name:      "frames_total",
		Help:      "Total frames decoded",
	})
	require.NoError(t, reg.RegisterCounter("receive", "frames_total", counter))
	counter.Add(3)

	families, err := reg.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "mesosstream_frames_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, float64(3), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "expected mesosstream_frames_total in gathered families")
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "depth", Help: "d"})
	require.NoError(t, reg.RegisterGauge("send", "depth", gauge))

	err := reg.RegisterGauge("send", "depth", gauge)
	require.Error(t, err)
	class, ok := errors.ClassOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.ClassConfig, class)
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "depth", Help: "d"})
	require.NoError(t, reg.RegisterGauge("send", "depth", gauge))

	assert.True(t, reg.Unregister("send", "depth"))
	assert.False(t, reg.Unregister("send", "depth"))

	// Re-registration after unregister succeeds.
	require.NoError(t, reg.RegisterGauge("send", "depth", gauge))
}

func TestHandlerServesExposition(t *testing.T) {
	reg := NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ops_total", Help: "ops"})
	require.NoError(t, reg.RegisterCounter("client", "ops_total", counter))
	counter.Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops_total 1")
}
