package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sensorweave",
		Subsystem: "test",
		Name:      name,
		Help:      "test counter",
	})
}

func TestRegisterCounter(t *testing.T) {
	registry := NewRegistry()

	err := registry.RegisterCounter("camera", "frames_total", newTestCounter("frames_total"))
	require.NoError(t, err)
}

func TestRegisterDuplicateFails(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterCounter("camera", "frames_total", newTestCounter("frames_total")))

	err := registry.RegisterCounter("camera", "frames_total", newTestCounter("frames_total"))
	assert.Error(t, err)
}

func TestUnregister(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.RegisterCounter("camera", "frames_total", newTestCounter("frames_total")))

	assert.True(t, registry.Unregister("camera", "frames_total"))
	assert.False(t, registry.Unregister("camera", "frames_total"))

	// Same name can be registered again after removal
	assert.NoError(t, registry.RegisterCounter("camera", "frames_total", newTestCounter("frames_total")))
}

func TestRegisterGaugeAndHistogram(t *testing.T) {
	registry := NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sensorweave",
		Subsystem: "test",
		Name:      "queue_depth",
		Help:      "test gauge",
	})
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sensorweave",
		Subsystem: "test",
		Name:      "latency_ms",
		Help:      "test histogram",
		Buckets:   []float64{1, 5, 10, 50, 100},
	})

	assert.NoError(t, registry.RegisterGauge("timeline", "queue_depth", gauge))
	assert.NoError(t, registry.RegisterHistogram("classifier", "latency_ms", histogram))
}
