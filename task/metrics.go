package task

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorweave/metric"
)

// taskMetrics holds Prometheus metrics for one inference task.
type taskMetrics struct {
	inferences prometheus.Counter
	failures   prometheus.Counter
	latency    prometheus.Histogram
}

// newTaskMetrics creates and registers task metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newTaskMetrics(registry *metric.Registry, name string) *taskMetrics {
	if registry == nil {
		return nil
	}

	m := &taskMetrics{
		inferences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "task",
			Name:        "inferences_total",
			Help:        "Inference calls executed",
			ConstLabels: prometheus.Labels{"task": name},
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "task",
			Name:        "failures_total",
			Help:        "Inference calls that failed",
			ConstLabels: prometheus.Labels{"task": name},
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "sensorweave",
			Subsystem:   "task",
			Name:        "latency_milliseconds",
			Help:        "Wall-clock latency of the engine call",
			ConstLabels: prometheus.Labels{"task": name},
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}

	_ = registry.RegisterCounter(name, "inferences", m.inferences)
	_ = registry.RegisterCounter(name, "failures", m.failures)
	_ = registry.RegisterHistogram(name, "latency", m.latency)

	return m
}

func (m *taskMetrics) observe(latencyMS float64) {
	if m == nil {
		return
	}
	m.inferences.Inc()
	m.latency.Observe(latencyMS)
}

func (m *taskMetrics) fail() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
