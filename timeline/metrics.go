package timeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorweave/metric"
)

// timelineMetrics holds Prometheus metrics for the timeline driver.
type timelineMetrics struct {
	steps      prometheus.Counter
	physical   prometheus.Counter
	queueDepth prometheus.Gauge
}

// newTimelineMetrics creates and registers timeline metrics.
// Returns nil when no registry is provided (nil input = nil feature pattern).
func newTimelineMetrics(registry *metric.Registry) *timelineMetrics {
	if registry == nil {
		return nil
	}

	m := &timelineMetrics{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorweave",
			Subsystem: "timeline",
			Name:      "steps_total",
			Help:      "Logical steps executed",
		}),
		physical: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensorweave",
			Subsystem: "timeline",
			Name:      "physical_events_total",
			Help:      "Physical actions injected from foreign threads",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensorweave",
			Subsystem: "timeline",
			Name:      "event_queue_depth",
			Help:      "Events pending on the timeline",
		}),
	}

	_ = registry.RegisterCounter("timeline", "steps", m.steps)
	_ = registry.RegisterCounter("timeline", "physical_events", m.physical)
	_ = registry.RegisterGauge("timeline", "event_queue_depth", m.queueDepth)

	return m
}

func (m *timelineMetrics) incSteps() {
	if m == nil {
		return
	}
	m.steps.Inc()
}

func (m *timelineMetrics) incPhysical() {
	if m == nil {
		return
	}
	m.physical.Inc()
}

func (m *timelineMetrics) observeQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
