// Package natspub provides an egress sink that publishes inference
// records to a NATS subject as JSON, fire-and-forget. Broker delivery is
// best-effort: the logical timeline stays deterministic, what leaves it
// does not loop back.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/timeline"
)

// Publisher is the broker surface this sink needs. *natsclient.Client
// satisfies it; tests use an in-memory fake.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Metrics holds Prometheus metrics for the NATS sink
type Metrics struct {
	published      prometheus.Counter
	publishErrors  prometheus.Counter
	bytesPublished prometheus.Counter
}

// newMetrics creates and registers NATS sink metrics.
// Returns nil if no registry is provided.
func newMetrics(registry *metric.Registry, name string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "natspub",
			Name:        "records_published_total",
			Help:        "Records published to the broker",
			ConstLabels: prometheus.Labels{"sink": name},
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "natspub",
			Name:        "publish_errors_total",
			Help:        "Publish calls that failed",
			ConstLabels: prometheus.Labels{"sink": name},
		}),
		bytesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "natspub",
			Name:        "bytes_published_total",
			Help:        "Payload bytes published to the broker",
			ConstLabels: prometheus.Labels{"sink": name},
		}),
	}

	_ = registry.RegisterCounter(name, "records_published", m.published)
	_ = registry.RegisterCounter(name, "publish_errors", m.publishErrors)
	_ = registry.RegisterCounter(name, "bytes_published", m.bytesPublished)
	return m
}

// Config holds NATS sink configuration.
type Config struct {
	// Subject to publish records on. Required.
	Subject string `json:"subject" yaml:"subject"`
}

// Sink publishes each record to the broker.
type Sink struct {
	name      string
	cfg       Config
	inputs    sink.Inputs
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics

	mu        sync.Mutex
	state     component.State
	startTime time.Time
	errCount  int
	lastErr   error
}

// Interface checks
var _ component.Reactor = (*Sink)(nil)
var _ component.Lifecycle = (*Sink)(nil)
var _ component.Wired = (*Sink)(nil)

// New creates a NATS sink. The publisher defaults to the dependency-
// injected NATS client when nil.
func New(cfg Config, publisher Publisher, deps component.Dependencies) *Sink {
	if publisher == nil && deps.NATSClient != nil {
		publisher = deps.NATSClient
	}
	name := deps.InstanceName("natspub")
	s := &Sink{
		name:      name,
		cfg:       cfg,
		inputs:    sink.NewInputs(deps.Timeline),
		publisher: publisher,
		logger:    deps.GetLoggerWithComponent(name),
		metrics:   newMetrics(deps.Metrics, name),
		state:     component.StateUninitialized,
	}
	s.inputs.OnRecord(s.onRecord)
	return s
}

// onRecord publishes fire-and-forget. A failed publish is logged and
// counted, never halts the pipeline.
func (s *Sink) onRecord(rec sink.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, s.name, "onRecord", "record encoding")
	}

	if err := s.publisher.Publish(s.cfg.Subject, data); err != nil {
		s.mu.Lock()
		s.errCount++
		s.lastErr = err
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.publishErrors.Inc()
		}
		s.logger.Warn("Publish failed", "subject", s.cfg.Subject, "error", err)
		return nil
	}

	if s.metrics != nil {
		s.metrics.published.Inc()
		s.metrics.bytesPublished.Add(float64(len(data)))
	}
	return nil
}

// Meta returns the component metadata
func (s *Sink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        component.TypeSink,
		Description: "Publishes inference records to a NATS subject",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (s *Sink) InputPorts() []component.Port { return s.inputs.Descriptors() }

// OutputPorts returns the output ports for this component
func (s *Sink) OutputPorts() []component.Port { return nil }

// Health returns the current health status of the component
func (s *Sink) Health() component.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastErr := ""
	if s.lastErr != nil {
		lastErr = s.lastErr.Error()
	}
	var uptime time.Duration
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return component.HealthStatus{
		Healthy:    s.state == component.StateReady,
		LastCheck:  time.Now(),
		ErrorCount: s.errCount,
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// Lookup implements component.Wired
func (s *Sink) Lookup(name string) (timeline.AnyPort, bool) { return s.inputs.Lookup(name) }

// Inputs exposes the sink ports for direct wiring in code.
func (s *Sink) Inputs() sink.Inputs { return s.inputs }

// Initialize validates configuration
func (s *Sink) Initialize() error {
	if s.cfg.Subject == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: subject must not be empty", errors.ErrConfiguration),
			s.name, "Initialize", "config validation")
	}
	if s.publisher == nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: no publisher provided", errors.ErrConfiguration),
			s.name, "Initialize", "dependency validation")
	}
	return nil
}

// Start marks the sink ready
func (s *Sink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = component.StateReady
	s.startTime = time.Now()
	return nil
}

// Stop marks the sink stopped; the shared NATS client is owned and
// closed by the pipeline, not here.
func (s *Sink) Stop(_ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = component.StateStopped
	return nil
}

// Create creates a NATS sink from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "natspub", "Create", "config parsing")
		}
	}
	return New(cfg, nil, deps), nil
}

// Register adds the NATS sink factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "natspub",
		Factory:     Create,
		Type:        component.TypeSink,
		Medium:      "any",
		Description: "Publishes inference records to a NATS subject",
		Version:     "1.0.0",
	})
}
