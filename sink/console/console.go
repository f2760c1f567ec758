// Package console provides a sink that prints inference results to a
// writer, one line per finding. Intended for demos and smoke tests; with
// a record limit set it requests a graceful pipeline stop once reached.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/timeline"
)

// Config holds console sink configuration.
type Config struct {
	// Limit stops the pipeline gracefully after this many result batches.
	// Zero means run until stopped externally.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
	// ShowLatency appends the engine latency to each batch header.
	ShowLatency bool `json:"show_latency,omitempty" yaml:"show_latency,omitempty"`
}

// Sink prints each record to its writer.
type Sink struct {
	name   string
	cfg    Config
	inputs sink.Inputs
	logger *slog.Logger

	mu        sync.Mutex
	out       io.Writer
	records   int
	state     component.State
	startTime time.Time
}

// Interface checks
var _ component.Reactor = (*Sink)(nil)
var _ component.Lifecycle = (*Sink)(nil)
var _ component.Wired = (*Sink)(nil)

// New creates a console sink writing to stdout
func New(cfg Config, deps component.Dependencies) *Sink {
	name := deps.InstanceName("console")
	s := &Sink{
		name:   name,
		cfg:    cfg,
		inputs: sink.NewInputs(deps.Timeline),
		logger: deps.GetLoggerWithComponent(name),
		out:    os.Stdout,
		state:  component.StateUninitialized,
	}
	s.inputs.OnRecord(s.onRecord)
	return s
}

// SetWriter redirects output, primarily for tests.
func (s *Sink) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

func (s *Sink) onRecord(rec sink.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header := fmt.Sprintf("[%s] %d findings", rec.Tag.Format(time.RFC3339Nano), len(rec.Items))
	if s.cfg.ShowLatency && rec.LatencyMS >= 0 {
		header += fmt.Sprintf(" (%.2f ms)", rec.LatencyMS)
	}
	fmt.Fprintln(s.out, header)
	for _, item := range rec.Items {
		line, err := json.Marshal(item)
		if err != nil {
			return errors.WrapInvalid(err, s.name, "onRecord", "item encoding")
		}
		fmt.Fprintf(s.out, "  %s\n", line)
	}

	s.records++
	if s.cfg.Limit > 0 && s.records >= s.cfg.Limit {
		s.logger.Info("Record limit reached, requesting stop", "limit", s.cfg.Limit)
		s.inputs.RequestQuit()
	}
	return nil
}

// Meta returns the component metadata
func (s *Sink) Meta() component.Metadata {
	return component.Metadata{
		Name:        s.name,
		Type:        component.TypeSink,
		Description: "Prints inference results to standard output",
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

	var uptime time.Duration
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime)
	}
	return component.HealthStatus{
		Healthy:   s.state == component.StateReady,
		LastCheck: time.Now(),
		Uptime:    uptime,
	}
}

// Lookup implements component.Wired
func (s *Sink) Lookup(name string) (timeline.AnyPort, bool) { return s.inputs.Lookup(name) }

// Inputs exposes the sink ports for direct wiring in code.
func (s *Sink) Inputs() sink.Inputs { return s.inputs }

// Initialize validates configuration
func (s *Sink) Initialize() error {
	if s.cfg.Limit < 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: limit must not be negative", errors.ErrConfiguration),
			s.name, "Initialize", "config validation")
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

// Stop marks the sink stopped
func (s *Sink) Stop(_ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = component.StateStopped
	return nil
}

// Create creates a console sink from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "console", "Create", "config parsing")
		}
	}
	return New(cfg, deps), nil
}

// Register adds the console sink factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "console",
		Factory:     Create,
		Type:        component.TypeSink,
		Medium:      "any",
		Description: "Prints inference results to standard output",
		Version:     "1.0.0",
	})
}
