// Package file provides a sink that appends inference records to a file
// as JSON lines, one record per step with results present.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/timeline"
)

// Config holds file sink configuration.
type Config struct {
	// Path of the output file. Required. Created if absent, appended to
	// if present.
	Path string `json:"path" yaml:"path"`
	// Limit stops the pipeline gracefully after this many records. Zero
	// means run until stopped externally.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Sink appends one JSON line per record.
type Sink struct {
	name   string
	cfg    Config
	inputs sink.Inputs
	logger *slog.Logger

	mu        sync.Mutex
	file      *os.File
	writer    *bufio.Writer
	records   int
	state     component.State
	startTime time.Time
}

// Interface checks
var _ component.Reactor = (*Sink)(nil)
var _ component.Lifecycle = (*Sink)(nil)
var _ component.Wired = (*Sink)(nil)

// New creates a file sink
func New(cfg Config, deps component.Dependencies) *Sink {
	name := deps.InstanceName("file")
	s := &Sink{
		name:   name,
		cfg:    cfg,
		inputs: sink.NewInputs(deps.Timeline),
		logger: deps.GetLoggerWithComponent(name),
		state:  component.StateUninitialized,
	}
	s.inputs.OnRecord(s.onRecord)
	return s
}

func (s *Sink) onRecord(rec sink.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		// Stop raced a final in-step record; drop it rather than fail.
		return nil
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return errors.WrapInvalid(err, s.name, "onRecord", "record encoding")
	}
	if _, err := s.writer.Write(append(line, '\n')); err != nil {
		return errors.WrapFatal(err, s.name, "onRecord", "record write")
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
		Description: "Appends inference records to a file as JSON lines",
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

// Initialize validates configuration without touching the filesystem
func (s *Sink) Initialize() error {
	if s.cfg.Path == "" {
		return errors.WrapFatal(
			fmt.Errorf("%w: path must not be empty", errors.ErrConfiguration),
			s.name, "Initialize", "config validation")
	}
	return nil
}

// Start opens the output file
func (s *Sink) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != component.StateUninitialized {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, s.name, "Start", "state check")
	}

	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
			s.name, "Start", "output file open")
	}

	s.file = f
	s.writer = bufio.NewWriter(f)
	s.state = component.StateReady
	s.startTime = time.Now()
	s.logger.Info("Output file opened", "path", s.cfg.Path)
	return nil
}

// Stop flushes and closes the output file. Best-effort, idempotent.
func (s *Sink) Stop(_ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		if err := s.writer.Flush(); err != nil {
			s.logger.Warn("Flush failed", "error", err)
		}
		s.writer = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("Close failed", "error", err)
		}
		s.file = nil
	}
	if s.state != component.StateFailed {
		s.state = component.StateStopped
	}
	return nil
}

// Create creates a file sink from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "file", "Create", "config parsing")
		}
	}
	return New(cfg, deps), nil
}

// Register adds the file sink factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "file",
		Factory:     Create,
		Type:        component.TypeSink,
		Medium:      "any",
		Description: "Appends inference records to a file as JSON lines",
		Version:     "1.0.0",
	})
}
