// Package mic provides the microphone adapter: a push bridge from a
// hardware audio stream onto the logical timeline. The driver callback's
// only action is to schedule a physical action carrying the buffer; the
// buffer surfaces on the audio output port one hop later, in its own step.
package mic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/timeline"
)

// Metrics holds Prometheus metrics for the microphone adapter
type Metrics struct {
	buffersCaptured prometheus.Counter
	bytesCaptured   prometheus.Counter
}

// newMetrics creates and registers microphone metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newMetrics(registry *metric.Registry, name string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		buffersCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "mic",
			Name:        "buffers_captured_total",
			Help:        "Audio buffers delivered by the hardware stream",
			ConstLabels: prometheus.Labels{"adapter": name},
		}),
		bytesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "mic",
			Name:        "bytes_captured_total",
			Help:        "Raw audio bytes delivered by the hardware stream",
			ConstLabels: prometheus.Labels{"adapter": name},
		}),
	}

	_ = registry.RegisterCounter(name, "buffers_captured", m.buffersCaptured)
	_ = registry.RegisterCounter(name, "bytes_captured", m.bytesCaptured)
	return m
}

// Config holds microphone adapter configuration, fixed at construction.
type Config struct {
	// BufferSize is the number of samples per delivered buffer.
	BufferSize int `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty"`
	// SampleRate in Hz.
	SampleRate int `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	// Channels is the channel count (1 = mono).
	Channels int `json:"channels,omitempty" yaml:"channels,omitempty"`
	// Device selects the input device; empty means the system default.
	Device string `json:"device,omitempty" yaml:"device,omitempty"`
	// Format optionally coerces the hardware sample format.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 15600
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.Format == "" {
		c.Format = string(capture.FormatInt16)
	}
}

// Validate checks static configuration.
func (c *Config) Validate() error {
	switch capture.SampleFormat(c.Format) {
	case capture.FormatInt16, capture.FormatFloat32:
		return nil
	default:
		return fmt.Errorf("%w: unknown sample format %q", errors.ErrConfiguration, c.Format)
	}
}

// Adapter bridges a hardware audio stream onto the timeline.
type Adapter struct {
	name   string
	cfg    Config
	opener capture.AudioOpener
	logger *slog.Logger

	action *timeline.Physical[capture.AudioBuffer]
	out    *timeline.Port[capture.AudioBuffer]

	mu        sync.Mutex
	stream    capture.AudioStream
	state     component.State
	startTime time.Time

	metrics *Metrics
}

// Interface checks
var _ component.Reactor = (*Adapter)(nil)
var _ component.Lifecycle = (*Adapter)(nil)
var _ component.Wired = (*Adapter)(nil)

// New creates a microphone adapter
func New(cfg Config, deps component.Dependencies) *Adapter {
	cfg.applyDefaults()
	tl := deps.Timeline

	name := deps.InstanceName("mic")
	a := &Adapter{
		name:    name,
		cfg:     cfg,
		opener:  deps.Audio,
		logger:  deps.GetLoggerWithComponent(name),
		action:  timeline.NewPhysical[capture.AudioBuffer](tl, "mic-buffer"),
		out:     timeline.NewPort[capture.AudioBuffer](tl, "audio", timeline.KindAudio),
		state:   component.StateUninitialized,
		metrics: newMetrics(deps.Metrics, name),
	}

	// Delivery on the timeline goroutine: present the buffer on the
	// audio port for exactly this step.
	a.action.OnEvent(func(buf capture.AudioBuffer) error {
		a.out.Set(buf)
		return nil
	})
	return a
}

// Meta returns the component metadata
func (a *Adapter) Meta() component.Metadata {
	return component.Metadata{
		Name:        a.name,
		Type:        component.TypeAdapter,
		Description: "Push bridge from a hardware microphone stream",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (a *Adapter) InputPorts() []component.Port { return nil }

// OutputPorts returns the output ports for this component
func (a *Adapter) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "audio",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindAudio,
			Required:    true,
			Description: "One captured audio buffer per hardware delivery",
			Resource:    a.resourceID(),
		},
	}
}

// resourceID names the exclusive hardware device claim.
func (a *Adapter) resourceID() string {
	device := a.cfg.Device
	if device == "" {
		device = "default"
	}
	return "audio:" + device
}

// Health returns the current health status of the component
func (a *Adapter) Health() component.HealthStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	var uptime time.Duration
	if !a.startTime.IsZero() {
		uptime = time.Since(a.startTime)
	}
	return component.HealthStatus{
		Healthy:   a.state == component.StateReady,
		LastCheck: time.Now(),
		Uptime:    uptime,
	}
}

// Lookup implements component.Wired
func (a *Adapter) Lookup(name string) (timeline.AnyPort, bool) {
	if name == "audio" {
		return a.out, true
	}
	return nil, false
}

// Output exposes the audio port for direct wiring in code.
func (a *Adapter) Output() *timeline.Port[capture.AudioBuffer] { return a.out }

// Initialize validates configuration without touching hardware
func (a *Adapter) Initialize() error {
	if err := a.cfg.Validate(); err != nil {
		return errors.WrapFatal(err, a.name, "Initialize", "config validation")
	}
	if a.opener == nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: no audio opener provided", errors.ErrConfiguration),
			a.name, "Initialize", "dependency validation")
	}
	return nil
}

// Start opens the hardware stream and begins capture. Open failures
// surface synchronously here and are fatal for the pipeline.
func (a *Adapter) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != component.StateUninitialized {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, a.name, "Start", "state check")
	}

	stream, err := a.opener.Open(capture.AudioConfig{
		BufferSize: a.cfg.BufferSize,
		SampleRate: a.cfg.SampleRate,
		Channels:   a.cfg.Channels,
		Device:     a.cfg.Device,
		Format:     capture.SampleFormat(a.cfg.Format),
	})
	if err != nil {
		a.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrDevice, err),
			a.name, "Start", "stream open")
	}

	if err := stream.Start(a.onBuffer); err != nil {
		_ = stream.Stop()
		a.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrDevice, err),
			a.name, "Start", "capture start")
	}

	a.stream = stream
	a.state = component.StateReady
	a.startTime = time.Now()
	a.logger.Info("Microphone stream started",
		"device", a.cfg.Device,
		"sample_rate", a.cfg.SampleRate,
		"buffer_size", a.cfg.BufferSize)
	return nil
}

// onBuffer runs on the stream's own thread. It only schedules the
// physical action; metrics counters are safe for concurrent use.
func (a *Adapter) onBuffer(buf capture.AudioBuffer) {
	if a.metrics != nil {
		a.metrics.buffersCaptured.Inc()
		a.metrics.bytesCaptured.Add(float64(len(buf.Data)))
	}
	a.action.Schedule(buf)
}

// Stop halts capture and releases the stream. Best-effort: a stop on a
// never-started adapter is a no-op, close failures are logged only.
func (a *Adapter) Stop(_ time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream != nil {
		if err := a.stream.Stop(); err != nil {
			a.logger.Warn("Stream stop failed", "error", err)
		}
		a.stream = nil
	}
	if a.state != component.StateFailed {
		a.state = component.StateStopped
	}
	return nil
}

// Create creates a microphone adapter from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "mic", "Create", "config parsing")
		}
	}
	return New(cfg, deps), nil
}

// Register adds the microphone adapter factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "mic",
		Factory:     Create,
		Type:        component.TypeAdapter,
		Medium:      "audio",
		Description: "Push bridge from a hardware microphone stream",
		Version:     "1.0.0",
	})
}
