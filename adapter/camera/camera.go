// Package camera provides the camera adapter: a pull bridge that reads
// frames from a capture device and presents them on the timeline. Capture
// is driven either by a periodic logical action or by a trigger input
// port, with one priming capture at startup so downstream feedback loops
// have a first frame to react to. A read that yields no frame is a
// tolerated miss: logged, skipped, never fatal.
package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/timeline"
)

// Metrics holds Prometheus metrics for the camera adapter
type Metrics struct {
	framesCaptured prometheus.Counter
	captureMisses  prometheus.Counter
}

// newMetrics creates and registers camera metrics.
// Returns nil if no registry is provided (nil input = nil feature pattern).
func newMetrics(registry *metric.Registry, name string) *Metrics {
	if registry == nil {
		return nil
	}

	m := &Metrics{
		framesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "camera",
			Name:        "frames_captured_total",
			Help:        "Frames successfully read from the device",
			ConstLabels: prometheus.Labels{"adapter": name},
		}),
		captureMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "sensorweave",
			Subsystem:   "camera",
			Name:        "capture_misses_total",
			Help:        "Device reads that yielded no frame",
			ConstLabels: prometheus.Labels{"adapter": name},
		}),
	}

	_ = registry.RegisterCounter(name, "frames_captured", m.framesCaptured)
	_ = registry.RegisterCounter(name, "capture_misses", m.captureMisses)
	return m
}

// Config holds camera adapter configuration, fixed at construction.
type Config struct {
	// Device identifies the camera, e.g. "/dev/video0". Empty selects the
	// first available device.
	Device string `json:"device,omitempty" yaml:"device,omitempty"`
	// Period between captures. Takes precedence over FPS when both are set.
	Period time.Duration `json:"period,omitempty" yaml:"period,omitempty"`
	// FPS is an alternative way to express the capture period.
	FPS float64 `json:"fps,omitempty" yaml:"fps,omitempty"`
	// Trigger switches from timer-driven to trigger-driven capture: each
	// event on the trigger input port causes one read.
	Trigger bool `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	// Worker moves blocking device reads off the timeline goroutine onto
	// a dedicated worker, delivering frames through a physical action.
	Worker bool `json:"worker,omitempty" yaml:"worker,omitempty"`
}

// period resolves the effective capture interval.
func (c *Config) period() time.Duration {
	if c.Period > 0 {
		return c.Period
	}
	if c.FPS > 0 {
		return time.Duration(float64(time.Second) / c.FPS)
	}
	return time.Second / 30
}

// Adapter bridges a camera device onto the timeline.
type Adapter struct {
	name   string
	cfg    Config
	opener capture.DeviceOpener
	logger *slog.Logger

	out     *timeline.Port[capture.Frame]
	trigger *timeline.Port[struct{}]
	action  *timeline.Physical[capture.Frame]
	tl      *timeline.Timeline

	mu        sync.Mutex
	device    capture.Device
	state     component.State
	startTime time.Time
	misses    int

	// Worker-mode machinery. requests wakes the worker for one read;
	// group and cancel bound its lifetime.
	requests chan struct{}
	group    *errgroup.Group
	cancel   context.CancelFunc

	metrics *Metrics
}

// Interface checks
var _ component.Reactor = (*Adapter)(nil)
var _ component.Lifecycle = (*Adapter)(nil)
var _ component.Wired = (*Adapter)(nil)

// New creates a camera adapter
func New(cfg Config, deps component.Dependencies) *Adapter {
	tl := deps.Timeline

	name := deps.InstanceName("camera")
	a := &Adapter{
		name:     name,
		cfg:      cfg,
		opener:   deps.Camera,
		logger:   deps.GetLoggerWithComponent(name),
		out:      timeline.NewPort[capture.Frame](tl, "image", timeline.KindFrame),
		trigger:  timeline.NewPort[struct{}](tl, "trigger", timeline.KindTrigger),
		action:   timeline.NewPhysical[capture.Frame](tl, "camera-frame"),
		tl:       tl,
		state:    component.StateUninitialized,
		requests: make(chan struct{}, 1),
		metrics:  newMetrics(deps.Metrics, name),
	}

	// Worker-mode frames surface on the image port one hop after the read.
	a.action.OnEvent(func(frame capture.Frame) error {
		a.out.Set(frame)
		return nil
	})

	if cfg.Trigger {
		a.trigger.OnPresent(a.onTrigger)
	}

	// Priming capture: downstream feedback loops need a first frame
	// before any trigger or timer event exists.
	tl.AtStartup(a.onStartup)
	return a
}

// Meta returns the component metadata
func (a *Adapter) Meta() component.Metadata {
	return component.Metadata{
		Name:        a.name,
		Type:        component.TypeAdapter,
		Description: "Pull bridge reading frames from a camera device",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (a *Adapter) InputPorts() []component.Port {
	if !a.cfg.Trigger {
		return nil
	}
	return []component.Port{
		{
			Name:        "trigger",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindTrigger,
			Required:    true,
			Description: "Each event causes one device read",
		},
	}
}

// OutputPorts returns the output ports for this component
func (a *Adapter) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "image",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindFrame,
			Required:    true,
			Description: "One captured frame per successful read",
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
	return "camera:" + device
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
		Healthy:    a.state == component.StateReady,
		LastCheck:  time.Now(),
		ErrorCount: a.misses,
		Uptime:     uptime,
	}
}

// Lookup implements component.Wired
func (a *Adapter) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "image":
		return a.out, true
	case "trigger":
		return a.trigger, true
	default:
		return nil, false
	}
}

// Output exposes the image port for direct wiring in code.
func (a *Adapter) Output() *timeline.Port[capture.Frame] { return a.out }

// TriggerPort exposes the trigger input for direct wiring in code.
func (a *Adapter) TriggerPort() *timeline.Port[struct{}] { return a.trigger }

// Initialize validates configuration without touching hardware
func (a *Adapter) Initialize() error {
	if a.opener == nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: no camera opener provided", errors.ErrConfiguration),
			a.name, "Initialize", "dependency validation")
	}
	if a.cfg.Period < 0 || a.cfg.FPS < 0 {
		return errors.WrapFatal(
			fmt.Errorf("%w: capture period must not be negative", errors.ErrConfiguration),
			a.name, "Initialize", "config validation")
	}
	return nil
}

// Start opens the device. Open failures surface synchronously here and
// are fatal for the pipeline. In worker mode the read loop starts too.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != component.StateUninitialized {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, a.name, "Start", "state check")
	}

	device, err := a.opener.Open(a.cfg.Device)
	if err != nil {
		a.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrDevice, err),
			a.name, "Start", "device open")
	}
	a.device = device

	if a.cfg.Worker {
		workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.cancel = cancel
		a.group, workerCtx = errgroup.WithContext(workerCtx)
		a.group.Go(func() error { return a.workerLoop(workerCtx) })
	}

	a.state = component.StateReady
	a.startTime = time.Now()
	a.logger.Info("Camera opened",
		"device", a.cfg.Device,
		"period", a.cfg.period().String(),
		"trigger", a.cfg.Trigger,
		"worker", a.cfg.Worker)
	return nil
}

// onStartup performs the priming capture and, in timer mode, arms the
// periodic capture.
func (a *Adapter) onStartup() error {
	if err := a.capture(); err != nil {
		return err
	}
	if !a.cfg.Trigger {
		return a.tl.Schedule(a.cfg.period(), a.onTick)
	}
	return nil
}

// onTick is the self-rescheduling periodic capture reaction.
func (a *Adapter) onTick() error {
	if err := a.capture(); err != nil {
		return err
	}
	return a.tl.Schedule(a.cfg.period(), a.onTick)
}

// onTrigger captures once per trigger event. The read is deferred one
// microstep so a feedback edge from a downstream consumer cannot
// re-trigger that consumer within the same step.
func (a *Adapter) onTrigger() error {
	return a.tl.Schedule(0, a.capture)
}

// capture performs or requests one device read. Runs on the timeline
// goroutine; a not-yet-started adapter skips silently since the priming
// reaction may fire while the pipeline is still assembling in tests.
func (a *Adapter) capture() error {
	a.mu.Lock()
	device := a.device
	ready := a.state == component.StateReady
	a.mu.Unlock()

	if !ready || device == nil {
		return nil
	}

	if a.cfg.Worker {
		// Wake the worker; a pending request already covers this tick.
		select {
		case a.requests <- struct{}{}:
		default:
		}
		return nil
	}

	frame, ok := device.Read()
	if !ok {
		a.recordMiss()
		return nil
	}
	if a.metrics != nil {
		a.metrics.framesCaptured.Inc()
	}
	a.out.Set(frame)
	return nil
}

// workerLoop runs blocking reads off the timeline goroutine, delivering
// frames through the physical action.
func (a *Adapter) workerLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.requests:
		}

		a.mu.Lock()
		device := a.device
		a.mu.Unlock()
		if device == nil {
			return nil
		}

		frame, ok := device.Read()
		if !ok {
			a.recordMiss()
			continue
		}
		if a.metrics != nil {
			a.metrics.framesCaptured.Inc()
		}
		a.action.Schedule(frame)
	}
}

// recordMiss logs a tolerated capture miss.
func (a *Adapter) recordMiss() {
	a.mu.Lock()
	a.misses++
	a.mu.Unlock()
	if a.metrics != nil {
		a.metrics.captureMisses.Inc()
	}
	a.logger.Warn("Capture miss, no frame this read", "device", a.cfg.Device)
}

// Stop releases the device. Best-effort: a stop on a never-started
// adapter is a no-op, release failures are logged only.
func (a *Adapter) Stop(timeout time.Duration) error {
	a.mu.Lock()
	cancel := a.cancel
	group := a.group
	a.cancel = nil
	a.group = nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if group != nil {
		done := make(chan error, 1)
		go func() { done <- group.Wait() }()
		select {
		case <-done:
		case <-time.After(timeout):
			a.logger.Warn("Worker did not stop within timeout", "timeout", timeout.String())
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.device != nil {
		if err := a.device.Release(); err != nil {
			a.logger.Warn("Device release failed", "error", err)
		}
		a.device = nil
	}
	if a.state != component.StateFailed {
		a.state = component.StateStopped
	}
	return nil
}

// Create creates a camera adapter from raw configuration
func Create(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "camera", "Create", "config parsing")
		}
	}
	return New(cfg, deps), nil
}

// Register adds the camera adapter factory to the registry.
func Register(registry *component.Registry) error {
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "camera",
		Factory:     Create,
		Type:        component.TypeAdapter,
		Medium:      "video",
		Description: "Pull bridge reading frames from a camera device",
		Version:     "1.0.0",
	})
}
