package task

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
)

// Config holds the parameters shared by every task family, fixed at
// construction and immutable thereafter.
type Config struct {
	// ModelPath locates the model file. Required, non-empty.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// MaxResults bounds the returned batch where the family supports it.
	MaxResults int `json:"max_results,omitempty" yaml:"max_results,omitempty"`
	// ScoreThreshold drops findings below this score.
	ScoreThreshold float64 `json:"score_threshold,omitempty" yaml:"score_threshold,omitempty"`
	// NumThreads is the engine thread count.
	NumThreads int `json:"num_threads,omitempty" yaml:"num_threads,omitempty"`
	// UseAccelerator enables the hardware delegate when available.
	UseAccelerator bool `json:"use_accelerator,omitempty" yaml:"use_accelerator,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.MaxResults <= 0 {
		c.MaxResults = 5
	}
	if c.NumThreads <= 0 {
		c.NumThreads = 4
	}
}

// Validate implements static configuration checks. Path readability is
// checked at session initialization, where the filesystem is first touched.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("%w: model_path must not be empty", errors.ErrConfiguration)
	}
	return nil
}

// base carries the per-instance state every task family shares: the
// configuration, the session handle, and the lifecycle state machine. It
// is constructed once and owned exclusively by its task.
type base struct {
	name      string
	family    infer.Family
	cfg       Config
	engine    infer.Engine
	logger    *slog.Logger
	metrics   *taskMetrics
	state     component.State
	session   infer.Session
	startTime time.Time
	errCount  int
	lastErr   error
}

func newBase(name string, family infer.Family, cfg Config, engine infer.Engine, logger *slog.Logger, metrics *taskMetrics) base {
	if logger == nil {
		logger = slog.Default().With("component", name)
	}
	return base{
		name:    name,
		family:  family,
		cfg:     cfg,
		engine:  engine,
		logger:  logger,
		metrics: metrics,
		state:   component.StateUninitialized,
	}
}

// options builds the engine options passed through unmodified.
func (b *base) options() infer.Options {
	return infer.Options{
		Family:         b.family,
		ModelPath:      b.cfg.ModelPath,
		MaxResults:     b.cfg.MaxResults,
		ScoreThreshold: b.cfg.ScoreThreshold,
		NumThreads:     b.cfg.NumThreads,
		UseAccelerator: b.cfg.UseAccelerator,
	}
}

// initializeSession creates the session exactly once. An empty or
// unreadable model path is a configuration error; both it and an engine
// failure leave the task Stopped and are fatal for the pipeline.
func (b *base) initializeSession(opts infer.Options) error {
	if b.state != component.StateUninitialized {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, b.name, "initializeSession", "state check")
	}

	if opts.ModelPath == "" {
		b.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: model_path must not be empty", errors.ErrConfiguration),
			b.name, "initializeSession", "model path validation")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		b.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: model file %q unreadable: %v", errors.ErrConfiguration, opts.ModelPath, err),
			b.name, "initializeSession", "model path validation")
	}
	if b.engine == nil {
		b.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: no inference engine provided", errors.ErrConfiguration),
			b.name, "initializeSession", "engine validation")
	}

	session, err := b.engine.NewSession(opts)
	if err != nil {
		b.state = component.StateFailed
		return errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
			b.name, "initializeSession", "session creation")
	}

	b.session = session
	b.state = component.StateReady
	b.startTime = time.Now()
	b.logger.Info("Inference session initialized",
		"family", string(b.family),
		"model_path", opts.ModelPath)
	return nil
}

// runInference executes one engine call, measuring wall-clock latency
// strictly around the call. An engine failure stops the task and is fatal
// for the pipeline.
func (b *base) runInference(in infer.Input) (infer.Batch, infer.Latency, error) {
	if b.state != component.StateReady {
		return nil, 0, errors.WrapFatal(errors.ErrNotStarted, b.name, "runInference", "state check")
	}

	start := time.Now()
	batch, err := b.session.Run(in)
	latency := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		b.errCount++
		b.lastErr = err
		b.metrics.fail()
		b.teardown()
		return nil, 0, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrInferenceEngine, err),
			b.name, "runInference", "engine call")
	}

	b.metrics.observe(latency)
	return batch, latency, nil
}

// requireInput converts an absent mandatory input into the fatal wiring
// error the contract demands.
func (b *base) requireInput(port string, present bool) error {
	if present {
		return nil
	}
	return errors.WrapFatal(
		fmt.Errorf("%w: port %q", errors.ErrInputAbsent, port),
		b.name, "Infer", "input presence check")
}

// teardown releases the session. Best-effort: never raises, safe to call
// twice, close failures are logged only.
func (b *base) teardown() {
	if b.session != nil {
		if err := b.session.Close(); err != nil {
			b.logger.Warn("Session close failed", "error", err)
		}
		b.session = nil
	}
	if b.state != component.StateFailed {
		b.state = component.StateStopped
	}
}

// health is the shared HealthStatus implementation.
func (b *base) health() component.HealthStatus {
	lastErr := ""
	if b.lastErr != nil {
		lastErr = b.lastErr.Error()
	}
	var uptime time.Duration
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	return component.HealthStatus{
		Healthy:    b.state == component.StateReady,
		LastCheck:  time.Now(),
		ErrorCount: b.errCount,
		LastError:  lastErr,
		Uptime:     uptime,
	}
}

// State exposes the lifecycle state for tests and the pipeline.
func (b *base) State() component.State {
	return b.state
}
