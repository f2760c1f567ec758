package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/timeline"
)

// visionTask is the shared shape of the image-input families. Concrete
// tasks differ only in family and metadata; the contract and ports are
// identical: one mandatory image input, results and latency outputs, and
// a done trigger usable as a capture feedback edge.
type visionTask struct {
	base
	description string

	in         *timeline.Port[capture.Frame]
	outResults *timeline.Port[infer.Batch]
	outLatency *timeline.Port[infer.Latency]
	done       *timeline.Port[struct{}]
}

func newVisionTask(
	name string, family infer.Family, description string,
	cfg Config, deps component.Dependencies,
) visionTask {
	cfg.applyDefaults()
	name = deps.InstanceName(name)
	tl := deps.Timeline

	t := visionTask{
		base: newBase(name, family, cfg, deps.Engine,
			deps.GetLoggerWithComponent(name), newTaskMetrics(deps.Metrics, name)),
		description: description,
		in:          timeline.NewPort[capture.Frame](tl, "image", timeline.KindFrame),
		outResults:  timeline.NewPort[infer.Batch](tl, "results", timeline.KindResults),
		outLatency:  timeline.NewPort[infer.Latency](tl, "latency", timeline.KindLatency),
		done:        timeline.NewPort[struct{}](tl, "done", timeline.KindTrigger),
	}
	return t
}

// wire registers the inference reaction. Called once by the constructor of
// the concrete task so the reaction closes over the full receiver.
func (t *visionTask) wire() {
	t.in.OnPresent(t.react)
}

// react runs one inference per step in which the image port is present.
// Latency is emitted before results so consumers triggered by the results
// port observe both in the same step.
func (t *visionTask) react() error {
	frame, present := t.in.Get()
	if err := t.requireInput("image", present); err != nil {
		return err
	}

	batch, latency, err := t.runInference(infer.Input{Frame: &frame})
	if err != nil {
		return err
	}

	t.outLatency.Set(latency)
	t.outResults.Set(batch)
	t.done.Set(struct{}{})
	return nil
}

// Meta returns the component metadata
func (t *visionTask) Meta() component.Metadata {
	return component.Metadata{
		Name:        t.name,
		Type:        component.TypeTask,
		Description: t.description,
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (t *visionTask) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "image",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindFrame,
			Required:    true,
			Description: "Camera frame to run inference on",
		},
	}
}

// OutputPorts returns the output ports for this component
func (t *visionTask) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "results",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindResults,
			Required:    true,
			Description: "Ranked inference findings",
		},
		{
			Name:        "latency",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindLatency,
			Required:    true,
			Description: "Wall-clock engine latency in milliseconds",
		},
		{
			Name:        "done",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindTrigger,
			Description: "Fires after each inference; usable as a capture feedback trigger",
		},
	}
}

// Health returns the current health status of the component
func (t *visionTask) Health() component.HealthStatus {
	return t.health()
}

// Lookup implements component.Wired
func (t *visionTask) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "image":
		return t.in, true
	case "results":
		return t.outResults, true
	case "latency":
		return t.outLatency, true
	case "done":
		return t.done, true
	default:
		return nil, false
	}
}

// Initialize validates configuration without touching the filesystem
func (t *visionTask) Initialize() error {
	if err := t.cfg.Validate(); err != nil {
		return errors.WrapFatal(err, t.name, "Initialize", "config validation")
	}
	return nil
}

// Start creates the inference session. Called exactly once; failure is
// fatal for the whole pipeline.
func (t *visionTask) Start(_ context.Context) error {
	return t.initializeSession(t.options())
}

// Stop releases the session. Best-effort, idempotent, never fails.
func (t *visionTask) Stop(_ time.Duration) error {
	t.teardown()
	return nil
}

// Results exposes the results output port for direct wiring in code.
func (t *visionTask) Results() *timeline.Port[infer.Batch] { return t.outResults }

// Latency exposes the latency output port for direct wiring in code.
func (t *visionTask) Latency() *timeline.Port[infer.Latency] { return t.outLatency }

// Done exposes the per-inference trigger port for feedback wiring.
func (t *visionTask) Done() *timeline.Port[struct{}] { return t.done }

// Input exposes the image input port for direct wiring in code.
func (t *visionTask) Input() *timeline.Port[capture.Frame] { return t.in }

// Classifier runs image classification over camera frames.
type Classifier struct{ visionTask }

// NewClassifier creates a classifier task
func NewClassifier(cfg Config, deps component.Dependencies) *Classifier {
	c := &Classifier{newVisionTask(
		"classifier", infer.FamilyClassification,
		"Image classification over camera frames", cfg, deps)}
	c.wire()
	return c
}

// Detector runs object detection over camera frames.
type Detector struct{ visionTask }

// NewDetector creates a detector task
func NewDetector(cfg Config, deps component.Dependencies) *Detector {
	d := &Detector{newVisionTask(
		"detector", infer.FamilyDetection,
		"Object detection over camera frames", cfg, deps)}
	d.wire()
	return d
}

// Segmenter runs semantic segmentation over camera frames.
type Segmenter struct{ visionTask }

// NewSegmenter creates a segmenter task
func NewSegmenter(cfg Config, deps component.Dependencies) *Segmenter {
	s := &Segmenter{newVisionTask(
		"segmenter", infer.FamilySegmentation,
		"Semantic segmentation over camera frames", cfg, deps)}
	s.wire()
	return s
}

// parseConfig applies the factory config-parsing pattern shared by the
// vision families.
func parseConfig(rawConfig json.RawMessage) (Config, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return Config{}, errors.WrapInvalid(
				fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
				"task-factory", "parseConfig", "config parsing")
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

// CreateClassifier creates a classifier from raw configuration
func CreateClassifier(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	cfg, err := parseConfig(rawConfig)
	if err != nil {
		return nil, err
	}
	return NewClassifier(cfg, deps), nil
}

// CreateDetector creates a detector from raw configuration
func CreateDetector(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	cfg, err := parseConfig(rawConfig)
	if err != nil {
		return nil, err
	}
	return NewDetector(cfg, deps), nil
}

// CreateSegmenter creates a segmenter from raw configuration
func CreateSegmenter(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	cfg, err := parseConfig(rawConfig)
	if err != nil {
		return nil, err
	}
	return NewSegmenter(cfg, deps), nil
}
