package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/timeline"
)

// TextConfig extends the common task configuration with the text-model
// architecture switch.
type TextConfig struct {
	Config `yaml:",inline"`

	// UseBERT selects the BERT architecture over average word embeddings.
	UseBERT bool `json:"use_bert,omitempty" yaml:"use_bert,omitempty"`
}

// TextClassifier scores text snippets against the model's label set.
type TextClassifier struct {
	base
	useBERT bool

	in         *timeline.Port[string]
	outResults *timeline.Port[infer.Batch]
	outLatency *timeline.Port[infer.Latency]
}

// NewTextClassifier creates a text classification task
func NewTextClassifier(cfg TextConfig, deps component.Dependencies) *TextClassifier {
	cfg.applyDefaults()
	name := deps.InstanceName("text-classifier")
	tl := deps.Timeline

	t := &TextClassifier{
		base: newBase(name, infer.FamilyTextClassification, cfg.Config,
			deps.Engine, deps.GetLoggerWithComponent(name),
			newTaskMetrics(deps.Metrics, name)),
		useBERT:    cfg.UseBERT,
		in:         timeline.NewPort[string](tl, "text", timeline.KindText),
		outResults: timeline.NewPort[infer.Batch](tl, "results", timeline.KindResults),
		outLatency: timeline.NewPort[infer.Latency](tl, "latency", timeline.KindLatency),
	}
	t.in.OnPresent(t.react)
	return t
}

func (t *TextClassifier) react() error {
	text, present := t.in.Get()
	if err := t.requireInput("text", present); err != nil {
		return err
	}

	batch, latency, err := t.runInference(infer.Input{Text: text})
	if err != nil {
		return err
	}

	t.outLatency.Set(latency)
	t.outResults.Set(batch)
	return nil
}

// Meta returns the component metadata
func (t *TextClassifier) Meta() component.Metadata {
	return component.Metadata{
		Name:        t.name,
		Type:        component.TypeTask,
		Description: "Text classification over string inputs",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (t *TextClassifier) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "text",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindText,
			Required:    true,
			Description: "Text snippet to classify",
		},
	}
}

// OutputPorts returns the output ports for this component
func (t *TextClassifier) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "results",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindResults,
			Required:    true,
			Description: "Ranked classification findings",
		},
		{
			Name:        "latency",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindLatency,
			Required:    true,
			Description: "Wall-clock engine latency in milliseconds",
		},
	}
}

// Health returns the current health status of the component
func (t *TextClassifier) Health() component.HealthStatus {
	return t.health()
}

// Lookup implements component.Wired
func (t *TextClassifier) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "text":
		return t.in, true
	case "results":
		return t.outResults, true
	case "latency":
		return t.outLatency, true
	default:
		return nil, false
	}
}

// Initialize validates configuration without touching the filesystem
func (t *TextClassifier) Initialize() error {
	if err := t.cfg.Validate(); err != nil {
		return errors.WrapFatal(err, t.name, "Initialize", "config validation")
	}
	return nil
}

// Start creates the inference session
func (t *TextClassifier) Start(_ context.Context) error {
	opts := t.options()
	opts.UseBERT = t.useBERT
	return t.initializeSession(opts)
}

// Stop releases the session. Best-effort, idempotent, never fails.
func (t *TextClassifier) Stop(_ time.Duration) error {
	t.teardown()
	return nil
}

// Input exposes the text input port for direct wiring in code.
func (t *TextClassifier) Input() *timeline.Port[string] { return t.in }

// Results exposes the results output port for direct wiring in code.
func (t *TextClassifier) Results() *timeline.Port[infer.Batch] { return t.outResults }

// Latency exposes the latency output port for direct wiring in code.
func (t *TextClassifier) Latency() *timeline.Port[infer.Latency] { return t.outLatency }

// CreateTextClassifier creates a text classifier from raw configuration
func CreateTextClassifier(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg TextConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "text-classifier", "CreateTextClassifier", "config parsing")
		}
	}
	return NewTextClassifier(cfg, deps), nil
}
