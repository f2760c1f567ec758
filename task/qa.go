package task

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/timeline"
)

// QAConfig extends the common task configuration with the reference
// document the answerer extracts spans from.
type QAConfig struct {
	Config `yaml:",inline"`

	// ContextPath points at the UTF-8 text file every question is
	// answered against. Loaded once at start.
	ContextPath string `json:"context_path" yaml:"context_path"`
}

// QuestionAnswerer extracts answer spans from a fixed context document.
type QuestionAnswerer struct {
	base
	contextPath string
	contextText string

	in         *timeline.Port[string]
	outResults *timeline.Port[infer.Batch]
	outLatency *timeline.Port[infer.Latency]
}

// NewQuestionAnswerer creates a question answering task
func NewQuestionAnswerer(cfg QAConfig, deps component.Dependencies) *QuestionAnswerer {
	cfg.applyDefaults()
	name := deps.InstanceName("question-answerer")
	tl := deps.Timeline

	q := &QuestionAnswerer{
		base: newBase(name, infer.FamilyQuestionAnswer, cfg.Config,
			deps.Engine, deps.GetLoggerWithComponent(name),
			newTaskMetrics(deps.Metrics, name)),
		contextPath: cfg.ContextPath,
		in:          timeline.NewPort[string](tl, "question", timeline.KindText),
		outResults:  timeline.NewPort[infer.Batch](tl, "results", timeline.KindResults),
		outLatency:  timeline.NewPort[infer.Latency](tl, "latency", timeline.KindLatency),
	}
	q.in.OnPresent(q.react)
	return q
}

func (q *QuestionAnswerer) react() error {
	question, present := q.in.Get()
	if err := q.requireInput("question", present); err != nil {
		return err
	}

	batch, latency, err := q.runInference(infer.Input{
		Question: question,
		Context:  q.contextText,
	})
	if err != nil {
		return err
	}

	q.outLatency.Set(latency)
	q.outResults.Set(batch)
	return nil
}

// Meta returns the component metadata
func (q *QuestionAnswerer) Meta() component.Metadata {
	return component.Metadata{
		Name:        q.name,
		Type:        component.TypeTask,
		Description: "Extractive question answering over a fixed context document",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input ports for this component
func (q *QuestionAnswerer) InputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "question",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindText,
			Required:    true,
			Description: "Question to answer against the context document",
		},
	}
}

// OutputPorts returns the output ports for this component
func (q *QuestionAnswerer) OutputPorts() []component.Port {
	return []component.Port{
		{
			Name:        "results",
			Direction:   component.DirectionOutput,
			Kind:        timeline.KindResults,
			Required:    true,
			Description: "Ranked answer spans",
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
func (q *QuestionAnswerer) Health() component.HealthStatus {
	return q.health()
}

// Lookup implements component.Wired
func (q *QuestionAnswerer) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "question":
		return q.in, true
	case "results":
		return q.outResults, true
	case "latency":
		return q.outLatency, true
	default:
		return nil, false
	}
}

// Initialize validates configuration without touching the filesystem
func (q *QuestionAnswerer) Initialize() error {
	if err := q.cfg.Validate(); err != nil {
		return errors.WrapFatal(err, "question-answerer", "Initialize", "config validation")
	}
	if q.contextPath == "" {
		return errors.WrapFatal(errors.ErrConfiguration,
			"question-answerer", "Initialize", "context path check")
	}
	return nil
}

// Start loads the context document and creates the inference session. A
// missing or unreadable context file is a configuration fault.
func (q *QuestionAnswerer) Start(_ context.Context) error {
	data, err := os.ReadFile(q.contextPath)
	if err != nil {
		q.logger.Error("Context document unreadable",
			"path", q.contextPath, "error", err)
		return errors.WrapFatal(errors.ErrConfiguration,
			"question-answerer", "Start", "context document loading")
	}
	q.contextText = string(data)

	return q.initializeSession(q.options())
}

// Stop releases the session. Best-effort, idempotent, never fails.
func (q *QuestionAnswerer) Stop(_ time.Duration) error {
	q.teardown()
	return nil
}

// Input exposes the question input port for direct wiring in code.
func (q *QuestionAnswerer) Input() *timeline.Port[string] { return q.in }

// Results exposes the results output port for direct wiring in code.
func (q *QuestionAnswerer) Results() *timeline.Port[infer.Batch] { return q.outResults }

// Latency exposes the latency output port for direct wiring in code.
func (q *QuestionAnswerer) Latency() *timeline.Port[infer.Latency] { return q.outLatency }

// CreateQuestionAnswerer creates a question answerer from raw configuration
func CreateQuestionAnswerer(rawConfig json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
	var cfg QAConfig
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "question-answerer", "CreateQuestionAnswerer", "config parsing")
		}
	}
	return NewQuestionAnswerer(cfg, deps), nil
}
