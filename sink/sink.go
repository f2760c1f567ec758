// Package sink defines the shared consumer contract for pipeline sinks:
// a results input port that triggers the sink, a latency input that rides
// along when the producer emitted both in the same step, and the Record
// envelope sinks serialize. Concrete sinks live in subpackages.
package sink

import (
	"time"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/timeline"
)

// Record is one observed inference outcome, assembled at the step the
// results arrived in.
type Record struct {
	// Tag is the logical time of the step the results appeared in.
	Tag time.Time `json:"tag"`
	// LatencyMS is the engine latency when the producer emitted one in
	// the same step; negative when absent.
	LatencyMS float64 `json:"latency_ms,omitempty"`
	// Items are the findings, in the engine's ranking order.
	Items infer.Batch `json:"items"`
}

// Inputs bundles the input ports every sink consumes.
type Inputs struct {
	tl      *timeline.Timeline
	Results *timeline.Port[infer.Batch]
	Latency *timeline.Port[infer.Latency]
}

// NewInputs creates the standard sink input ports.
func NewInputs(tl *timeline.Timeline) Inputs {
	return Inputs{
		tl:      tl,
		Results: timeline.NewPort[infer.Batch](tl, "results", timeline.KindResults),
		Latency: timeline.NewPort[infer.Latency](tl, "latency", timeline.KindLatency),
	}
}

// OnRecord registers fn to run once per step in which results are
// present. Latency is folded in when present in the same step.
func (in Inputs) OnRecord(fn func(Record) error) {
	in.Results.OnPresent(func() error {
		items, _ := in.Results.Get()
		rec := Record{Tag: in.tl.Now(), LatencyMS: -1, Items: items}
		if latency, ok := in.Latency.Get(); ok {
			rec.LatencyMS = latency
		}
		return fn(rec)
	})
}

// Descriptors returns the standard sink input port descriptors.
func (in Inputs) Descriptors() []component.Port {
	return []component.Port{
		{
			Name:        "results",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindResults,
			Required:    true,
			Description: "Inference findings; each arrival triggers the sink",
		},
		{
			Name:        "latency",
			Direction:   component.DirectionInput,
			Kind:        timeline.KindLatency,
			Description: "Engine latency paired with the findings",
		},
	}
}

// Lookup resolves the standard input ports by name.
func (in Inputs) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "results":
		return in.Results, true
	case "latency":
		return in.Latency, true
	default:
		return nil, false
	}
}

// RequestQuit asks the pipeline for a graceful stop on the sink's behalf.
func (in Inputs) RequestQuit() {
	in.tl.RequestStop(nil)
}
