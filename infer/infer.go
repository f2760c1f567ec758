// Package infer defines the boundary to the external inference engine.
// The reactive core passes configuration through unmodified, treats the
// returned ranking order as authoritative, and owns nothing of the
// engine's internals beyond an opaque session handle.
package infer

import (
	"github.com/c360/sensorweave/capture"
)

// Family identifies an inference task family.
type Family string

// Task families
const (
	FamilyClassification     Family = "classification"
	FamilyDetection          Family = "detection"
	FamilySegmentation       Family = "segmentation"
	FamilyTextClassification Family = "text_classification"
	FamilyQuestionAnswer     Family = "question_answer"
)

// Options configures a session. Fields are passed to the engine unmodified
// and are immutable after session creation.
type Options struct {
	Family         Family
	ModelPath      string
	MaxResults     int
	ScoreThreshold float64
	NumThreads     int
	UseAccelerator bool

	// UseBERT selects the BERT architecture over average word embeddings
	// for text classification and question answering engines.
	UseBERT bool
}

// Engine creates inference sessions. Implementations wrap a concrete
// on-device runtime; the fake in testutil stands in for tests.
type Engine interface {
	// NewSession initializes a session from options. Model loading happens
	// here; a missing or corrupt model surfaces as an error, never as a
	// half-initialized session.
	NewSession(opts Options) (Session, error)
}

// Session is an opaque handle to an initialized engine instance. Created
// once at component startup, used read-only per inference call, released
// at shutdown. Run is not safe for concurrent use; the timeline guarantees
// serial calls.
type Session interface {
	// Run executes one inference call and returns findings in the engine's
	// ranking order.
	Run(in Input) (Batch, error)

	// Close releases the session. Safe to call more than once.
	Close() error
}

// Input carries the raw payload for one inference call. Exactly one data
// field is populated, matching the session's family; question answering
// additionally carries the context document.
type Input struct {
	Frame    *capture.Frame
	Audio    *capture.AudioBuffer
	Text     string
	Question string
	Context  string
}

// Rect is an axis-aligned bounding box in pixel coordinates.
type Rect struct {
	OriginX int `json:"origin_x"`
	OriginY int `json:"origin_y"`
	Width   int `json:"width"`
	Height  int `json:"height"`
}

// SegmentMap is a per-pixel label map produced by segmentation sessions.
type SegmentMap struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Labels []string `json:"labels"`
	// Pixels holds one label index per pixel, row-major.
	Pixels []uint8 `json:"pixels"`
}

// Item is one inference finding. The populated fields depend on the task
// family: classification fills Index/Label/Score/Head, detection adds Box,
// segmentation fills Segment, text classification fills Label/Score, and
// question answering fills Index/Text.
type Item struct {
	Index   int         `json:"index,omitempty"`
	Label   string      `json:"label,omitempty"`
	Score   float64     `json:"score,omitempty"`
	Head    string      `json:"head,omitempty"`
	Box     *Rect       `json:"box,omitempty"`
	Segment *SegmentMap `json:"segment,omitempty"`
	Text    string      `json:"text,omitempty"`
}

// Batch is the ordered findings of one inference call; insertion order is
// the engine's ranking order. May be empty.
type Batch []Item

// Latency is the wall-clock elapsed time of one inference call in
// milliseconds. Non-negative; not comparable across task families.
type Latency = float64
