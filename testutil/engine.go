package testutil

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/c360/sensorweave/infer"
)

// MockEngine is an in-memory inference engine. Each NewSession call hands
// out a MockSession that replays the scripted batches in order.
type MockEngine struct {
	mu sync.Mutex

	// Script holds the batches returned by successive Run calls across all
	// sessions, before threshold and max-results trimming. When exhausted,
	// Run returns an empty batch.
	Script []infer.Batch

	// NewSessionErr, when set, makes every NewSession call fail.
	NewSessionErr error

	// RunErr, when set, makes every Run call fail.
	RunErr error

	// Opts records the options of every NewSession call.
	Opts []infer.Options

	// Sessions holds every session handed out, in creation order.
	Sessions []*MockSession

	next int
}

// NewMockEngine creates an engine that replays the given batches.
func NewMockEngine(script ...infer.Batch) *MockEngine {
	return &MockEngine{Script: script}
}

// NewSession implements infer.Engine.
func (e *MockEngine) NewSession(opts infer.Options) (infer.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Opts = append(e.Opts, opts)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}

	s := &MockSession{ID: uuid.NewString(), engine: e, opts: opts}
	e.Sessions = append(e.Sessions, s)
	return s, nil
}

// takeBatch pops the next scripted batch, or an empty one past the end.
func (e *MockEngine) takeBatch() infer.Batch {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.next >= len(e.Script) {
		return infer.Batch{}
	}
	b := e.Script[e.next]
	e.next++
	return b
}

// MockSession is the session handle side of MockEngine. It applies the
// score threshold and max-results bound the way a real engine does, so
// task tests exercise the untrimmed scripts they feed in.
type MockSession struct {
	mu sync.Mutex

	// ID is a unique handle identifier, useful in assertion messages.
	ID string

	// Inputs records every Run call's input.
	Inputs []infer.Input

	// CloseCalls counts Close invocations.
	CloseCalls int

	engine *MockEngine
	opts   infer.Options
}

// Run implements infer.Session.
func (s *MockSession) Run(in infer.Input) (infer.Batch, error) {
	s.mu.Lock()
	s.Inputs = append(s.Inputs, in)
	s.mu.Unlock()

	if s.engine.RunErr != nil {
		return nil, s.engine.RunErr
	}

	raw := s.engine.takeBatch()
	out := make(infer.Batch, 0, len(raw))
	for _, item := range raw {
		if item.Score >= s.opts.ScoreThreshold {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if s.opts.MaxResults > 0 && len(out) > s.opts.MaxResults {
		out = out[:s.opts.MaxResults]
	}
	return out, nil
}

// Close implements infer.Session.
func (s *MockSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}
