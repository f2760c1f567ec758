package natspub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/testutil"
	"github.com/c360/sensorweave/timeline"
)

func runTimeline(t *testing.T, tl *timeline.Timeline) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- tl.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timeline did not halt")
		return nil
	}
}

func TestPublishesRecords(t *testing.T) {
	pub := &testutil.MockPublisher{}
	tl := timeline.New(nil, nil)
	deps := component.Dependencies{Timeline: tl}

	s := New(Config{Subject: "inference.results"}, pub, deps)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))

	tl.AtStartup(func() error {
		s.Inputs().Latency.Set(7.5)
		s.Inputs().Results.Set(infer.Batch{{Label: "cat", Score: 0.9}})
		tl.RequestStop(nil)
		return nil
	})

	require.NoError(t, runTimeline(t, tl))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "inference.results", msgs[0].Subject)

	var rec sink.Record
	require.NoError(t, json.Unmarshal(msgs[0].Data, &rec))
	assert.Equal(t, "cat", rec.Items[0].Label)
	assert.InDelta(t, 7.5, rec.LatencyMS, 1e-9)
}

func TestPublishFailureDoesNotHalt(t *testing.T) {
	pub := &testutil.MockPublisher{PublishErr: errors.New("broker gone")}
	tl := timeline.New(nil, nil)
	deps := component.Dependencies{Timeline: tl}

	s := New(Config{Subject: "inference.results"}, pub, deps)
	require.NoError(t, s.Start(context.Background()))

	tl.AtStartup(func() error {
		s.Inputs().Results.Set(infer.Batch{{Label: "cat", Score: 0.9}})
		tl.RequestStop(nil)
		return nil
	})

	// Egress is best-effort; the run still ends gracefully.
	require.NoError(t, runTimeline(t, tl))
	assert.Equal(t, 1, s.Health().ErrorCount)
}

func TestMissingSubjectRejected(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := New(Config{}, &testutil.MockPublisher{}, component.Dependencies{Timeline: tl})

	err := s.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestMissingPublisherRejected(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := New(Config{Subject: "x"}, nil, component.Dependencies{Timeline: tl})

	err := s.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}
