package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/sink"
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

func TestWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	tl := timeline.New(nil, nil)
	deps := component.Dependencies{Timeline: tl}

	s := New(Config{Path: path, Limit: 2}, deps)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))

	tl.AtStartup(func() error {
		s.Inputs().Latency.Set(3.2)
		s.Inputs().Results.Set(infer.Batch{{Label: "cat", Score: 0.9}})
		return tl.Schedule(time.Millisecond, func() error {
			s.Inputs().Results.Set(infer.Batch{{Label: "dog", Score: 0.8}})
			return nil
		})
	})

	require.NoError(t, runTimeline(t, tl))
	require.NoError(t, s.Stop(time.Second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []sink.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec sink.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "cat", records[0].Items[0].Label)
	assert.InDelta(t, 3.2, records[0].LatencyMS, 1e-9)
	assert.Equal(t, "dog", records[1].Items[0].Label)
	// Second step carried no latency.
	assert.Equal(t, -1.0, records[1].LatencyMS)
}

func TestEmptyPathRejected(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := New(Config{}, component.Dependencies{Timeline: tl})

	err := s.Initialize()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestUnwritablePathIsFatal(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := New(Config{Path: filepath.Join(t.TempDir(), "no", "such", "dir", "out.jsonl")},
		component.Dependencies{Timeline: tl})

	require.NoError(t, s.Initialize())
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.True(t, errors.IsFatal(err))
}

func TestStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	tl := timeline.New(nil, nil)
	s := New(Config{Path: path}, component.Dependencies{Timeline: tl})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(time.Second))
	require.NoError(t, s.Stop(time.Second))
}
