package pipeline

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

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/config"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/sink"
	"github.com/c360/sensorweave/testutil"
	"github.com/c360/sensorweave/timeline"
)

func tempModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.tflite")
	require.NoError(t, os.WriteFile(path, []byte("model"), 0o644))
	return path
}

func readRecords(t *testing.T, path string) []sink.Record {
	t.Helper()
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
	return records
}

func runPipeline(t *testing.T, p *Pipeline) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not halt")
		return nil
	}
}

func frame(w int) capture.Frame {
	return capture.Frame{Width: w, Height: 1, Channels: 3, Data: make([]byte, w*3)}
}

func TestVisionPipelineEndToEnd(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	cam := &testutil.MockCamera{Script: []testutil.FrameResult{
		testutil.CapturedFrame(frame(1)),
		testutil.CapturedFrame(frame(2)),
		testutil.CapturedFrame(frame(3)),
	}}
	eng := testutil.NewMockEngine(
		infer.Batch{{Label: "cat", Score: 0.9}},
		infer.Batch{{Label: "dog", Score: 0.8}},
		infer.Batch{{Label: "bird", Score: 0.7}},
	)

	def := &config.Definition{
		Name: "vision-e2e",
		Components: []config.Component{
			{Name: "cam", Factory: "camera", Config: map[string]any{
				"period": int64(time.Millisecond),
			}},
			{Name: "cls", Factory: "classifier", Config: map[string]any{
				"model_path": tempModel(t),
			}},
			{Name: "out", Factory: "file", Config: map[string]any{
				"path":  outPath,
				"limit": 3,
			}},
		},
		Connections: []config.Connection{
			{From: "cam.image", To: "cls.image"},
			{From: "cls.results", To: "out.results"},
			{From: "cls.latency", To: "out.latency"},
		},
	}

	p, err := New(def, Options{
		Engine: eng,
		Camera: &testutil.MockCameraOpener{Camera: cam},
	})
	require.NoError(t, err)

	// The file sink's record limit requests a graceful stop.
	require.NoError(t, runPipeline(t, p))

	records := readRecords(t, outPath)
	require.Len(t, records, 3)
	assert.Equal(t, "cat", records[0].Items[0].Label)
	assert.Equal(t, "dog", records[1].Items[0].Label)
	assert.Equal(t, "bird", records[2].Items[0].Label)
	for _, rec := range records {
		assert.GreaterOrEqual(t, rec.LatencyMS, 0.0, "latency rides along with every batch")
	}

	// Teardown released the session and the device.
	require.Len(t, eng.Sessions, 1)
	assert.Equal(t, 1, eng.Sessions[0].CloseCalls)
	assert.Equal(t, 1, cam.ReleaseCalls)
}

func TestFeedbackTriggeredCapture(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	cam := &testutil.MockCamera{Script: []testutil.FrameResult{
		testutil.CapturedFrame(frame(1)),
		testutil.CapturedFrame(frame(2)),
		testutil.CapturedFrame(frame(3)),
	}}
	eng := testutil.NewMockEngine(
		infer.Batch{{Label: "a", Score: 0.9}},
		infer.Batch{{Label: "b", Score: 0.9}},
		infer.Batch{{Label: "c", Score: 0.9}},
	)

	def := &config.Definition{
		Name: "feedback-e2e",
		Components: []config.Component{
			{Name: "cam", Factory: "camera", Config: map[string]any{
				"trigger": true,
			}},
			{Name: "det", Factory: "detector", Config: map[string]any{
				"model_path": tempModel(t),
			}},
			{Name: "out", Factory: "file", Config: map[string]any{
				"path":  outPath,
				"limit": 3,
			}},
		},
		Connections: []config.Connection{
			{From: "cam.image", To: "det.image"},
			{From: "det.done", To: "cam.trigger"},
			{From: "det.results", To: "out.results"},
		},
	}

	p, err := New(def, Options{
		Engine: eng,
		Camera: &testutil.MockCameraOpener{Camera: cam},
	})
	require.NoError(t, err)
	require.NoError(t, runPipeline(t, p))

	// One priming capture, then each inference triggers exactly one more.
	records := readRecords(t, outPath)
	require.Len(t, records, 3)
	assert.Equal(t, 3, cam.ReadCalls)
}

func TestStartFailureTearsDownStartedComponents(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.jsonl")

	def := &config.Definition{
		Name: "broken",
		Components: []config.Component{
			{Name: "cam", Factory: "camera"},
			{Name: "cls", Factory: "classifier", Config: map[string]any{
				"model_path": filepath.Join(t.TempDir(), "missing.tflite"),
			}},
			{Name: "out", Factory: "file", Config: map[string]any{"path": outPath}},
		},
		Connections: []config.Connection{
			{From: "cam.image", To: "cls.image"},
			{From: "cls.results", To: "out.results"},
		},
	}

	p, err := New(def, Options{
		Engine: testutil.NewMockEngine(),
		Camera: &testutil.MockCameraOpener{},
	})
	require.NoError(t, err)

	err = runPipeline(t, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.True(t, errors.IsFatal(err))

	// The sink started before the task failed and was stopped again.
	assert.False(t, p.Component("out").Health().Healthy)
}

func TestExclusiveDeviceConflictFailsAssembly(t *testing.T) {
	def := &config.Definition{
		Name: "conflict",
		Components: []config.Component{
			{Name: "cam-a", Factory: "camera", Config: map[string]any{"device": "/dev/video0"}},
			{Name: "cam-b", Factory: "camera", Config: map[string]any{"device": "/dev/video0"}},
		},
	}

	_, err := New(def, Options{Camera: &testutil.MockCameraOpener{}})
	require.Error(t, err)
}

func TestPayloadTypeClashFailsAssembly(t *testing.T) {
	def := &config.Definition{
		Name: "clash",
		Components: []config.Component{
			{Name: "cam", Factory: "camera"},
			{Name: "out", Factory: "console"},
		},
		Connections: []config.Connection{
			// Frames into a results input: same direction rules, wrong
			// payload type.
			{From: "cam.image", To: "out.results"},
		},
	}

	_, err := New(def, Options{Camera: &testutil.MockCameraOpener{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestUnknownFactoryFailsAssembly(t *testing.T) {
	def := &config.Definition{
		Name: "unknown",
		Components: []config.Component{
			{Name: "x", Factory: "teleporter"},
		},
	}

	_, err := New(def, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownKind))
}

func TestUndeclaredPortFailsAssembly(t *testing.T) {
	def := &config.Definition{
		Name: "badport",
		Components: []config.Component{
			{Name: "cam", Factory: "camera"},
			{Name: "out", Factory: "console"},
		},
		Connections: []config.Connection{
			{From: "cam.nonexistent", To: "out.results"},
		},
	}

	_, err := New(def, Options{Camera: &testutil.MockCameraOpener{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestUnconnectedRequiredInputFailsAssembly(t *testing.T) {
	def := &config.Definition{
		Name: "dangling",
		Components: []config.Component{
			{Name: "cam", Factory: "camera"},
			{Name: "cls", Factory: "classifier", Config: map[string]any{
				"model_path": tempModel(t),
			}},
			{Name: "out", Factory: "file", Config: map[string]any{
				"path": filepath.Join(t.TempDir(), "out.jsonl"),
			}},
		},
		// cls.image is declared required but never wired; without a
		// source the task would run forever producing nothing.
		Connections: []config.Connection{
			{From: "cls.results", To: "out.results"},
		},
	}

	_, err := New(def, Options{
		Engine: testutil.NewMockEngine(),
		Camera: &testutil.MockCameraOpener{},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.True(t, errors.IsFatal(err))
	assert.Contains(t, err.Error(), `required input "image"`)
}

func TestTriggerModeRequiresTriggerConnection(t *testing.T) {
	def := &config.Definition{
		Name: "untriggered",
		Components: []config.Component{
			{Name: "cam", Factory: "camera", Config: map[string]any{
				"trigger": true,
			}},
		},
	}

	_, err := New(def, Options{Camera: &testutil.MockCameraOpener{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), `required input "trigger"`)
}

// relay passes frames through unchanged. The built-in catalog cannot
// express a data cycle without a payload clash, so graph-shape tests
// register it as a custom factory.
type relay struct {
	in  *timeline.Port[capture.Frame]
	out *timeline.Port[capture.Frame]
}

func newRelay(deps component.Dependencies) *relay {
	r := &relay{
		in:  timeline.NewPort[capture.Frame](deps.Timeline, "in", timeline.KindFrame),
		out: timeline.NewPort[capture.Frame](deps.Timeline, "out", timeline.KindFrame),
	}
	r.in.OnPresent(func() error {
		f, _ := r.in.Get()
		r.out.Set(f)
		return nil
	})
	return r
}

func (r *relay) Meta() component.Metadata {
	return component.Metadata{Name: "relay", Type: component.TypeTask}
}

func (r *relay) InputPorts() []component.Port {
	return []component.Port{{
		Name:      "in",
		Direction: component.DirectionInput,
		Kind:      timeline.KindFrame,
		Required:  true,
	}}
}

func (r *relay) OutputPorts() []component.Port {
	return []component.Port{{
		Name:      "out",
		Direction: component.DirectionOutput,
		Kind:      timeline.KindFrame,
	}}
}

func (r *relay) Health() component.HealthStatus {
	return component.HealthStatus{Healthy: true}
}

func (r *relay) Lookup(name string) (timeline.AnyPort, bool) {
	switch name {
	case "in":
		return r.in, true
	case "out":
		return r.out, true
	default:
		return nil, false
	}
}

func TestDataCycleFailsAssembly(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, reg.RegisterWithConfig(component.RegistrationConfig{
		Name: "relay",
		Type: component.TypeTask,
		Factory: func(_ json.RawMessage, deps component.Dependencies) (component.Reactor, error) {
			return newRelay(deps), nil
		},
	}))

	def := &config.Definition{
		Name: "loop",
		Components: []config.Component{
			{Name: "a", Factory: "relay"},
			{Name: "b", Factory: "relay"},
		},
		Connections: []config.Connection{
			{From: "a.out", To: "b.in"},
			{From: "b.out", To: "a.in"},
		},
	}

	_, err := New(def, Options{Registry: reg})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "cycle")
}

func TestDuplicateFactoryInstancesKeepDistinctIdentity(t *testing.T) {
	metrics := metric.NewRegistry()
	def := &config.Definition{
		Name: "twins",
		Components: []config.Component{
			{Name: "cam", Factory: "camera"},
			{Name: "cls-a", Factory: "classifier"},
			{Name: "cls-b", Factory: "classifier"},
			{Name: "out-a", Factory: "console"},
			{Name: "out-b", Factory: "console"},
		},
		Connections: []config.Connection{
			{From: "cam.image", To: "cls-a.image"},
			{From: "cam.image", To: "cls-b.image"},
			{From: "cls-a.results", To: "out-a.results"},
			{From: "cls-b.results", To: "out-b.results"},
		},
	}

	p, err := New(def, Options{
		Engine:  testutil.NewMockEngine(),
		Camera:  &testutil.MockCameraOpener{},
		Metrics: metrics,
	})
	require.NoError(t, err)

	assert.Equal(t, "cls-a", p.Component("cls-a").Meta().Name)
	assert.Equal(t, "cls-b", p.Component("cls-b").Meta().Name)

	// Metrics are keyed by instance, so the second classifier's
	// registration is not discarded as a duplicate.
	assert.True(t, metrics.Unregister("cls-a", "inferences"))
	assert.True(t, metrics.Unregister("cls-b", "inferences"))
}

func TestContextCancellationStopsRun(t *testing.T) {
	def := &config.Definition{
		Name: "idle",
		Components: []config.Component{
			{Name: "cam", Factory: "camera", Config: map[string]any{
				"period": int64(time.Hour),
			}},
		},
	}

	p, err := New(def, Options{Camera: &testutil.MockCameraOpener{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop on cancellation")
	}
}
