package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/timeline"
)

func startSink(t *testing.T, tl *timeline.Timeline) *Sink {
	t.Helper()
	s := New(Config{Addr: "127.0.0.1:0"}, component.Dependencies{Timeline: tl})
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(time.Second) })
	return s
}

func dial(t *testing.T, s *Sink) *gws.Conn {
	t.Helper()
	conn, _, err := gws.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClient(t *testing.T, s *Sink) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastsRecordWithOverlay(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := startSink(t, tl)

	conn := dial(t, s)
	waitForClient(t, s)

	tl.AtStartup(func() error {
		s.FramePort().Set(capture.Frame{Width: 4, Height: 2, Channels: 3, Data: make([]byte, 24)})
		s.Inputs().Latency.Set(9.1)
		s.Inputs().Results.Set(infer.Batch{
			{Label: "cat", Score: 0.9, Box: &infer.Rect{Width: 10, Height: 10}},
		})
		tl.RequestStop(nil)
		return nil
	})
	done := make(chan error, 1)
	go func() { done <- tl.Run(context.Background()) }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var payload displayPayload
	require.NoError(t, json.Unmarshal(msg, &payload))
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "cat", payload.Items[0].Label)
	assert.InDelta(t, 9.1, payload.LatencyMS, 1e-9)
	assert.Contains(t, payload.Colors, "cat")
	require.NotNil(t, payload.Frame)
	assert.Equal(t, 4, payload.Frame.Width)

	require.NoError(t, <-done)
}

func TestViewerQuitRequestsGracefulStop(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := startSink(t, tl)

	conn := dial(t, s)
	waitForClient(t, s)

	done := make(chan error, 1)
	go func() { done <- tl.Run(context.Background()) }()

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte("quit")))

	select {
	case err := <-done:
		assert.NoError(t, err, "viewer quit is a graceful stop")
	case <-time.After(5 * time.Second):
		t.Fatal("timeline did not halt after quit")
	}
}

func TestColorsAreStable(t *testing.T) {
	a := colorFor("person")
	b := colorFor("person")
	c := colorFor("bicycle")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInvalidAddrRejected(t *testing.T) {
	tl := timeline.New(nil, nil)
	s := New(Config{Addr: "not-an-addr"}, component.Dependencies{Timeline: tl})
	assert.Error(t, s.Initialize())
}
