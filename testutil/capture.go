package testutil

import (
	"sync"

	"github.com/c360/sensorweave/capture"
)

// MockAudioStream is a microphone stream whose buffers are delivered by
// the test via Emit, standing in for the driver thread.
type MockAudioStream struct {
	mu sync.Mutex

	// StartErr, when set, makes Start fail.
	StartErr error

	// StartCalls and StopCalls count lifecycle invocations.
	StartCalls int
	StopCalls  int

	cb capture.AudioCallback
}

// Start implements capture.AudioStream.
func (s *MockAudioStream) Start(cb capture.AudioCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StartCalls++
	if s.StartErr != nil {
		return s.StartErr
	}
	s.cb = cb
	return nil
}

// Stop implements capture.AudioStream.
func (s *MockAudioStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.StopCalls++
	s.cb = nil
	return nil
}

// Emit invokes the registered callback with the buffer on the caller's
// goroutine. No-op before Start or after Stop.
func (s *MockAudioStream) Emit(buf capture.AudioBuffer) {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()

	if cb != nil {
		cb(buf)
	}
}

// MockAudioOpener hands out MockAudioStreams and records open configs.
type MockAudioOpener struct {
	mu sync.Mutex

	// OpenErr, when set, makes every Open call fail.
	OpenErr error

	// Configs records the configuration of every Open call.
	Configs []capture.AudioConfig

	// Streams holds every stream handed out, in open order.
	Streams []*MockAudioStream
}

// Open implements capture.AudioOpener.
func (o *MockAudioOpener) Open(cfg capture.AudioConfig) (capture.AudioStream, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Configs = append(o.Configs, cfg)
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	s := &MockAudioStream{}
	o.Streams = append(o.Streams, s)
	return s, nil
}

// FrameResult is one scripted camera read: a frame, or a miss when OK is
// false.
type FrameResult struct {
	Frame capture.Frame
	OK    bool
}

// CapturedFrame is a convenience constructor for a successful read.
func CapturedFrame(f capture.Frame) FrameResult { return FrameResult{Frame: f, OK: true} }

// Miss is a scripted read that returns no frame.
func Miss() FrameResult { return FrameResult{} }

// MockCamera replays a scripted sequence of reads. Past the end of the
// script every read is a miss.
type MockCamera struct {
	mu sync.Mutex

	// Script is the ordered sequence of read outcomes.
	Script []FrameResult

	// ReadCalls and ReleaseCalls count invocations.
	ReadCalls    int
	ReleaseCalls int

	next int
}

// Read implements capture.Device.
func (c *MockCamera) Read() (capture.Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ReadCalls++
	if c.next >= len(c.Script) {
		return capture.Frame{}, false
	}
	r := c.Script[c.next]
	c.next++
	return r.Frame, r.OK
}

// Release implements capture.Device.
func (c *MockCamera) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReleaseCalls++
	return nil
}

// MockCameraOpener hands out a fixed camera and records open identifiers.
type MockCameraOpener struct {
	mu sync.Mutex

	// Camera is returned by every successful Open. When nil an empty
	// MockCamera is created on first use.
	Camera *MockCamera

	// OpenErr, when set, makes every Open call fail.
	OpenErr error

	// IDs records the identifier of every Open call.
	IDs []string
}

// Open implements capture.DeviceOpener.
func (o *MockCameraOpener) Open(id string) (capture.Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.IDs = append(o.IDs, id)
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if o.Camera == nil {
		o.Camera = &MockCamera{}
	}
	return o.Camera, nil
}
