// Package capture defines the boundary to hardware capture libraries:
// microphone streams and camera devices. The reactive core consumes only
// these interfaces; concrete implementations (ALSA, V4L2, GStreamer) live
// outside this module, and tests use the fakes in testutil.
package capture

import "time"

// SampleFormat is the PCM sample encoding of an audio buffer.
type SampleFormat string

// Supported sample formats
const (
	FormatInt16   SampleFormat = "int16"
	FormatFloat32 SampleFormat = "float32"
)

// AudioConfig holds the parameters a stream is opened with. Immutable
// after open.
type AudioConfig struct {
	// BufferSize is the number of samples per callback delivery.
	BufferSize int
	// SampleRate in Hz.
	SampleRate int
	// Channels is the channel count (1 = mono).
	Channels int
	// Device selects the input device; empty means the system default.
	Device string
	// Format optionally coerces the hardware sample format.
	Format SampleFormat
}

// AudioBuffer is one buffer of captured samples, produced on the stream's
// own thread.
type AudioBuffer struct {
	// Data holds raw samples encoded per the stream's Format.
	Data []byte
	// Samples is the per-channel sample count in Data.
	Samples int
	// Format is the encoding of Data.
	Format SampleFormat
	// Captured is the wall-clock time the hardware delivered the buffer.
	Captured time.Time
}

// AudioCallback is invoked by the hardware stream's own thread whenever a
// buffer is ready. The callback's only permitted action is to schedule a
// physical action carrying the buffer; it must not call into the reactive
// graph, perform I/O, or block.
type AudioCallback func(buf AudioBuffer)

// AudioStream is an open hardware input stream.
type AudioStream interface {
	// Start begins capture; the callback fires on the stream's thread.
	Start(cb AudioCallback) error
	// Stop halts capture and releases the stream. Idempotent.
	Stop() error
}

// AudioOpener opens hardware audio streams. Open failures surface
// synchronously; there is no deferred error path.
type AudioOpener interface {
	Open(cfg AudioConfig) (AudioStream, error)
}

// Frame is one captured camera image.
type Frame struct {
	// Data holds packed pixels, row-major.
	Data []byte
	// Width and Height in pixels.
	Width  int
	Height int
	// Channels per pixel (3 = BGR).
	Channels int
	// Captured is the wall-clock read time.
	Captured time.Time
}

// Device is an open camera. Read is a blocking call on the caller's
// goroutine; a false return means no frame was available this read, which
// the adapter treats as a tolerated miss.
type Device interface {
	Read() (Frame, bool)
	// Release closes the device. Idempotent.
	Release() error
}

// DeviceOpener opens camera devices by identifier.
type DeviceOpener interface {
	Open(id string) (Device, error)
}
