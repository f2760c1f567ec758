// Package testutil provides in-memory fakes for the hardware and engine
// boundaries so component and pipeline tests run without devices, model
// files, or a broker.
//
// Mock Implementations:
//
// MockEngine / MockSession - Scripted inference engine:
//   - Returns scripted batches in order, applying score threshold and
//     max-results exactly like a real session
//   - Records every Input for verification
//   - Configurable session-creation and run errors
//   - Tracks Close calls
//
// MockAudioOpener / MockAudioStream - Microphone stand-in:
//   - Emit delivers a buffer through the registered callback on the
//     caller's goroutine, standing in for the driver thread
//   - Configurable open and start errors
//
// MockCameraOpener / MockCamera - Camera stand-in:
//   - Scripted sequence of frames and misses
//   - Tracks Read and Release calls
//
// MockPublisher - Broker stand-in for the NATS sink:
//   - Stores published subject/payload pairs for verification
//   - Thread-safe for concurrent use
package testutil
