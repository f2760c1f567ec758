// Package task implements the inference task contract and the concrete
// task families: image classification, object detection, segmentation,
// text classification, and question answering.
//
// Every task owns exactly one inference session and is stateless across
// activations except for that session handle. The lifecycle is strict:
//
//	Uninitialized → Ready (session live) → Stopped
//
// Session initialization happens exactly once at startup; any failure is
// fatal for the whole pipeline (fail-fast, no resumable errors). Each
// inference call measures wall-clock latency strictly around the engine
// call and emits (results, latency) on two output ports within the same
// logical step, latency first so downstream consumers triggered by the
// results port observe both. Teardown is best-effort and idempotent:
// errors are logged, never raised.
package task
