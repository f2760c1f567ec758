// Package sensorweave wires sensors, on-device inference tasks, and
// visualization sinks into deterministic reactive pipelines.
//
// # Philosophy
//
// The inference itself is delegated to an external engine. What this
// framework owns is the coordination around it:
//
//   - A uniform lifecycle contract every inference task honors
//     (session initialization, per-input inference, teardown).
//   - A bridge that turns asynchronous hardware callbacks (audio
//     buffer-ready events, camera frame timers) into a single ordered
//     event timeline.
//   - Typed ports that propagate (result batch, latency) pairs through a
//     fixed dataflow graph with deterministic delivery order, even though
//     the events originate from freely-running external threads.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Pipeline                 │  Static DAG assembly,
//	│ (validate, wire, start, teardown)   │  fail-fast halt policy
//	└─────────────────────────────────────┘
//	           ↓ orchestrates
//	┌─────────────────────────────────────┐
//	│           Components                │  Adapters, Tasks,
//	│      (adapter, task, sink)          │  Sinks
//	└─────────────────────────────────────┘
//	           ↓ communicate via
//	┌─────────────────────────────────────┐
//	│            Timeline                 │  Logical steps, typed
//	│  (ports, logical/physical actions)  │  ports, cross-thread bridge
//	└─────────────────────────────────────┘
//
// Exactly one goroutine drives the timeline; reactions never run
// concurrently with each other. Concurrency exists only at the boundary
// to hardware threads, and the only sanctioned crossing is scheduling a
// physical action with a payload.
//
// # Packages
//
// Core:
//   - timeline: logical timeline, typed ports, logical/physical actions
//   - component: reactor metadata, lifecycle, registry, dependencies
//   - pipeline: static graph construction and the run loop
//
// Components:
//   - adapter/mic: push-driven microphone bridge
//   - adapter/camera: pull-driven camera bridge
//   - task: inference task contract plus the five task families
//   - sink: console, file, websocket, and NATS consumers
//
// Boundaries (interfaces to excluded collaborators):
//   - infer: inference engine and result types
//   - capture: hardware audio streams and camera devices
//
// Infrastructure:
//   - errors: classified error handling
//   - metric: Prometheus metrics registry
//   - natsclient: NATS connection management
//   - config: pipeline definition loading and validation
package sensorweave
