// Package timeline implements the single logical timeline that drives all
// component reactions in a sensorweave pipeline.
//
// # Model
//
// A Timeline executes reactions on exactly one goroutine. Events are
// ordered by tag (a wall-clock timestamp) with a sequence number breaking
// ties, so delivery order is deterministic: events scheduled earlier run
// earlier. All reactions triggered within one tag form one logical step;
// port values exist only for the duration of that step.
//
// Two event sources exist:
//
//   - Logical actions, scheduled relative to the current tag from within a
//     reaction. Used for internal pull-triggers such as the camera cadence
//     timer.
//
//   - Physical actions, scheduled from any goroutine with a payload. This
//     is the only sanctioned cross-thread handoff: hardware callbacks hand
//     their buffer to Schedule and nothing else. Physical events are
//     delivered exactly once, in the order the scheduling calls returned,
//     and strictly after already-queued logical events at earlier or equal
//     tags.
//
// # Halting
//
// RequestStop may be called from any reaction (fatal errors) or from a
// sink (graceful quit, nil error). The driver halts after the current step
// completes and Run returns the halting error, nil when graceful.
package timeline
