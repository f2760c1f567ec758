package component

import (
	"context"
	"time"
)

// State represents the current lifecycle state of a component
type State int

const (
	// StateUninitialized indicates the component was created but holds no session or device
	StateUninitialized State = iota
	// StateReady indicates the component's session or device is live
	StateReady
	// StateStopped indicates the component released its resources
	StateStopped
	// StateFailed indicates the component failed during a lifecycle operation
	StateFailed
)

// String returns a string representation of the component state
func (cs State) String() string {
	switch cs {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle defines components that support full lifecycle management
// following the unified pattern:
//   - Initialize() error                  // Validate/prepare only, NO I/O
//   - Start(ctx context.Context) error    // Acquire sessions/devices, register reactions
//   - Stop(timeout time.Duration) error   // Best-effort release, reverse start order
//
// Any failure in Initialize or Start is fatal for the whole pipeline: the
// assembly halts rather than running with a half-initialized component.
// Stop failures are swallowed by the caller and logged, never propagated.
type Lifecycle interface {
	Reactor
	Initialize() error
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Managed tracks a component and its lifecycle state. The pipeline owns
// one Managed per instance and uses StartOrder to tear down in reverse.
type Managed struct {
	// Component is the actual component instance
	Component Reactor

	// State tracks the current lifecycle state
	State State

	// Context and Cancel are the named child context for this specific
	// component. The component never stores the context; it receives it
	// as a parameter. Only the pipeline stores these to coordinate
	// shutdown.
	Context context.Context
	Cancel  context.CancelFunc

	// StartOrder tracks the order components were started for reverse shutdown
	StartOrder int

	// LastError tracks the last error that occurred during lifecycle operations
	LastError error
}

// AsLifecycle safely casts a component to Lifecycle
func AsLifecycle(comp Reactor) (Lifecycle, bool) {
	lc, ok := comp.(Lifecycle)
	return lc, ok
}
