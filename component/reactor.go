// Package component defines the reactor contract shared by every unit in
// a sensorweave pipeline: adapters that bridge hardware into the timeline,
// tasks that run inference, and sinks that consume results.
package component

import (
	"time"

	"github.com/c360/sensorweave/timeline"
)

// Component type constants
const (
	TypeAdapter = "adapter"
	TypeTask    = "task"
	TypeSink    = "sink"
)

// Reactor is the discoverable surface of a component: metadata, port
// descriptors, and health. The pipeline assembly owns all reactor
// instances for its lifetime; a reactor owns its session and state fields
// exclusively.
type Reactor interface {
	// Meta returns basic component information
	Meta() Metadata

	// InputPorts returns the ports this component accepts data on
	InputPorts() []Port

	// OutputPorts returns the ports this component produces data on
	OutputPorts() []Port

	// Health returns current health status
	Health() HealthStatus
}

// Wired exposes a component's runtime ports for assembly-time connection.
// The lookup name matches the descriptor names in InputPorts/OutputPorts.
type Wired interface {
	Lookup(name string) (timeline.AnyPort, bool)
}

// Metadata describes what a component is
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "adapter", "task", "sink"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// HealthStatus describes the current health state of a component
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}
