package component

import "github.com/c360/sensorweave/timeline"

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes a connection point on a component. Descriptors are static
// metadata used for wiring validation and discovery; the runtime port is
// reached through the Wired interface under the same name.
type Port struct {
	Name        string        `json:"name"`
	Direction   Direction     `json:"direction"`
	Kind        timeline.Kind `json:"kind"`
	Required    bool          `json:"required"`
	Description string        `json:"description"`

	// Resource identifies an exclusive underlying resource (a hardware
	// device), empty when the port is a plain in-process connection. Two
	// components may never claim the same exclusive resource.
	Resource string `json:"resource,omitempty"`
}

// IsExclusive reports whether the port claims an exclusive resource.
func (p Port) IsExclusive() bool {
	return p.Resource != ""
}
