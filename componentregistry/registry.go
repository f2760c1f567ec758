// Package componentregistry wires every built-in component factory into
// a registry. Pipelines and the CLI use it so the factory catalog stays
// in one place.
package componentregistry

import (
	"github.com/c360/sensorweave/adapter/camera"
	"github.com/c360/sensorweave/adapter/mic"
	"github.com/c360/sensorweave/component"
	"github.com/c360/sensorweave/errors"
	"github.com/c360/sensorweave/sink/console"
	"github.com/c360/sensorweave/sink/file"
	"github.com/c360/sensorweave/sink/natspub"
	"github.com/c360/sensorweave/sink/websocket"
	"github.com/c360/sensorweave/task"
)

// Register adds every built-in factory to the registry.
func Register(registry *component.Registry) error {
	for _, register := range []func(*component.Registry) error{
		camera.Register,
		mic.Register,
		task.Register,
		console.Register,
		file.Register,
		natspub.Register,
		websocket.Register,
	} {
		if err := register(registry); err != nil {
			return errors.Wrap(err, "componentregistry", "Register", "factory registration")
		}
	}
	return nil
}

// New creates a registry preloaded with every built-in factory.
func New() (*component.Registry, error) {
	registry := component.NewRegistry()
	if err := Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
