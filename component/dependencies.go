package component

import (
	"log/slog"

	"github.com/c360/sensorweave/capture"
	"github.com/c360/sensorweave/infer"
	"github.com/c360/sensorweave/metric"
	"github.com/c360/sensorweave/natsclient"
	"github.com/c360/sensorweave/timeline"
)

// Dependencies provides all external collaborators a component factory may
// need. Components receive structured dependencies rather than individual
// fields; unused fields stay nil and factories validate what they require.
type Dependencies struct {
	// Instance is the unique instance name from the pipeline definition.
	// Registry.CreateComponent fills it before invoking the factory; it is
	// empty when a component is constructed directly in code.
	Instance string

	Timeline   *timeline.Timeline   // The pipeline's logical timeline (always set)
	Engine     infer.Engine         // Inference engine (tasks)
	Audio      capture.AudioOpener  // Hardware audio streams (mic adapter)
	Camera     capture.DeviceOpener // Camera devices (camera adapter)
	NATSClient *natsclient.Client   // NATS client for egress sinks (can be nil)
	Metrics    *metric.Registry     // Metrics registry (can be nil)
	Logger     *slog.Logger         // Structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger configured with component context
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}

// InstanceName returns the instance name, or the given fallback when the
// component was built outside a registry.
func (d *Dependencies) InstanceName(fallback string) string {
	if d.Instance != "" {
		return d.Instance
	}
	return fallback
}
