// Package config loads and validates pipeline definitions. A definition
// declares component instances by factory name and the port connections
// between them; it is loaded once at startup and immutable afterwards.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/sensorweave/errors"
)

// Component declares one instance in the pipeline.
type Component struct {
	// Name uniquely identifies the instance, e.g. "front-camera".
	Name string `yaml:"name" json:"name"`
	// Factory selects the registered component factory, e.g. "camera".
	Factory string `yaml:"factory" json:"factory"`
	// Config is the factory-specific configuration block.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// RawConfig converts the component's config block into the JSON form
// factories consume.
func (c Component) RawConfig() (json.RawMessage, error) {
	if len(c.Config) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "RawConfig", "config block encoding")
	}
	return raw, nil
}

// Connection wires one output port to one input port. Endpoints use the
// "instance.port" form; fan-out is expressed as multiple connections from
// the same endpoint.
type Connection struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// NATS holds the optional broker connection for egress sinks.
type NATS struct {
	URL            string        `yaml:"url" json:"url"`
	Name           string        `yaml:"name,omitempty" json:"name,omitempty"`
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
	MaxReconnects  int           `yaml:"max_reconnects,omitempty" json:"max_reconnects,omitempty"`
}

// Definition is a complete pipeline description.
type Definition struct {
	// Name identifies the pipeline in logs and metrics.
	Name string `yaml:"name" json:"name"`
	// ShutdownTimeout bounds each component's Stop call. Zero selects
	// the default.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
	// Components lists every instance, in declaration order.
	Components []Component `yaml:"components" json:"components"`
	// Connections wires output ports to input ports.
	Connections []Connection `yaml:"connections,omitempty" json:"connections,omitempty"`
	// NATS configures the optional broker connection.
	NATS *NATS `yaml:"nats,omitempty" json:"nats,omitempty"`
}

// Load reads and validates a definition from a YAML (or JSON) file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
			"config", "Load", "definition file read")
	}
	return Parse(data)
}

// Parse decodes and validates a definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("%w: %v", errors.ErrConfiguration, err),
			"config", "Parse", "definition decoding")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// Validate checks structural rules: unique instance names, well-formed
// connection endpoints, and endpoints referring to declared instances.
func (d *Definition) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.WrapFatal(
			fmt.Errorf("%w: "+format, append([]any{errors.ErrConfiguration}, args...)...),
			"config", "Validate", "definition validation")
	}

	if d.Name == "" {
		return fail("pipeline name must not be empty")
	}
	if len(d.Components) == 0 {
		return fail("pipeline declares no components")
	}

	seen := make(map[string]bool, len(d.Components))
	for _, c := range d.Components {
		if c.Name == "" {
			return fail("component with factory %q has no name", c.Factory)
		}
		if c.Factory == "" {
			return fail("component %q has no factory", c.Name)
		}
		if seen[c.Name] {
			return fail("duplicate component name %q", c.Name)
		}
		seen[c.Name] = true
	}

	for _, conn := range d.Connections {
		for _, endpoint := range []string{conn.From, conn.To} {
			instance, _, err := ParseEndpoint(endpoint)
			if err != nil {
				return err
			}
			if !seen[instance] {
				return fail("connection endpoint %q refers to undeclared component %q", endpoint, instance)
			}
		}
	}
	return nil
}

// ParseEndpoint splits an "instance.port" endpoint.
func ParseEndpoint(endpoint string) (instance, port string, err error) {
	instance, port, found := strings.Cut(endpoint, ".")
	if !found || instance == "" || port == "" {
		return "", "", errors.WrapFatal(
			fmt.Errorf("%w: endpoint %q is not of the form instance.port", errors.ErrConfiguration, endpoint),
			"config", "ParseEndpoint", "endpoint parsing")
	}
	return instance, port, nil
}
