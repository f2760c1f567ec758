package component

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/c360/sensorweave/errors"
)

// Factory creates a component instance from configuration. The factory
// receives raw JSON configuration and dependencies, parses its own config
// with defaults applied, and returns an initialized component. All I/O
// belongs in the component's Start() method, not in the factory.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (Reactor, error)

// Registration holds factory and metadata for a component type
type Registration struct {
	Name        string  `json:"name"`        // Factory name (e.g., "camera", "classifier")
	Type        string  `json:"type"`        // Component type (adapter/task/sink)
	Medium      string  `json:"medium"`      // Payload medium (audio, video, text, any)
	Description string  `json:"description"` // Human-readable description
	Version     string  `json:"version"`     // Component version
	Factory     Factory `json:"-"`           // Factory function (not serializable)
}

// RegistrationConfig provides a clean API for component registration.
// It maps 1:1 to Registration struct fields.
type RegistrationConfig struct {
	Name        string  // Factory name (e.g., "camera", "classifier", "console")
	Factory     Factory // Factory function to create component instances
	Type        string  // Component type: "adapter", "task", "sink"
	Medium      string  // Payload medium: "audio", "video", "text", "any"
	Description string  // Human-readable description of the component
	Version     string  // Component version (semver recommended)
}

// Registry manages component factories and instances. It provides
// thread-safe registration and lookup of both factories (for creation)
// and instances (for discovery and teardown), and tracks exclusive
// hardware resources so two components never claim the same device.
type Registry struct {
	factories       map[string]*Registration
	instances       map[string]Reactor
	resourceTracker map[string]string // resource ID -> instance name
	mu              sync.RWMutex
}

// NewRegistry creates a new empty component registry
func NewRegistry() *Registry {
	return &Registry{
		factories:       make(map[string]*Registration),
		instances:       make(map[string]Reactor),
		resourceTracker: make(map[string]string),
	}
}

// RegisterWithConfig registers a component factory.
//
// Example usage:
//
//	registry.RegisterWithConfig(component.RegistrationConfig{
//	    Name:        "camera",
//	    Factory:     camera.Create,
//	    Type:        "adapter",
//	    Medium:      "video",
//	    Description: "Pull-driven camera frame adapter",
//	    Version:     "1.0.0",
//	})
func (r *Registry) RegisterWithConfig(config RegistrationConfig) error {
	registration := &Registration{
		Name:        config.Name,
		Factory:     config.Factory,
		Type:        config.Type,
		Medium:      config.Medium,
		Description: config.Description,
		Version:     config.Version,
	}
	return r.registerFactory(config.Name, registration)
}

func (r *Registry) registerFactory(name string, registration *Registration) error {
	if err := ValidateComponentName(name); err != nil {
		return errors.Wrap(err, "Registry", "registerFactory", "factory name validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "registerFactory", "factory function validation")
	}
	if registration.Type == "" {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "registerFactory", "component type validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		msg := fmt.Errorf("factory '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "registerFactory", "duplicate factory check")
	}

	r.factories[name] = registration
	return nil
}

// CreateComponent creates and registers a component instance. The
// instanceName is the unique identifier for this instance (e.g.,
// "camera-front-door"); factoryName selects the registered factory.
func (r *Registry) CreateComponent(
	instanceName, factoryName string, rawConfig json.RawMessage, deps Dependencies,
) (Reactor, error) {
	if err := ValidateComponentName(instanceName); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance name validation")
	}
	if deps.Timeline == nil {
		return nil, errors.WrapInvalid(errors.ErrConfiguration, "Registry", "CreateComponent", "timeline validation")
	}

	r.mu.RLock()
	registration, exists := r.factories[factoryName]
	r.mu.RUnlock()

	if !exists {
		msg := fmt.Errorf("%w: unknown component factory '%s'", errors.ErrUnknownKind, factoryName)
		return nil, errors.WrapInvalid(msg, "Registry", "CreateComponent", "factory lookup")
	}

	deps.Instance = instanceName
	comp, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "factory execution")
	}

	if err := r.RegisterInstance(instanceName, comp); err != nil {
		return nil, errors.Wrap(err, "Registry", "CreateComponent", "instance registration")
	}

	return comp, nil
}

// RegisterInstance registers a component instance with the given name.
// Returns an error if the name is taken or the instance claims an
// exclusive hardware resource another instance already holds.
func (r *Registry) RegisterInstance(name string, comp Reactor) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "RegisterInstance", "instance name validation")
	}
	if comp == nil {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "RegisterInstance", "component validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[name]; exists {
		msg := fmt.Errorf("instance '%s' is already registered", name)
		return errors.WrapInvalid(msg, "Registry", "RegisterInstance", "duplicate instance check")
	}

	if err := r.checkResourceConflicts(comp); err != nil {
		return errors.Wrap(err, "Registry", "RegisterInstance", "resource conflict check")
	}

	r.instances[name] = comp
	r.trackComponentResources(name, comp)
	return nil
}

// UnregisterInstance removes a component instance from the registry,
// releasing its exclusive resource claims.
func (r *Registry) UnregisterInstance(name string) {
	if name == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if comp, exists := r.instances[name]; exists {
		r.untrackComponentResources(name, comp)
	}
	delete(r.instances, name)
}

// ListComponents returns all registered component instances
func (r *Registry) ListComponents() map[string]Reactor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Reactor, len(r.instances))
	maps.Copy(result, r.instances)
	return result
}

// Component retrieves a specific component instance by name.
// Returns nil if the component is not found.
func (r *Registry) Component(name string) Reactor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instances[name]
}

// ListFactories returns metadata for all registered component factories
func (r *Registry) ListFactories() map[string]Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]Registration, len(r.factories))
	for name, registration := range r.factories {
		// Copy without the factory function for safety
		result[name] = Registration{
			Name:        registration.Name,
			Type:        registration.Type,
			Medium:      registration.Medium,
			Description: registration.Description,
			Version:     registration.Version,
		}
	}
	return result
}

// HasFactory reports whether a factory with this name is registered.
func (r *Registry) HasFactory(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// FactoryType returns the component type of a registered factory.
func (r *Registry) FactoryType(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	registration, ok := r.factories[name]
	if !ok {
		return "", false
	}
	return registration.Type, true
}

// MaxNameLength bounds component and instance names.
const MaxNameLength = 256

// ValidateComponentName validates component/instance names: alphanumeric,
// dash, underscore, dot.
func ValidateComponentName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "ValidateComponentName", "empty name")
	}
	if len(name) > MaxNameLength {
		return errors.WrapInvalid(errors.ErrConfiguration, "Registry", "ValidateComponentName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				errors.ErrConfiguration, "Registry", "ValidateComponentName", "invalid name characters")
		}
	}
	return nil
}

// checkResourceConflicts checks if any of the component's ports claim an
// exclusive resource already held by another instance.
func (r *Registry) checkResourceConflicts(comp Reactor) error {
	allPorts := append(comp.InputPorts(), comp.OutputPorts()...)

	for _, port := range allPorts {
		if !port.IsExclusive() {
			continue
		}
		if existingInstance, exists := r.resourceTracker[port.Resource]; exists {
			msg := fmt.Errorf("resource conflict: %s already used by component '%s'",
				port.Resource, existingInstance)
			return errors.WrapInvalid(msg, "Registry", "checkResourceConflicts", "exclusive resource check")
		}
	}
	return nil
}

func (r *Registry) trackComponentResources(instanceName string, comp Reactor) {
	allPorts := append(comp.InputPorts(), comp.OutputPorts()...)
	for _, port := range allPorts {
		if port.IsExclusive() {
			r.resourceTracker[port.Resource] = instanceName
		}
	}
}

func (r *Registry) untrackComponentResources(instanceName string, comp Reactor) {
	allPorts := append(comp.InputPorts(), comp.OutputPorts()...)
	for _, port := range allPorts {
		if !port.IsExclusive() {
			continue
		}
		if trackedInstance, exists := r.resourceTracker[port.Resource]; exists && trackedInstance == instanceName {
			delete(r.resourceTracker, port.Resource)
		}
	}
}
