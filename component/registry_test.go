package component

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/sensorweave/timeline"
)

// stubReactor is a minimal Reactor for registry tests.
type stubReactor struct {
	name     string
	resource string
}

func (s *stubReactor) Meta() Metadata {
	return Metadata{Name: s.name, Type: TypeAdapter, Version: "1.0.0"}
}

func (s *stubReactor) InputPorts() []Port {
	if s.resource == "" {
		return nil
	}
	return []Port{{
		Name:      "device",
		Direction: DirectionInput,
		Kind:      timeline.KindFrame,
		Required:  true,
		Resource:  s.resource,
	}}
}

func (s *stubReactor) OutputPorts() []Port { return nil }

func (s *stubReactor) Health() HealthStatus {
	return HealthStatus{Healthy: true, LastCheck: time.Now()}
}

func stubFactory(name, resource string) Factory {
	return func(_ json.RawMessage, _ Dependencies) (Reactor, error) {
		return &stubReactor{name: name, resource: resource}, nil
	}
}

func TestRegisterWithConfig(t *testing.T) {
	registry := NewRegistry()

	err := registry.RegisterWithConfig(RegistrationConfig{
		Name:        "camera",
		Factory:     stubFactory("camera", ""),
		Type:        TypeAdapter,
		Medium:      "video",
		Description: "test",
		Version:     "1.0.0",
	})
	require.NoError(t, err)

	assert.True(t, registry.HasFactory("camera"))
	typ, ok := registry.FactoryType("camera")
	require.True(t, ok)
	assert.Equal(t, TypeAdapter, typ)
}

func TestRegisterDuplicateFactoryFails(t *testing.T) {
	registry := NewRegistry()
	cfg := RegistrationConfig{
		Name: "camera", Factory: stubFactory("camera", ""), Type: TypeAdapter,
	}

	require.NoError(t, registry.RegisterWithConfig(cfg))
	assert.Error(t, registry.RegisterWithConfig(cfg))
}

func TestRegisterFactoryValidation(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		name string
		cfg  RegistrationConfig
	}{
		{"empty name", RegistrationConfig{Factory: stubFactory("x", ""), Type: TypeAdapter}},
		{"nil factory", RegistrationConfig{Name: "x", Type: TypeAdapter}},
		{"empty type", RegistrationConfig{Name: "x", Factory: stubFactory("x", "")}},
		{"bad characters", RegistrationConfig{Name: "x y!", Factory: stubFactory("x", ""), Type: TypeAdapter}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, registry.RegisterWithConfig(tt.cfg))
		})
	}
}

func TestCreateComponent(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterWithConfig(RegistrationConfig{
		Name: "camera", Factory: stubFactory("camera", ""), Type: TypeAdapter,
	}))

	deps := Dependencies{Timeline: timeline.New(nil, nil)}
	comp, err := registry.CreateComponent("cam-main", "camera", nil, deps)
	require.NoError(t, err)
	assert.Equal(t, "camera", comp.Meta().Name)
	assert.Same(t, comp, registry.Component("cam-main"))
}

func TestCreateComponentUnknownFactory(t *testing.T) {
	registry := NewRegistry()
	deps := Dependencies{Timeline: timeline.New(nil, nil)}

	_, err := registry.CreateComponent("x", "nope", nil, deps)
	assert.Error(t, err)
}

func TestCreateComponentRequiresTimeline(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterWithConfig(RegistrationConfig{
		Name: "camera", Factory: stubFactory("camera", ""), Type: TypeAdapter,
	}))

	_, err := registry.CreateComponent("x", "camera", nil, Dependencies{})
	assert.Error(t, err)
}

func TestExclusiveResourceConflict(t *testing.T) {
	registry := NewRegistry()
	deps := Dependencies{Timeline: timeline.New(nil, nil)}

	require.NoError(t, registry.RegisterWithConfig(RegistrationConfig{
		Name: "camera", Factory: stubFactory("camera", "video:/dev/video0"), Type: TypeAdapter,
	}))

	_, err := registry.CreateComponent("cam-a", "camera", nil, deps)
	require.NoError(t, err)

	_, err = registry.CreateComponent("cam-b", "camera", nil, deps)
	require.Error(t, err, "two instances must not claim the same device")

	// Releasing the first frees the device for a new instance
	registry.UnregisterInstance("cam-a")
	_, err = registry.CreateComponent("cam-c", "camera", nil, deps)
	assert.NoError(t, err)
}

func TestLifecycleStateString(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateUninitialized, "uninitialized"},
		{StateReady, "ready"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}
